package dispatch

import (
	"go.uber.org/zap"

	"signalhub/internal/logger"
	"signalhub/internal/state"
	"signalhub/internal/types"
	"signalhub/pkg/protocol"
)

// Dispatcher delivers outbound frames to sets of connections. Delivery is
// fire-and-forget: a recipient whose queue is full has the frame dropped,
// which is logged and never surfaced to the sender or the other recipients.
type Dispatcher struct {
	state *state.Manager
}

func New(m *state.Manager) *Dispatcher {
	return &Dispatcher{state: m}
}

// ToAll delivers to every currently-identified connection, skipping the
// connID given as except ("" means no exclusion).
func (d *Dispatcher) ToAll(event string, payload any, except string) {
	frame, err := types.EncodeFrame(event, payload)
	if err != nil {
		logger.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	for _, cc := range d.state.IdentifiedClients() {
		if cc.ID == except {
			continue
		}
		d.send(cc, event, frame)
	}
}

// ToRoom delivers to every current member of roomName. Empty or unknown
// rooms are a silent no-op.
func (d *Dispatcher) ToRoom(roomName, event string, payload any, except string) {
	members := d.state.MembersOf(roomName)
	if len(members) == 0 {
		return
	}
	frame, err := types.EncodeFrame(event, payload)
	if err != nil {
		logger.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	for _, connID := range members {
		if connID == except {
			continue
		}
		if cc, ok := d.state.GetClient(connID); ok {
			d.send(cc, event, frame)
		}
	}
}

// ToUser delivers to the first connection found for userID. When the user
// is not online the call is a silent no-op; callers that need delivery
// confirmation check online status beforehand.
func (d *Dispatcher) ToUser(userID, event string, payload any) {
	connID, ok := d.state.FindByUser(userID)
	if !ok {
		return
	}
	d.ToConn(connID, event, payload)
}

// ToConn delivers to a single connection by id.
func (d *Dispatcher) ToConn(connID, event string, payload any) {
	cc, ok := d.state.GetClient(connID)
	if !ok {
		return
	}
	frame, err := types.EncodeFrame(event, payload)
	if err != nil {
		logger.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	d.send(cc, event, frame)
}

// PublishPresence projects the current session snapshot into its public
// form and delivers it to every identified connection. Called after every
// register, unregister, join and leave.
func (d *Dispatcher) PublishPresence() {
	sessions := d.state.Snapshot()
	entries := make([]types.PresenceEntry, 0, len(sessions))
	for _, s := range sessions {
		entries = append(entries, s.Presence())
	}
	d.ToAll(protocol.EventPresenceSnapshot, presencePayload{Sessions: entries}, "")
}

type presencePayload struct {
	Sessions []types.PresenceEntry `json:"sessions"`
}

func (d *Dispatcher) send(cc *types.ClientConn, event string, frame []byte) {
	select {
	case cc.Send <- frame:
	default:
		logger.Warn("send queue full, dropping frame",
			zap.String("conn", cc.ID), zap.String("event", event))
	}
}
