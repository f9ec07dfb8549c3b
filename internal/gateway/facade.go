package gateway

import (
	"time"

	"go.uber.org/zap"

	"signalhub/internal/logger"
	"signalhub/internal/types"
	"signalhub/pkg/protocol"
)

// Control-plane façade: the operations external HTTP handlers are allowed
// to call. Everything here funnels through the same state manager and
// dispatcher as the websocket path.

// Stats returns the online count, the presence snapshot and the known room
// names.
func (g *Gateway) Stats() types.Stats {
	sessions := g.state.Snapshot()
	users := make([]types.PresenceEntry, 0, len(sessions))
	for _, s := range sessions {
		users = append(users, s.Presence())
	}
	return types.Stats{
		TotalConnections: len(sessions),
		OnlineUsers:      users,
		Rooms:            g.state.RoomNames(),
		Timestamp:        time.Now(),
	}
}

// ServerInfo is the control-plane existence check.
type ServerInfo struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
	Online    int       `json:"online"`
}

func (g *Gateway) ServerInfo() ServerInfo {
	return ServerInfo{
		Status:    "running",
		StartedAt: g.startedAt,
		Online:    g.state.OnlineCount(),
	}
}

// BroadcastToAll delivers an event to every identified connection. Logged
// for audit.
func (g *Gateway) BroadcastToAll(event string, payload any) {
	logger.Info("control-plane broadcast", zap.String("event", event))
	g.out.ToAll(event, payload, "")
}

// BroadcastToRoom delivers an event to every member of a room. Unknown
// rooms are a silent no-op.
func (g *Gateway) BroadcastToRoom(room, event string, payload any) {
	logger.Info("control-plane room broadcast",
		zap.String("room", room), zap.String("event", event))
	g.out.ToRoom(room, event, payload, "")
}

// EmitToUser delivers an event to one of the user's connections. When the
// user is offline this is a silent no-op; check Stats first when delivery
// matters.
func (g *Gateway) EmitToUser(userID, event string, payload any) {
	g.out.ToUser(userID, event, payload)
}

// ForceDisconnect asks the user's client to disconnect itself. The gateway
// never severs the transport connection; this is a cooperative mechanism.
func (g *Gateway) ForceDisconnect(userID, reason string) {
	logger.Info("force disconnect requested",
		zap.String("user", userID), zap.String("reason", reason))
	g.out.ToUser(userID, protocol.EventDisconnectRequest, disconnectRequestPayload{
		Reason:    reason,
		Timestamp: time.Now(),
	})
}
