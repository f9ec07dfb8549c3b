package gateway

import (
	"encoding/json"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"signalhub/internal/logger"
	"signalhub/internal/types"
	"signalhub/pkg/protocol"
)

// Inbound payloads, one struct per wire event.

type identifyPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type roomPayload struct {
	Room string `json:"room"`
}

type messagePayload struct {
	Room    string `json:"room"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

type notificationPayload struct {
	Target       string `json:"target"`
	Room         string `json:"room"`
	TargetUserID string `json:"targetUserId"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	Kind         string `json:"kind"`
}

type broadcastPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// Outbound payloads without an Envelope shape.

type connectedPayload struct {
	ConnectionID string    `json:"connectionId"`
	Timestamp    time.Time `json:"timestamp"`
	Message      string    `json:"message"`
}

type identifyAckPayload struct {
	Session types.Session `json:"session"`
}

type roomAckPayload struct {
	Room string `json:"room"`
}

type peerRoomPayload struct {
	Username  string    `json:"username"`
	Room      string    `json:"room"`
	Timestamp time.Time `json:"timestamp"`
}

type disconnectRequestPayload struct {
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// handleFrame decodes one inbound frame and dispatches it. This is the
// single routing point for every client event; malformed payloads answer
// the sender with an error frame and never disturb other connections.
func (g *Gateway) handleFrame(cc *types.ClientConn, raw []byte) {
	var frame types.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		g.sendError(cc.ID, "malformed frame")
		return
	}

	switch frame.Event {
	case protocol.EventIdentify:
		var p identifyPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			g.sendError(cc.ID, "malformed identify payload")
			return
		}
		g.handleIdentify(cc, p)
	case protocol.EventGoOffline:
		g.handleGoOffline(cc)
	case protocol.EventJoinRoom:
		var p roomPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			g.sendError(cc.ID, "malformed join-room payload")
			return
		}
		g.handleJoinRoom(cc, p)
	case protocol.EventLeaveRoom:
		var p roomPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			g.sendError(cc.ID, "malformed leave-room payload")
			return
		}
		g.handleLeaveRoom(cc, p)
	case protocol.EventSendMessage:
		var p messagePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			g.sendError(cc.ID, "malformed send-message payload")
			return
		}
		g.handleSendMessage(cc, p)
	case protocol.EventSendNotification:
		var p notificationPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			g.sendError(cc.ID, "malformed send-notification payload")
			return
		}
		g.handleSendNotification(cc, p)
	case protocol.EventBroadcast:
		var p broadcastPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			g.sendError(cc.ID, "malformed broadcast payload")
			return
		}
		g.handleBroadcast(cc, p)
	default:
		g.sendError(cc.ID, "unknown event: "+frame.Event)
	}
}

// handleIdentify creates or replaces the session. Identity fields are
// accepted as given; authentication happened upstream.
func (g *Gateway) handleIdentify(cc *types.ClientConn, p identifyPayload) {
	if p.UserID == "" || p.Username == "" {
		g.sendError(cc.ID, "identify requires userId and username")
		return
	}
	session := g.state.Register(cc.ID, p.UserID, p.Username, p.Role, cc.RemoteAddr)
	logger.Info("user identified",
		zap.String("conn", cc.ID), zap.String("user", p.Username), zap.String("role", p.Role))

	g.out.ToConn(cc.ID, protocol.EventIdentifyAck, identifyAckPayload{Session: session})
	g.out.PublishPresence()
}

func (g *Gateway) handleGoOffline(cc *types.ClientConn) {
	session, ok := g.state.Unregister(cc.ID)
	if !ok {
		return
	}
	logger.Info("user went offline",
		zap.String("conn", cc.ID), zap.String("user", session.Username))
	g.out.PublishPresence()
}

func (g *Gateway) handleJoinRoom(cc *types.ClientConn, p roomPayload) {
	if p.Room == "" {
		g.sendError(cc.ID, "join-room requires room")
		return
	}
	session, err := g.state.JoinRoom(cc.ID, p.Room)
	if err != nil {
		g.sendError(cc.ID, "identify before joining a room")
		return
	}
	logger.Info("joined room",
		zap.String("user", session.Username), zap.String("room", p.Room))

	g.out.ToRoom(p.Room, protocol.EventPeerJoinedRoom, peerRoomPayload{
		Username:  session.Username,
		Room:      p.Room,
		Timestamp: time.Now(),
	}, cc.ID)
	g.out.ToConn(cc.ID, protocol.EventRoomJoinedAck, roomAckPayload{Room: p.Room})
	g.out.PublishPresence()
}

func (g *Gateway) handleLeaveRoom(cc *types.ClientConn, p roomPayload) {
	if p.Room == "" {
		g.sendError(cc.ID, "leave-room requires room")
		return
	}
	session, err := g.state.LeaveRoom(cc.ID, p.Room)
	if err != nil {
		return
	}
	logger.Info("left room",
		zap.String("user", session.Username), zap.String("room", p.Room))

	g.out.ToRoom(p.Room, protocol.EventPeerLeftRoom, peerRoomPayload{
		Username:  session.Username,
		Room:      p.Room,
		Timestamp: time.Now(),
	}, cc.ID)
	g.out.ToConn(cc.ID, protocol.EventRoomLeftAck, roomAckPayload{Room: p.Room})
	g.out.PublishPresence()
}

// handleSendMessage routes a message to its room when one is named,
// otherwise to every identified connection. Room delivery checks current
// membership only; the sender itself need not be a member. The sender gets
// a separate ack carrying the same envelope.
func (g *Gateway) handleSendMessage(cc *types.ClientConn, p messagePayload) {
	session, ok := g.state.Get(cc.ID)
	if !ok {
		g.sendError(cc.ID, "identify before sending messages")
		return
	}
	if p.Message == "" {
		g.sendError(cc.ID, "send-message requires message")
		return
	}
	env := types.Envelope{
		ID:        ksuid.New().String(),
		From:      session.Username,
		FromID:    session.UserID,
		Message:   p.Message,
		Kind:      orDefault(p.Kind, protocol.KindText),
		Room:      p.Room,
		Timestamp: time.Now(),
	}
	if p.Room != "" {
		g.out.ToRoom(p.Room, protocol.EventMessageReceived, env, cc.ID)
	} else {
		g.out.ToAll(protocol.EventMessageReceived, env, cc.ID)
	}
	g.out.ToConn(cc.ID, protocol.EventMessageSentAck, env)
}

func (g *Gateway) handleSendNotification(cc *types.ClientConn, p notificationPayload) {
	session, ok := g.state.Get(cc.ID)
	if !ok {
		g.sendError(cc.ID, "identify before sending notifications")
		return
	}
	if p.Message == "" {
		g.sendError(cc.ID, "send-notification requires message")
		return
	}
	env := types.Envelope{
		ID:        ksuid.New().String(),
		From:      session.Username,
		FromID:    session.UserID,
		Title:     p.Title,
		Message:   p.Message,
		Kind:      orDefault(p.Kind, protocol.KindInfo),
		Timestamp: time.Now(),
	}

	switch p.Target {
	case protocol.TargetAll:
		g.out.ToAll(protocol.EventNotificationReceived, env, cc.ID)
	case protocol.TargetRoom:
		if p.Room == "" {
			g.sendError(cc.ID, "send-notification to a room requires room")
			return
		}
		env.Room = p.Room
		g.out.ToRoom(p.Room, protocol.EventNotificationReceived, env, cc.ID)
	case protocol.TargetUser:
		if p.TargetUserID == "" {
			g.sendError(cc.ID, "send-notification to a user requires targetUserId")
			return
		}
		env.TargetUserID = p.TargetUserID
		// Offline target: silent no-op by design.
		g.out.ToUser(p.TargetUserID, protocol.EventNotificationReceived, env)
	default:
		g.sendError(cc.ID, "send-notification requires target of all, room or user")
		return
	}
	g.out.ToConn(cc.ID, protocol.EventNotificationSentAck, env)
}

func (g *Gateway) handleBroadcast(cc *types.ClientConn, p broadcastPayload) {
	session, ok := g.state.Get(cc.ID)
	if !ok {
		g.sendError(cc.ID, "identify before broadcasting")
		return
	}
	if p.Message == "" {
		g.sendError(cc.ID, "broadcast requires message")
		return
	}
	env := types.Envelope{
		ID:        ksuid.New().String(),
		From:      session.Username,
		FromID:    session.UserID,
		Message:   p.Message,
		Kind:      orDefault(p.Kind, protocol.KindBroadcast),
		Timestamp: time.Now(),
	}
	g.out.ToAll(protocol.EventBroadcastReceived, env, cc.ID)
	g.out.ToConn(cc.ID, protocol.EventBroadcastSentAck, env)
}

func (g *Gateway) sendError(connID, msg string) {
	g.out.ToConn(connID, protocol.EventError, errorPayload{Message: msg})
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
