package types

import (
	"encoding/json"
	"time"

	"github.com/coder/websocket"
)

// Session is the per-connection record kept from the moment a client
// identifies until it disconnects or goes offline. The state manager owns
// the canonical copy; everything handed out of the manager is a value copy.
type Session struct {
	ConnID       string    `json:"connectionId"`
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	RemoteAddr   string    `json:"remoteAddress"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActivity time.Time `json:"lastActivity"`
	CurrentRoom  string    `json:"currentRoom,omitempty"`
}

// PresenceEntry is the public projection of a Session broadcast to clients.
// ConnID and RemoteAddr are deliberately absent.
type PresenceEntry struct {
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActivity time.Time `json:"lastActivity"`
	CurrentRoom  string    `json:"currentRoom,omitempty"`
}

// Presence converts the session into its broadcastable form.
func (s Session) Presence() PresenceEntry {
	return PresenceEntry{
		UserID:       s.UserID,
		Username:     s.Username,
		Role:         s.Role,
		ConnectedAt:  s.ConnectedAt,
		LastActivity: s.LastActivity,
		CurrentRoom:  s.CurrentRoom,
	}
}

// Envelope is the outbound payload for messages, notifications and
// broadcasts. Built fresh for every dispatch, never stored.
type Envelope struct {
	ID           string    `json:"id"`
	From         string    `json:"from"`
	FromID       string    `json:"fromId"`
	Title        string    `json:"title,omitempty"`
	Message      string    `json:"message"`
	Kind         string    `json:"kind"`
	Room         string    `json:"room,omitempty"`
	TargetUserID string    `json:"targetUserId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ClientConn pairs a websocket connection with its outbound queue. The
// queue is consumed by a single writer goroutine; senders never write to
// the socket directly. Done is closed when the connection is being torn
// down, which stops the writer without closing Send (late fan-out sends
// may still race with teardown and must not panic).
type ClientConn struct {
	ID         string
	Conn       *websocket.Conn
	RemoteAddr string
	Send       chan []byte
	Done       chan struct{}
}

// Frame is the wire envelope for every JSON text message in either
// direction: {"event": <name>, "data": <payload>}.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// EncodeFrame marshals an event name and payload into a wire frame.
func EncodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

// Stats is the control-plane view of gateway state.
type Stats struct {
	TotalConnections int             `json:"totalConnections"`
	OnlineUsers      []PresenceEntry `json:"onlineUsers"`
	Rooms            []string        `json:"rooms"`
	Timestamp        time.Time       `json:"timestamp"`
}
