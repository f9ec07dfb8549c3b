package client

import (
	"encoding/json"
	"time"
)

// Config holds client connection settings.
type Config struct {
	// ServerURL is the websocket endpoint, e.g. ws://localhost:8080/ws.
	ServerURL string
	UserAgent string
}

// Event is one frame received from the gateway.
type Event struct {
	Name string
	Data json.RawMessage
}

// Envelope mirrors the gateway's outbound message/notification payload.
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

// PresenceUser is one entry of a presence snapshot.
type PresenceUser struct {
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActivity time.Time `json:"lastActivity"`
	CurrentRoom  string    `json:"currentRoom,omitempty"`
}

// Notification describes a send-notification request.
type Notification struct {
	Target       string `json:"target"`
	Room         string `json:"room,omitempty"`
	TargetUserID string `json:"targetUserId,omitempty"`
	Title        string `json:"title,omitempty"`
	Message      string `json:"message"`
	Kind         string `json:"kind,omitempty"`
}
