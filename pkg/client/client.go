package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	cidpkg "signalhub/internal/cid"
	"signalhub/pkg/protocol"
)

// Client is a Go client for the gateway wire protocol. It is not safe for
// concurrent sends from multiple goroutines.
type Client struct {
	conn      *websocket.Conn
	config    Config
	connected bool
	handler   EventHandler
}

// EventHandler defines callbacks for gateway events delivered via Listen.
type EventHandler interface {
	OnConnected(connectionID string)
	OnPresence(users []PresenceUser)
	OnMessage(env Envelope)
	OnNotification(env Envelope)
	OnBroadcast(env Envelope)
	OnPeerJoined(username, room string)
	OnPeerLeft(username, room string)
	OnDisconnectRequest(reason string)
	OnError(message string)
	OnServerEvent(event string, data json.RawMessage)
}

// DefaultEventHandler logs every callback.
type DefaultEventHandler struct{}

func (h *DefaultEventHandler) OnConnected(id string)        { log.Printf("connected: %s", id) }
func (h *DefaultEventHandler) OnPresence(u []PresenceUser)  { log.Printf("presence: %d online", len(u)) }
func (h *DefaultEventHandler) OnMessage(e Envelope)         { log.Printf("message from %s: %s", e.From, e.Message) }
func (h *DefaultEventHandler) OnNotification(e Envelope)    { log.Printf("notification: %s", e.Title) }
func (h *DefaultEventHandler) OnBroadcast(e Envelope)       { log.Printf("broadcast from %s: %s", e.From, e.Message) }
func (h *DefaultEventHandler) OnPeerJoined(u, room string)  { log.Printf("%s joined %s", u, room) }
func (h *DefaultEventHandler) OnPeerLeft(u, room string)    { log.Printf("%s left %s", u, room) }
func (h *DefaultEventHandler) OnDisconnectRequest(r string) { log.Printf("disconnect requested: %s", r) }
func (h *DefaultEventHandler) OnError(msg string)           { log.Printf("server error: %s", msg) }
func (h *DefaultEventHandler) OnServerEvent(event string, _ json.RawMessage) {
	log.Printf("event: %s", event)
}

func New(config Config) *Client {
	if config.UserAgent == "" {
		config.UserAgent = "signalhub-client/1.0.0"
	}
	return &Client{config: config, handler: &DefaultEventHandler{}}
}

// SetEventHandler installs a custom handler for Listen.
func (c *Client) SetEventHandler(handler EventHandler) {
	c.handler = handler
}

// buildDialHeaders constructs the HTTP headers for websocket.Dial,
// propagating a correlation id from the context when one exists. Extracted
// to allow unit testing of header propagation.
func buildDialHeaders(ctx context.Context, userAgent string) map[string][]string {
	headers := map[string][]string{"User-Agent": {userAgent}}
	cidpkg.AddHeaderFromContext(headers, ctx)
	return headers
}

// Connect dials the gateway.
func (c *Client) Connect(ctx context.Context) error {
	headers := buildDialHeaders(ctx, c.config.UserAgent)

	conn, _, err := websocket.Dial(ctx, c.config.ServerURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	c.conn = conn
	c.connected = true
	return nil
}

// Close disconnects from the gateway.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	c.connected = false
	return c.conn.Close(websocket.StatusNormalClosure, "client disconnect")
}

// Identify announces the user identity for this connection.
func (c *Client) Identify(ctx context.Context, userID, username, role string) error {
	return c.sendEvent(ctx, protocol.EventIdentify, map[string]string{
		"userId": userID, "username": username, "role": role,
	})
}

// GoOffline removes the session while keeping the connection open.
func (c *Client) GoOffline(ctx context.Context) error {
	return c.sendEvent(ctx, protocol.EventGoOffline, struct{}{})
}

func (c *Client) JoinRoom(ctx context.Context, room string) error {
	return c.sendEvent(ctx, protocol.EventJoinRoom, map[string]string{"room": room})
}

func (c *Client) LeaveRoom(ctx context.Context, room string) error {
	return c.sendEvent(ctx, protocol.EventLeaveRoom, map[string]string{"room": room})
}

// SendMessage sends to a room, or to everyone when room is empty.
func (c *Client) SendMessage(ctx context.Context, room, message, kind string) error {
	return c.sendEvent(ctx, protocol.EventSendMessage, map[string]string{
		"room": room, "message": message, "kind": kind,
	})
}

func (c *Client) SendNotification(ctx context.Context, n Notification) error {
	return c.sendEvent(ctx, protocol.EventSendNotification, n)
}

func (c *Client) Broadcast(ctx context.Context, message, kind string) error {
	return c.sendEvent(ctx, protocol.EventBroadcast, map[string]string{
		"message": message, "kind": kind,
	})
}

// Next reads a single frame. Useful for tests and simple polling clients;
// long-running clients use Listen instead.
func (c *Client) Next(ctx context.Context) (Event, error) {
	for {
		msgType, data, err := c.conn.Read(ctx)
		if err != nil {
			c.connected = false
			return Event{}, fmt.Errorf("read frame: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return Event{}, fmt.Errorf("decode frame: %w", err)
		}
		return Event{Name: frame.Event, Data: frame.Data}, nil
	}
}

// Listen reads frames until the context is canceled or the connection
// drops, invoking the event handler for each one.
func (c *Client) Listen(ctx context.Context) error {
	for {
		ev, err := c.Next(ctx)
		if err != nil {
			return err
		}
		c.dispatch(ev)
	}
}

func (c *Client) dispatch(ev Event) {
	switch ev.Name {
	case protocol.EventConnected:
		var p struct {
			ConnectionID string `json:"connectionId"`
		}
		if json.Unmarshal(ev.Data, &p) == nil {
			c.handler.OnConnected(p.ConnectionID)
		}
	case protocol.EventPresenceSnapshot:
		var p struct {
			Sessions []PresenceUser `json:"sessions"`
		}
		if json.Unmarshal(ev.Data, &p) == nil {
			c.handler.OnPresence(p.Sessions)
		}
	case protocol.EventMessageReceived:
		c.envelopeCallback(ev, c.handler.OnMessage)
	case protocol.EventNotificationReceived:
		c.envelopeCallback(ev, c.handler.OnNotification)
	case protocol.EventBroadcastReceived:
		c.envelopeCallback(ev, c.handler.OnBroadcast)
	case protocol.EventPeerJoinedRoom:
		c.peerCallback(ev, c.handler.OnPeerJoined)
	case protocol.EventPeerLeftRoom:
		c.peerCallback(ev, c.handler.OnPeerLeft)
	case protocol.EventDisconnectRequest:
		var p struct {
			Reason string `json:"reason"`
		}
		if json.Unmarshal(ev.Data, &p) == nil {
			c.handler.OnDisconnectRequest(p.Reason)
		}
	case protocol.EventError:
		var p struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(ev.Data, &p) == nil {
			c.handler.OnError(p.Message)
		}
	default:
		c.handler.OnServerEvent(ev.Name, ev.Data)
	}
}

func (c *Client) envelopeCallback(ev Event, cb func(Envelope)) {
	var env Envelope
	if json.Unmarshal(ev.Data, &env) == nil {
		cb(env)
	}
}

func (c *Client) peerCallback(ev Event, cb func(string, string)) {
	var p struct {
		Username string `json:"username"`
		Room     string `json:"room"`
	}
	if json.Unmarshal(ev.Data, &p) == nil {
		cb(p.Username, p.Room)
	}
}

func (c *Client) sendEvent(ctx context.Context, event string, payload any) error {
	if !c.connected {
		return fmt.Errorf("client not connected")
	}
	frame := struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: event, Data: payload}
	if err := wsjson.Write(ctx, c.conn, frame); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}
