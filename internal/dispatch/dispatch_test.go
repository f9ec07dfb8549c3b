package dispatch_test

import (
	"encoding/json"
	"testing"

	"signalhub/internal/dispatch"
	"signalhub/internal/state"
	"signalhub/internal/types"
	"signalhub/pkg/protocol"
)

func newConn(m *state.Manager, connID string, buf int) *types.ClientConn {
	cc := &types.ClientConn{ID: connID, Send: make(chan []byte, buf)}
	m.AddClient(cc)
	return cc
}

func identify(m *state.Manager, connID, userID, username string) {
	m.Register(connID, userID, username, "user", "127.0.0.1")
}

func drain(t *testing.T, cc *types.ClientConn) []types.Frame {
	t.Helper()
	var out []types.Frame
	for {
		select {
		case raw := <-cc.Send:
			var f types.Frame
			if err := json.Unmarshal(raw, &f); err != nil {
				t.Fatalf("bad frame: %v", err)
			}
			out = append(out, f)
		default:
			return out
		}
	}
}

func TestToRoom_DeliversToMembersOnly(t *testing.T) {
	m := state.NewManager()
	d := dispatch.New(m)

	a := newConn(m, "a", 8)
	b := newConn(m, "b", 8)
	c := newConn(m, "c", 8)
	identify(m, "a", "u-a", "alice")
	identify(m, "b", "u-b", "bob")
	identify(m, "c", "u-c", "carol")
	if _, err := m.JoinRoom("a", "ops"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.JoinRoom("b", "ops"); err != nil {
		t.Fatal(err)
	}

	d.ToRoom("ops", protocol.EventMessageReceived, types.Envelope{Message: "hi"}, "a")

	if got := drain(t, a); len(got) != 0 {
		t.Fatalf("sender must be excluded, got %d frames", len(got))
	}
	if got := drain(t, b); len(got) != 1 || got[0].Event != protocol.EventMessageReceived {
		t.Fatalf("expected one message-received for b, got %v", got)
	}
	if got := drain(t, c); len(got) != 0 {
		t.Fatalf("non-member must not receive, got %d frames", len(got))
	}
}

func TestToRoom_UnknownRoomIsNoop(t *testing.T) {
	m := state.NewManager()
	d := dispatch.New(m)
	a := newConn(m, "a", 8)
	identify(m, "a", "u-a", "alice")

	d.ToRoom("ghost", protocol.EventMessageReceived, types.Envelope{}, "")
	if got := drain(t, a); len(got) != 0 {
		t.Fatalf("expected no delivery, got %d frames", len(got))
	}
}

func TestToUser_AbsentUserIsNoop(t *testing.T) {
	m := state.NewManager()
	d := dispatch.New(m)
	a := newConn(m, "a", 8)
	identify(m, "a", "u-a", "alice")

	d.ToUser("nobody", protocol.EventNotificationReceived, types.Envelope{})
	if got := drain(t, a); len(got) != 0 {
		t.Fatalf("expected no delivery for absent target, got %d frames", len(got))
	}

	d.ToUser("u-a", protocol.EventNotificationReceived, types.Envelope{Message: "psst"})
	if got := drain(t, a); len(got) != 1 {
		t.Fatalf("expected direct delivery, got %d frames", len(got))
	}
}

func TestToAll_SkipsUnidentified(t *testing.T) {
	m := state.NewManager()
	d := dispatch.New(m)
	a := newConn(m, "a", 8)
	b := newConn(m, "b", 8)
	identify(m, "a", "u-a", "alice")
	// b never identifies

	d.ToAll(protocol.EventBroadcastReceived, types.Envelope{Message: "all"}, "")
	if got := drain(t, a); len(got) != 1 {
		t.Fatalf("expected delivery to identified conn, got %d", len(got))
	}
	if got := drain(t, b); len(got) != 0 {
		t.Fatalf("unidentified conn must not receive fan-out, got %d", len(got))
	}
}

func TestPublishPresence_ProjectsPublicFields(t *testing.T) {
	m := state.NewManager()
	d := dispatch.New(m)
	a := newConn(m, "a", 8)
	identify(m, "a", "u-a", "alice")
	if _, err := m.JoinRoom("a", "ops"); err != nil {
		t.Fatal(err)
	}

	d.PublishPresence()

	frames := drain(t, a)
	if len(frames) != 1 || frames[0].Event != protocol.EventPresenceSnapshot {
		t.Fatalf("expected one presence-snapshot, got %v", frames)
	}

	var payload struct {
		Sessions []map[string]any `json:"sessions"`
	}
	if err := json.Unmarshal(frames[0].Data, &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if len(payload.Sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(payload.Sessions))
	}
	entry := payload.Sessions[0]
	if entry["userId"] != "u-a" || entry["currentRoom"] != "ops" {
		t.Fatalf("unexpected projection: %v", entry)
	}
	for _, hidden := range []string{"connectionId", "remoteAddress"} {
		if _, ok := entry[hidden]; ok {
			t.Fatalf("presence must not expose %s", hidden)
		}
	}
}

func TestSend_DropsWhenQueueFull(t *testing.T) {
	m := state.NewManager()
	d := dispatch.New(m)
	a := newConn(m, "a", 1)
	b := newConn(m, "b", 8)
	identify(m, "a", "u-a", "alice")
	identify(m, "b", "u-b", "bob")

	// Fill a's queue; further fan-out must not block and must still reach b.
	d.ToAll(protocol.EventBroadcastReceived, types.Envelope{Message: "1"}, "")
	d.ToAll(protocol.EventBroadcastReceived, types.Envelope{Message: "2"}, "")

	if got := drain(t, a); len(got) != 1 {
		t.Fatalf("expected slow client to keep only 1 frame, got %d", len(got))
	}
	if got := drain(t, b); len(got) != 2 {
		t.Fatalf("expected healthy client to receive both frames, got %d", len(got))
	}
}
