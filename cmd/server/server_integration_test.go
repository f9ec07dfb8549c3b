package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"signalhub/pkg/client"
	"signalhub/pkg/protocol"
)

func startGateway(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	s := newTestServer()
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	return ts, wsURL
}

func dial(t *testing.T, ctx context.Context, wsURL string) *client.Client {
	t.Helper()
	c := client.New(client.Config{ServerURL: wsURL})
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// waitFor discards frames until the named event arrives. Presence
// snapshots and acks interleave freely, so tests wait for the frames they
// care about instead of asserting on exact sequences.
func waitFor(t *testing.T, ctx context.Context, c *client.Client, name string) client.Event {
	t.Helper()
	for {
		ev, err := c.Next(ctx)
		if err != nil {
			t.Fatalf("waiting for %s: %v", name, err)
		}
		if ev.Name == name {
			return ev
		}
	}
}

func TestGateway_RoomMessagingScenario(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, wsURL := startGateway(t)

	alice := dial(t, ctx, wsURL)
	bob := dial(t, ctx, wsURL)
	waitFor(t, ctx, alice, protocol.EventConnected)
	waitFor(t, ctx, bob, protocol.EventConnected)

	if err := alice.Identify(ctx, "u-alice", "alice", "user"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, ctx, alice, protocol.EventIdentifyAck)
	if err := bob.Identify(ctx, "u-bob", "bob", "admin"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, ctx, bob, protocol.EventIdentifyAck)

	if err := alice.JoinRoom(ctx, "ops"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, ctx, alice, protocol.EventRoomJoinedAck)
	if err := bob.JoinRoom(ctx, "ops"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, ctx, bob, protocol.EventRoomJoinedAck)

	// Existing members hear about the new peer.
	peer := waitFor(t, ctx, alice, protocol.EventPeerJoinedRoom)
	var pj struct {
		Username string `json:"username"`
		Room     string `json:"room"`
	}
	if err := json.Unmarshal(peer.Data, &pj); err != nil {
		t.Fatal(err)
	}
	if pj.Username != "bob" || pj.Room != "ops" {
		t.Fatalf("unexpected peer payload: %+v", pj)
	}

	// alice -> ops: bob receives, alice gets an ack with the same id.
	if err := alice.SendMessage(ctx, "ops", "hi", ""); err != nil {
		t.Fatal(err)
	}
	recv := waitFor(t, ctx, bob, protocol.EventMessageReceived)
	var got client.Envelope
	if err := json.Unmarshal(recv.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.From != "alice" || got.Message != "hi" || got.Room != "ops" {
		t.Fatalf("unexpected envelope: %+v", got)
	}
	ackEv := waitFor(t, ctx, alice, protocol.EventMessageSentAck)
	var ack client.Envelope
	if err := json.Unmarshal(ackEv.Data, &ack); err != nil {
		t.Fatal(err)
	}
	if ack.ID != got.ID {
		t.Fatalf("ack id %q != delivered id %q", ack.ID, got.ID)
	}

	// alice leaves ops; bob, still a member, keeps receiving room traffic
	// (sender membership is not required for a room send).
	if err := alice.LeaveRoom(ctx, "ops"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, ctx, alice, protocol.EventRoomLeftAck)
	waitFor(t, ctx, bob, protocol.EventPeerLeftRoom)

	if err := alice.SendMessage(ctx, "ops", "hi2", ""); err != nil {
		t.Fatal(err)
	}
	recv = waitFor(t, ctx, bob, protocol.EventMessageReceived)
	if err := json.Unmarshal(recv.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Message != "hi2" {
		t.Fatalf("expected hi2, got %+v", got)
	}
	waitFor(t, ctx, alice, protocol.EventMessageSentAck)
}

func TestGateway_PresenceFollowsIdentify(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ts, wsURL := startGateway(t)

	alice := dial(t, ctx, wsURL)
	waitFor(t, ctx, alice, protocol.EventConnected)
	if err := alice.Identify(ctx, "u-alice", "alice", "user"); err != nil {
		t.Fatal(err)
	}

	snap := waitFor(t, ctx, alice, protocol.EventPresenceSnapshot)
	var p struct {
		Sessions []client.PresenceUser `json:"sessions"`
	}
	if err := json.Unmarshal(snap.Data, &p); err != nil {
		t.Fatal(err)
	}
	if len(p.Sessions) != 1 || p.Sessions[0].Username != "alice" {
		t.Fatalf("unexpected presence: %+v", p.Sessions)
	}

	// Stats over HTTP agree with the snapshot.
	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var stats struct {
		TotalConnections int `json:"totalConnections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalConnections != 1 {
		t.Fatalf("expected 1 online, got %d", stats.TotalConnections)
	}
}

func TestGateway_ForceDisconnectOverHTTP(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ts, wsURL := startGateway(t)

	alice := dial(t, ctx, wsURL)
	waitFor(t, ctx, alice, protocol.EventConnected)
	if err := alice.Identify(ctx, "u-alice", "alice", "user"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, ctx, alice, protocol.EventIdentifyAck)

	resp, err := http.Post(ts.URL+"/api/users/u-alice/disconnect",
		"application/json", strings.NewReader(`{"reason":"policy violation"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	req := waitFor(t, ctx, alice, protocol.EventDisconnectRequest)
	var p struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(req.Data, &p); err != nil {
		t.Fatal(err)
	}
	if p.Reason != "policy violation" {
		t.Fatalf("unexpected reason %q", p.Reason)
	}

	// The connection survives the request: the gateway only asks.
	if err := alice.SendMessage(ctx, "", "still here", ""); err != nil {
		t.Fatal(err)
	}
	waitFor(t, ctx, alice, protocol.EventMessageSentAck)
}
