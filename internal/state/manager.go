package state

import (
	"sort"
	"sync"
	"time"

	"signalhub/internal/types"
)

// Manager is the single synchronized owner of connection, session and room
// state. Only the gateway's lifecycle handlers and the control-plane façade
// mutate it, and always through these methods.
//
// Three tables are kept consistent under one lock:
//
//	clients  - every open websocket connection, identified or not
//	sessions - connections that have completed identify ("online")
//	rooms    - room name -> set of member connection ids
type Manager struct {
	mu       sync.RWMutex
	clients  map[string]*types.ClientConn
	sessions map[string]*types.Session
	rooms    map[string]map[string]struct{}
}

func NewManager() *Manager {
	return &Manager{
		clients:  make(map[string]*types.ClientConn),
		sessions: make(map[string]*types.Session),
		rooms:    make(map[string]map[string]struct{}),
	}
}

// AddClient tracks a newly accepted connection, before any identify.
func (m *Manager) AddClient(cc *types.ClientConn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[cc.ID] = cc
}

// RemoveClient drops a connection and whatever session or room membership
// it held. Returns the removed session, if the connection was identified.
func (m *Manager) RemoveClient(connID string) (types.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, connID)
	return m.unregisterLocked(connID)
}

// GetClient returns the connection handle for a connID.
func (m *Manager) GetClient(connID string) (*types.ClientConn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cc, ok := m.clients[connID]
	return cc, ok
}

// Register creates or replaces the session for a connection. Re-identify is
// legal and silently replaces the previous session, including any room
// membership it carried.
func (m *Manager) Register(connID, userID, username, role, remoteAddr string) types.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.sessions[connID]; ok && prev.CurrentRoom != "" {
		m.removeFromRoomLocked(connID, prev.CurrentRoom)
	}
	now := time.Now()
	s := &types.Session{
		ConnID:       connID,
		UserID:       userID,
		Username:     username,
		Role:         role,
		RemoteAddr:   remoteAddr,
		ConnectedAt:  now,
		LastActivity: now,
	}
	m.sessions[connID] = s
	return *s
}

// Unregister removes a session; absence is a no-op, not an error.
func (m *Manager) Unregister(connID string) (types.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unregisterLocked(connID)
}

func (m *Manager) unregisterLocked(connID string) (types.Session, bool) {
	s, ok := m.sessions[connID]
	if !ok {
		return types.Session{}, false
	}
	if s.CurrentRoom != "" {
		m.removeFromRoomLocked(connID, s.CurrentRoom)
	}
	delete(m.sessions, connID)
	return *s, true
}

// Get returns a copy of the session for a connID.
func (m *Manager) Get(connID string) (types.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[connID]
	if !ok {
		return types.Session{}, false
	}
	return *s, true
}

// FindByUser returns the connID of the first session found for userID. When
// a user holds more than one live connection the result is whichever the
// scan reaches first, which is not deterministic.
func (m *Manager) FindByUser(userID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for connID, s := range m.sessions {
		if s.UserID == userID {
			return connID, true
		}
	}
	return "", false
}

// JoinRoom moves a connection into roomName, leaving any room it previously
// occupied. Rooms are created implicitly on first join.
func (m *Manager) JoinRoom(connID, roomName string) (types.Session, error) {
	if roomName == "" {
		return types.Session{}, ErrInvalidRoom
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[connID]
	if !ok {
		return types.Session{}, ErrSessionNotFound
	}
	if s.CurrentRoom != "" && s.CurrentRoom != roomName {
		m.removeFromRoomLocked(connID, s.CurrentRoom)
	}
	members := m.rooms[roomName]
	if members == nil {
		members = make(map[string]struct{})
		m.rooms[roomName] = members
	}
	members[connID] = struct{}{}
	s.CurrentRoom = roomName
	s.LastActivity = time.Now()
	return *s, nil
}

// LeaveRoom removes the connection from roomName. Leaving a room the
// connection is not in is a no-op.
func (m *Manager) LeaveRoom(connID, roomName string) (types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[connID]
	if !ok {
		return types.Session{}, ErrSessionNotFound
	}
	m.removeFromRoomLocked(connID, roomName)
	if s.CurrentRoom == roomName {
		s.CurrentRoom = ""
	}
	s.LastActivity = time.Now()
	return *s, nil
}

// removeFromRoomLocked drops connID from a room set and reaps the room when
// it empties. Caller holds the write lock.
func (m *Manager) removeFromRoomLocked(connID, roomName string) {
	members, ok := m.rooms[roomName]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(m.rooms, roomName)
	}
}

// MembersOf returns the connIDs currently in roomName. Unknown rooms yield
// an empty slice.
func (m *Manager) MembersOf(roomName string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := m.rooms[roomName]
	out := make([]string, 0, len(members))
	for connID := range members {
		out = append(out, connID)
	}
	return out
}

// RoomNames returns the currently known room names, sorted.
func (m *Manager) RoomNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.rooms))
	for name := range m.rooms {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a point-in-time copy of every live session, sorted by
// username for consistent ordering.
func (m *Manager) Snapshot() []types.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Username < out[j].Username
	})
	return out
}

// OnlineCount reports how many connections are currently identified.
func (m *Manager) OnlineCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IdentifiedClients returns the connection handles for every identified
// connection. Used by the dispatcher for gateway-wide fan-out.
func (m *Manager) IdentifiedClients() []*types.ClientConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.ClientConn, 0, len(m.sessions))
	for connID := range m.sessions {
		if cc, ok := m.clients[connID]; ok {
			out = append(out, cc)
		}
	}
	return out
}
