package chat

import (
	"sort"
	"sync"

	"github.com/gorilla/websocket"
)

// PresenceEvent is emitted when a user's entry is created (first connection)
// or destroyed (last connection gone).
type PresenceEvent struct {
	UserID string
	Online bool
}

// PresenceSink receives registry state changes. Publish is called while the
// registry lock is held and must not block.
type PresenceSink interface {
	Publish(ev PresenceEvent)
}

// ConnManager 本进程在线连接：userID -> (connID -> *Conn)
// 条目存在当且仅当集合非空。
type ConnManager struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Conn

	sink PresenceSink
}

func NewConnManager(sink PresenceSink) *ConnManager {
	return &ConnManager{
		byUser: make(map[string]map[string]*Conn),
		sink:   sink,
	}
}

// Connect registers c under userID. Two connections of the same user are
// independent; nothing is deduplicated.
func (m *ConnManager) Connect(userID string, c *Conn) {
	if userID == "" || c == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	mm := m.byUser[userID]
	if mm == nil {
		mm = make(map[string]*Conn)
		m.byUser[userID] = mm
		m.publishLocked(userID, true)
	}
	mm[c.ConnID] = c
}

// Disconnect removes c and reports whether it was the user's last connection.
// Removing a connection that is not registered is a no-op returning false.
func (m *ConnManager) Disconnect(userID string, c *Conn) bool {
	if userID == "" || c == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	mm := m.byUser[userID]
	if mm == nil {
		return false
	}
	if cur, ok := mm[c.ConnID]; !ok || cur != c {
		return false
	}
	delete(mm, c.ConnID)
	if len(mm) > 0 {
		return false
	}
	delete(m.byUser, userID)
	m.publishLocked(userID, false)
	return true
}

// WhileRegistered runs f with the registry read-locked, but only if c is
// still registered. Disconnect cannot interleave with f, so state f adds for
// c's user is seen by the cleanup that follows the final Disconnect.
func (m *ConnManager) WhileRegistered(c *Conn, f func()) bool {
	if c == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if cur, ok := m.byUser[c.UserID][c.ConnID]; !ok || cur != c {
		return false
	}
	f()
	return true
}

func (m *ConnManager) IsOnline(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[userID]) > 0
}

// OnlineUsers returns a sorted snapshot of every user with a live connection.
func (m *ConnManager) OnlineUsers() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.byUser))
	for u := range m.byUser {
		out = append(out, u)
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Conns returns a copy of userID's live connections.
func (m *ConnManager) Conns(userID string) []*Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mm := m.byUser[userID]
	if len(mm) == 0 {
		return nil
	}
	out := make([]*Conn, 0, len(mm))
	for _, c := range mm {
		out = append(out, c)
	}
	return out
}

// ConnCount 总连接数（所有用户所有端）
func (m *ConnManager) ConnCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, mm := range m.byUser {
		n += len(mm)
	}
	return n
}

// Close drops every connection with a going-away close frame and clears the
// registry. Offline events are published for every user that was online.
func (m *ConnManager) Close() {
	m.mu.Lock()
	all := make([]*Conn, 0, len(m.byUser))
	for u, mm := range m.byUser {
		for _, c := range mm {
			all = append(all, c)
		}
		m.publishLocked(u, false)
	}
	m.byUser = make(map[string]map[string]*Conn)
	m.mu.Unlock()

	// 解锁后关闭，避免持锁写 socket
	for _, c := range all {
		c.Close(websocket.CloseGoingAway, "server shutdown")
	}
}

func (m *ConnManager) publishLocked(userID string, online bool) {
	if m.sink == nil {
		return
	}
	m.sink.Publish(PresenceEvent{UserID: userID, Online: online})
}
