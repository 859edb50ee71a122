package chat

import (
	"sort"
	"sync"
)

// RoomIndex 房间成员双向索引：room -> users，user -> rooms。
// 两张表在同一把锁下修改，任何时刻都互为镜像；空集合立即删除。
type RoomIndex struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{} // roomID -> userIDs
	rooms   map[string]map[string]struct{} // userID -> roomIDs
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{
		members: make(map[string]map[string]struct{}),
		rooms:   make(map[string]map[string]struct{}),
	}
}

// Join is idempotent.
func (ri *RoomIndex) Join(userID, roomID string) {
	if userID == "" || roomID == "" {
		return
	}
	ri.mu.Lock()
	defer ri.mu.Unlock()

	addPair(ri.members, roomID, userID)
	addPair(ri.rooms, userID, roomID)
}

// Leave is idempotent. An emptied room is removed silently.
func (ri *RoomIndex) Leave(userID, roomID string) {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	delPair(ri.members, roomID, userID)
	delPair(ri.rooms, userID, roomID)
}

// LeaveAll removes userID from every room and returns the rooms left, sorted.
func (ri *RoomIndex) LeaveAll(userID string) []string {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	set := ri.rooms[userID]
	if len(set) == 0 {
		return nil
	}
	left := make([]string, 0, len(set))
	for roomID := range set {
		delPair(ri.members, roomID, userID)
		left = append(left, roomID)
	}
	delete(ri.rooms, userID)
	sort.Strings(left)
	return left
}

// MembersOf returns a sorted snapshot; callers may iterate it while the index
// keeps changing.
func (ri *RoomIndex) MembersOf(roomID string) []string {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	return keysOf(ri.members[roomID])
}

// RoomsOf returns a sorted snapshot of the rooms userID has joined.
func (ri *RoomIndex) RoomsOf(userID string) []string {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	return keysOf(ri.rooms[userID])
}

func (ri *RoomIndex) IsMember(userID, roomID string) bool {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	_, ok := ri.members[roomID][userID]
	return ok
}

func addPair(m map[string]map[string]struct{}, k, v string) {
	set := m[k]
	if set == nil {
		set = make(map[string]struct{})
		m[k] = set
	}
	set[v] = struct{}{}
}

func delPair(m map[string]map[string]struct{}, k, v string) {
	set := m[k]
	if set == nil {
		return
	}
	delete(set, v)
	if len(set) == 0 {
		delete(m, k)
	}
}

func keysOf(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Reset drops every room. Shutdown only.
func (ri *RoomIndex) Reset() {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	ri.members = make(map[string]map[string]struct{})
	ri.rooms = make(map[string]map[string]struct{})
}
