package chat

import (
	"fmt"
	"math/rand"
	"reflect"
	"sync"
	"testing"
)

func TestRoomIndexJoinLeaveRoundTrip(t *testing.T) {
	ri := NewRoomIndex()
	ri.Join("bob", "team1")
	beforeMembers := ri.MembersOf("team1")
	beforeRooms := ri.RoomsOf("alice")

	ri.Join("alice", "team1")
	ri.Join("alice", "team1") // idempotent
	if got := ri.MembersOf("team1"); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Fatalf("members = %v", got)
	}
	checkMirror(t, ri)

	ri.Leave("alice", "team1")
	ri.Leave("alice", "team1")
	if got := ri.MembersOf("team1"); !reflect.DeepEqual(got, beforeMembers) {
		t.Fatalf("members after leave = %v, want %v", got, beforeMembers)
	}
	if got := ri.RoomsOf("alice"); !reflect.DeepEqual(got, beforeRooms) {
		t.Fatalf("rooms after leave = %v, want %v", got, beforeRooms)
	}
	checkMirror(t, ri)
}

func TestRoomIndexEmptyRoomRemoved(t *testing.T) {
	ri := NewRoomIndex()
	ri.Join("alice", "team1")
	ri.Leave("alice", "team1")
	if _, ok := ri.members["team1"]; ok {
		t.Fatal("empty room kept")
	}
	if _, ok := ri.rooms["alice"]; ok {
		t.Fatal("empty reverse entry kept")
	}
}

func TestRoomIndexLeaveAll(t *testing.T) {
	ri := NewRoomIndex()
	ri.Join("alice", "b")
	ri.Join("alice", "a")
	ri.Join("bob", "a")

	left := ri.LeaveAll("alice")
	if !reflect.DeepEqual(left, []string{"a", "b"}) {
		t.Fatalf("left = %v", left)
	}
	if ri.IsMember("alice", "a") || ri.IsMember("alice", "b") {
		t.Fatal("alice still a member")
	}
	if got := ri.MembersOf("a"); !reflect.DeepEqual(got, []string{"bob"}) {
		t.Fatalf("room a = %v", got)
	}
	if ri.LeaveAll("alice") != nil {
		t.Fatal("second LeaveAll should return nothing")
	}
	checkMirror(t, ri)
}

func TestRoomIndexSnapshotIsolation(t *testing.T) {
	ri := NewRoomIndex()
	ri.Join("alice", "team1")
	snap := ri.MembersOf("team1")
	ri.Join("bob", "team1")
	ri.Leave("alice", "team1")
	if !reflect.DeepEqual(snap, []string{"alice"}) {
		t.Fatalf("snapshot changed under us: %v", snap)
	}
}

func TestRoomIndexConcurrentMirror(t *testing.T) {
	ri := NewRoomIndex()
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 500; i++ {
				u := fmt.Sprintf("u%d", r.Intn(8))
				room := fmt.Sprintf("r%d", r.Intn(4))
				switch r.Intn(4) {
				case 0, 1:
					ri.Join(u, room)
				case 2:
					ri.Leave(u, room)
				default:
					ri.LeaveAll(u)
				}
				_ = ri.MembersOf(room)
			}
		}(int64(g))
	}
	wg.Wait()
	checkMirror(t, ri)
}
