package chat

import (
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeWriter records frames. With fail set every write errors, which is how a
// dead peer looks to the broadcaster.
type fakeWriter struct {
	mu        sync.Mutex
	frames    [][]byte
	fail      bool
	closeCode int
	closes    int
}

func (w *fakeWriter) WriteFrame(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("broken pipe")
	}
	w.frames = append(w.frames, data)
	return nil
}

func (w *fakeWriter) CloseWith(code int, _ string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closes++
	if w.closeCode == 0 {
		w.closeCode = code
	}
	return nil
}

func (w *fakeWriter) setFail(v bool) {
	w.mu.Lock()
	w.fail = v
	w.mu.Unlock()
}

func (w *fakeWriter) decoded(t *testing.T) []map[string]any {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]map[string]any, 0, len(w.frames))
	for _, f := range w.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("bad frame %q: %v", f, err)
		}
		out = append(out, m)
	}
	return out
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

func (w *fakeWriter) reset() {
	w.mu.Lock()
	w.frames = nil
	w.mu.Unlock()
}

var connSeq atomic.Int64

func newFakeConn(userID string) (*Conn, *fakeWriter) {
	w := &fakeWriter{}
	return NewConn("c"+strconv.FormatInt(connSeq.Add(1), 10), userID, w), w
}

type recordSink struct {
	mu  sync.Mutex
	evs []PresenceEvent
}

func (s *recordSink) Publish(ev PresenceEvent) {
	s.mu.Lock()
	s.evs = append(s.evs, ev)
	s.mu.Unlock()
}

func (s *recordSink) events() []PresenceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PresenceEvent(nil), s.evs...)
}

// checkMirror fails if the forward and reverse room maps disagree or hold
// an empty set.
func checkMirror(t *testing.T, ri *RoomIndex) {
	t.Helper()
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	for room, users := range ri.members {
		if len(users) == 0 {
			t.Fatalf("room %s kept with no members", room)
		}
		for u := range users {
			if _, ok := ri.rooms[u][room]; !ok {
				t.Fatalf("%s in members of %s but not in reverse index", u, room)
			}
		}
	}
	for u, rooms := range ri.rooms {
		if len(rooms) == 0 {
			t.Fatalf("user %s kept with no rooms", u)
		}
		for room := range rooms {
			if _, ok := ri.members[room][u]; !ok {
				t.Fatalf("%s in reverse index of %s but not a member", room, u)
			}
		}
	}
}
