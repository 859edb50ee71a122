package chat

import (
	"bytes"
	"testing"
)

type fixture struct {
	conns *ConnManager
	rooms *RoomIndex
	bc    *Broadcaster
}

func newFixture() *fixture {
	conns := NewConnManager(nil)
	rooms := NewRoomIndex()
	return &fixture{conns: conns, rooms: rooms, bc: NewBroadcaster(conns, rooms)}
}

func (f *fixture) online(userID string, rooms ...string) (*Conn, *fakeWriter) {
	c, w := newFakeConn(userID)
	f.conns.Connect(userID, c)
	for _, r := range rooms {
		f.rooms.Join(userID, r)
	}
	return c, w
}

func TestRoomBroadcastExclusion(t *testing.T) {
	f := newFixture()
	_, wa := f.online("A", "R")
	_, wb := f.online("B", "R")
	_, wc := f.online("C", "R")
	_, wd := f.online("D", "other")

	n := f.bc.RoomBroadcast("R", Typing("A", "R", "T1", true), "A")
	if n != 2 {
		t.Fatalf("delivered = %d, want 2", n)
	}
	if wa.count() != 0 || wd.count() != 0 {
		t.Fatalf("A got %d, D got %d", wa.count(), wd.count())
	}
	if wb.count() != 1 || wc.count() != 1 {
		t.Fatalf("B got %d, C got %d", wb.count(), wc.count())
	}
	// encoded once, same bytes everywhere
	if !bytes.Equal(wb.frames[0], wc.frames[0]) {
		t.Fatal("recipients got different encodings")
	}
}

func TestUnicastEveryDevice(t *testing.T) {
	f := newFixture()
	_, w1 := f.online("U")
	_, w2 := f.online("U")
	if n := f.bc.Unicast("U", Pong()); n != 2 {
		t.Fatalf("delivered = %d", n)
	}
	if w1.count() != 1 || w2.count() != 1 {
		t.Fatal("each device should get one copy")
	}
}

func TestSendToOnlyTarget(t *testing.T) {
	f := newFixture()
	c1, w1 := f.online("U")
	_, w2 := f.online("U")
	if r := f.bc.SendTo(c1, Pong()); r != SendDelivered {
		t.Fatalf("result = %v", r)
	}
	if w1.count() != 1 || w2.count() != 0 {
		t.Fatalf("w1=%d w2=%d", w1.count(), w2.count())
	}
}

func TestSendToEncodeFailureKeepsConn(t *testing.T) {
	f := newFixture()
	c, w := f.online("U", "R")
	env := TaskUpdate("T1", "R", "updated", "U", map[string]any{"ch": make(chan int)})
	if r := f.bc.SendTo(c, env); r != SendDead {
		t.Fatalf("result = %v, want dead", r)
	}
	if !f.conns.IsOnline("U") || !f.rooms.IsMember("U", "R") {
		t.Fatal("encode failure pruned a healthy connection")
	}
	if w.count() != 0 || w.closes != 0 {
		t.Fatalf("frames=%d closes=%d", w.count(), w.closes)
	}
	if r := f.bc.SendTo(c, Pong()); r != SendDelivered {
		t.Fatalf("next send = %v", r)
	}
}

func TestDeadConnectionPruned(t *testing.T) {
	f := newFixture()
	_, wa := f.online("A", "R")
	bad, wb := f.online("B", "R")
	wb.setFail(true)

	n := f.bc.RoomBroadcast("R", Presence("X", "R", StatusOnline), "")
	if n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	if f.conns.IsOnline("B") {
		t.Fatal("dead connection not pruned")
	}
	if f.rooms.IsMember("B", "R") {
		t.Fatal("pruned user still in room")
	}
	if wb.closes == 0 {
		t.Fatal("dead connection not closed")
	}
	// A: the presence broadcast plus B's offline cascade
	frames := wa.decoded(t)
	if len(frames) != 2 || frames[1]["user_id"] != "B" || frames[1]["status"] != StatusOffline {
		t.Fatalf("A frames = %v", frames)
	}
	checkMirror(t, f.rooms)

	if r := f.bc.SendTo(bad, Pong()); r != SendDead {
		t.Fatalf("send to pruned conn = %v", r)
	}
}

func TestDropMultiDevice(t *testing.T) {
	f := newFixture()
	_, wo := f.online("O", "R")
	u1, _ := f.online("U", "R")
	u2, _ := f.online("U")

	f.bc.Drop(u1)
	if !f.conns.IsOnline("U") || !f.rooms.IsMember("U", "R") {
		t.Fatal("closing one device must keep U registered and in R")
	}
	if wo.count() != 0 {
		t.Fatal("no presence expected while U still has a device")
	}

	f.bc.Drop(u2)
	f.bc.Drop(u2) // idempotent
	f.bc.Drop(u1)
	if f.conns.IsOnline("U") || f.rooms.IsMember("U", "R") {
		t.Fatal("U should be gone")
	}
	frames := wo.decoded(t)
	if len(frames) != 1 {
		t.Fatalf("want exactly one offline presence, got %v", frames)
	}
	if frames[0]["type"] != TypePresence || frames[0]["user_id"] != "U" || frames[0]["status"] != StatusOffline {
		t.Fatalf("frame = %v", frames[0])
	}
}

func TestPublishTaskUpdateReachesActor(t *testing.T) {
	f := newFixture()
	_, wa := f.online("A", "R")
	_, wb := f.online("B", "R")

	n := f.bc.PublishTaskUpdate("R", "T1", "created", "A", map[string]any{"title": "x"})
	if n != 2 || wa.count() != 1 || wb.count() != 1 {
		t.Fatalf("n=%d a=%d b=%d", n, wa.count(), wb.count())
	}
	fr := wb.decoded(t)[0]
	if fr["type"] != TypeTaskUpdate || fr["task_id"] != "T1" || fr["user_id"] != "A" || fr["room_id"] != "R" {
		t.Fatalf("frame = %v", fr)
	}
	if fr["data"].(map[string]any)["title"] != "x" {
		t.Fatalf("data = %v", fr["data"])
	}
}

func TestTaskEventApply(t *testing.T) {
	f := newFixture()
	_, w := f.online("A", "R")
	ev, err := DecodeTaskEvent([]byte(`{"room_id":"R","task_id":"T9","action":"deleted","actor_id":"svc"}`))
	if err != nil {
		t.Fatal(err)
	}
	if n := ev.Apply(f.bc); n != 1 {
		t.Fatalf("n = %d", n)
	}
	fr := w.decoded(t)[0]
	if fr["action"] != "deleted" || fr["data"] != nil {
		t.Fatalf("frame = %v", fr)
	}

	if _, err := DecodeTaskEvent([]byte(`{"room_id":"R"}`)); err == nil {
		t.Fatal("missing task_id accepted")
	}
	if _, err := DecodeTaskEvent([]byte(`nope`)); err == nil {
		t.Fatal("garbage accepted")
	}
}
