package natsx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"PPCollab/service/chat"

	"github.com/nats-io/nats.go"
)

type recordPublisher struct {
	mu     sync.Mutex
	events []chat.TaskEvent
}

func (r *recordPublisher) PublishTaskUpdate(roomID, taskID, action, actorID string, data any) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, chat.TaskEvent{RoomID: roomID, TaskID: taskID, Action: action, ActorID: actorID})
	return 1
}

func TestChainOrder(t *testing.T) {
	var trail []string
	mw := func(name string) NatsxMiddleware {
		return func(next NatsxHandler) NatsxHandler {
			return func(ctx context.Context, msg NatsxMessage) error {
				trail = append(trail, name)
				return next(ctx, msg)
			}
		}
	}
	h := NatsxChain(func(context.Context, NatsxMessage) error {
		trail = append(trail, "h")
		return nil
	}, mw("a"), mw("b"))
	_ = h(context.Background(), NatsxMessage{})
	if len(trail) != 3 || trail[0] != "a" || trail[1] != "b" || trail[2] != "h" {
		t.Fatalf("trail = %v", trail)
	}
}

func TestIdemMiddlewareDedupByMsgID(t *testing.T) {
	store := newMemIdem(time.Minute)
	p := &recordPublisher{}
	h := NatsxChain(TaskHandler(p), NatsxIdemMiddleware(store, 0))

	body := []byte(`{"room_id":"R","task_id":"T1","action":"updated","actor_id":"svc"}`)
	msg := NatsxMessage{Subject: "tasks.mutations", MsgID: "m-1", Data: body}
	for i := 0; i < 3; i++ {
		if err := h(context.Background(), msg); err != nil {
			t.Fatal(err)
		}
	}
	msg.MsgID = "m-2"
	_ = h(context.Background(), msg)

	if len(p.events) != 2 {
		t.Fatalf("applied %d events, want 2", len(p.events))
	}
	if p.events[0].RoomID != "R" || p.events[0].ActorID != "svc" {
		t.Fatalf("event = %+v", p.events[0])
	}
}

func TestIdemWithoutHeaderUsesBody(t *testing.T) {
	store := newMemIdem(time.Minute)
	p := &recordPublisher{}
	h := NatsxChain(TaskHandler(p), NatsxIdemMiddleware(store, 0))
	a := NatsxMessage{Subject: "s", Data: []byte(`{"room_id":"R","task_id":"A","action":"x"}`)}
	b := NatsxMessage{Subject: "s", Data: []byte(`{"room_id":"R","task_id":"B","action":"x"}`)}
	_ = h(context.Background(), a)
	_ = h(context.Background(), a)
	_ = h(context.Background(), b)
	if len(p.events) != 2 {
		t.Fatalf("applied %d", len(p.events))
	}
}

func TestMemIdemExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	store := newMemIdem(time.Second)
	store.now = func() time.Time { return now }

	if seen, _ := store.SeenOnce("k", 0); seen {
		t.Fatal("first sighting reported seen")
	}
	if seen, _ := store.SeenOnce("k", 0); !seen {
		t.Fatal("second sighting not seen")
	}
	now = now.Add(2 * time.Second)
	if seen, _ := store.SeenOnce("k", 0); seen {
		t.Fatal("entry should have expired")
	}
	now = now.Add(2 * time.Second)
	store.sweep()
	if store.size() != 0 {
		t.Fatalf("sweep left %d entries", store.size())
	}
}

func TestTaskHandlerDropsBadPayload(t *testing.T) {
	p := &recordPublisher{}
	h := TaskHandler(p)
	if err := h(context.Background(), NatsxMessage{Data: []byte(`not json`)}); err != nil {
		t.Fatalf("bad payload should be swallowed, got %v", err)
	}
	if err := h(context.Background(), NatsxMessage{Data: []byte(`{"room_id":"R"}`)}); err != nil {
		t.Fatal(err)
	}
	if len(p.events) != 0 {
		t.Fatalf("applied %v", p.events)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := NatsxChain(func(context.Context, NatsxMessage) error { panic("kaboom") }, NatsxRecoverMiddleware())
	err := h(context.Background(), NatsxMessage{Subject: "s"})
	if err == nil {
		t.Fatal("panic not converted")
	}
	var target interface{ ECode() int }
	if !errors.As(err, &target) {
		t.Fatalf("want coded error, got %T", err)
	}
}

func TestDecodeTasksPassesEvent(t *testing.T) {
	var got []chat.TaskEvent
	var ids []string
	h := DecodeTasks(func(_ context.Context, msg NatsxMessage, ev chat.TaskEvent) error {
		got = append(got, ev)
		ids = append(ids, msg.MsgID)
		return errors.New("retry")
	})
	err := h(context.Background(), NatsxMessage{MsgID: "m-9", Data: []byte(`{"room_id":"R","task_id":"T","action":"deleted","data":{"k":1}}`)})
	if err == nil {
		t.Fatal("handler error swallowed")
	}
	if len(got) != 1 || got[0].TaskID != "T" || string(got[0].Data) != `{"k":1}` || ids[0] != "m-9" {
		t.Fatalf("got %+v ids %v", got, ids)
	}
	if err := h(context.Background(), NatsxMessage{Data: []byte(`{}`)}); err != nil || len(got) != 1 {
		t.Fatalf("invalid event reached handler: %v", err)
	}
}

func TestToMessageMsgID(t *testing.T) {
	m := nats.NewMsg("tasks.mutations")
	m.Data = []byte(`{}`)
	m.Header.Set("X-Msg-Id", "x-1")
	msg := toMessage(m)
	if msg.MsgID != "x-1" || msg.DedupKey() != "x-1" {
		t.Fatalf("msg = %+v", msg)
	}
	plain := NatsxMessage{Subject: "s", Data: []byte(" body \n")}
	if plain.DedupKey() != "s|body" {
		t.Fatalf("key = %q", plain.DedupKey())
	}
}

func TestHeaderToMap(t *testing.T) {
	if headerToMap(nil) != nil {
		t.Fatal("nil header")
	}
	m := headerToMap(map[string][]string{"Nats-Msg-Id": {"a", "b"}, "Empty": {}})
	if m["Nats-Msg-Id"] != "a" || len(m) != 1 {
		t.Fatalf("m = %v", m)
	}
}
