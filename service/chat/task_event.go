package chat

import (
	"encoding/json"

	"PPCollab/tools/errs"
)

// TaskEvent is a committed task mutation published by the CRUD side, either
// in-process or via NATS / Kafka.
type TaskEvent struct {
	RoomID  string          `json:"room_id"`
	TaskID  string          `json:"task_id"`
	Action  string          `json:"action"`
	ActorID string          `json:"actor_id"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// DecodeTaskEvent parses and validates one event payload.
func DecodeTaskEvent(raw []byte) (TaskEvent, error) {
	var ev TaskEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return TaskEvent{}, errs.ErrMalformedFrame.WrapMsg(err.Error())
	}
	if err := require("room_id", ev.RoomID, "task_id", ev.TaskID, "action", ev.Action); err != nil {
		return TaskEvent{}, err
	}
	return ev, nil
}

// TaskPublisher is what the ingress adapters need from the broadcaster.
type TaskPublisher interface {
	PublishTaskUpdate(roomID, taskID, action, actorID string, data any) int
}

// Apply publishes ev through p and returns the number of deliveries.
func (ev TaskEvent) Apply(p TaskPublisher) int {
	var data any
	if len(ev.Data) > 0 {
		data = ev.Data
	}
	return p.PublishTaskUpdate(ev.RoomID, ev.TaskID, ev.Action, ev.ActorID, data)
}
