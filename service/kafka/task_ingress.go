package kafka

import (
	"PPCollab/logger"
	"PPCollab/service/chat"

	"go.uber.org/zap"
)

// TaskHandler decodes record values as task events and publishes them.
// Decode failures are returned so ConsumeClaim logs them; the record is
// marked either way.
func TaskHandler(p chat.TaskPublisher) MessageHandler {
	return func(topic string, key, value []byte) error {
		ev, err := chat.DecodeTaskEvent(value)
		if err != nil {
			return err
		}
		n := ev.Apply(p)
		logger.Debug("kafka task event", zap.String("topic", topic), zap.ByteString("key", key),
			zap.String("room", ev.RoomID), zap.Int("delivered", n))
		return nil
	}
}

// NewTaskConsumer builds a consumer group bound to the task-event topic.
func NewTaskConsumer(cfg Config, p chat.TaskPublisher) (*Consumer, error) {
	r := NewRouter()
	r.Register(cfg.Topic, TaskHandler(p))
	return NewConsumer(cfg, r)
}
