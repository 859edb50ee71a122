package natsx

import (
	"context"
	"time"

	"PPCollab/logger"
	"PPCollab/service/chat"
	"PPCollab/tools/errs"

	"go.uber.org/zap"
)

const BizTaskEvents = "task_events"

type TaskIngressConfig struct {
	Subject string
	Queue   string
	Durable string        // 非空时走 JetStream 推送订阅
	IdemTTL time.Duration // Nats-Msg-Id 去重窗口
}

// TaskHandler applies each task event published by the CRUD side.
func TaskHandler(p chat.TaskPublisher) NatsxHandler {
	log := logger.Named("nats")
	return DecodeTasks(func(_ context.Context, msg NatsxMessage, ev chat.TaskEvent) error {
		n := ev.Apply(p)
		log.Debug("task event", zap.String("room", ev.RoomID), zap.String("task", ev.TaskID),
			zap.String("action", ev.Action), zap.String("msg_id", msg.MsgID), zap.Int("delivered", n))
		return nil
	})
}

// NatsxRecoverMiddleware turns a panicking handler into an error.
func NatsxRecoverMiddleware() NatsxMiddleware {
	return func(next NatsxHandler) NatsxHandler {
		return func(ctx context.Context, msg NatsxMessage) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errs.ErrPanic(r)
					logger.Error("nats handler panic", zap.String("subject", msg.Subject), zap.Error(err))
				}
			}()
			return next(ctx, msg)
		}
	}
}

// StartTaskIngress subscribes the task-event subject and feeds it into p.
// The returned store must be stopped on shutdown.
func StartTaskIngress(c *NatsxClient, p chat.TaskPublisher, cfg TaskIngressConfig) (*MemIdem, error) {
	route := NatsxRoute{Biz: BizTaskEvents, Subject: cfg.Subject, Queue: cfg.Queue, Mode: Core}
	if cfg.Durable != "" {
		route.Mode = JetStreamPush
		route.Durable = cfg.Durable
	}
	if err := c.RegisterRoute(route); err != nil {
		return nil, err
	}

	idem := NewMemIdem(cfg.IdemTTL)
	cs := NewNatsxConsumer(c, NatsxRecoverMiddleware(), NatsxIdemMiddleware(idem, cfg.IdemTTL))
	if err := cs.Subscribe(BizTaskEvents, TaskHandler(p)); err != nil {
		idem.Stop()
		return nil, err
	}
	logger.Info("nats task ingress", zap.String("subject", cfg.Subject), zap.String("queue", cfg.Queue),
		zap.Bool("jetstream", route.Mode == JetStreamPush))
	return idem, nil
}
