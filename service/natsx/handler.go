package natsx

import (
	"context"
	"strings"

	"PPCollab/logger"
	"PPCollab/service/chat"

	"go.uber.org/zap"
)

// NatsxMessage is one delivery as the ingress sees it. MsgID is the
// publisher-assigned id (Nats-Msg-Id or X-Msg-Id), empty when none was sent.
type NatsxMessage struct {
	Subject string
	MsgID   string
	Data    []byte
	Header  map[string]string
}

// DedupKey 去重键：优先 MsgID，否则 subject+内容
func (m NatsxMessage) DedupKey() string {
	if m.MsgID != "" {
		return m.MsgID
	}
	return m.Subject + "|" + strings.TrimSpace(string(m.Data))
}

// NatsxHandler returning an error NAKs a JetStream delivery; core
// subscriptions ignore it.
type NatsxHandler func(ctx context.Context, msg NatsxMessage) error

type NatsxMiddleware func(NatsxHandler) NatsxHandler

// NatsxChain wraps h so that mws[0] runs first.
func NatsxChain(h NatsxHandler, mws ...NatsxMiddleware) NatsxHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// TaskEventHandler receives task events that already decoded and validated.
type TaskEventHandler func(ctx context.Context, msg NatsxMessage, ev chat.TaskEvent) error

// DecodeTasks adapts h to raw deliveries. A payload that is not a valid task
// event is logged and acknowledged; redelivering it would not help.
func DecodeTasks(h TaskEventHandler) NatsxHandler {
	log := logger.Named("nats")
	return func(ctx context.Context, msg NatsxMessage) error {
		ev, err := chat.DecodeTaskEvent(msg.Data)
		if err != nil {
			log.Warn("drop task event", zap.String("subject", msg.Subject), zap.String("msg_id", msg.MsgID), zap.Error(err))
			return nil
		}
		return h(ctx, msg, ev)
	}
}
