package kafka

import (
	"context"
	"time"

	"PPCollab/logger"
	"PPCollab/tools/errs"
	"PPCollab/tools/safe"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

type ConsumerGroupHandler struct {
	router *Router
	log    *zap.Logger
}

func (h *ConsumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.log.Info("consumer group setup")
	return nil
}

func (h *ConsumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.log.Info("consumer group cleanup")
	return nil
}

// ConsumeClaim hands every record to its topic handler and marks it, handled
// or not; a bad record must not stall the partition.
func (h *ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.log.Debug("received",
			zap.String("topic", msg.Topic), zap.Int32("partition", msg.Partition), zap.Int64("offset", msg.Offset))

		handler, err := h.router.Get(msg.Topic)
		if err != nil {
			h.log.Warn("no handler", zap.String("topic", msg.Topic), zap.Error(err))
		} else if err := handler(msg.Topic, msg.Key, msg.Value); err != nil {
			h.log.Warn("handler error", zap.String("topic", msg.Topic), zap.Int64("offset", msg.Offset), zap.Error(err))
		}

		session.MarkMessage(msg, "")
	}
	return nil
}

// Consumer runs one consumer group over the router's topics.
type Consumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler *ConsumerGroupHandler
	log     *zap.Logger
}

func NewConsumer(cfg Config, router *Router) (*Consumer, error) {
	cfg.norm()
	if cfg.EnsureTopic && cfg.Topic != "" {
		if err := ensureTopic(cfg); err != nil {
			return nil, err
		}
	}
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, cfg.saramaConfig())
	if err != nil {
		return nil, errs.WrapMsg(err, "kafka consumer group", "brokers", cfg.Brokers, "group", cfg.GroupID)
	}
	log := logger.Named("kafka")
	return &Consumer{
		group:   group,
		topics:  router.Topics(),
		handler: &ConsumerGroupHandler{router: router, log: log},
		log:     log,
	}, nil
}

// Run consumes until ctx is cancelled. Rebalances re-enter Consume.
func (c *Consumer) Run(ctx context.Context) {
	safe.Go("kafka-errors", func() {
		for err := range c.group.Errors() {
			c.log.Warn("consumer group error", zap.Error(err))
		}
	})

	for {
		if err := c.group.Consume(ctx, c.topics, c.handler); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("consume error", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}
