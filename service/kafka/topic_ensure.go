package kafka

import (
	"errors"

	"PPCollab/logger"
	"PPCollab/tools/errs"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

func ensureTopic(cfg Config) error {
	admin, err := sarama.NewClusterAdmin(cfg.Brokers, cfg.saramaConfig())
	if err != nil {
		return errs.WrapMsg(err, "kafka cluster admin", "brokers", cfg.Brokers)
	}
	defer admin.Close()
	return EnsureTopic(admin, cfg.Topic, cfg.Partitions, cfg.ReplicationFactor)
}

// EnsureTopic creates topic when it does not exist. Existing topics are left
// alone.
func EnsureTopic(admin sarama.ClusterAdmin, topic string, partitions int32, rf int16) error {
	descs, err := admin.DescribeTopics([]string{topic})
	if err == nil && len(descs) == 1 && descs[0].Err == sarama.ErrNoError {
		logger.Info("[Topic] exists", zap.String("topic", topic), zap.Int("partitions", len(descs[0].Partitions)))
		return nil
	}

	td := &sarama.TopicDetail{
		NumPartitions:     partitions,
		ReplicationFactor: rf,
		ConfigEntries: map[string]*string{
			"cleanup.policy":                 strPtr("delete"),
			"min.insync.replicas":            strPtr("1"),
			"unclean.leader.election.enable": strPtr("false"),
		},
	}
	if err := admin.CreateTopic(topic, td, false); err != nil {
		var te *sarama.TopicError
		if errors.As(err, &te) && te.Err == sarama.ErrTopicAlreadyExists {
			return nil
		}
		if errors.Is(err, sarama.ErrTopicAlreadyExists) {
			return nil
		}
		return errs.WrapMsg(err, "create topic", "topic", topic)
	}
	logger.Info("[Topic] created", zap.String("topic", topic), zap.Int32("partitions", partitions), zap.Int16("rf", rf))
	return nil
}

func strPtr(s string) *string { return &s }
