package kafka

import (
	"github.com/Shopify/sarama"
)

// Config 任务事件消费配置
type Config struct {
	Brokers           []string
	Topic             string
	GroupID           string
	InitialOffset     string // newest/oldest
	Version           sarama.KafkaVersion
	EnsureTopic       bool  // 启动时不存在则创建
	Partitions        int32 // EnsureTopic 时使用
	ReplicationFactor int16
}

func (c *Config) norm() {
	if c.GroupID == "" {
		c.GroupID = "ppcollab-gateway"
	}
	if c.Version == (sarama.KafkaVersion{}) {
		c.Version = sarama.V2_1_0_0
	}
	if c.Partitions <= 0 {
		c.Partitions = 8
	}
	if c.ReplicationFactor <= 0 {
		c.ReplicationFactor = 1
	}
}

func (c *Config) saramaConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Version = c.Version
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	if c.InitialOffset == "oldest" {
		config.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	config.Consumer.Return.Errors = true
	return config
}
