package kafka

import (
	"time"

	"github.com/IBM/sarama"

	"github.com/aq2208/gorder-pickup/configs"
)

const defaultGroupID = "order-pickup"

func baseConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_6_0_0
	cfg.Net.DialTimeout = 5 * time.Second
	return cfg
}

func NewGroup(c configs.Kafka) (sarama.ConsumerGroup, error) {
	cfg := baseConfig()
	cfg.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRange
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	groupID := c.GroupID
	if groupID == "" {
		groupID = defaultGroupID
	}
	return sarama.NewConsumerGroup(c.Brokers, groupID, cfg)
}

// NewSyncProducer waits for all in-sync replicas; events keyed by order id keep
// per-order ordering within a partition.
func NewSyncProducer(c configs.Kafka) (sarama.SyncProducer, error) {
	cfg := baseConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return sarama.NewSyncProducer(c.Brokers, cfg)
}
