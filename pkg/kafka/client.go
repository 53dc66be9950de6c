package kafka

import (
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// NewProducerClient creates a client that produces to cfg.PushTopic by
// default and waits for all in-sync replicas.
func NewProducerClient(cfg Config, opts ...kgo.Opt) (*kgo.Client, error) {
	if !cfg.Enabled() {
		return nil, ErrNoBrokers
	}
	if cfg.PushTopic == "" {
		return nil, ErrNoTopic
	}

	all := append([]kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.PushTopic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProduceRequestTimeout(cfg.ProduceWait),
	}, opts...)

	client, err := kgo.NewClient(all...)
	if err != nil {
		return nil, fmt.Errorf("kafka: create producer: %w", err)
	}
	return client, nil
}

// NewConsumerClient creates a group consumer for topics with manual
// offset commits.
func NewConsumerClient(cfg Config, topics []string, opts ...kgo.Opt) (*kgo.Client, error) {
	if !cfg.Enabled() {
		return nil, ErrNoBrokers
	}
	if len(topics) == 0 {
		return nil, ErrNoTopic
	}

	all := append([]kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	}, opts...)

	client, err := kgo.NewClient(all...)
	if err != nil {
		return nil, fmt.Errorf("kafka: create consumer: %w", err)
	}
	return client, nil
}
