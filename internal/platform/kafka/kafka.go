// Package kafka builds franz-go clients for the audit pipeline.
package kafka

import (
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Config holds the connection settings shared by every client.
type Config struct {
	Brokers  []string
	ClientID string
}

// NewProducerClient returns a client tuned for fire-and-forget publishing.
func NewProducerClient(cfg Config) (*kgo.Client, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordPartitioner(kgo.StickyKeyPartitioner(nil)),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer client: %w", err)
	}
	return cl, nil
}

// NewGroupClient returns a consumer-group member subscribed to one topic.
// Offsets are committed manually and rebalances wait for the poll loop.
func NewGroupClient(cfg Config, group, topic string) (*kgo.Client, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer client for %s: %w", topic, err)
	}
	return cl, nil
}
