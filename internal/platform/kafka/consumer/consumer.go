// Package consumer runs a manual-commit poll loop over a franz-go client.
//
// Records are committed only after the handler returns nil. When the handler
// fails the partition is rewound to the failed record, so it is delivered
// again on a later poll. Nothing is ever skipped.
package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is a consumed record as seen by handlers.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes one message. A non-nil error leaves the message
// unacknowledged.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Client is the subset of *kgo.Client the poll loop needs.
type Client interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	SetOffsets(offsets map[string]map[int32]kgo.EpochOffset)
	AllowRebalance()
}

const defaultRetryBackoff = time.Second

// Consumer drives one client and one handler.
type Consumer struct {
	name         string
	client       Client
	handler      Handler
	logger       *slog.Logger
	metrics      *Metrics
	retryBackoff time.Duration
}

type Option func(*Consumer)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		c.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Consumer) {
		c.metrics = m
	}
}

// WithRetryBackoff sets the pause after a poll in which a handler failed.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Consumer) {
		if d >= 0 {
			c.retryBackoff = d
		}
	}
}

// New builds a consumer. name identifies it in logs and metrics.
func New(name string, client Client, handler Handler, opts ...Option) *Consumer {
	c := &Consumer{
		name:         name,
		client:       client,
		handler:      handler,
		logger:       slog.Default(),
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run polls until ctx is cancelled or the client is closed.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "consumer started", "consumer", c.name)
	defer c.logger.InfoContext(ctx, "consumer stopped", "consumer", c.name)

	for {
		if ctx.Err() != nil {
			return nil
		}
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		for _, fe := range fetches.Errors() {
			c.logger.ErrorContext(ctx, "fetch error",
				"consumer", c.name,
				"topic", fe.Topic,
				"partition", fe.Partition,
				"error", fe.Err,
			)
		}

		failed := c.process(ctx, fetches)
		c.client.AllowRebalance()

		if failed && c.retryBackoff > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryBackoff):
			}
		}
	}
}

// process handles every fetched record, commits the successes and rewinds
// each partition whose handler failed. It reports whether any record failed.
func (c *Consumer) process(ctx context.Context, fetches kgo.Fetches) bool {
	var handled []*kgo.Record
	rewind := make(map[string]map[int32]kgo.EpochOffset)

	fetches.EachPartition(func(p kgo.FetchTopicPartition) {
		for _, rec := range p.Records {
			start := time.Now()
			err := c.handler.Handle(ctx, toMessage(rec))
			c.metrics.observe(rec.Topic, err, time.Since(start))
			if err != nil {
				c.logger.ErrorContext(ctx, "message not acknowledged, will be redelivered",
					"consumer", c.name,
					"topic", rec.Topic,
					"partition", rec.Partition,
					"offset", rec.Offset,
					"error", err,
				)
				if rewind[p.Topic] == nil {
					rewind[p.Topic] = make(map[int32]kgo.EpochOffset)
				}
				rewind[p.Topic][p.Partition] = kgo.EpochOffset{Epoch: rec.LeaderEpoch, Offset: rec.Offset}
				return
			}
			handled = append(handled, rec)
		}
	})

	if len(handled) > 0 {
		if err := c.client.CommitRecords(ctx, handled...); err != nil {
			c.logger.WarnContext(ctx, "commit failed, records may be redelivered",
				"consumer", c.name,
				"records", len(handled),
				"error", err,
			)
		}
	}
	if len(rewind) > 0 {
		c.client.SetOffsets(rewind)
		return true
	}
	return false
}

func toMessage(rec *kgo.Record) *Message {
	msg := &Message{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       rec.Key,
		Value:     rec.Value,
		Timestamp: rec.Timestamp,
	}
	if len(rec.Headers) > 0 {
		msg.Headers = make(map[string]string, len(rec.Headers))
		for _, h := range rec.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}
	}
	return msg
}
