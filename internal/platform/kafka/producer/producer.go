package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is a record to be produced.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Client is the subset of *kgo.Client used for producing.
type Client interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Producer sends single messages and waits for the broker acknowledgement.
type Producer struct {
	client Client
	now    func() time.Time
}

func New(client Client) *Producer {
	return &Producer{client: client, now: time.Now}
}

// Send produces msg and returns once the broker acknowledged or rejected it.
func (p *Producer) Send(ctx context.Context, msg Message) error {
	rec := &kgo.Record{
		Topic:     msg.Topic,
		Key:       msg.Key,
		Value:     msg.Value,
		Timestamp: p.now(),
	}
	for k, v := range msg.Headers {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", msg.Topic, err)
	}
	return nil
}
