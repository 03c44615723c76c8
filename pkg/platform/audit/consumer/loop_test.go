package consumer

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/twmb/franz-go/pkg/kgo"

	"enrollment/internal/platform/kafka/consumer"
	audit "enrollment/pkg/platform/audit"
	"enrollment/pkg/platform/audit/store/memory"
)

// =============================================================================
// Handler under the poll loop
// =============================================================================
// busClient replays one fetch and records what the loop commits and rewinds,
// so the handler's errors can be checked against acknowledgement.

type busClient struct {
	mu        sync.Mutex
	fetches   []kgo.Fetches
	cancel    context.CancelFunc
	committed []*kgo.Record
	rewound   map[string]map[int32]kgo.EpochOffset
}

func (c *busClient) PollFetches(context.Context) kgo.Fetches {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.fetches) == 0 {
		c.cancel()
		return nil
	}
	next := c.fetches[0]
	c.fetches = c.fetches[1:]
	return next
}

func (c *busClient) CommitRecords(_ context.Context, rs ...*kgo.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed = append(c.committed, rs...)
	return nil
}

func (c *busClient) SetOffsets(o map[string]map[int32]kgo.EpochOffset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rewound = o
}

func (c *busClient) AllowRebalance() {}

func (s *HandlerSuite) encoded(e audit.Event) []byte {
	payload, err := e.Encode()
	s.Require().NoError(err)
	return payload
}

func (s *HandlerSuite) TestUnknownEventTypeIsNotAcknowledged() {
	const topic = "faculty.created"
	store := memory.NewInMemoryStore()
	handler := NewHandler(topic, store, WithLogger(s.logger), WithMetrics(s.metrics))

	renamed := facultyCreated()
	renamed.EventType = audit.EventType("FACULTY_RENAMED")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &busClient{cancel: cancel}
	client.fetches = []kgo.Fetches{{{Topics: []kgo.FetchTopic{{
		Topic: topic,
		Partitions: []kgo.FetchPartition{
			{Partition: 0, Records: []*kgo.Record{
				{Topic: topic, Partition: 0, Offset: 3, LeaderEpoch: 2, Value: s.encoded(facultyCreated())},
				{Topic: topic, Partition: 0, Offset: 4, LeaderEpoch: 2, Value: s.encoded(renamed)},
				{Topic: topic, Partition: 0, Offset: 5, LeaderEpoch: 2, Value: s.encoded(facultyCreated())},
			}},
			{Partition: 1, Records: []*kgo.Record{
				{Topic: topic, Partition: 1, Offset: 0, Value: s.encoded(facultyCreated())},
			}},
		},
	}}}}}

	loop := consumer.New(topic, client, handler, consumer.WithLogger(s.logger), consumer.WithRetryBackoff(0))
	s.Require().NoError(loop.Run(ctx))

	records, err := store.ListAll(context.Background())
	s.Require().NoError(err)
	s.Len(records, 2, "only the well-formed events before and beside the unknown type are stored")
	for _, rec := range records {
		s.Equal(audit.EventFacultyCreated, rec.EventType)
	}

	committed := map[int32][]int64{}
	for _, r := range client.committed {
		committed[r.Partition] = append(committed[r.Partition], r.Offset)
	}
	s.Equal(map[int32][]int64{0: {3}, 1: {0}}, committed, "the unknown event type must not be committed")

	s.Equal(map[string]map[int32]kgo.EpochOffset{
		topic: {0: {Epoch: 2, Offset: 4}},
	}, client.rewound, "the partition is rewound to the unknown event for redelivery")
	s.Equal(1.0, testutil.ToFloat64(s.metrics.DecodeFailures.WithLabelValues(topic)))
}
