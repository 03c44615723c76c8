package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"
)

// =============================================================================
// Poll Loop Test Suite
// =============================================================================
// A scripted client replays fetches so the suite can assert exactly which
// records were committed and which partitions were rewound.

type scriptedClient struct {
	mu        sync.Mutex
	polls     []kgo.Fetches
	cancel    context.CancelFunc
	committed []*kgo.Record
	rewinds   []map[string]map[int32]kgo.EpochOffset
	allowed   int
}

func (c *scriptedClient) PollFetches(context.Context) kgo.Fetches {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.polls) == 0 {
		c.cancel()
		return nil
	}
	next := c.polls[0]
	c.polls = c.polls[1:]
	return next
}

func (c *scriptedClient) CommitRecords(_ context.Context, rs ...*kgo.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed = append(c.committed, rs...)
	return nil
}

func (c *scriptedClient) SetOffsets(o map[string]map[int32]kgo.EpochOffset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rewinds = append(c.rewinds, o)
}

func (c *scriptedClient) AllowRebalance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowed++
}

func record(topic string, partition int32, offset int64, value string) *kgo.Record {
	return &kgo.Record{Topic: topic, Partition: partition, Offset: offset, Value: []byte(value)}
}

func fetches(topic string, parts map[int32][]*kgo.Record) kgo.Fetches {
	ft := kgo.FetchTopic{Topic: topic}
	for p := int32(0); p < int32(len(parts)); p++ {
		ft.Partitions = append(ft.Partitions, kgo.FetchPartition{Partition: p, Records: parts[p]})
	}
	return kgo.Fetches{{Topics: []kgo.FetchTopic{ft}}}
}

type ConsumerSuite struct {
	suite.Suite
	client   *scriptedClient
	ctx      context.Context
	logger   *slog.Logger
	metrics  *Metrics
	received []string
}

func TestConsumerSuite(t *testing.T) {
	suite.Run(t, new(ConsumerSuite))
}

func (s *ConsumerSuite) SetupTest() {
	ctx, cancel := context.WithCancel(context.Background())
	s.ctx = ctx
	s.client = &scriptedClient{cancel: cancel}
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.received = nil
}

func (s *ConsumerSuite) run(h Handler) {
	c := New("test", s.client, h, WithLogger(s.logger), WithMetrics(s.metrics), WithRetryBackoff(0))
	s.Require().NoError(c.Run(s.ctx))
}

func (s *ConsumerSuite) collect(failOn map[string]int) Handler {
	return HandlerFunc(func(_ context.Context, msg *Message) error {
		v := string(msg.Value)
		s.received = append(s.received, v)
		if failOn[v] > 0 {
			failOn[v]--
			return errors.New("unknown event type")
		}
		return nil
	})
}

func (s *ConsumerSuite) TestAllHandledAreCommitted() {
	s.client.polls = []kgo.Fetches{fetches("audit.events", map[int32][]*kgo.Record{
		0: {record("audit.events", 0, 0, "a"), record("audit.events", 0, 1, "b")},
	})}

	s.run(s.collect(nil))

	s.Equal([]string{"a", "b"}, s.received)
	s.Len(s.client.committed, 2)
	s.Empty(s.client.rewinds)
	s.Equal(1, s.client.allowed)
	s.Equal(2.0, testutil.ToFloat64(s.metrics.Handled.WithLabelValues("audit.events")))
}

func (s *ConsumerSuite) TestFailedRecordIsNotCommittedAndPartitionRewound() {
	s.client.polls = []kgo.Fetches{fetches("faculty.created", map[int32][]*kgo.Record{
		0: {record("faculty.created", 0, 10, "ok-1"), record("faculty.created", 0, 11, "poison"), record("faculty.created", 0, 12, "after")},
		1: {record("faculty.created", 1, 5, "other-partition")},
	})}

	s.run(s.collect(map[string]int{"poison": 1}))

	s.Equal([]string{"ok-1", "poison", "other-partition"}, s.received)

	var committed []int64
	for _, r := range s.client.committed {
		committed = append(committed, r.Offset)
	}
	s.ElementsMatch([]int64{10, 5}, committed)

	s.Require().Len(s.client.rewinds, 1)
	s.Equal(map[string]map[int32]kgo.EpochOffset{
		"faculty.created": {0: {Epoch: 0, Offset: 11}},
	}, s.client.rewinds[0])
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Failed.WithLabelValues("faculty.created")))
}

func (s *ConsumerSuite) TestRedeliveredRecordIsCommittedOnceHandled() {
	poison := record("career.created", 0, 3, "flaky")
	s.client.polls = []kgo.Fetches{
		fetches("career.created", map[int32][]*kgo.Record{0: {poison}}),
		fetches("career.created", map[int32][]*kgo.Record{0: {poison}}),
	}

	s.run(s.collect(map[string]int{"flaky": 1}))

	s.Equal([]string{"flaky", "flaky"}, s.received)
	s.Require().Len(s.client.committed, 1)
	s.Equal(int64(3), s.client.committed[0].Offset)
	s.Len(s.client.rewinds, 1)
}

func (s *ConsumerSuite) TestHeadersAreExposed() {
	rec := record("audit.events", 0, 0, "x")
	rec.Key = []byte("FACULTY:7")
	rec.Headers = []kgo.RecordHeader{{Key: "event-type", Value: []byte("FACULTY_CREATED")}}
	s.client.polls = []kgo.Fetches{fetches("audit.events", map[int32][]*kgo.Record{0: {rec}})}

	var got *Message
	s.run(HandlerFunc(func(_ context.Context, msg *Message) error {
		got = msg
		return nil
	}))

	s.Require().NotNil(got)
	s.Equal("FACULTY:7", string(got.Key))
	s.Equal("FACULTY_CREATED", got.Headers["event-type"])
}

func (s *ConsumerSuite) TestStopsWhenContextCancelled() {
	s.client.cancel()
	s.run(s.collect(nil))
	s.Empty(s.received)
}
