package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
)

type stubCreator struct {
	resp   kadm.CreateTopicResponses
	err    error
	topics []string
}

func (s *stubCreator) CreateTopics(_ context.Context, _ int32, _ int16, _ map[string]*string, topics ...string) (kadm.CreateTopicResponses, error) {
	s.topics = topics
	return s.resp, s.err
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestEnsureTopics(t *testing.T) {
	t.Run("existing topics are not an error", func(t *testing.T) {
		creator := &stubCreator{resp: kadm.CreateTopicResponses{
			"audit.events":    {Topic: "audit.events", Err: kerr.TopicAlreadyExists},
			"faculty.created": {Topic: "faculty.created"},
		}}
		err := EnsureTopics(context.Background(), creator, discard, 3, 1, "audit.events", "faculty.created")
		require.NoError(t, err)
		assert.Equal(t, []string{"audit.events", "faculty.created"}, creator.topics)
	})

	t.Run("per-topic failure is reported", func(t *testing.T) {
		creator := &stubCreator{resp: kadm.CreateTopicResponses{
			"audit.events": {Topic: "audit.events", Err: kerr.InvalidReplicationFactor},
		}}
		err := EnsureTopics(context.Background(), creator, discard, 3, 5, "audit.events")
		require.ErrorIs(t, err, kerr.InvalidReplicationFactor)
	})

	t.Run("request failure", func(t *testing.T) {
		creator := &stubCreator{err: errors.New("no brokers")}
		err := EnsureTopics(context.Background(), creator, discard, 1, 1, "audit.events")
		require.Error(t, err)
	})

	t.Run("nothing to create", func(t *testing.T) {
		creator := &stubCreator{}
		require.NoError(t, EnsureTopics(context.Background(), creator, discard, 1, 1))
		assert.Nil(t, creator.topics)
	})
}
