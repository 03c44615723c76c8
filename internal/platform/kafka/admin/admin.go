package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
)

// TopicCreator is the subset of *kadm.Client used to provision topics.
type TopicCreator interface {
	CreateTopics(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topics ...string) (kadm.CreateTopicResponses, error)
}

// EnsureTopics creates any missing topics. Topics that already exist are left
// untouched.
func EnsureTopics(ctx context.Context, admin TopicCreator, logger *slog.Logger, partitions int32, replicationFactor int16, topics ...string) error {
	if len(topics) == 0 {
		return nil
	}
	resp, err := admin.CreateTopics(ctx, partitions, replicationFactor, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}

	var errs []error
	for _, topic := range topics {
		r, ok := resp[topic]
		if !ok {
			continue
		}
		switch {
		case r.Err == nil:
			logger.InfoContext(ctx, "created topic", "topic", topic, "partitions", partitions)
		case errors.Is(r.Err, kerr.TopicAlreadyExists):
		default:
			errs = append(errs, fmt.Errorf("create topic %s: %w", topic, r.Err))
		}
	}
	return errors.Join(errs...)
}
