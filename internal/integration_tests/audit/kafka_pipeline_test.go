//go:build integration

package audit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"
	"golang.org/x/sync/errgroup"

	"enrollment/internal/platform/kafka"
	"enrollment/internal/platform/kafka/admin"
	"enrollment/internal/platform/kafka/consumer"
	"enrollment/internal/platform/kafka/producer"
	audit "enrollment/pkg/platform/audit"
	auditconsumer "enrollment/pkg/platform/audit/consumer"
	"enrollment/pkg/platform/audit/publisher"
	"enrollment/pkg/platform/audit/store/postgres"
	"enrollment/pkg/requestcontext"
	"enrollment/pkg/testutil/containers"
)

func TestKafkaPipeline_PublishToPostgres(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	broker := containers.NewRedpandaContainer(t)
	pg := containers.NewPostgresContainer(t)

	store := postgres.New(pg.DB)
	require.NoError(t, store.Migrate(ctx))

	topics := audit.DefaultTopics()
	kcfg := kafka.Config{Brokers: []string{broker.Broker}, ClientID: "pipeline-test"}

	prodClient, err := kafka.NewProducerClient(kcfg)
	require.NoError(t, err)
	t.Cleanup(prodClient.Close)
	require.NoError(t, admin.EnsureTopics(ctx, kadm.NewClient(prodClient), logger, 1, 1, topics.Subscriptions()...))
	// A second run finds every topic present.
	require.NoError(t, admin.EnsureTopics(ctx, kadm.NewClient(prodClient), logger, 1, 1, topics.Subscriptions()...))

	reg := prometheus.NewRegistry()
	handlerMetrics := auditconsumer.NewMetrics(reg)

	runCtx, stop := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	for _, topic := range topics.Subscriptions() {
		client, err := kafka.NewGroupClient(kcfg, "audit-service-group", topic)
		require.NoError(t, err)
		c := consumer.New(topic, client,
			auditconsumer.NewHandler(topic, store, auditconsumer.WithLogger(logger), auditconsumer.WithMetrics(handlerMetrics)),
			consumer.WithLogger(logger),
			consumer.WithRetryBackoff(100*time.Millisecond),
		)
		g.Go(func() error {
			defer client.Close()
			return c.Run(gctx)
		})
	}

	pub := publisher.New(producer.New(prodClient), topics, publisher.WithLogger(logger))
	actorCtx := requestcontext.WithIdentity(ctx, requestcontext.Identity{Subject: "admin@university.com", Role: "ADMIN", UserID: 1})
	pub.CareerCreated(actorCtx, 11, "Sistemas", "Ingeniería")

	// A poison message stays uncommitted on its own topic and must not hold
	// back the other subscribers.
	require.NoError(t, producer.New(prodClient).Send(ctx, producer.Message{
		Topic: topics.UserRegistered,
		Key:   []byte("USER:1"),
		Value: []byte(`{"eventType":"USER_DELETED","entityType":"USER","status":"SUCCESS"}`),
	}))

	require.Eventually(t, func() bool {
		records, err := store.ListByEventType(ctx, audit.EventCareerCreated)
		return err == nil && len(records) == 2
	}, time.Minute, 250*time.Millisecond)

	records, err := store.ListByEventType(ctx, audit.EventCareerCreated)
	require.NoError(t, err)
	for _, rec := range records {
		assert.Equal(t, int64(11), rec.EntityID)
		assert.Equal(t, "admin@university.com", rec.UserEmail)
		assert.Equal(t, "Nueva carrera: Sistemas en facultad: Ingeniería", rec.Details)
	}

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(handlerMetrics.DecodeFailures.WithLabelValues(topics.UserRegistered)) >= 1
	}, 30*time.Second, 250*time.Millisecond)

	stop()
	require.NoError(t, g.Wait())
}
