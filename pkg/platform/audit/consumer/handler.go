// Package consumer persists audit events delivered by the bus.
//
// One Handler serves one topic. Decode and persistence failures are returned
// so the poll loop leaves the record unacknowledged and it is delivered again.
// There is no deduplication: a redelivered event produces a second record.
package consumer

//go:generate mockgen -destination=mocks/mocks.go -package=mocks enrollment/pkg/platform/audit Appender

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"enrollment/internal/platform/kafka/consumer"
	audit "enrollment/pkg/platform/audit"
)

const headerEventID = "event-id"

// Handler decodes and stores the events of a single topic.
type Handler struct {
	topic      string
	store      audit.Appender
	logger     *slog.Logger
	metrics    *Metrics
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// Option configures a Handler.
type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(h *Handler) {
		h.tracer = tp.Tracer("enrollment/audit/consumer")
	}
}

func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(h *Handler) {
		h.propagator = p
	}
}

// NewHandler creates the handler for topic.
func NewHandler(topic string, store audit.Appender, opts ...Option) *Handler {
	h := &Handler{
		topic:      topic,
		store:      store,
		logger:     slog.Default(),
		tracer:     otel.GetTracerProvider().Tracer("enrollment/audit/consumer"),
		propagator: otel.GetTextMapPropagator(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Topic returns the topic this handler is bound to.
func (h *Handler) Topic() string { return h.topic }

// Handle decodes msg and appends it to the store.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	ctx = h.propagator.Extract(ctx, propagation.MapCarrier(msg.Headers))
	ctx, span := h.tracer.Start(ctx, "audit.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.Int64("messaging.kafka.partition", int64(msg.Partition)),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		),
	)
	defer span.End()

	event, err := audit.DecodeEvent(msg.Value)
	if err != nil {
		h.metrics.incDecodeFailure(h.topic)
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		h.logger.ErrorContext(ctx, "failed to decode audit event",
			"topic", h.topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"error", err,
		)
		return fmt.Errorf("decode audit event at %s/%d/%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
	}

	record, err := h.store.Append(ctx, audit.NewRecord(event))
	if err != nil {
		h.metrics.incStoreFailure(h.topic)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist")
		h.logger.ErrorContext(ctx, "failed to store audit event",
			"topic", h.topic,
			"event_type", event.EventType,
			"entity", event.PartitionKey(),
			"error", err,
		)
		return fmt.Errorf("store audit event: %w", err)
	}

	h.metrics.incPersisted(h.topic, event.EventType)
	h.logger.InfoContext(ctx, "stored audit event",
		"topic", h.topic,
		"record_id", record.ID,
		"event_id", msg.Headers[headerEventID],
		"event_type", event.EventType,
		"user_email", event.UserEmail,
		"details", event.Details,
	)
	return nil
}
