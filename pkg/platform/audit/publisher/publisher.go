// Package publisher emits audit events to the bus after a mutation commits.
//
// Publishing is best effort. The business operation has already succeeded, so
// every failure is logged and counted and never returned. Each event is sent
// twice: once to the topic dedicated to its type and once to the aggregate
// audit topic. The two sends are independent; one failing does not stop the
// other.
package publisher

//go:generate mockgen -source=publisher.go -destination=mocks/mocks.go -package=mocks Sender

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"enrollment/internal/platform/kafka/producer"
	audit "enrollment/pkg/platform/audit"
	"enrollment/pkg/platform/circuit"
	"enrollment/pkg/requestcontext"
)

// Header names carried on every record.
const (
	HeaderEventID   = "event-id"
	HeaderEventType = "event-type"
)

const defaultSendTimeout = 5 * time.Second

// Failure reasons used in logs and metrics.
const (
	reasonUnknownTopic = "unknown_topic"
	reasonInvalidEvent = "invalid_event"
	reasonEncode       = "encode"
	reasonSend         = "send"
	reasonCircuitOpen  = "circuit_open"
)

// Sender delivers one message to the bus.
type Sender interface {
	Send(ctx context.Context, msg producer.Message) error
}

// Publisher builds audit events from the request identity and fans them out.
type Publisher struct {
	sender      Sender
	topics      audit.Topics
	logger      *slog.Logger
	metrics     *Metrics
	breaker     *circuit.Breaker
	tracer      trace.Tracer
	propagator  propagation.TextMapPropagator
	sendTimeout time.Duration
	clock       func() time.Time
}

// Option configures the Publisher.
type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithSendTimeout bounds each individual send.
func WithSendTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.sendTimeout = d
		}
	}
}

// WithCircuitBreaker skips sends while the bus keeps failing.
func WithCircuitBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Publisher) {
		p.tracer = tp.Tracer("enrollment/audit/publisher")
	}
}

func WithPropagator(prop propagation.TextMapPropagator) Option {
	return func(p *Publisher) {
		p.propagator = prop
	}
}

// WithClock overrides the time source used to stamp events.
func WithClock(clock func() time.Time) Option {
	return func(p *Publisher) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// New creates a publisher sending through sender to the named topics.
func New(sender Sender, topics audit.Topics, opts ...Option) *Publisher {
	p := &Publisher{
		sender:      sender,
		topics:      topics,
		logger:      slog.Default(),
		tracer:      otel.GetTracerProvider().Tracer("enrollment/audit/publisher"),
		propagator:  otel.GetTextMapPropagator(),
		sendTimeout: defaultSendTimeout,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish records that the caller performed action on an entity. The acting
// user comes from the request identity, or is "system" for anonymous
// requests. Publish returns once both sends finished or timed out.
func (p *Publisher) Publish(ctx context.Context, topic audit.Topic, eventType audit.EventType, action, details string, entityType audit.EntityType, entityID int64) {
	// A client hanging up must not abort the audit write.
	ctx = context.WithoutCancel(ctx)

	event := newEvent(ctx, p.clock(), eventType, action, details, entityType, entityID)

	ctx, span := p.tracer.Start(ctx, "audit.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("audit.event_type", string(eventType)),
			attribute.String("audit.entity", event.PartitionKey()),
		),
	)
	defer span.End()

	if !eventType.Valid() || !entityType.Valid() {
		p.fail(ctx, string(topic), reasonInvalidEvent, event, audit.ErrUnknownEventType)
		span.SetStatus(codes.Error, reasonInvalidEvent)
		return
	}

	payload, err := event.Encode()
	if err != nil {
		p.fail(ctx, string(topic), reasonEncode, event, err)
		span.SetStatus(codes.Error, reasonEncode)
		return
	}

	headers := map[string]string{
		HeaderEventID:   uuid.NewString(),
		HeaderEventType: string(eventType),
	}
	p.propagator.Inject(ctx, propagation.MapCarrier(headers))

	msg := producer.Message{
		Key:     []byte(event.PartitionKey()),
		Value:   payload,
		Headers: headers,
	}

	ok := 0
	if name, found := p.topics.Resolve(topic); found {
		if p.send(ctx, name, msg, event) {
			ok++
		}
	} else {
		p.fail(ctx, string(topic), reasonUnknownTopic, event, nil)
	}

	if name, found := p.topics.Resolve(audit.TopicAudit); found {
		if p.send(ctx, name, msg, event) {
			ok++
		}
	} else {
		p.fail(ctx, string(audit.TopicAudit), reasonUnknownTopic, event, nil)
	}

	if ok < 2 {
		span.SetStatus(codes.Error, "partial publish")
	}
	p.logger.InfoContext(ctx, "audit event published",
		"event_type", eventType,
		"entity", event.PartitionKey(),
		"user_email", event.UserEmail,
		"sends_ok", ok,
		"request_id", requestcontext.RequestID(ctx),
	)
}

func newEvent(ctx context.Context, at time.Time, eventType audit.EventType, action, details string, entityType audit.EntityType, entityID int64) audit.Event {
	event := audit.Event{
		EventType:  eventType,
		UserEmail:  audit.SystemActor,
		Action:     action,
		Details:    details,
		Timestamp:  at,
		Status:     audit.StatusSuccess,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if who := requestcontext.IdentityFrom(ctx); !who.IsAnonymous() {
		userID := who.UserID
		event.UserID = &userID
		event.UserEmail = who.Subject
	}
	return event
}

func (p *Publisher) send(ctx context.Context, topic string, msg producer.Message, event audit.Event) bool {
	if p.breaker != nil && !p.breaker.Allow() {
		p.metrics.incDropped()
		p.fail(ctx, topic, reasonCircuitOpen, event, nil)
		return false
	}

	msg.Topic = topic
	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()

	start := time.Now()
	err := p.sender.Send(sendCtx, msg)
	p.metrics.observeSend(topic, time.Since(start))
	if err != nil {
		p.recordBreaker(ctx, false)
		p.fail(ctx, topic, reasonSend, event, err)
		return false
	}
	p.recordBreaker(ctx, true)
	p.metrics.incPublished(topic)
	return true
}

func (p *Publisher) recordBreaker(ctx context.Context, success bool) {
	if p.breaker == nil {
		return
	}
	var change circuit.StateChange
	if success {
		_, change = p.breaker.RecordSuccess()
	} else {
		_, change = p.breaker.RecordFailure()
	}
	switch {
	case change.Opened:
		p.logger.WarnContext(ctx, "audit publish circuit opened", "breaker", p.breaker.Name())
		p.metrics.setBreakerOpen(true)
	case change.Closed:
		p.logger.InfoContext(ctx, "audit publish circuit closed", "breaker", p.breaker.Name())
		p.metrics.setBreakerOpen(false)
	}
}

func (p *Publisher) fail(ctx context.Context, topic, reason string, event audit.Event, err error) {
	p.metrics.incFailed(topic, reason)
	p.logger.ErrorContext(ctx, "failed to publish audit event",
		"topic", topic,
		"reason", reason,
		"event_type", event.EventType,
		"entity", event.PartitionKey(),
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
