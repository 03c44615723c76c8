package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"enrollment/internal/platform/kafka/consumer"
	"enrollment/internal/platform/kafka/producer"
)

// ErrNoHandler is returned for messages on a topic nobody registered for.
var ErrNoHandler = errors.New("no handler for topic")

// Router dispatches messages to topic-specific handlers.
//
// It also works as an in-process bus: Send hands a produced message straight
// to the handler registered for its topic. Wiring a publisher to a Router
// runs the whole audit pipeline without a broker.
type Router struct {
	mu       sync.Mutex
	handlers map[string]consumer.Handler
	offsets  map[string]int64
	logger   *slog.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		handlers: make(map[string]consumer.Handler),
		offsets:  make(map[string]int64),
		logger:   logger,
	}
}

// Register adds a handler for a specific topic.
func (r *Router) Register(topic string, handler consumer.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[topic] = handler
}

// Handle routes the message to the appropriate topic handler.
func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	r.mu.Lock()
	handler, ok := r.handlers[msg.Topic]
	r.mu.Unlock()
	if !ok {
		r.logger.WarnContext(ctx, "no handler for topic, message not acknowledged",
			"topic", msg.Topic,
			"key", string(msg.Key),
		)
		return fmt.Errorf("%w %s", ErrNoHandler, msg.Topic)
	}
	return handler.Handle(ctx, msg)
}

// Send delivers msg synchronously. The handler's error is returned to the
// sender.
func (r *Router) Send(ctx context.Context, msg producer.Message) error {
	r.mu.Lock()
	offset := r.offsets[msg.Topic]
	r.offsets[msg.Topic] = offset + 1
	r.mu.Unlock()

	return r.Handle(ctx, &consumer.Message{
		Topic:     msg.Topic,
		Offset:    offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   msg.Headers,
		Timestamp: time.Now(),
	})
}
