// Package main publishes a single audit event through the regular publisher,
// the same way a business service does after a mutation commits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"enrollment/internal/platform/config"
	"enrollment/internal/platform/kafka"
	"enrollment/internal/platform/kafka/producer"
	"enrollment/internal/platform/logger"
	audit "enrollment/pkg/platform/audit"
	"enrollment/pkg/platform/audit/publisher"
	"enrollment/pkg/platform/circuit"
	"enrollment/pkg/requestcontext"
)

type options struct {
	eventType   string
	entityID    int64
	name        string
	facultyName string
	actor       string
	actorID     int64
	actorRole   string
}

func main() {
	var opts options
	flag.StringVar(&opts.eventType, "event", string(audit.EventFacultyCreated), "event type, e.g. FACULTY_CREATED")
	flag.Int64Var(&opts.entityID, "id", 1, "entity id")
	flag.StringVar(&opts.name, "name", "", "entity name (faculty, career or user email)")
	flag.StringVar(&opts.facultyName, "faculty", "", "faculty name for career events")
	flag.StringVar(&opts.actor, "as", "", "acting user email (empty publishes as system)")
	flag.Int64Var(&opts.actorID, "as-id", 0, "acting user id")
	flag.StringVar(&opts.actorRole, "as-role", "ADMIN", "acting user role")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "emit-event: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	eventType, err := audit.ParseEventType(strings.ToUpper(opts.eventType))
	if err != nil {
		return err
	}

	cfg, err := config.LoadPublisher()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	client, err := kafka.NewProducerClient(kafka.Config{Brokers: cfg.Kafka.Brokers, ClientID: "emit-event"})
	if err != nil {
		return err
	}
	defer client.Close()

	pub := publisher.New(producer.New(client), cfg.Topics,
		publisher.WithLogger(log),
		publisher.WithSendTimeout(cfg.Kafka.SendTimeout),
		publisher.WithCircuitBreaker(circuit.New("audit-bus")),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.actor != "" {
		ctx = requestcontext.WithIdentity(ctx, requestcontext.Identity{Subject: opts.actor, Role: opts.actorRole, UserID: opts.actorID})
	}

	switch eventType {
	case audit.EventUserRegistered:
		pub.UserRegistered(ctx, opts.entityID, opts.name)
	case audit.EventFacultyCreated:
		pub.FacultyCreated(ctx, opts.entityID, opts.name)
	case audit.EventFacultyUpdated:
		pub.FacultyUpdated(ctx, opts.entityID, opts.name)
	case audit.EventFacultyDeleted:
		pub.FacultyDeleted(ctx, opts.entityID, opts.name)
	case audit.EventCareerCreated:
		pub.CareerCreated(ctx, opts.entityID, opts.name, opts.facultyName)
	case audit.EventCareerUpdated:
		pub.CareerUpdated(ctx, opts.entityID, opts.name, opts.facultyName)
	case audit.EventCareerDeleted:
		pub.CareerDeleted(ctx, opts.entityID, opts.name)
	}
	return nil
}
