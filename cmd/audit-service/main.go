// Package main runs the audit service: one consumer per audit topic writing
// to Postgres, plus the ADMIN-only query API and Prometheus metrics.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kadm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"

	auditquery "enrollment/internal/audit"
	jwttoken "enrollment/internal/jwt_token"
	"enrollment/internal/platform/config"
	"enrollment/internal/platform/httpserver"
	"enrollment/internal/platform/kafka"
	"enrollment/internal/platform/kafka/admin"
	"enrollment/internal/platform/kafka/consumer"
	"enrollment/internal/platform/logger"
	"enrollment/internal/platform/metrics"
	auditconsumer "enrollment/pkg/platform/audit/consumer"
	"enrollment/pkg/platform/audit/store/postgres"
	"enrollment/pkg/platform/middleware/auth"
	"enrollment/pkg/platform/middleware/metadata"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "audit-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jwtService, err := jwttoken.NewJWTService(cfg.JWT.Secret)
	if err != nil {
		return fmt.Errorf("jwt: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	store := postgres.New(db)
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.New(reg)
	loopMetrics := consumer.NewMetrics(reg)
	handlerMetrics := auditconsumer.NewMetrics(reg)

	kcfg := kafka.Config{Brokers: cfg.Kafka.Brokers, ClientID: cfg.Kafka.ClientID}
	topics := cfg.Topics.Subscriptions()

	if cfg.Kafka.ProvisionTopics {
		if err := provisionTopics(ctx, kcfg, cfg.Kafka, topics, log); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, topic := range topics {
		client, err := kafka.NewGroupClient(kcfg, cfg.Kafka.GroupID, topic)
		if err != nil {
			return err
		}
		handler := auditconsumer.NewHandler(topic, store,
			auditconsumer.WithLogger(log),
			auditconsumer.WithMetrics(handlerMetrics),
		)
		c := consumer.New(topic, client, handler,
			consumer.WithLogger(log),
			consumer.WithMetrics(loopMetrics),
			consumer.WithRetryBackoff(cfg.Kafka.RetryBackoff),
		)
		g.Go(func() error {
			defer client.Close()
			return c.Run(gctx)
		})
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(metadata.ClientMetadata)
	router.Use(auth.Authenticate(jwttoken.NewJWTServiceAdapter(jwtService), log, httpMetrics))
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	auditquery.NewHandler(auditquery.NewService(store), log, httpMetrics).Register(router)

	srv := httpserver.New(cfg.Addr, router)
	g.Go(func() error {
		log.InfoContext(gctx, "starting audit-service", "addr", cfg.Addr, "topics", topics, "group", cfg.Kafka.GroupID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("audit-service stopped")
	return err
}

func provisionTopics(ctx context.Context, kcfg kafka.Config, k config.Kafka, topics []string, log *slog.Logger) error {
	cl, err := kafka.NewProducerClient(kcfg)
	if err != nil {
		return err
	}
	defer cl.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return admin.EnsureTopics(ctx, kadm.NewClient(cl), log, k.Partitions, k.ReplicationFactor, topics...)
}
