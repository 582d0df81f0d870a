package main

import (
	"context"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/verone/fulfillment/internal/config"
	"github.com/verone/fulfillment/internal/fulfillment/application"
	fulfillmenthttp "github.com/verone/fulfillment/internal/fulfillment/infrastructure/http"
	fulfillmentkafka "github.com/verone/fulfillment/internal/fulfillment/infrastructure/kafka"
	fulfillmentpg "github.com/verone/fulfillment/internal/fulfillment/infrastructure/postgres"
	"github.com/verone/fulfillment/pkg/idempotency"
	"github.com/verone/fulfillment/pkg/logging"
	"github.com/verone/fulfillment/pkg/outbox"
	"github.com/verone/fulfillment/pkg/shutdown"
	"github.com/verone/fulfillment/pkg/tracing"
)

func main() {
	log := logging.New("fulfillment-service")

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	cfg := config.Load()

	tp, err := tracing.Init(ctx, "fulfillment-service", cfg.OTLPEndpoint)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := fulfillmentpg.Migrate(ctx, pool); err != nil {
		log.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	guard := idempotency.NewStore(rdb, cfg.IdempotencyTTL)

	store := fulfillmentpg.NewStore(log, pool)
	svc := application.NewService(log, store, guard)
	handler := fulfillmenthttp.NewHandler(log, svc)

	writer := fulfillmentkafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()

	outboxStore := fulfillmentpg.NewOutboxStore(log, pool)
	dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
	relay := outbox.NewRelay(log, outboxStore, dispatch, "fulfillment-relay")

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler.Routes(),
	}

	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("fulfillment-service shutdown complete")
}
