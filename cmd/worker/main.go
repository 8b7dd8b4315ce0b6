// Package main is the entry point for the PharmaDesk background worker.
// It relays outbox events, prunes idempotency keys and reconciles stock.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pharmadesk/internal/config"
	"pharmadesk/internal/domain/registers/stock"
	"pharmadesk/internal/infrastructure/messaging"
	"pharmadesk/internal/infrastructure/storage/postgres"
	"pharmadesk/internal/infrastructure/storage/postgres/catalog_repo"
	"pharmadesk/internal/infrastructure/storage/postgres/register_repo"
	"pharmadesk/pkg/logger"
)

const maintenanceInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting pharmadesk worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	var handler postgres.OutboxHandler = logHandler{log: log.WithComponent("outbox")}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		handler = publisher
		log.Infow("publishing outbox events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	} else {
		log.Warn("KAFKA_BROKERS not set, outbox events are only logged")
	}

	txManager := postgres.NewTxManager(pool)
	worker := &Worker{
		relay:       postgres.NewOutboxRelay(pool, cfg.Outbox.BatchSize, handler),
		idempotency: postgres.NewIdempotencyStore(txManager, 24*time.Hour),
		stock: stock.NewService(stock.ServiceConfig{
			Repo:      register_repo.NewMovementRepo(txManager),
			Products:  catalog_repo.NewProductRepo(txManager),
			TxManager: txManager,
			Location:  cfg.Sales.Location,
		}),
		pollInterval: cfg.Outbox.PollInterval,
		log:          log.WithComponent("worker"),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs the outbox relay and periodic maintenance.
type Worker struct {
	relay        *postgres.OutboxRelay
	idempotency  *postgres.IdempotencyStore
	stock        *stock.Service
	pollInterval time.Duration
	log          *logger.Logger
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.relay.Run(ctx, w.pollInterval); err != nil && ctx.Err() == nil {
			w.log.Errorw("outbox relay stopped", "error", err)
		}
	}()

	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	w.maintain(ctx)
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-ticker.C:
			w.maintain(ctx)
		}
	}
}

func (w *Worker) maintain(ctx context.Context) {
	if n, err := w.idempotency.CleanupExpired(ctx); err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}

	drifts, err := w.stock.Reconcile(ctx)
	if err != nil {
		w.log.Errorw("stock reconciliation failed", "error", err)
		return
	}
	for _, d := range drifts {
		w.log.Warnw("cached stock drift corrected",
			"product_id", d.ProductID, "code", d.Code, "cached", d.Cached, "actual", d.Actual)
	}
}

// logHandler stands in for a broker in environments without Kafka.
type logHandler struct {
	log *logger.Logger
}

func (h logHandler) Handle(_ context.Context, msg *postgres.OutboxMessage) error {
	h.log.Infow("outbox event",
		"event_id", msg.ID,
		"event_type", msg.EventType,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
	)
	return nil
}
