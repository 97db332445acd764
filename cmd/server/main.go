package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Secured-Finance/contracts-sub003/api/httpserver"
	"github.com/Secured-Finance/contracts-sub003/config"
	"github.com/Secured-Finance/contracts-sub003/infra/kafka"
	"github.com/Secured-Finance/contracts-sub003/infra/metrics"
	"github.com/Secured-Finance/contracts-sub003/infra/outbox"
	"github.com/Secured-Finance/contracts-sub003/infra/wal"
	"github.com/Secured-Finance/contracts-sub003/jobs/broadcaster"
	"github.com/Secured-Finance/contracts-sub003/jobs/depth"
	"github.com/Secured-Finance/contracts-sub003/service"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to TOML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// ---------------- Durability ----------------

	w, err := wal.Open(wal.Config{
		Dir:             cfg.WAL.Dir,
		SegmentSize:     cfg.WAL.SegmentSize,
		SegmentDuration: cfg.WAL.SegmentDuration.Duration,
	})
	if err != nil {
		logger.Error("wal open failed", "err", err)
		os.Exit(1)
	}
	defer w.Close()

	ob, err := outbox.Open(cfg.Outbox.Dir)
	if err != nil {
		logger.Error("outbox open failed", "err", err)
		os.Exit(1)
	}
	defer ob.Close()

	// ---------------- Service + recovery ----------------

	stats := metrics.New("lending")

	svc := service.NewMarketService(
		service.Config{
			Currency:            cfg.Engine.Currency,
			CircuitBreakerRange: cfg.Engine.CircuitBreakerRange,
		},
		w, ob, stats, logger,
		nil, // settlement consumer is wired by the embedding host
	)

	if err := svc.Recover(cfg.WAL.Dir, cfg.Snapshot.Dir); err != nil {
		logger.Error("recovery failed", "err", err)
		os.Exit(1)
	}

	// ---------------- Background jobs ----------------

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.StartSnapshotJob(ctx, cfg.Snapshot.Dir, cfg.Snapshot.Interval.Duration)

	if cfg.Kafka.Enabled {
		bc, err := broadcaster.New(ob, cfg.Kafka.Brokers, cfg.Kafka.FillTopic, stats, logger)
		if err != nil {
			logger.Error("broadcaster init failed", "err", err)
			os.Exit(1)
		}
		defer bc.Close()
		bc.Start(ctx)

		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.DepthTopic)
		defer producer.Close()
		depth.NewPublisher(svc, producer, cfg.Kafka.DepthInterval.Duration, stats, logger).Start(ctx)
	}

	// ---------------- HTTP ----------------

	srv := httpserver.NewServer(
		httpserver.Config{Addr: cfg.Server.Addr},
		httpserver.NewHandler(svc, logger),
		stats.Handler(),
		logger,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("http server failed", "err", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "err", err)
	}
	_ = w.Sync()
}
