package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"orderbridge/internal/api"
	"orderbridge/internal/carrier"
	"orderbridge/internal/config"
	"orderbridge/internal/fulfillment"
	"orderbridge/internal/ingest"
	"orderbridge/internal/metrics"
	"orderbridge/internal/outbound"
	"orderbridge/internal/source"
	"orderbridge/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)
	metrics.RegisterDefault()
	if len(cfg.WebhookKey()) == 0 {
		log.Warn("WEBHOOK_SECRET is not set; every order webhook will be rejected with 401")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var broker api.EventBroker = api.NewBroker()
	if cfg.RedisURL != "" {
		if rb, err := api.NewRedisBroker(ctx, cfg.RedisURL, log); err == nil {
			broker = rb
		} else {
			log.Warn("redis broker unavailable, using in-memory broker", "err", err)
		}
	}
	defer func() { _ = broker.Close() }()

	methods, err := ingest.NewMethodTable(cfg.Shipping.MethodTitles)
	if err != nil {
		return err
	}
	ob := outbound.Options{Timeout: cfg.Outbound.Timeout, RPS: cfg.Outbound.RPS, Burst: cfg.Outbound.Burst, Logger: log}
	src := source.New(cfg.Source, ob)
	car := carrier.New(cfg.Carrier, ob)

	srv := api.NewServer(cfg, api.Deps{
		Store:   st,
		Ingest:  &ingest.Ingestor{Catalog: src, Store: st, Methods: methods, Log: log},
		Carrier: car,
		Fulfill: &fulfillment.Notifier{
			Source:          src,
			Store:           st,
			TrackingCompany: cfg.Carrier.TrackingCompany,
			NotifyCustomer:  cfg.Source.NotifyCustomer,
			Log:             log,
		},
		Broker: broker,
		Log:    log,
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("API listening", "addr", httpSrv.Addr, "store", fmt.Sprintf("%T", st))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, func(), error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Warn("DATABASE_URL not set, orders are kept in memory only", "capacity", cfg.MemoryCapacity)
		return store.NewMemory(cfg.MemoryCapacity), func() {}, nil
	}
	pg, err := store.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	if cfg.DBMigrate {
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return pg, func() { _ = pg.Close() }, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
