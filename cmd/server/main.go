/*
main.go - Application entry point

STARTUP SEQUENCE:
  1. Load config (flags, POINT_* env, optional point.yaml)
  2. Build the zap logger
  3. Open the configured store (memory, sqlite or redis)
  4. Wire service, metrics and router
  5. Serve until SIGINT/SIGTERM, then shut down gracefully

EXAMPLES:
  # In-memory store with 200ms of jitter per call
  ./server -latency=200ms

  # SQLite file
  ./server -store=sqlite -db=./data/points.db

  # Redis
  POINT_STORE_DRIVER=redis POINT_STORE_REDIS_ADDR=localhost:6379 ./server
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/point-engine/api"
	"github.com/warp/point-engine/config"
	"github.com/warp/point-engine/logger"
	"github.com/warp/point-engine/metrics"
	"github.com/warp/point-engine/point"
	"github.com/warp/point-engine/point/store"
	"github.com/warp/point-engine/store/redis"
	"github.com/warp/point-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var svc *point.Service
	collector := metrics.New(reg, func() int { return svc.LockCount() })
	svc = point.NewService(st,
		point.WithLogger(log.Named("point")),
		point.WithObserver(collector),
	)

	handler := api.NewHandler(svc, log.Named("api"))
	router := api.NewRouter(handler, api.RouterOptions{Logger: log.Named("http"), Metrics: collector})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", zap.String("addr", server.Addr), zap.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (point.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		return s, func() { s.Close() }, nil
	case config.DriverRedis:
		rdb, err := redis.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return redis.New(rdb, redis.DefaultPrefix), func() { rdb.Close() }, nil
	default:
		return store.NewMemory(store.WithLatency(cfg.StoreLatency)), func() {}, nil
	}
}
