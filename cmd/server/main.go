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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mi-ganesh/Document-Editor/internal/api"
	"github.com/mi-ganesh/Document-Editor/internal/config"
	"github.com/mi-ganesh/Document-Editor/internal/fanout"
	"github.com/mi-ganesh/Document-Editor/internal/jobs"
	"github.com/mi-ganesh/Document-Editor/internal/relay"
	"github.com/mi-ganesh/Document-Editor/internal/routers"
	"github.com/mi-ganesh/Document-Editor/internal/session"
	"github.com/mi-ganesh/Document-Editor/internal/store"
	"github.com/mi-ganesh/Document-Editor/internal/store/gormstore"
	mongostore "github.com/mi-ganesh/Document-Editor/internal/store/mongo"
	"github.com/mi-ganesh/Document-Editor/internal/utils"
)

var (
	listenAndServe = func(s *http.Server) error { return s.ListenAndServe() }
	exitFunc       = defaultExit
	openStore      = openDocumentStore
	shutdownWait   = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		exitFunc(err)
	}
}

func defaultExit(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect document store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
		return err
	}
	logger.Info("document store connected", zap.String("driver", cfg.StoreDriver))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		if err := st.Close(ctx); err != nil {
			logger.Warn("document store close failed", zap.Error(err))
		}
	}()

	hub := session.NewHub()
	opts := relay.Options{
		PersistSync:  cfg.PersistMode == config.PersistSync,
		StoreTimeout: cfg.StoreTimeout,
	}

	var bus *fanout.RedisBus
	if cfg.RedisAddr != "" {
		bus = fanout.NewRedisBus(cfg.RedisAddr, cfg.RedisChannel, logger)
		defer bus.Close()
		if err := bus.Ping(ctx); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		opts.Publisher = bus
	}

	rl := relay.New(logger, st, hub, opts)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		if err := rl.Close(ctx); err != nil {
			logger.Warn("pending document writes not flushed", zap.Error(err))
		}
	}()

	subCtx, cancelSub := context.WithCancel(ctx)
	defer cancelSub()
	if bus != nil {
		go bus.Subscribe(subCtx, rl.DeliverRemote)
	}

	reporter := jobs.NewStatsReporter(hub, rl, logger, cfg.StatsSchedule)
	if err := reporter.Start(); err != nil {
		return err
	}
	defer reporter.Stop()

	h := api.NewHandlers(logger, rl, st, api.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		StoreTimeout:   cfg.StoreTimeout,
		PingInterval:   cfg.PingInterval,
		PongWait:       cfg.PongWait,
		WriteTimeout:   cfg.WriteTimeout,
	})

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)
	r.Mount("/", routers.New(h, cfg.AllowedOrigins))

	// no WriteTimeout: websocket connections are long-lived
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("code editor server starting", zap.String("addr", server.Addr))
		if err := listenAndServe(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	cancelSub()

	// deferred cleanup flushes the relay, then closes the bus and the store
	logger.Info("server exited")
	return runErr
}

func openDocumentStore(ctx context.Context, cfg *config.Config) (store.DocumentStore, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres, config.DriverSQLite:
		return gormstore.Open(cfg.StoreDriver, cfg.DatabaseURL)
	default:
		client, err := mongostore.NewClient(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		repo, err := mongostore.NewDocumentRepo(ctx, client, cfg.MongoDBName, cfg.MongoCollection)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return repo, nil
	}
}
