package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/zhejian/shortlink/internal/config"
	"github.com/zhejian/shortlink/internal/events"
	"github.com/zhejian/shortlink/internal/infra"
	"github.com/zhejian/shortlink/internal/observability"
	"github.com/zhejian/shortlink/internal/server"
	"github.com/zhejian/shortlink/internal/service"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Cancelled on Ctrl+C or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := observability.Setup(ctx, observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		Environment:      cfg.App.Environment,
		LogLevel:         cfg.Observability.LogLevel,
		OTLPEndpoint:     cfg.Observability.OTLPEndpoint,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		obs.Shutdown(shutdownCtx)
	}()
	logger := obs.Logger

	var db *pgxpool.Pool
	if cfg.App.Storage == config.StoragePostgres {
		connString := cfg.Database.ConnectionString()
		if cfg.Database.RunMigrations {
			if err := infra.RunMigrations(connString); err != nil {
				return err
			}
			logger.Info("database migrations applied")
		}

		db, err = infra.NewPostgresPool(ctx, connString)
		if err != nil {
			return err
		}
		defer db.Close()
		logger.Info("database connected")
	} else {
		logger.Warn("using in-memory storage, data is lost on restart")
	}

	var cache *redis.Client
	if cfg.Cache.Enabled() && db != nil {
		cache, err = infra.NewCacheClient(ctx, cfg.Cache.ConnectionString())
		if err != nil {
			return err
		}
		defer cache.Close()
		logger.Info("cache connected", slog.Duration("ttl", cfg.Cache.TTL))
	}

	var publisher interface {
		service.EventPublisher
		Close() error
	} = events.NopPublisher{}
	if cfg.Broker.URL != "" {
		conn, ch, err := infra.NewBrokerChannel(cfg.Broker.URL)
		if err != nil {
			return err
		}
		defer conn.Close()

		publisher, err = events.NewAMQPPublisher(ch, cfg.Broker.Exchange, logger)
		if err != nil {
			return err
		}
		logger.Info("event broker connected", slog.String("exchange", cfg.Broker.Exchange))
	}
	defer publisher.Close()

	srv, err := server.NewServer(ctx, cfg, db, cache, obs, publisher)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("base_url", cfg.App.BaseURL),
			slog.String("storage", cfg.App.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited gracefully")
	return nil
}
