package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/zhejian/shortlink/internal/api"
	"github.com/zhejian/shortlink/internal/config"
	"github.com/zhejian/shortlink/internal/middleware"
	"github.com/zhejian/shortlink/internal/observability"
	"github.com/zhejian/shortlink/internal/repository"
	"github.com/zhejian/shortlink/internal/service"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// redisPinger adapts *redis.Client to api.CacheInterface.
type redisPinger struct{ client *redis.Client }

func (r *redisPinger) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// NewRouter initializes all dependencies and returns a configured Gin router.
// db is required for postgres storage and ignored for memory storage. cache
// and publisher are optional. A configured admin account is seeded before
// the router is returned.
func NewRouter(ctx context.Context, cfg *config.Config, db *pgxpool.Pool, cache *redis.Client, obs *observability.Observability, publisher service.EventPublisher) (*gin.Engine, error) {
	var (
		urlRepo  repository.URLRepositoryInterface
		userRepo repository.UserRepositoryInterface
		dbPinger api.DBInterface
		rdPinger api.CacheInterface
	)

	switch cfg.App.Storage {
	case config.StorageMemory:
		urlRepo = repository.NewMemoryURLRepository()
		userRepo = repository.NewMemoryUserRepository()
	default:
		if db == nil {
			return nil, errors.New("server: postgres storage requires a database pool")
		}
		urlRepo = repository.NewURLRepository(db)
		userRepo = repository.NewUserRepository(db)
		dbPinger = db
		if cache != nil {
			urlRepo = repository.NewCachedURLRepository(urlRepo, cache, cfg.Cache.TTL, obs.Logger)
			rdPinger = &redisPinger{client: cache}
		}
	}

	metrics, err := service.NewMetrics(obs.Meter("github.com/zhejian/shortlink/internal/service"))
	if err != nil {
		return nil, err
	}

	urlService := service.NewURLService(urlRepo, service.NewShortCodeGenerator(cfg.App.ShortCodeLen), cfg.App.ShortCodeRetries,
		service.WithPublisher(publisher),
		service.WithMetrics(metrics),
		service.WithLogger(obs.Logger),
	)
	resolver := service.NewResolver(urlRepo, metrics)
	authService := service.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if admin := cfg.Auth.Admin; admin.Enabled() {
		u, err := authService.EnsureAdmin(ctx, admin.Username, admin.Email, admin.Password)
		if err != nil {
			return nil, fmt.Errorf("seed admin account: %w", err)
		}
		obs.Logger.InfoContext(ctx, "admin account ready", slog.Int64("user_id", u.ID), slog.String("email", u.Email))
	}

	handler := api.NewHandler(urlService, resolver, authService, dbPinger, rdPinger, cfg.App.BaseURL, obs.Logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.Observability.ServiceName))
	r.Use(middleware.Logging(obs.Logger, "/health", "/metrics"))
	if obs.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(obs.MetricsHandler))
	}
	handler.RegisterRoutes(r)

	return r, nil
}

// NewServer returns the router wrapped in an HTTP server with the configured timeouts.
func NewServer(ctx context.Context, cfg *config.Config, db *pgxpool.Pool, cache *redis.Client, obs *observability.Observability, publisher service.EventPublisher) (*http.Server, error) {
	router, err := NewRouter(ctx, cfg, db, cache, obs, publisher)
	if err != nil {
		return nil, err
	}

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, nil
}
