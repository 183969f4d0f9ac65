package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zhejian/shortlink/internal/middleware"
	"github.com/zhejian/shortlink/internal/model"
	"github.com/zhejian/shortlink/internal/service"
)

// Handler holds HTTP handlers and dependencies.
// It receives interfaces rather than concrete implementations for testability.
type Handler struct {
	urlService  service.URLServiceInterface  // mapping lifecycle
	resolver    service.ResolverInterface    // public redirect path
	authService service.AuthServiceInterface // accounts and bearer tokens
	db          DBInterface                  // nil when running on the memory store
	cache       CacheInterface               // nil when caching is disabled
	baseURL     string
	logger      *slog.Logger
}

// DBInterface defines the database operations needed by the handler.
type DBInterface interface {
	Ping(ctx context.Context) error
}

// CacheInterface defines the cache operations needed by the handler.
type CacheInterface interface {
	Ping(ctx context.Context) error
}

// NewHandler creates a new handler instance. db and cache may be nil; the
// health check then reports them as disabled.
func NewHandler(
	urlService service.URLServiceInterface,
	resolver service.ResolverInterface,
	authService service.AuthServiceInterface,
	db DBInterface,
	cache CacheInterface,
	baseURL string,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		urlService:  urlService,
		resolver:    resolver,
		authService: authService,
		db:          db,
		cache:       cache,
		baseURL:     baseURL,
		logger:      logger,
	}
}

// RegisterRoutes registers all route definitions on the given Gin engine.
// The caller creates the engine and adds global middleware first.
//   - /health for monitoring
//   - /api/v1/auth for registration and login
//   - /api/v1/urls for mapping management (bearer token)
//   - /api/v1/admin for administrator exports
//   - /:code for public redirects
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.healthCheck)

	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)

		urls := v1.Group("/urls", middleware.Auth(h.authService, h.logger))
		urls.POST("", h.createURL)
		urls.GET("", h.listURLs)
		urls.PUT("/:code", h.editURL)
		urls.PATCH("/:code/status", h.changeStatus)
		urls.DELETE("/:code", h.deleteURL)

		admin := v1.Group("/admin", middleware.Auth(h.authService, h.logger), middleware.RequireAdmin())
		admin.GET("/report", h.report)
	}

	// Redirect route (public) - registered last
	r.GET("/:code", h.redirect)
}

// healthCheck handles GET /health
//   - 200 OK: all configured dependencies are healthy
//   - 503 Service Unavailable: one or more dependencies are down
func (h *Handler) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	status := "ok"
	code := http.StatusOK
	deps := gin.H{}

	check := func(name string, p interface{ Ping(context.Context) error }) {
		if p == nil {
			deps[name] = "disabled"
			return
		}
		if err := p.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "dependency unhealthy",
				slog.String("dependency", name),
				slog.String("error", err.Error()))
			status = "degraded"
			code = http.StatusServiceUnavailable
			deps[name] = "down"
			return
		}
		deps[name] = "up"
	}
	check("database", h.db)
	check("cache", h.cache)

	c.JSON(code, gin.H{"status": status, "dependencies": deps})
}

// redirect handles GET /:code
//   - 302 Found: redirects to the destination and counts the visit
//   - 404 Not Found: unknown, deleted or inactive code
func (h *Handler) redirect(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")

	destination, err := h.resolver.Resolve(ctx, code)
	if err != nil {
		if errors.Is(err, service.ErrNotFoundOrInactive) {
			h.errorResponse(c, http.StatusNotFound, "URL not found")
			return
		}
		h.logger.ErrorContext(ctx, "unexpected error during redirect",
			slog.String("error", err.Error()),
			slog.String("code", code))
		h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.Redirect(http.StatusFound, destination)
}

// errorResponse sends a standardized JSON error response.
func (h *Handler) errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, model.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

func (h *Handler) toResponse(m *model.URLMapping) model.URLResponse {
	return model.URLResponse{
		ID:          m.ID.String(),
		ShortCode:   m.ShortCode,
		ShortURL:    h.baseURL + "/" + m.ShortCode,
		Destination: m.Destination,
		OwnerID:     m.OwnerID,
		VisitCount:  m.VisitCount,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt.UTC().Format(time.RFC3339),
	}
}
