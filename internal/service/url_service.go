package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zhejian/shortlink/internal/model"
	"github.com/zhejian/shortlink/internal/repository"
)

// EventPublisher receives lifecycle events after a mutation commits.
type EventPublisher interface {
	Publish(ctx context.Context, event model.MappingEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, model.MappingEvent) error { return nil }

// URLServiceInterface defines the mapping lifecycle operations
type URLServiceInterface interface {
	Create(ctx context.Context, actor model.Actor, destination string) (*model.URLMapping, error)
	Edit(ctx context.Context, actor model.Actor, code, destination string) (*model.URLMapping, error)
	ChangeStatus(ctx context.Context, actor model.Actor, code string, active bool) (*model.URLMapping, error)
	Delete(ctx context.Context, actor model.Actor, code string) (*model.URLMapping, error)
	ListForOwner(ctx context.Context, actor model.Actor) ([]model.URLMapping, error)
	Report(ctx context.Context, actor model.Actor) ([]model.URLMapping, error)
}

// URLService manages the lifecycle of URL mappings
type URLService struct {
	repo       repository.URLRepositoryInterface
	gen        CodeGenerator
	maxRetries int
	publisher  EventPublisher
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures optional URLService collaborators.
type Option func(*URLService)

func WithPublisher(p EventPublisher) Option {
	return func(s *URLService) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *URLService) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *URLService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewURLService creates a new URL service. maxRetries bounds the number of
// codes drawn per create; values below 1 are treated as 1.
func NewURLService(repo repository.URLRepositoryInterface, gen CodeGenerator, maxRetries int, opts ...Option) *URLService {
	if maxRetries < 1 {
		maxRetries = 1
	}
	s := &URLService{
		repo:       repo,
		gen:        gen,
		maxRetries: maxRetries,
		publisher:  nopPublisher{},
		metrics:    noopMetrics(),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create allocates a short code and stores a new active mapping owned by actor.
// A code the store reports as already issued is discarded and another one is
// drawn, at most maxRetries times.
func (s *URLService) Create(ctx context.Context, actor model.Actor, destination string) (*model.URLMapping, error) {
	destination, err := requireDestination(destination)
	if err != nil {
		return nil, err
	}
	if Authorize(actor, nil, ActionCreate) != Allow {
		return nil, ErrNotFoundOrUnauthorized
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		code, err := s.gen.Generate()
		if err != nil {
			return nil, err
		}
		m := &model.URLMapping{
			ID:          uuid.New(),
			ShortCode:   code,
			Destination: destination,
			OwnerID:     actor.ID,
			IsActive:    true,
		}
		err = s.repo.Insert(ctx, m)
		if err == nil {
			s.metrics.mappingCreated(ctx)
			s.publish(ctx, model.EventMappingCreated, m, actor)
			return m, nil
		}
		if !errors.Is(err, repository.ErrCodeConflict) {
			return nil, err
		}
		s.metrics.codeCollision(ctx)
		s.logger.DebugContext(ctx, "short code collision",
			slog.String("code", code),
			slog.Int("attempt", attempt+1))
	}

	s.logger.ErrorContext(ctx, "short code space exhausted",
		slog.Int("attempts", s.maxRetries),
		slog.Int64("actor_id", actor.ID))
	return nil, ErrGenerationExhausted
}

// Edit replaces the destination of a mapping the actor owns, or any mapping for an admin.
func (s *URLService) Edit(ctx context.Context, actor model.Actor, code, destination string) (*model.URLMapping, error) {
	destination, err := requireDestination(destination)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, fmt.Errorf("%w: short code is required", ErrInvalidInput)
	}
	scope, ok := ScopeFor(actor, ActionEdit)
	if !ok {
		return nil, ErrNotFoundOrUnauthorized
	}

	m, err := s.repo.UpdateDestination(ctx, code, destination, scope)
	if err != nil {
		return nil, notFoundOrUnauthorized(err)
	}
	s.publish(ctx, model.EventMappingUpdated, m, actor)
	return m, nil
}

// ChangeStatus toggles whether the mapping is served by redirects. Destination
// and visit count are left untouched.
func (s *URLService) ChangeStatus(ctx context.Context, actor model.Actor, code string, active bool) (*model.URLMapping, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: short code is required", ErrInvalidInput)
	}
	scope, ok := ScopeFor(actor, ActionChangeStatus)
	if !ok {
		return nil, ErrNotFoundOrUnauthorized
	}

	m, err := s.repo.UpdateActive(ctx, code, active, scope)
	if err != nil {
		return nil, notFoundOrUnauthorized(err)
	}
	s.publish(ctx, model.EventMappingStatusChanged, m, actor)
	return m, nil
}

// Delete permanently removes a mapping and returns its last state.
func (s *URLService) Delete(ctx context.Context, actor model.Actor, code string) (*model.URLMapping, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: short code is required", ErrInvalidInput)
	}
	scope, ok := ScopeFor(actor, ActionDelete)
	if !ok {
		return nil, ErrNotFoundOrUnauthorized
	}

	m, err := s.repo.Delete(ctx, code, scope)
	if err != nil {
		return nil, notFoundOrUnauthorized(err)
	}
	s.publish(ctx, model.EventMappingDeleted, m, actor)
	return m, nil
}

// ListForOwner returns the actor's own mappings. Admins get only theirs too.
func (s *URLService) ListForOwner(ctx context.Context, actor model.Actor) ([]model.URLMapping, error) {
	return s.repo.FindByOwner(ctx, actor.ID)
}

// Report returns every mapping. Admin only.
func (s *URLService) Report(ctx context.Context, actor model.Actor) ([]model.URLMapping, error) {
	if Authorize(actor, nil, ActionReport) != Allow {
		return nil, ErrNotFoundOrUnauthorized
	}
	return s.repo.FindAll(ctx)
}

func (s *URLService) publish(ctx context.Context, typ model.EventType, m *model.URLMapping, actor model.Actor) {
	event := model.MappingEvent{
		ID:         uuid.New(),
		Type:       typ,
		ShortCode:  m.ShortCode,
		OwnerID:    m.OwnerID,
		ActorID:    actor.ID,
		IsActive:   m.IsActive,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish mapping event",
			slog.String("type", string(typ)),
			slog.String("code", m.ShortCode),
			slog.String("error", err.Error()))
	}
}

func requireDestination(destination string) (string, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	return destination, nil
}

// notFoundOrUnauthorized collapses a scoped miss into the uniform error and
// passes store failures through unchanged.
func notFoundOrUnauthorized(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFoundOrUnauthorized
	}
	return err
}

// Ensure URLService implements URLServiceInterface at compile time
var _ URLServiceInterface = (*URLService)(nil)
