package service

import (
	"context"
	"errors"

	"github.com/zhejian/shortlink/internal/repository"
)

// ResolverInterface resolves short codes for the public redirect path
type ResolverInterface interface {
	Resolve(ctx context.Context, code string) (string, error)
}

// Resolver turns a short code into its destination and records the visit.
// It needs no actor.
type Resolver struct {
	repo    repository.URLRepositoryInterface
	metrics *Metrics
}

// NewResolver creates a resolver over repo. A nil metrics records nothing.
func NewResolver(repo repository.URLRepositoryInterface, metrics *Metrics) *Resolver {
	if metrics == nil {
		metrics = noopMetrics()
	}
	return &Resolver{repo: repo, metrics: metrics}
}

// Resolve returns the destination of an active mapping and counts one visit.
// Unknown, deleted and inactive codes all yield ErrNotFoundOrInactive.
//
// The lookup gates the increment, and the increment re-checks the active
// flag in the store. If the mapping disappears or is deactivated between the
// two steps the visit is dropped and the redirect is refused.
func (r *Resolver) Resolve(ctx context.Context, code string) (string, error) {
	if code == "" {
		r.metrics.redirect(ctx, "unavailable")
		return "", ErrNotFoundOrInactive
	}

	m, err := r.repo.FindByCode(ctx, code)
	if err != nil {
		return "", r.unavailable(ctx, err)
	}
	if !m.IsActive {
		r.metrics.redirect(ctx, "unavailable")
		return "", ErrNotFoundOrInactive
	}

	visited, err := r.repo.IncrementVisit(ctx, code)
	if err != nil {
		return "", r.unavailable(ctx, err)
	}
	r.metrics.redirect(ctx, "resolved")
	return visited.Destination, nil
}

func (r *Resolver) unavailable(ctx context.Context, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		r.metrics.redirect(ctx, "unavailable")
		return ErrNotFoundOrInactive
	}
	r.metrics.redirect(ctx, "error")
	return err
}

var _ ResolverInterface = (*Resolver)(nil)
