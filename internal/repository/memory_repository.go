package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zhejian/shortlink/internal/model"
)

// MemoryURLRepository is a process-local mapping store with the same
// contract as URLRepository. A single mutex serializes writers, so every
// operation observes either none or all of a concurrent mutation.
type MemoryURLRepository struct {
	mu     sync.RWMutex
	byCode map[string]*model.URLMapping
	issued map[string]struct{}
	now    func() time.Time
}

// NewMemoryURLRepository creates an empty in-memory store
func NewMemoryURLRepository() *MemoryURLRepository {
	return &MemoryURLRepository{
		byCode: make(map[string]*model.URLMapping),
		issued: make(map[string]struct{}),
		now:    time.Now,
	}
}

func (r *MemoryURLRepository) Insert(ctx context.Context, m *model.URLMapping) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.issued[m.ShortCode]; taken {
		return ErrCodeConflict
	}
	r.issued[m.ShortCode] = struct{}{}

	m.VisitCount = 0
	m.IsActive = true
	m.CreatedAt = r.now().UTC()
	stored := *m
	r.byCode[m.ShortCode] = &stored
	return nil
}

func (r *MemoryURLRepository) FindByCode(ctx context.Context, code string) (*model.URLMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	out := *m
	return &out, nil
}

func (r *MemoryURLRepository) FindByOwner(ctx context.Context, ownerID int64) ([]model.URLMapping, error) {
	return r.collect(ctx, func(m *model.URLMapping) bool { return m.OwnerID == ownerID })
}

func (r *MemoryURLRepository) FindAll(ctx context.Context) ([]model.URLMapping, error) {
	return r.collect(ctx, func(*model.URLMapping) bool { return true })
}

func (r *MemoryURLRepository) UpdateDestination(ctx context.Context, code, destination string, scope model.Scope) (*model.URLMapping, error) {
	return r.mutate(ctx, code, scope.Permits, func(m *model.URLMapping) {
		m.Destination = destination
	})
}

func (r *MemoryURLRepository) UpdateActive(ctx context.Context, code string, active bool, scope model.Scope) (*model.URLMapping, error) {
	return r.mutate(ctx, code, scope.Permits, func(m *model.URLMapping) {
		m.IsActive = active
	})
}

func (r *MemoryURLRepository) IncrementVisit(ctx context.Context, code string) (*model.URLMapping, error) {
	isActive := func(m *model.URLMapping) bool { return m.IsActive }
	return r.mutate(ctx, code, isActive, func(m *model.URLMapping) {
		m.VisitCount++
	})
}

func (r *MemoryURLRepository) Delete(ctx context.Context, code string, scope model.Scope) (*model.URLMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byCode[code]
	if !ok || !scope.Permits(m) {
		return nil, ErrNotFound
	}
	delete(r.byCode, code)
	return m, nil
}

// mutate applies fn to the mapping under the write lock when match accepts it.
func (r *MemoryURLRepository) mutate(ctx context.Context, code string, match func(*model.URLMapping) bool, fn func(*model.URLMapping)) (*model.URLMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byCode[code]
	if !ok || !match(m) {
		return nil, ErrNotFound
	}
	fn(m)
	out := *m
	return &out, nil
}

func (r *MemoryURLRepository) collect(ctx context.Context, keep func(*model.URLMapping) bool) ([]model.URLMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.URLMapping, 0, len(r.byCode))
	for _, m := range r.byCode {
		if keep(m) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ShortCode < out[j].ShortCode
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

var _ URLRepositoryInterface = (*MemoryURLRepository)(nil)
