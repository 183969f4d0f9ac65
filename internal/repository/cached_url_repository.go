package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/zhejian/shortlink/internal/model"
	"golang.org/x/sync/singleflight"
)

// notFoundSentinel marks a cached miss so repeated lookups of unknown codes
// do not reach the database.
const notFoundSentinel = "__NOT_FOUND__"

// maxNegativeTTL caps how long a cached miss may hide a code.
const maxNegativeTTL = 30 * time.Second

// CachedURLRepository decorates a mapping store with a Redis cache-aside
// layer for FindByCode. Every mutation goes to the store first and then
// drops the cached entry. Cached visit counts may lag the store; callers that
// need the live counter use the value returned by IncrementVisit.
//
// A lookup that overlaps a mutation never leaves its result in the cache.
// Mutations bump a write counter before invalidating, and a fill that sees
// the counter move drops what it wrote.
type CachedURLRepository struct {
	db          URLRepositoryInterface
	cache       *redis.Client
	ttl         time.Duration
	negativeTTL time.Duration
	breaker     *gobreaker.CircuitBreaker
	group       singleflight.Group
	writes      atomic.Uint64
	logger      *slog.Logger
}

// NewCachedURLRepository wraps db. A nil cache disables caching entirely.
func NewCachedURLRepository(db URLRepositoryInterface, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedURLRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedURLRepository{
		db:          db,
		cache:       cache,
		ttl:         ttl,
		negativeTTL: min(ttl, maxNegativeTTL),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "redis-url-cache",
			MaxRequests: 1,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		logger: logger,
	}
}

func cacheKey(code string) string {
	return fmt.Sprintf("url:%s", code)
}

// FindByCode with cache-aside pattern
func (r *CachedURLRepository) FindByCode(ctx context.Context, code string) (*model.URLMapping, error) {
	key := cacheKey(code)

	// 1. Try cache first (Redis errors degrade to a database read)
	if m, hit, err := r.fromCache(ctx, key); hit {
		return m, err
	}

	// 2. Query database, one query per code no matter how many callers miss.
	// The shared lookup outlives any single caller; each caller stops waiting
	// when its own context ends.
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		return r.load(shared, code)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		m := *res.Val.(*model.URLMapping)
		return &m, nil
	}
}

// load reads code from the store and fills the cache unless a mutation ran
// while the read was in flight.
func (r *CachedURLRepository) load(ctx context.Context, code string) (*model.URLMapping, error) {
	key := cacheKey(code)
	before := r.writes.Load()

	m, err := r.db.FindByCode(ctx, code)
	switch {
	case errors.Is(err, ErrNotFound):
		r.fill(ctx, key, notFoundSentinel, r.negativeTTL, before)
		return nil, err
	case err != nil:
		return nil, err
	}

	// 3. Store in cache
	if data, merr := json.Marshal(m); merr == nil {
		r.fill(ctx, key, string(data), r.ttl, before)
	}
	return m, nil
}

func (r *CachedURLRepository) fill(ctx context.Context, key, value string, ttl time.Duration, before uint64) {
	if r.writes.Load() != before {
		return
	}
	r.store(ctx, key, value, ttl)
	if r.writes.Load() != before {
		r.drop(ctx, key)
	}
}

// Insert writes through: the new mapping replaces any negative entry.
func (r *CachedURLRepository) Insert(ctx context.Context, m *model.URLMapping) error {
	if err := r.db.Insert(ctx, m); err != nil {
		return err
	}
	r.writes.Add(1)
	if data, err := json.Marshal(m); err == nil {
		r.store(ctx, cacheKey(m.ShortCode), string(data), r.ttl)
	}
	return nil
}

func (r *CachedURLRepository) FindByOwner(ctx context.Context, ownerID int64) ([]model.URLMapping, error) {
	return r.db.FindByOwner(ctx, ownerID)
}

func (r *CachedURLRepository) FindAll(ctx context.Context) ([]model.URLMapping, error) {
	return r.db.FindAll(ctx)
}

func (r *CachedURLRepository) UpdateDestination(ctx context.Context, code, destination string, scope model.Scope) (*model.URLMapping, error) {
	m, err := r.db.UpdateDestination(ctx, code, destination, scope)
	if err == nil {
		r.invalidate(ctx, code)
	}
	return m, err
}

func (r *CachedURLRepository) UpdateActive(ctx context.Context, code string, active bool, scope model.Scope) (*model.URLMapping, error) {
	m, err := r.db.UpdateActive(ctx, code, active, scope)
	if err == nil {
		r.invalidate(ctx, code)
	}
	return m, err
}

// IncrementVisit always hits the store; the active check there is authoritative.
// A refusal means any cached copy claiming the mapping is live is stale.
func (r *CachedURLRepository) IncrementVisit(ctx context.Context, code string) (*model.URLMapping, error) {
	m, err := r.db.IncrementVisit(ctx, code)
	if errors.Is(err, ErrNotFound) {
		r.invalidate(ctx, code)
	}
	return m, err
}

func (r *CachedURLRepository) Delete(ctx context.Context, code string, scope model.Scope) (*model.URLMapping, error) {
	m, err := r.db.Delete(ctx, code, scope)
	if err == nil {
		r.invalidate(ctx, code)
	}
	return m, err
}

// fromCache reports hit=false whenever the store must be consulted.
func (r *CachedURLRepository) fromCache(ctx context.Context, key string) (*model.URLMapping, bool, error) {
	if r.cache == nil {
		return nil, false, nil
	}
	v, err := r.breaker.Execute(func() (interface{}, error) {
		cached, err := r.cache.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return cached, err
	})
	if err != nil {
		r.logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false, nil
	}
	cached := v.(string)
	switch cached {
	case "":
		return nil, false, nil
	case notFoundSentinel:
		return nil, true, ErrNotFound
	}
	var m model.URLMapping
	if err := json.Unmarshal([]byte(cached), &m); err != nil {
		return nil, false, nil
	}
	return &m, true, nil
}

func (r *CachedURLRepository) store(ctx context.Context, key, value string, ttl time.Duration) {
	if r.cache == nil {
		return
	}
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.cache.Set(ctx, key, value, ttl).Err()
	})
	if err != nil {
		r.logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (r *CachedURLRepository) invalidate(ctx context.Context, code string) {
	r.writes.Add(1)
	r.drop(ctx, cacheKey(code))
}

func (r *CachedURLRepository) drop(ctx context.Context, key string) {
	if r.cache == nil {
		return
	}
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.cache.Del(ctx, key).Err()
	})
	if err != nil {
		r.logger.WarnContext(ctx, "cache invalidation failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

var _ URLRepositoryInterface = (*CachedURLRepository)(nil)
