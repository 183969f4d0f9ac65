package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zhejian/shortlink/internal/model"
	"github.com/zhejian/shortlink/internal/repository"
)

// seqGenerator hands out codes in order and repeats the last one.
type seqGenerator struct {
	codes []string
	calls int
}

func (g *seqGenerator) Generate() (string, error) {
	i := g.calls
	if i >= len(g.codes) {
		i = len(g.codes) - 1
	}
	g.calls++
	return g.codes[i], nil
}

// MockPublisher is a mock implementation of EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event model.MappingEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// brokenRepo fails every write with err.
type brokenRepo struct {
	repository.URLRepositoryInterface
	err error
}

func (r *brokenRepo) Insert(context.Context, *model.URLMapping) error { return r.err }

func (r *brokenRepo) UpdateDestination(context.Context, string, string, model.Scope) (*model.URLMapping, error) {
	return nil, r.err
}

var (
	alice = model.Actor{ID: 1}
	bob   = model.Actor{ID: 2}
	root  = model.Actor{ID: 99, IsAdmin: true}
)

func newTestService(t *testing.T) (*URLService, *repository.MemoryURLRepository) {
	t.Helper()
	repo := repository.NewMemoryURLRepository()
	return NewURLService(repo, NewShortCodeGenerator(MinShortCodeLength), 5), repo
}

func TestURLService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an active mapping owned by the actor", func(t *testing.T) {
		svc, _ := newTestService(t)

		m, err := svc.Create(ctx, alice, "  https://example.com/very/long/url  ")
		require.NoError(t, err)
		assert.Len(t, m.ShortCode, MinShortCodeLength)
		assert.Equal(t, "https://example.com/very/long/url", m.Destination)
		assert.Equal(t, alice.ID, m.OwnerID)
		assert.Zero(t, m.VisitCount)
		assert.True(t, m.IsActive)
		assert.False(t, m.CreatedAt.IsZero())
	})

	t.Run("empty destination is invalid input", func(t *testing.T) {
		svc, repo := newTestService(t)

		for _, dest := range []string{"", "   "} {
			_, err := svc.Create(ctx, alice, dest)
			assert.ErrorIs(t, err, ErrInvalidInput)
		}
		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("retries past an issued code", func(t *testing.T) {
		repo := repository.NewMemoryURLRepository()
		gen := &seqGenerator{codes: []string{"00000001", "00000001", "00000002"}}
		svc := NewURLService(repo, gen, 5)

		first, err := svc.Create(ctx, alice, "https://a.example")
		require.NoError(t, err)
		second, err := svc.Create(ctx, alice, "https://b.example")
		require.NoError(t, err)

		assert.Equal(t, "00000001", first.ShortCode)
		assert.Equal(t, "00000002", second.ShortCode)
		assert.Equal(t, 3, gen.calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		repo := repository.NewMemoryURLRepository()
		gen := &seqGenerator{codes: []string{"00000001"}}
		svc := NewURLService(repo, gen, 3)

		_, err := svc.Create(ctx, alice, "https://a.example")
		require.NoError(t, err)

		_, err = svc.Create(ctx, alice, "https://b.example")
		assert.ErrorIs(t, err, ErrGenerationExhausted)
		assert.Equal(t, 1+3, gen.calls)
	})

	t.Run("code of a deleted mapping is not reused", func(t *testing.T) {
		repo := repository.NewMemoryURLRepository()
		gen := &seqGenerator{codes: []string{"00000001", "00000001", "00000002"}}
		svc := NewURLService(repo, gen, 5)

		m, err := svc.Create(ctx, alice, "https://a.example")
		require.NoError(t, err)
		_, err = svc.Delete(ctx, alice, m.ShortCode)
		require.NoError(t, err)

		again, err := svc.Create(ctx, alice, "https://b.example")
		require.NoError(t, err)
		assert.Equal(t, "00000002", again.ShortCode)
	})

	t.Run("store failure is not masked", func(t *testing.T) {
		boom := errors.New("connection refused")
		svc := NewURLService(&brokenRepo{err: boom}, NewShortCodeGenerator(8), 5)

		_, err := svc.Create(ctx, alice, "https://a.example")
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrInvalidInput)
		assert.NotErrorIs(t, err, ErrGenerationExhausted)
	})
}

func TestURLService_Ownership(t *testing.T) {
	ctx := context.Background()

	t.Run("non-owner mutations fail uniformly and change nothing", func(t *testing.T) {
		svc, repo := newTestService(t)
		m, err := svc.Create(ctx, alice, "https://alice.example")
		require.NoError(t, err)

		_, err = svc.Edit(ctx, bob, m.ShortCode, "https://bob.example")
		assert.ErrorIs(t, err, ErrNotFoundOrUnauthorized)
		_, err = svc.ChangeStatus(ctx, bob, m.ShortCode, false)
		assert.ErrorIs(t, err, ErrNotFoundOrUnauthorized)
		_, err = svc.Delete(ctx, bob, m.ShortCode)
		assert.ErrorIs(t, err, ErrNotFoundOrUnauthorized)

		stored, err := repo.FindByCode(ctx, m.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, "https://alice.example", stored.Destination)
		assert.True(t, stored.IsActive)
	})

	t.Run("unknown code gives the same error", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.Edit(ctx, alice, "deadbeef", "https://x.example")
		assert.ErrorIs(t, err, ErrNotFoundOrUnauthorized)
		_, err = svc.Delete(ctx, root, "deadbeef")
		assert.ErrorIs(t, err, ErrNotFoundOrUnauthorized)
	})

	t.Run("admin may mutate any mapping", func(t *testing.T) {
		svc, _ := newTestService(t)
		m, err := svc.Create(ctx, alice, "https://alice.example")
		require.NoError(t, err)

		edited, err := svc.Edit(ctx, root, m.ShortCode, "https://root.example")
		require.NoError(t, err)
		assert.Equal(t, "https://root.example", edited.Destination)
		assert.Equal(t, alice.ID, edited.OwnerID)

		off, err := svc.ChangeStatus(ctx, root, m.ShortCode, false)
		require.NoError(t, err)
		assert.False(t, off.IsActive)

		deleted, err := svc.Delete(ctx, root, m.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, m.ShortCode, deleted.ShortCode)
	})

	t.Run("edit validates before touching the store", func(t *testing.T) {
		svc, _ := newTestService(t)
		m, err := svc.Create(ctx, alice, "https://alice.example")
		require.NoError(t, err)

		_, err = svc.Edit(ctx, bob, m.ShortCode, " ")
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = svc.Edit(ctx, alice, "", "https://x.example")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("store failure on edit is not masked", func(t *testing.T) {
		boom := errors.New("connection reset")
		svc := NewURLService(&brokenRepo{err: boom}, NewShortCodeGenerator(8), 5)

		_, err := svc.Edit(ctx, alice, "abcd1234", "https://x.example")
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrNotFoundOrUnauthorized)
	})
}

func TestURLService_ChangeStatus(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	m, err := svc.Create(ctx, alice, "https://alice.example")
	require.NoError(t, err)
	_, err = repo.IncrementVisit(ctx, m.ShortCode)
	require.NoError(t, err)

	off, err := svc.ChangeStatus(ctx, alice, m.ShortCode, false)
	require.NoError(t, err)
	assert.False(t, off.IsActive)
	assert.Equal(t, int64(1), off.VisitCount)

	// Setting the current value again is allowed and idempotent.
	off, err = svc.ChangeStatus(ctx, alice, m.ShortCode, false)
	require.NoError(t, err)
	assert.False(t, off.IsActive)

	on, err := svc.ChangeStatus(ctx, alice, m.ShortCode, true)
	require.NoError(t, err)
	assert.True(t, on.IsActive)
	assert.Equal(t, int64(1), on.VisitCount)
	assert.Equal(t, "https://alice.example", on.Destination)
}

func TestURLService_ListAndReport(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for _, actor := range []model.Actor{alice, bob, alice, root} {
		_, err := svc.Create(ctx, actor, "https://example.com")
		require.NoError(t, err)
	}

	mine, err := svc.ListForOwner(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	// Admins list only their own mappings too.
	rootOwn, err := svc.ListForOwner(ctx, root)
	require.NoError(t, err)
	assert.Len(t, rootOwn, 1)

	_, err = svc.Report(ctx, alice)
	assert.ErrorIs(t, err, ErrNotFoundOrUnauthorized)

	all, err := svc.Report(ctx, root)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestURLService_Events(t *testing.T) {
	ctx := context.Background()

	t.Run("each mutation publishes one event", func(t *testing.T) {
		pub := new(MockPublisher)
		pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
		svc := NewURLService(repository.NewMemoryURLRepository(), NewShortCodeGenerator(8), 5, WithPublisher(pub))

		m, err := svc.Create(ctx, alice, "https://a.example")
		require.NoError(t, err)
		_, err = svc.Edit(ctx, alice, m.ShortCode, "https://b.example")
		require.NoError(t, err)
		_, err = svc.ChangeStatus(ctx, root, m.ShortCode, false)
		require.NoError(t, err)
		_, err = svc.Delete(ctx, alice, m.ShortCode)
		require.NoError(t, err)

		require.Len(t, pub.Calls, 4)
		var types []model.EventType
		for _, call := range pub.Calls {
			ev := call.Arguments.Get(1).(model.MappingEvent)
			assert.Equal(t, m.ShortCode, ev.ShortCode)
			assert.Equal(t, alice.ID, ev.OwnerID)
			types = append(types, ev.Type)
		}
		assert.Equal(t, []model.EventType{
			model.EventMappingCreated,
			model.EventMappingUpdated,
			model.EventMappingStatusChanged,
			model.EventMappingDeleted,
		}, types)
		assert.Equal(t, root.ID, pub.Calls[2].Arguments.Get(1).(model.MappingEvent).ActorID)
	})

	t.Run("publish failure does not fail the operation", func(t *testing.T) {
		pub := new(MockPublisher)
		pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))
		svc := NewURLService(repository.NewMemoryURLRepository(), NewShortCodeGenerator(8), 5, WithPublisher(pub))

		m, err := svc.Create(ctx, alice, "https://a.example")
		require.NoError(t, err)
		assert.True(t, m.IsActive)
		pub.AssertNumberOfCalls(t, "Publish", 1)
	})

	t.Run("rejected mutation publishes nothing", func(t *testing.T) {
		pub := new(MockPublisher)
		pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
		svc := NewURLService(repository.NewMemoryURLRepository(), NewShortCodeGenerator(8), 5, WithPublisher(pub))

		m, err := svc.Create(ctx, alice, "https://a.example")
		require.NoError(t, err)
		_, err = svc.Delete(ctx, bob, m.ShortCode)
		require.Error(t, err)

		pub.AssertNumberOfCalls(t, "Publish", 1)
	})
}
