package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhejian/shortlink/internal/model"
	"golang.org/x/sync/errgroup"
)

// storeFixture is a freshly emptied mapping store plus a way to obtain
// owner ids that satisfy its foreign keys.
type storeFixture struct {
	repo     URLRepositoryInterface
	newOwner func(t *testing.T) int64
}

func newMapping(code string, owner int64) *model.URLMapping {
	return &model.URLMapping{
		ID:          uuid.New(),
		ShortCode:   code,
		Destination: "https://example.com/" + code,
		OwnerID:     owner,
		IsActive:    true,
	}
}

// runStoreContract checks the behaviour every mapping store must share.
func runStoreContract(t *testing.T, setup func(t *testing.T) storeFixture) {
	ctx := context.Background()

	t.Run("insert then find", func(t *testing.T) {
		fx := setup(t)
		owner := fx.newOwner(t)

		m := newMapping("aaaa0001", owner)
		require.NoError(t, fx.repo.Insert(ctx, m))
		assert.False(t, m.CreatedAt.IsZero())
		assert.Zero(t, m.VisitCount)
		assert.True(t, m.IsActive)

		got, err := fx.repo.FindByCode(ctx, "aaaa0001")
		require.NoError(t, err)
		assert.Equal(t, m.ID, got.ID)
		assert.Equal(t, "https://example.com/aaaa0001", got.Destination)
		assert.Equal(t, owner, got.OwnerID)
		assert.True(t, got.IsActive)
	})

	t.Run("find unknown code", func(t *testing.T) {
		fx := setup(t)

		_, err := fx.repo.FindByCode(ctx, "nothere1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate code conflicts", func(t *testing.T) {
		fx := setup(t)
		owner := fx.newOwner(t)

		require.NoError(t, fx.repo.Insert(ctx, newMapping("aaaa0002", owner)))
		err := fx.repo.Insert(ctx, newMapping("aaaa0002", owner))
		assert.ErrorIs(t, err, ErrCodeConflict)
	})

	t.Run("deleted code is never reissued", func(t *testing.T) {
		fx := setup(t)
		owner := fx.newOwner(t)

		require.NoError(t, fx.repo.Insert(ctx, newMapping("aaaa0003", owner)))
		_, err := fx.repo.Delete(ctx, "aaaa0003", model.Scope{OwnerID: owner})
		require.NoError(t, err)

		err = fx.repo.Insert(ctx, newMapping("aaaa0003", owner))
		assert.ErrorIs(t, err, ErrCodeConflict)
	})

	t.Run("owner scope excludes other owners", func(t *testing.T) {
		fx := setup(t)
		owner := fx.newOwner(t)
		other := fx.newOwner(t)
		require.NoError(t, fx.repo.Insert(ctx, newMapping("aaaa0004", owner)))

		_, err := fx.repo.UpdateDestination(ctx, "aaaa0004", "https://evil.example", model.Scope{OwnerID: other})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = fx.repo.UpdateActive(ctx, "aaaa0004", false, model.Scope{OwnerID: other})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = fx.repo.Delete(ctx, "aaaa0004", model.Scope{OwnerID: other})
		assert.ErrorIs(t, err, ErrNotFound)

		got, err := fx.repo.FindByCode(ctx, "aaaa0004")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/aaaa0004", got.Destination)
		assert.True(t, got.IsActive)
	})

	t.Run("any owner scope reaches every mapping", func(t *testing.T) {
		fx := setup(t)
		owner := fx.newOwner(t)
		require.NoError(t, fx.repo.Insert(ctx, newMapping("aaaa0005", owner)))

		m, err := fx.repo.UpdateDestination(ctx, "aaaa0005", "https://new.example", model.Scope{AnyOwner: true})
		require.NoError(t, err)
		assert.Equal(t, "https://new.example", m.Destination)
		assert.Equal(t, owner, m.OwnerID)

		got, err := fx.repo.FindByCode(ctx, "aaaa0005")
		require.NoError(t, err)
		assert.Equal(t, "https://new.example", got.Destination)
	})

	t.Run("increment skips inactive mappings", func(t *testing.T) {
		fx := setup(t)
		owner := fx.newOwner(t)
		scope := model.Scope{OwnerID: owner}
		require.NoError(t, fx.repo.Insert(ctx, newMapping("aaaa0006", owner)))

		m, err := fx.repo.IncrementVisit(ctx, "aaaa0006")
		require.NoError(t, err)
		assert.Equal(t, int64(1), m.VisitCount)

		_, err = fx.repo.UpdateActive(ctx, "aaaa0006", false, scope)
		require.NoError(t, err)
		_, err = fx.repo.IncrementVisit(ctx, "aaaa0006")
		assert.ErrorIs(t, err, ErrNotFound)

		m, err = fx.repo.UpdateActive(ctx, "aaaa0006", true, scope)
		require.NoError(t, err)
		assert.Equal(t, int64(1), m.VisitCount, "status change must not touch the counter")
		assert.Equal(t, "https://example.com/aaaa0006", m.Destination)
	})

	t.Run("increment unknown code", func(t *testing.T) {
		fx := setup(t)

		_, err := fx.repo.IncrementVisit(ctx, "nothere2")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		fx := setup(t)
		owner := fx.newOwner(t)
		require.NoError(t, fx.repo.Insert(ctx, newMapping("aaaa0007", owner)))

		const n = 50
		var g errgroup.Group
		for i := 0; i < n; i++ {
			g.Go(func() error {
				_, err := fx.repo.IncrementVisit(ctx, "aaaa0007")
				return err
			})
		}
		require.NoError(t, g.Wait())

		all, err := fx.repo.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, int64(n), all[0].VisitCount)
	})

	t.Run("delete returns last state", func(t *testing.T) {
		fx := setup(t)
		owner := fx.newOwner(t)
		require.NoError(t, fx.repo.Insert(ctx, newMapping("aaaa0008", owner)))
		_, err := fx.repo.IncrementVisit(ctx, "aaaa0008")
		require.NoError(t, err)

		m, err := fx.repo.Delete(ctx, "aaaa0008", model.Scope{OwnerID: owner})
		require.NoError(t, err)
		assert.Equal(t, "aaaa0008", m.ShortCode)
		assert.Equal(t, int64(1), m.VisitCount)

		_, err = fx.repo.FindByCode(ctx, "aaaa0008")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = fx.repo.Delete(ctx, "aaaa0008", model.Scope{OwnerID: owner})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list by owner and all", func(t *testing.T) {
		fx := setup(t)
		alice := fx.newOwner(t)
		bob := fx.newOwner(t)
		require.NoError(t, fx.repo.Insert(ctx, newMapping("aaaa0009", alice)))
		require.NoError(t, fx.repo.Insert(ctx, newMapping("aaaa0010", bob)))
		require.NoError(t, fx.repo.Insert(ctx, newMapping("aaaa0011", alice)))

		mine, err := fx.repo.FindByOwner(ctx, alice)
		require.NoError(t, err)
		require.Len(t, mine, 2)
		for _, m := range mine {
			assert.Equal(t, alice, m.OwnerID)
		}

		all, err := fx.repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		none, err := fx.repo.FindByOwner(ctx, alice+bob+1000)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
