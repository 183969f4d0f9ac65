package repository

import (
	"context"
	"errors"

	"github.com/zhejian/shortlink/internal/model"
	"go.opentelemetry.io/otel"
)

var (
	ErrNotFound     = errors.New("url not found")
	ErrCodeConflict = errors.New("short code already exists")
	ErrUserExists   = errors.New("username or email already registered")
	ErrUserNotFound = errors.New("user not found")
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

var tracer = otel.Tracer("github.com/zhejian/shortlink/internal/repository")

// URLRepositoryInterface is the mapping store contract. Keyed mutations take
// the ownership scope derived from the authorization policy and report
// ErrNotFound both when the code is absent and when the scope excludes it.
type URLRepositoryInterface interface {
	// Insert persists m. It fails with ErrCodeConflict if the code was ever issued before.
	Insert(ctx context.Context, m *model.URLMapping) error
	FindByCode(ctx context.Context, code string) (*model.URLMapping, error)
	FindByOwner(ctx context.Context, ownerID int64) ([]model.URLMapping, error)
	FindAll(ctx context.Context) ([]model.URLMapping, error)
	UpdateDestination(ctx context.Context, code, destination string, scope model.Scope) (*model.URLMapping, error)
	UpdateActive(ctx context.Context, code string, active bool, scope model.Scope) (*model.URLMapping, error)
	// IncrementVisit adds one visit to an active mapping in a single atomic step.
	// Inactive and missing mappings yield ErrNotFound and are left untouched.
	IncrementVisit(ctx context.Context, code string) (*model.URLMapping, error)
	Delete(ctx context.Context, code string, scope model.Scope) (*model.URLMapping, error)
}

// UserRepositoryInterface is the account store used by authentication.
type UserRepositoryInterface interface {
	Create(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
	// Promote sets the admin flag on an existing account.
	Promote(ctx context.Context, id int64) error
}
