package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zhejian/shortlink/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const mappingColumns = `id, short_code, destination, user_id, visit_count, is_active, created_at`

// URLRepository handles database operations for URL mappings
type URLRepository struct {
	db *pgxpool.Pool
}

// NewURLRepository creates a new URL repository
func NewURLRepository(db *pgxpool.Pool) *URLRepository {
	return &URLRepository{db: db}
}

func startSpan(ctx context.Context, name, operation, code string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", "urls"),
	}
	if code != "" {
		attrs = append(attrs, attribute.String("short_code", code))
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func scanMapping(row pgx.Row) (*model.URLMapping, error) {
	var m model.URLMapping
	if err := row.Scan(
		&m.ID,
		&m.ShortCode,
		&m.Destination,
		&m.OwnerID,
		&m.VisitCount,
		&m.IsActive,
		&m.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func collectMappings(rows pgx.Rows) ([]model.URLMapping, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.URLMapping, error) {
		m, err := scanMapping(row)
		if err != nil {
			return model.URLMapping{}, err
		}
		return *m, nil
	})
}

// Insert reserves the short code and stores the mapping in one transaction.
// The short_codes table keeps every code ever issued, so a code freed by a
// delete still collides and is never handed out again.
func (r *URLRepository) Insert(ctx context.Context, m *model.URLMapping) error {
	ctx, span := startSpan(ctx, "db.insert", "INSERT", m.ShortCode)
	defer span.End()

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO short_codes (short_code) VALUES ($1)`, m.ShortCode); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			INSERT INTO urls (id, short_code, destination, user_id, visit_count, is_active)
			VALUES ($1, $2, $3, $4, 0, true)
			RETURNING visit_count, is_active, created_at`,
			m.ID, m.ShortCode, m.Destination, m.OwnerID,
		).Scan(&m.VisitCount, &m.IsActive, &m.CreatedAt)
	})
	if err != nil {
		span.RecordError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrCodeConflict
		}
		return fmt.Errorf("insert url: %w", err)
	}
	return nil
}

// FindByCode retrieves a mapping by its short code
func (r *URLRepository) FindByCode(ctx context.Context, code string) (*model.URLMapping, error) {
	ctx, span := startSpan(ctx, "db.select", "SELECT", code)
	defer span.End()

	m, err := scanMapping(r.db.QueryRow(ctx,
		`SELECT `+mappingColumns+` FROM urls WHERE short_code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("select url: %w", err)
	}
	return m, nil
}

// FindByOwner lists the mappings created by ownerID, oldest first
func (r *URLRepository) FindByOwner(ctx context.Context, ownerID int64) ([]model.URLMapping, error) {
	ctx, span := startSpan(ctx, "db.select", "SELECT", "")
	defer span.End()
	span.SetAttributes(attribute.Int64("owner_id", ownerID))

	rows, err := r.db.Query(ctx,
		`SELECT `+mappingColumns+` FROM urls WHERE user_id = $1 ORDER BY created_at, id`, ownerID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("select urls by owner: %w", err)
	}
	mappings, err := collectMappings(rows)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("scan urls by owner: %w", err)
	}
	return mappings, nil
}

// FindAll lists every mapping, oldest first
func (r *URLRepository) FindAll(ctx context.Context) ([]model.URLMapping, error) {
	ctx, span := startSpan(ctx, "db.select", "SELECT", "")
	defer span.End()

	rows, err := r.db.Query(ctx, `SELECT `+mappingColumns+` FROM urls ORDER BY created_at, id`)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("select urls: %w", err)
	}
	mappings, err := collectMappings(rows)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("scan urls: %w", err)
	}
	return mappings, nil
}

// UpdateDestination rewrites the destination of a mapping inside scope
func (r *URLRepository) UpdateDestination(ctx context.Context, code, destination string, scope model.Scope) (*model.URLMapping, error) {
	ctx, span := startSpan(ctx, "db.update", "UPDATE", code)
	defer span.End()

	return r.scopedRow(ctx, span, "update url destination", `
		UPDATE urls SET destination = $1
		WHERE short_code = $2 AND ($3::boolean OR user_id = $4)
		RETURNING `+mappingColumns,
		destination, code, scope.AnyOwner, scope.OwnerID)
}

// UpdateActive sets the active flag of a mapping inside scope
func (r *URLRepository) UpdateActive(ctx context.Context, code string, active bool, scope model.Scope) (*model.URLMapping, error) {
	ctx, span := startSpan(ctx, "db.update", "UPDATE", code)
	defer span.End()

	return r.scopedRow(ctx, span, "update url status", `
		UPDATE urls SET is_active = $1
		WHERE short_code = $2 AND ($3::boolean OR user_id = $4)
		RETURNING `+mappingColumns,
		active, code, scope.AnyOwner, scope.OwnerID)
}

// IncrementVisit bumps the visit counter of an active mapping
func (r *URLRepository) IncrementVisit(ctx context.Context, code string) (*model.URLMapping, error) {
	ctx, span := startSpan(ctx, "db.update", "UPDATE", code)
	defer span.End()

	return r.scopedRow(ctx, span, "increment visit", `
		UPDATE urls SET visit_count = visit_count + 1
		WHERE short_code = $1 AND is_active
		RETURNING `+mappingColumns,
		code)
}

// Delete removes a mapping inside scope. The code stays reserved.
func (r *URLRepository) Delete(ctx context.Context, code string, scope model.Scope) (*model.URLMapping, error) {
	ctx, span := startSpan(ctx, "db.delete", "DELETE", code)
	defer span.End()

	return r.scopedRow(ctx, span, "delete url", `
		DELETE FROM urls
		WHERE short_code = $1 AND ($2::boolean OR user_id = $3)
		RETURNING `+mappingColumns,
		code, scope.AnyOwner, scope.OwnerID)
}

// scopedRow runs a single-row RETURNING statement. No row means the code is
// absent or filtered out by the predicate; both map to ErrNotFound.
func (r *URLRepository) scopedRow(ctx context.Context, span trace.Span, op, query string, args ...any) (*model.URLMapping, error) {
	m, err := scanMapping(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

var _ URLRepositoryInterface = (*URLRepository)(nil)
