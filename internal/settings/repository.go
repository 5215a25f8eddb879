package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates the record does not exist.
	ErrNotFound = errors.New("settings: not found")
	// ErrDuplicate indicates another session type already uses the name or
	// abbreviation.
	ErrDuplicate = errors.New("settings: duplicate session type")
	// ErrTypeInUse indicates sessions still reference the session type.
	ErrTypeInUse = errors.New("settings: session type in use")
)

// Repository defines persistence for configuration values and session types.
type Repository interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error

	CreateType(ctx context.Context, t SessionType) (int64, error)
	UpdateType(ctx context.Context, t SessionType) error
	GetType(ctx context.Context, id int64) (*SessionType, error)
	ListTypes(ctx context.Context) ([]SessionType, error)
	DeleteType(ctx context.Context, id int64) error
	TypeInUse(ctx context.Context, id int64) (bool, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetValue reads one configuration value.
func (r *PGRepository) GetValue(ctx context.Context, key string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM configurations WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// SetValue upserts one configuration value.
func (r *PGRepository) SetValue(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO configurations (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	return err
}

// CreateType inserts a session type. Unique indexes on name and abbreviation
// surface as ErrDuplicate.
func (r *PGRepository) CreateType(ctx context.Context, t SessionType) (int64, error) {
	query := `
		INSERT INTO session_types (name, abbreviation, selection_deadline_days, editing_deadline_days)
		VALUES ($1,$2,$3,$4)
		RETURNING id`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		t.Name, t.Abbreviation, t.SelectionDeadlineDays, t.EditingDeadlineDays,
	).Scan(&id)
	if err != nil {
		return 0, mapUniqueViolation(err)
	}
	return id, nil
}

// UpdateType persists a session type's fields.
func (r *PGRepository) UpdateType(ctx context.Context, t SessionType) error {
	query := `
		UPDATE session_types
		SET name = $2, abbreviation = $3, selection_deadline_days = $4, editing_deadline_days = $5
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		t.ID, t.Name, t.Abbreviation, t.SelectionDeadlineDays, t.EditingDeadlineDays,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetType fetches one session type.
func (r *PGRepository) GetType(ctx context.Context, id int64) (*SessionType, error) {
	var t SessionType
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, abbreviation, selection_deadline_days, editing_deadline_days FROM session_types WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Name, &t.Abbreviation, &t.SelectionDeadlineDays, &t.EditingDeadlineDays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListTypes returns every session type ordered by name.
func (r *PGRepository) ListTypes(ctx context.Context) ([]SessionType, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, abbreviation, selection_deadline_days, editing_deadline_days FROM session_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionType
	for rows.Next() {
		var t SessionType
		if err := rows.Scan(&t.ID, &t.Name, &t.Abbreviation, &t.SelectionDeadlineDays, &t.EditingDeadlineDays); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteType removes a session type.
func (r *PGRepository) DeleteType(ctx context.Context, id int64) error {
	var deleted int64
	if err := r.pool.QueryRow(ctx, `DELETE FROM session_types WHERE id = $1 RETURNING id`, id).Scan(&deleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// TypeInUse reports whether any session references the type.
func (r *PGRepository) TypeInUse(ctx context.Context, id int64) (bool, error) {
	var inUse bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE session_type_id = $1)`, id).Scan(&inUse)
	if err != nil {
		return false, err
	}
	return inUse, nil
}

var _ Repository = (*PGRepository)(nil)

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
