package goals

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the goal or contribution does not exist.
var ErrNotFound = errors.New("goals: not found")

// Repository defines persistence for goals and contributions.
type Repository interface {
	Create(ctx context.Context, goal Goal) (int64, error)
	Update(ctx context.Context, goal Goal) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	Get(ctx context.Context, id int64) (*Goal, error)
	List(ctx context.Context, status Status) ([]Goal, error)
	Delete(ctx context.Context, id int64) error

	AddContribution(ctx context.Context, c Contribution) (int64, error)
	ListContributions(ctx context.Context, goalID int64) ([]Contribution, error)
	GetContribution(ctx context.Context, id int64) (*Contribution, error)
	DeleteContribution(ctx context.Context, id int64) error

	SavedValue(ctx context.Context, goalID int64) (decimal.Decimal, error)
	SavedValues(ctx context.Context) (map[int64]decimal.Decimal, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts a goal, defaulting its status to active.
func (r *PGRepository) Create(ctx context.Context, goal Goal) (int64, error) {
	if goal.Status == "" {
		goal.Status = StatusActive
	}
	query := `
		INSERT INTO goals (name, target_value, target_date, status, notes)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		goal.Name, goal.TargetValue, goal.TargetDate, goal.Status, goal.Notes,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update persists a goal's fields including status.
func (r *PGRepository) Update(ctx context.Context, goal Goal) error {
	query := `
		UPDATE goals
		SET name = $2, target_value = $3, target_date = $4, status = $5, notes = $6
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		goal.ID, goal.Name, goal.TargetValue, goal.TargetDate, goal.Status, goal.Notes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus changes only the lifecycle state.
func (r *PGRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE goals SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get fetches one goal.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Goal, error) {
	query := `SELECT id, name, target_value, target_date, status, COALESCE(notes, '') FROM goals WHERE id = $1`
	return scanGoal(r.pool.QueryRow(ctx, query, id))
}

// List returns goals, optionally filtered by status, soonest target first.
func (r *PGRepository) List(ctx context.Context, status Status) ([]Goal, error) {
	query := `SELECT id, name, target_value, target_date, status, COALESCE(notes, '') FROM goals`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY target_date ASC NULLS LAST, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// Delete removes a goal and, through the cascade, its contributions.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	var deleted int64
	if err := r.pool.QueryRow(ctx, `DELETE FROM goals WHERE id = $1 RETURNING id`, id).Scan(&deleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// AddContribution records a deposit.
func (r *PGRepository) AddContribution(ctx context.Context, c Contribution) (int64, error) {
	query := `
		INSERT INTO goal_contributions (goal_id, value, contribution_date)
		VALUES ($1,$2,$3)
		RETURNING id`

	var id int64
	if err := r.pool.QueryRow(ctx, query, c.GoalID, c.Value, c.Date).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// ListContributions returns a goal's deposits, newest first.
func (r *PGRepository) ListContributions(ctx context.Context, goalID int64) ([]Contribution, error) {
	query := `
		SELECT id, goal_id, value, contribution_date
		FROM goal_contributions
		WHERE goal_id = $1
		ORDER BY contribution_date DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contribution
	for rows.Next() {
		var c Contribution
		if err := rows.Scan(&c.ID, &c.GoalID, &c.Value, &c.Date); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetContribution fetches one deposit.
func (r *PGRepository) GetContribution(ctx context.Context, id int64) (*Contribution, error) {
	var c Contribution
	err := r.pool.QueryRow(ctx,
		`SELECT id, goal_id, value, contribution_date FROM goal_contributions WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.GoalID, &c.Value, &c.Date)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// DeleteContribution removes one deposit.
func (r *PGRepository) DeleteContribution(ctx context.Context, id int64) error {
	var deleted int64
	if err := r.pool.QueryRow(ctx, `DELETE FROM goal_contributions WHERE id = $1 RETURNING id`, id).Scan(&deleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// SavedValue sums a goal's deposits.
func (r *PGRepository) SavedValue(ctx context.Context, goalID int64) (decimal.Decimal, error) {
	var saved decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(value), 0) FROM goal_contributions WHERE goal_id = $1`,
		goalID,
	).Scan(&saved)
	if err != nil {
		return decimal.Zero, err
	}
	return saved, nil
}

// SavedValues sums deposits for every goal in one pass.
func (r *PGRepository) SavedValues(ctx context.Context) (map[int64]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT goal_id, COALESCE(SUM(value), 0) FROM goal_contributions GROUP BY goal_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var goalID int64
		var saved decimal.Decimal
		if err := rows.Scan(&goalID, &saved); err != nil {
			return nil, err
		}
		out[goalID] = saved
	}
	return out, rows.Err()
}

var _ Repository = (*PGRepository)(nil)

func scanGoal(row pgx.Row) (*Goal, error) {
	var g Goal
	var targetDate pgtype.Date
	err := row.Scan(&g.ID, &g.Name, &g.TargetValue, &targetDate, &g.Status, &g.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if targetDate.Valid {
		d := targetDate.Time
		g.TargetDate = &d
	}
	return &g, nil
}
