package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the transaction does not exist.
var ErrNotFound = errors.New("finance: not found")

// ListFilter narrows the ledger listing. Month/Year drive the month-by-month
// navigation; setting StartDate or EndDate switches to explicit range mode.
type ListFilter struct {
	Year      int
	Month     time.Month
	Search    string
	Type      Type
	StartDate *time.Time
	EndDate   *time.Time
	ClientID  int64
}

// UsesMonthNav reports whether the listing shows the month pager instead of
// an explicit date range.
func (f ListFilter) UsesMonthNav() bool {
	return f.StartDate == nil && f.EndDate == nil
}

// Repository defines persistence for ledger transactions.
type Repository interface {
	Create(ctx context.Context, tx Transaction) (int64, error)
	CreateBatch(ctx context.Context, txs []Transaction) error
	Get(ctx context.Context, id int64) (*Transaction, error)
	List(ctx context.Context, filter ListFilter) ([]Transaction, error)
	Summarize(ctx context.Context, filter ListFilter) (Summary, error)
	Update(ctx context.Context, tx Transaction) error
	UpdateSeries(ctx context.Context, recurrenceID string, excludeID int64, fromDate *time.Time, description string, value Transaction) error
	ToggleStatus(ctx context.Context, id int64) (Status, error)
	Delete(ctx context.Context, id int64) error
	DeleteSeries(ctx context.Context, recurrenceID string, fromDate *time.Time) (int64, error)
}

const transactionColumns = `
	t.id, t.description, t.transaction_type, t.value, t.transaction_date,
	COALESCE(t.tags, ''), t.status, COALESCE(t.category, ''), t.session_id,
	t.recurrence_id, t.recurrence_installment, t.created_at, t.updated_at`

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts one transaction and returns its id.
func (r *PGRepository) Create(ctx context.Context, tx Transaction) (int64, error) {
	return insertTransaction(ctx, r.pool, tx)
}

// CreateBatch inserts a recurrence series atomically.
func (r *PGRepository) CreateBatch(ctx context.Context, txs []Transaction) error {
	dbTx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("finance: begin tx: %w", err)
	}
	defer func() {
		_ = dbTx.Rollback(ctx)
	}()

	for _, t := range txs {
		if _, err := insertTransaction(ctx, dbTx, t); err != nil {
			return err
		}
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("finance: commit tx: %w", err)
	}
	return nil
}

// Get fetches one transaction.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Transaction, error) {
	query := `SELECT` + transactionColumns + ` FROM transactions t WHERE t.id = $1`
	t, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// List returns transactions matching the filter, newest first.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	query, args := buildFilterQuery(`SELECT`+transactionColumns, filter)
	query += ` ORDER BY t.transaction_date DESC, t.id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Summarize totals realized entries and exits under the same filter the
// listing uses.
func (r *PGRepository) Summarize(ctx context.Context, filter ListFilter) (Summary, error) {
	query, args := buildFilterQuery(`
		SELECT
			COALESCE(SUM(t.value) FILTER (WHERE t.transaction_type = 'entry' AND t.status = 'realized'), 0),
			COALESCE(SUM(t.value) FILTER (WHERE t.transaction_type = 'exit' AND t.status = 'realized'), 0)`,
		filter)

	var s Summary
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&s.TotalEntries, &s.TotalExits); err != nil {
		return Summary{}, err
	}
	s.Balance = s.TotalEntries.Sub(s.TotalExits)
	return s, nil
}

// Update persists the editable fields of a transaction. Type and category are
// written as given; callers enforce the session-linked protections.
func (r *PGRepository) Update(ctx context.Context, tx Transaction) error {
	query := `
		UPDATE transactions
		SET description = $2, transaction_type = $3, value = $4,
		    transaction_date = $5, tags = $6, category = NULLIF($7, ''),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id`

	var id int64
	if err := r.pool.QueryRow(ctx, query,
		tx.ID, tx.Description, tx.Type, tx.Value, tx.Date, tx.Tags, string(tx.Category),
	).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// UpdateSeries propagates description, value and tags to the other members of
// a recurrence group, re-appending each member's installment label. A nil
// fromDate means the whole series.
func (r *PGRepository) UpdateSeries(ctx context.Context, recurrenceID string, excludeID int64, fromDate *time.Time, description string, value Transaction) error {
	query := `
		UPDATE transactions
		SET description = $3 || COALESCE(' ' || recurrence_installment, ''),
		    value = $4, tags = $5, updated_at = NOW()
		WHERE recurrence_id = $1 AND id <> $2`
	args := []any{recurrenceID, excludeID, description, value.Value, value.Tags}
	if fromDate != nil {
		query += ` AND transaction_date >= $6`
		args = append(args, *fromDate)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return err
	}
	return nil
}

// ToggleStatus flips realized <-> projected and returns the new status.
func (r *PGRepository) ToggleStatus(ctx context.Context, id int64) (Status, error) {
	query := `
		UPDATE transactions
		SET status = CASE WHEN status = 'projected' THEN 'realized' ELSE 'projected' END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING status`

	var status Status
	if err := r.pool.QueryRow(ctx, query, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return status, nil
}

// Delete removes one transaction.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	var deleted int64
	if err := r.pool.QueryRow(ctx, `DELETE FROM transactions WHERE id = $1 RETURNING id`, id).Scan(&deleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// DeleteSeries removes members of a recurrence group, optionally only from a
// date onward, and reports how many rows went.
func (r *PGRepository) DeleteSeries(ctx context.Context, recurrenceID string, fromDate *time.Time) (int64, error) {
	query := `DELETE FROM transactions WHERE recurrence_id = $1`
	args := []any{recurrenceID}
	if fromDate != nil {
		query += ` AND transaction_date >= $2`
		args = append(args, *fromDate)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)

func buildFilterQuery(selectClause string, filter ListFilter) (string, []any) {
	query := selectClause + ` FROM transactions t`
	if filter.ClientID > 0 {
		query += ` LEFT JOIN sessions s ON s.id = t.session_id`
	}
	query += ` WHERE 1=1`

	args := []any{}
	idx := 1

	if filter.UsesMonthNav() && filter.Year > 0 {
		query += fmt.Sprintf(" AND EXTRACT(YEAR FROM t.transaction_date) = $%d AND EXTRACT(MONTH FROM t.transaction_date) = $%d", idx, idx+1)
		args = append(args, filter.Year, int(filter.Month))
		idx += 2
	}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND t.description ILIKE $%d", idx)
		args = append(args, "%"+filter.Search+"%")
		idx++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND t.transaction_type = $%d", idx)
		args = append(args, filter.Type)
		idx++
	}
	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND t.transaction_date >= $%d", idx)
		args = append(args, *filter.StartDate)
		idx++
	}
	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND t.transaction_date <= $%d", idx)
		args = append(args, *filter.EndDate)
		idx++
	}
	if filter.ClientID > 0 {
		query += fmt.Sprintf(" AND s.client_id = $%d", idx)
		args = append(args, filter.ClientID)
	}
	return query, args
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertTransaction(ctx context.Context, q querier, tx Transaction) (int64, error) {
	query := `
		INSERT INTO transactions (
			description, transaction_type, value, transaction_date,
			tags, status, category, session_id,
			recurrence_id, recurrence_installment,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),$8,$9,$10,NOW(),NOW())
		RETURNING id`

	var id int64
	err := q.QueryRow(ctx, query,
		tx.Description, tx.Type, tx.Value, tx.Date,
		tx.Tags, tx.Status, string(tx.Category), tx.SessionID,
		tx.RecurrenceID, tx.RecurrenceInstallment,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	var category string
	err := row.Scan(
		&t.ID, &t.Description, &t.Type, &t.Value, &t.Date,
		&t.Tags, &t.Status, &category, &t.SessionID,
		&t.RecurrenceID, &t.RecurrenceInstallment, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Category = Category(category)
	return &t, nil
}
