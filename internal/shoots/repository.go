package shoots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/obscura-studio/obscura/internal/finance"
)

// ErrNotFound indicates the session does not exist.
var ErrNotFound = errors.New("shoots: not found")

// SortBy values accepted by ListFilter.
const (
	SortDateDesc  = "date_desc"
	SortDateAsc   = "date_asc"
	SortValueDesc = "value_desc"
	SortValueAsc  = "value_asc"
)

// ListFilter narrows and orders the session listing.
type ListFilter struct {
	Archived      bool
	Search        string
	ClientID      int64
	SessionTypeID int64
	StartDate     *time.Time
	EndDate       *time.Time
	SortBy        string
}

// Repository defines persistence operations for sessions and their ledger rows.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, repo TxRepository) error) error
	Get(ctx context.Context, id int64) (*Session, error)
	List(ctx context.Context, filter ListFilter) ([]Session, error)
	ListActive(ctx context.Context) ([]Session, error)
	LedgerStore
}

// TxRepository is the transactional subset used inside WithTx.
type TxRepository interface {
	CreateSession(ctx context.Context, session Session) (int64, error)
	UpdateSession(ctx context.Context, session *Session) error
	UpdateSessionCode(ctx context.Context, id int64, code string) error
	UpdateStage(ctx context.Context, id int64, stage string, selectionDate *time.Time) error
	DeleteSession(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*Session, error)
	GetTypeInfo(ctx context.Context, id int64) (TypeInfo, error)
	GetClientName(ctx context.Context, id int64) (string, error)
	LedgerStore
}

const sessionColumns = `
	s.id, s.code, s.session_date, s.selection_completed_date,
	s.total_value, s.down_payment, s.session_cost,
	s.extra_photos_qty, s.extra_photo_unit_price,
	s.printing_qty, s.printing_unit_price,
	s.notes, s.kanban_status, s.client_id, c.name,
	t.id, t.name, t.abbreviation, t.selection_deadline_days, t.editing_deadline_days,
	s.created_at, s.updated_at`

const sessionFrom = `
	FROM sessions s
	JOIN clients c ON c.id = s.client_id
	JOIN session_types t ON t.id = s.session_type_id`

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// WithTx runs fn inside a RepeatableRead transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(ctx context.Context, repo TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("shoots: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("shoots: commit tx: %w", err)
	}
	return nil
}

// Get fetches one session with its client and type joined.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Session, error) {
	return getSession(ctx, r.pool, id)
}

// List returns sessions matching the filter.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Session, error) {
	query := `SELECT` + sessionColumns + sessionFrom
	args := []any{}
	idx := 1

	if filter.Archived {
		query += fmt.Sprintf(" WHERE s.kanban_status = $%d", idx)
	} else {
		query += fmt.Sprintf(" WHERE s.kanban_status <> $%d", idx)
	}
	args = append(args, ArchiveStage())
	idx++

	if filter.Search != "" {
		query += fmt.Sprintf(" AND (c.name ILIKE $%d OR s.code ILIKE $%d)", idx, idx)
		args = append(args, "%"+filter.Search+"%")
		idx++
	}
	if filter.ClientID > 0 {
		query += fmt.Sprintf(" AND s.client_id = $%d", idx)
		args = append(args, filter.ClientID)
		idx++
	}
	if filter.SessionTypeID > 0 {
		query += fmt.Sprintf(" AND s.session_type_id = $%d", idx)
		args = append(args, filter.SessionTypeID)
		idx++
	}
	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND s.session_date >= $%d", idx)
		args = append(args, *filter.StartDate)
		idx++
	}
	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND s.session_date <= $%d", idx)
		args = append(args, *filter.EndDate)
		idx++
	}

	switch filter.SortBy {
	case SortDateAsc:
		query += " ORDER BY s.session_date ASC"
	case SortValueDesc:
		query += " ORDER BY s.total_value DESC"
	case SortValueAsc:
		query += " ORDER BY s.total_value ASC"
	default:
		query += " ORDER BY s.session_date DESC"
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

// ListActive returns every non-archived session ordered by shoot date, the
// input for the kanban board and the deadline scan.
func (r *PGRepository) ListActive(ctx context.Context) ([]Session, error) {
	query := `SELECT` + sessionColumns + sessionFrom + ` WHERE s.kanban_status <> $1 ORDER BY s.session_date ASC`
	rows, err := r.pool.Query(ctx, query, ArchiveStage())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

// ListBySession returns the ledger transactions linked to a session.
func (r *PGRepository) ListBySession(ctx context.Context, sessionID int64) ([]finance.Transaction, error) {
	return listSessionTransactions(ctx, r.pool, sessionID)
}

// CreateTransaction inserts a session-linked ledger row.
func (r *PGRepository) CreateTransaction(ctx context.Context, tx finance.Transaction) (int64, error) {
	return createTransaction(ctx, r.pool, tx)
}

// UpdateTransaction updates value, date and category of a ledger row.
func (r *PGRepository) UpdateTransaction(ctx context.Context, tx finance.Transaction) error {
	return updateTransaction(ctx, r.pool, tx)
}

// DeleteTransaction removes a ledger row.
func (r *PGRepository) DeleteTransaction(ctx context.Context, id int64) error {
	return deleteTransaction(ctx, r.pool, id)
}

var _ Repository = (*PGRepository)(nil)

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) CreateSession(ctx context.Context, session Session) (int64, error) {
	query := `
		INSERT INTO sessions (
			code, session_date, selection_completed_date,
			total_value, down_payment, session_cost,
			extra_photos_qty, extra_photo_unit_price,
			printing_qty, printing_unit_price,
			notes, kanban_status, client_id, session_type_id,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW(),NOW())
		RETURNING id`

	var id int64
	err := r.tx.QueryRow(ctx, query,
		session.Code,
		session.Date,
		session.SelectionCompletedDate,
		session.TotalValue,
		session.DownPayment,
		session.Cost,
		session.ExtraPhotosQty,
		session.ExtraPhotoUnitPrice,
		session.PrintingQty,
		session.PrintingUnitPrice,
		session.Notes,
		session.KanbanStatus,
		session.ClientID,
		session.Type.ID,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *txRepository) UpdateSession(ctx context.Context, session *Session) error {
	query := `
		UPDATE sessions SET
			session_date = $2, selection_completed_date = $3,
			total_value = $4, down_payment = $5, session_cost = $6,
			extra_photos_qty = $7, extra_photo_unit_price = $8,
			printing_qty = $9, printing_unit_price = $10,
			notes = $11, kanban_status = $12, session_type_id = $13,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := r.tx.Exec(ctx, query,
		session.ID,
		session.Date,
		session.SelectionCompletedDate,
		session.TotalValue,
		session.DownPayment,
		session.Cost,
		session.ExtraPhotosQty,
		session.ExtraPhotoUnitPrice,
		session.PrintingQty,
		session.PrintingUnitPrice,
		session.Notes,
		session.KanbanStatus,
		session.Type.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) UpdateSessionCode(ctx context.Context, id int64, code string) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sessions SET code = $2, updated_at = NOW() WHERE id = $1`, id, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) UpdateStage(ctx context.Context, id int64, stage string, selectionDate *time.Time) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE sessions SET kanban_status = $2, selection_completed_date = $3, updated_at = NOW() WHERE id = $1`,
		id, stage, selectionDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteSession(ctx context.Context, id int64) error {
	// Linked transactions go with it via ON DELETE CASCADE.
	tag, err := r.tx.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) Get(ctx context.Context, id int64) (*Session, error) {
	return getSession(ctx, r.tx, id)
}

func (r *txRepository) GetTypeInfo(ctx context.Context, id int64) (TypeInfo, error) {
	var info TypeInfo
	err := r.tx.QueryRow(ctx,
		`SELECT id, name, abbreviation, selection_deadline_days, editing_deadline_days FROM session_types WHERE id = $1`,
		id,
	).Scan(&info.ID, &info.Name, &info.Abbreviation, &info.SelectionDeadlineDays, &info.EditingDeadlineDays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TypeInfo{}, ErrNotFound
		}
		return TypeInfo{}, err
	}
	return info, nil
}

func (r *txRepository) GetClientName(ctx context.Context, id int64) (string, error) {
	var name string
	err := r.tx.QueryRow(ctx, `SELECT name FROM clients WHERE id = $1`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return name, nil
}

func (r *txRepository) ListBySession(ctx context.Context, sessionID int64) ([]finance.Transaction, error) {
	return listSessionTransactions(ctx, r.tx, sessionID)
}

func (r *txRepository) CreateTransaction(ctx context.Context, tx finance.Transaction) (int64, error) {
	return createTransaction(ctx, r.tx, tx)
}

func (r *txRepository) UpdateTransaction(ctx context.Context, tx finance.Transaction) error {
	return updateTransaction(ctx, r.tx, tx)
}

func (r *txRepository) DeleteTransaction(ctx context.Context, id int64) error {
	return deleteTransaction(ctx, r.tx, id)
}

var _ TxRepository = (*txRepository)(nil)

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, letting the same
// query helpers serve pooled and transactional paths.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getSession(ctx context.Context, q rowQuerier, id int64) (*Session, error) {
	query := `SELECT` + sessionColumns + sessionFrom + ` WHERE s.id = $1`
	session, err := scanSession(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return session, nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	var selectionDate pgtype.Date
	var notes pgtype.Text
	err := row.Scan(
		&s.ID, &s.Code, &s.Date, &selectionDate,
		&s.TotalValue, &s.DownPayment, &s.Cost,
		&s.ExtraPhotosQty, &s.ExtraPhotoUnitPrice,
		&s.PrintingQty, &s.PrintingUnitPrice,
		&notes, &s.KanbanStatus, &s.ClientID, &s.ClientName,
		&s.Type.ID, &s.Type.Name, &s.Type.Abbreviation,
		&s.Type.SelectionDeadlineDays, &s.Type.EditingDeadlineDays,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if selectionDate.Valid {
		d := selectionDate.Time
		s.SelectionCompletedDate = &d
	}
	s.Notes = notes.String
	return &s, nil
}

func scanSessions(rows pgx.Rows) ([]Session, error) {
	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func listSessionTransactions(ctx context.Context, q rowQuerier, sessionID int64) ([]finance.Transaction, error) {
	query := `
		SELECT id, description, transaction_type, value, transaction_date,
		       COALESCE(tags, ''), status, COALESCE(category, ''), session_id,
		       recurrence_id, recurrence_installment, created_at, updated_at
		FROM transactions
		WHERE session_id = $1
		ORDER BY id`

	rows, err := q.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []finance.Transaction
	for rows.Next() {
		var t finance.Transaction
		var category string
		err := rows.Scan(
			&t.ID, &t.Description, &t.Type, &t.Value, &t.Date,
			&t.Tags, &t.Status, &category, &t.SessionID,
			&t.RecurrenceID, &t.RecurrenceInstallment, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		t.Category = finance.Category(category)
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func createTransaction(ctx context.Context, q rowQuerier, tx finance.Transaction) (int64, error) {
	query := `
		INSERT INTO transactions (
			description, transaction_type, value, transaction_date,
			tags, status, category, session_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),$8,NOW(),NOW())
		RETURNING id`

	var id int64
	err := q.QueryRow(ctx, query,
		tx.Description, tx.Type, tx.Value, tx.Date,
		tx.Tags, tx.Status, string(tx.Category), tx.SessionID,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func updateTransaction(ctx context.Context, q rowQuerier, tx finance.Transaction) error {
	query := `
		UPDATE transactions
		SET value = $2, transaction_date = $3, category = NULLIF($4,''), updated_at = NOW()
		WHERE id = $1
		RETURNING id`

	var id int64
	if err := q.QueryRow(ctx, query, tx.ID, tx.Value, tx.Date, string(tx.Category)).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func deleteTransaction(ctx context.Context, q rowQuerier, id int64) error {
	var deleted int64
	if err := q.QueryRow(ctx, `DELETE FROM transactions WHERE id = $1 RETURNING id`, id).Scan(&deleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
