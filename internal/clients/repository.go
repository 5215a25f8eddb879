package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the client or interaction does not exist.
	ErrNotFound = errors.New("clients: not found")
	// ErrNameTaken indicates another client already uses the name.
	ErrNameTaken = errors.New("clients: name already taken")
)

// ListFilter narrows the client listing.
type ListFilter struct {
	Search     string
	LeadSource string
	Tags       string
}

// Repository defines persistence for clients and their interaction logs.
type Repository interface {
	Create(ctx context.Context, client Client) (int64, error)
	Update(ctx context.Context, client Client) error
	Get(ctx context.Context, id int64) (*Client, error)
	GetByName(ctx context.Context, name string) (*Client, error)
	List(ctx context.Context, filter ListFilter) ([]Client, error)

	AddInteraction(ctx context.Context, log InteractionLog) (int64, error)
	ListInteractions(ctx context.Context, clientID int64) ([]InteractionLog, error)
	GetInteraction(ctx context.Context, id int64) (*InteractionLog, error)
	DeleteInteraction(ctx context.Context, id int64) error

	Sessions(ctx context.Context, clientID int64) ([]SessionSummary, error)
	TotalPaid(ctx context.Context, clientID int64) (decimal.Decimal, error)
	PaidBySession(ctx context.Context, clientID int64) (map[int64]decimal.Decimal, error)
}

const clientColumns = `
	id, name, COALESCE(email, ''), COALESCE(whatsapp, ''), COALESCE(lead_source, ''),
	COALESCE(tags, ''), COALESCE(address_street, ''), COALESCE(address_city, ''),
	COALESCE(address_state, ''), COALESCE(address_zip_code, ''),
	main_contact_birthday, COALESCE(notes, ''), created_at, updated_at`

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts a client. The unique index on name surfaces as ErrNameTaken.
func (r *PGRepository) Create(ctx context.Context, client Client) (int64, error) {
	query := `
		INSERT INTO clients (
			name, email, whatsapp, lead_source, tags,
			address_street, address_city, address_state, address_zip_code,
			main_contact_birthday, notes, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW(),NOW())
		RETURNING id`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		client.Name, client.Email, client.Whatsapp, client.LeadSource, client.Tags,
		client.AddressStreet, client.AddressCity, client.AddressState, client.AddressZip,
		client.Birthday, client.Notes,
	).Scan(&id)
	if err != nil {
		return 0, mapUniqueViolation(err)
	}
	return id, nil
}

// Update persists a client's fields.
func (r *PGRepository) Update(ctx context.Context, client Client) error {
	query := `
		UPDATE clients SET
			name = $2, email = $3, whatsapp = $4, lead_source = $5, tags = $6,
			address_street = $7, address_city = $8, address_state = $9, address_zip_code = $10,
			main_contact_birthday = $11, notes = $12, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		client.ID, client.Name, client.Email, client.Whatsapp, client.LeadSource, client.Tags,
		client.AddressStreet, client.AddressCity, client.AddressState, client.AddressZip,
		client.Birthday, client.Notes,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get fetches one client by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Client, error) {
	query := `SELECT` + clientColumns + ` FROM clients WHERE id = $1`
	return scanClient(r.pool.QueryRow(ctx, query, id))
}

// GetByName fetches one client by exact name, the detail page's URL key.
func (r *PGRepository) GetByName(ctx context.Context, name string) (*Client, error) {
	query := `SELECT` + clientColumns + ` FROM clients WHERE name = $1`
	return scanClient(r.pool.QueryRow(ctx, query, name))
}

// List returns clients matching the filter ordered by name.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Client, error) {
	query := `SELECT` + clientColumns + ` FROM clients WHERE 1=1`
	args := []any{}
	idx := 1

	if filter.Search != "" {
		query += fmt.Sprintf(" AND name ILIKE $%d", idx)
		args = append(args, "%"+filter.Search+"%")
		idx++
	}
	if filter.LeadSource != "" {
		query += fmt.Sprintf(" AND lead_source = $%d", idx)
		args = append(args, filter.LeadSource)
		idx++
	}
	if filter.Tags != "" {
		query += fmt.Sprintf(" AND tags ILIKE $%d", idx)
		args = append(args, "%"+filter.Tags+"%")
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// AddInteraction records a touchpoint for a client.
func (r *PGRepository) AddInteraction(ctx context.Context, log InteractionLog) (int64, error) {
	query := `
		INSERT INTO interaction_logs (client_id, interaction_date, channel, notes)
		VALUES ($1,$2,$3,$4)
		RETURNING id`

	var id int64
	if err := r.pool.QueryRow(ctx, query, log.ClientID, log.Date, log.Channel, log.Notes).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// ListInteractions returns a client's touchpoints, newest first.
func (r *PGRepository) ListInteractions(ctx context.Context, clientID int64) ([]InteractionLog, error) {
	query := `
		SELECT id, client_id, interaction_date, channel, notes
		FROM interaction_logs
		WHERE client_id = $1
		ORDER BY interaction_date DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InteractionLog
	for rows.Next() {
		var l InteractionLog
		if err := rows.Scan(&l.ID, &l.ClientID, &l.Date, &l.Channel, &l.Notes); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetInteraction fetches one touchpoint.
func (r *PGRepository) GetInteraction(ctx context.Context, id int64) (*InteractionLog, error) {
	var l InteractionLog
	err := r.pool.QueryRow(ctx,
		`SELECT id, client_id, interaction_date, channel, notes FROM interaction_logs WHERE id = $1`,
		id,
	).Scan(&l.ID, &l.ClientID, &l.Date, &l.Channel, &l.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// DeleteInteraction removes one touchpoint.
func (r *PGRepository) DeleteInteraction(ctx context.Context, id int64) error {
	var deleted int64
	if err := r.pool.QueryRow(ctx, `DELETE FROM interaction_logs WHERE id = $1 RETURNING id`, id).Scan(&deleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Sessions lists the client's sessions, newest first.
func (r *PGRepository) Sessions(ctx context.Context, clientID int64) ([]SessionSummary, error) {
	query := `
		SELECT s.id, s.code, s.session_date, st.name, s.kanban_status, s.total_value
		FROM sessions s
		JOIN session_types st ON st.id = s.session_type_id
		WHERE s.client_id = $1
		ORDER BY s.session_date DESC, s.id DESC`

	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.ID, &s.Code, &s.Date, &s.TypeName, &s.KanbanStatus, &s.TotalValue); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// TotalPaid sums every ledger inflow across the client's sessions.
func (r *PGRepository) TotalPaid(ctx context.Context, clientID int64) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(t.value), 0)
		FROM transactions t
		JOIN sessions s ON s.id = t.session_id
		WHERE s.client_id = $1 AND t.transaction_type = 'entry'`

	var total decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, clientID).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// PaidBySession maps each of the client's sessions to its summed inflows.
func (r *PGRepository) PaidBySession(ctx context.Context, clientID int64) (map[int64]decimal.Decimal, error) {
	query := `
		SELECT s.id, COALESCE(SUM(t.value), 0)
		FROM sessions s
		LEFT JOIN transactions t ON t.session_id = s.id AND t.transaction_type = 'entry'
		WHERE s.client_id = $1
		GROUP BY s.id`

	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var sessionID int64
		var paid decimal.Decimal
		if err := rows.Scan(&sessionID, &paid); err != nil {
			return nil, err
		}
		out[sessionID] = paid
	}
	return out, rows.Err()
}

var _ Repository = (*PGRepository)(nil)

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	var birthday pgtype.Date
	err := row.Scan(
		&c.ID, &c.Name, &c.Email, &c.Whatsapp, &c.LeadSource,
		&c.Tags, &c.AddressStreet, &c.AddressCity,
		&c.AddressState, &c.AddressZip,
		&birthday, &c.Notes, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if birthday.Valid {
		d := birthday.Time
		c.Birthday = &d
	}
	return &c, nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrNameTaken
	}
	return err
}

