package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository runs the aggregate queries behind the report pages.
type Repository interface {
	Totals(ctx context.Context, r DateRange) (revenue, costs decimal.Decimal, err error)
	MonthlySeries(ctx context.Context, r DateRange) ([]MonthlyTotal, error)
	LeadSources(ctx context.Context, r DateRange) ([]LeadSourceRow, error)
	Profitability(ctx context.Context, r DateRange) ([]ProfitabilityRow, error)
	LedgerTotals(ctx context.Context, r DateRange) (entries, exits decimal.Decimal, err error)
	ActiveSessionCount(ctx context.Context, archiveStage string) (int64, error)
	SessionCountBetween(ctx context.Context, r DateRange) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Totals sums every entry and exit in the range, regardless of status, the
// way the performance report frames revenue and cost.
func (r *PGRepository) Totals(ctx context.Context, dr DateRange) (decimal.Decimal, decimal.Decimal, error) {
	query := `
		SELECT
			COALESCE(SUM(value) FILTER (WHERE transaction_type = 'entry'), 0),
			COALESCE(SUM(value) FILTER (WHERE transaction_type = 'exit'), 0)
		FROM transactions
		WHERE transaction_date BETWEEN $1 AND $2`

	var revenue, costs decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, dr.Start, dr.End).Scan(&revenue, &costs); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return revenue, costs, nil
}

// MonthlySeries groups entries and exits by calendar month across the range.
func (r *PGRepository) MonthlySeries(ctx context.Context, dr DateRange) ([]MonthlyTotal, error) {
	query := `
		SELECT
			EXTRACT(YEAR FROM transaction_date)::int,
			EXTRACT(MONTH FROM transaction_date)::int,
			COALESCE(SUM(value) FILTER (WHERE transaction_type = 'entry'), 0),
			COALESCE(SUM(value) FILTER (WHERE transaction_type = 'exit'), 0)
		FROM transactions
		WHERE transaction_date BETWEEN $1 AND $2
		GROUP BY 1, 2
		ORDER BY 1, 2`

	rows, err := r.pool.Query(ctx, query, dr.Start, dr.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MonthlyTotal
	for rows.Next() {
		var m MonthlyTotal
		var month int
		if err := rows.Scan(&m.Year, &month, &m.TotalEntries, &m.TotalExits); err != nil {
			return nil, err
		}
		m.Month = time.Month(month)
		out = append(out, m)
	}
	return out, rows.Err()
}

// LeadSources counts clients and sums session inflows per lead source,
// richest source first. Clients without a lead source are left out.
func (r *PGRepository) LeadSources(ctx context.Context, dr DateRange) ([]LeadSourceRow, error) {
	query := `
		SELECT c.lead_source, COUNT(DISTINCT c.id), COALESCE(SUM(rev.total_revenue), 0)
		FROM clients c
		LEFT JOIN (
			SELECT s.client_id, SUM(t.value) AS total_revenue
			FROM sessions s
			JOIN transactions t ON t.session_id = s.id
			WHERE t.transaction_type = 'entry'
			  AND t.transaction_date BETWEEN $1 AND $2
			GROUP BY s.client_id
		) rev ON rev.client_id = c.id
		WHERE c.lead_source IS NOT NULL AND c.lead_source <> ''
		GROUP BY c.lead_source
		ORDER BY 3 DESC`

	rows, err := r.pool.Query(ctx, query, dr.Start, dr.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeadSourceRow
	for rows.Next() {
		var row LeadSourceRow
		if err := rows.Scan(&row.LeadSource, &row.ClientCount, &row.TotalRevenue); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Profitability aggregates revenue and recorded cost per session type for
// sessions shot within the range.
func (r *PGRepository) Profitability(ctx context.Context, dr DateRange) ([]ProfitabilityRow, error) {
	query := `
		SELECT st.name, COUNT(s.id),
		       COALESCE(SUM(rev.revenue), 0),
		       COALESCE(SUM(s.session_cost), 0)
		FROM sessions s
		JOIN session_types st ON st.id = s.session_type_id
		LEFT JOIN (
			SELECT session_id, SUM(value) AS revenue
			FROM transactions
			WHERE transaction_type = 'entry'
			  AND transaction_date BETWEEN $1 AND $2
			GROUP BY session_id
		) rev ON rev.session_id = s.id
		WHERE s.session_date BETWEEN $1 AND $2
		GROUP BY st.name`

	rows, err := r.pool.Query(ctx, query, dr.Start, dr.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProfitabilityRow
	for rows.Next() {
		var row ProfitabilityRow
		if err := rows.Scan(&row.SessionTypeName, &row.SessionCount, &row.TotalRevenue, &row.TotalCost); err != nil {
			return nil, err
		}
		row.Profit = row.TotalRevenue.Sub(row.TotalCost)
		out = append(out, row)
	}
	return out, rows.Err()
}

// LedgerTotals sums realized entries and exits in the range, the dashboard's
// framing of the ledger.
func (r *PGRepository) LedgerTotals(ctx context.Context, dr DateRange) (decimal.Decimal, decimal.Decimal, error) {
	query := `
		SELECT
			COALESCE(SUM(value) FILTER (WHERE transaction_type = 'entry'), 0),
			COALESCE(SUM(value) FILTER (WHERE transaction_type = 'exit'), 0)
		FROM transactions
		WHERE status = 'realized' AND transaction_date BETWEEN $1 AND $2`

	var entries, exits decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, dr.Start, dr.End).Scan(&entries, &exits); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return entries, exits, nil
}

// ActiveSessionCount counts sessions outside the archive stage.
func (r *PGRepository) ActiveSessionCount(ctx context.Context, archiveStage string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE kanban_status <> $1`, archiveStage).Scan(&n)
	return n, err
}

// SessionCountBetween counts sessions shot within the range.
func (r *PGRepository) SessionCountBetween(ctx context.Context, dr DateRange) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE session_date BETWEEN $1 AND $2`, dr.Start, dr.End).Scan(&n)
	return n, err
}

var _ Repository = (*PGRepository)(nil)
