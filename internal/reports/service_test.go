package reports

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	revenue decimal.Decimal
	costs   decimal.Decimal
	monthly []MonthlyTotal
	profit  []ProfitabilityRow

	mu          sync.Mutex
	ledgerCalls []DateRange
	active      int64
	weekly      int64
}

func (m *mockRepository) Totals(ctx context.Context, r DateRange) (decimal.Decimal, decimal.Decimal, error) {
	return m.revenue, m.costs, nil
}

func (m *mockRepository) MonthlySeries(ctx context.Context, r DateRange) ([]MonthlyTotal, error) {
	return m.monthly, nil
}

func (m *mockRepository) LeadSources(ctx context.Context, r DateRange) ([]LeadSourceRow, error) {
	return nil, nil
}

func (m *mockRepository) Profitability(ctx context.Context, r DateRange) ([]ProfitabilityRow, error) {
	return m.profit, nil
}

func (m *mockRepository) LedgerTotals(ctx context.Context, r DateRange) (decimal.Decimal, decimal.Decimal, error) {
	m.mu.Lock()
	m.ledgerCalls = append(m.ledgerCalls, r)
	m.mu.Unlock()
	return m.revenue, m.costs, nil
}

func (m *mockRepository) ActiveSessionCount(ctx context.Context, archiveStage string) (int64, error) {
	return m.active, nil
}

func (m *mockRepository) SessionCountBetween(ctx context.Context, r DateRange) (int64, error) {
	return m.weekly, nil
}

var _ Repository = (*mockRepository)(nil)

func TestResolveRangeDefaultsToYearToDate(t *testing.T) {
	service := NewService(&mockRepository{})
	service.now = func() time.Time { return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC) }

	r := service.ResolveRange(nil, nil)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), r.End)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	r = service.ResolveRange(&start, &end)
	assert.Equal(t, start, r.Start)
	assert.Equal(t, end, r.End)

	// One missing bound falls back entirely.
	r = service.ResolveRange(&start, nil)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), r.Start)
}

func TestPerformanceComputesNetProfit(t *testing.T) {
	repo := &mockRepository{
		revenue: decimal.RequireFromString("5000.00"),
		costs:   decimal.RequireFromString("1800.00"),
		monthly: []MonthlyTotal{{Year: 2024, Month: time.March}},
	}
	service := NewService(repo)

	p, err := service.Performance(context.Background(), DateRange{})
	require.NoError(t, err)
	assert.True(t, p.NetProfit.Equal(decimal.RequireFromString("3200.00")))
	assert.Len(t, p.Monthly, 1)
}

func TestProfitabilitySortsByProfit(t *testing.T) {
	repo := &mockRepository{
		profit: []ProfitabilityRow{
			{SessionTypeName: "Newborn", Profit: decimal.RequireFromString("100.00")},
			{SessionTypeName: "Wedding", Profit: decimal.RequireFromString("900.00")},
			{SessionTypeName: "Family", Profit: decimal.RequireFromString("400.00")},
		},
	}
	service := NewService(repo)

	rows, err := service.Profitability(context.Background(), DateRange{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Wedding", rows[0].SessionTypeName)
	assert.Equal(t, "Family", rows[1].SessionTypeName)
	assert.Equal(t, "Newborn", rows[2].SessionTypeName)
}

func TestDashboardWindows(t *testing.T) {
	repo := &mockRepository{
		revenue: decimal.RequireFromString("100.00"),
		costs:   decimal.RequireFromString("30.00"),
		active:  7,
		weekly:  2,
	}
	service := NewService(repo)
	service.now = func() time.Time { return time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC) }

	d, err := service.Dashboard(context.Background())
	require.NoError(t, err)
	assert.True(t, d.MonthBalance.Equal(decimal.RequireFromString("70.00")))
	assert.True(t, d.YearBalance.Equal(decimal.RequireFromString("70.00")))
	assert.Equal(t, int64(7), d.ActiveSessions)
	assert.Equal(t, int64(2), d.SessionsThisWeek)

	require.Len(t, repo.ledgerCalls, 2)
	sort.Slice(repo.ledgerCalls, func(i, j int) bool {
		return repo.ledgerCalls[i].Start.Before(repo.ledgerCalls[j].Start)
	})
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), repo.ledgerCalls[0].Start)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), repo.ledgerCalls[1].Start)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), repo.ledgerCalls[1].End, "leap February month end")
}
