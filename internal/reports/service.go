package reports

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/obscura-studio/obscura/internal/shoots"
)

// Service assembles the report pages from the aggregate queries.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ResolveRange fills missing bounds with the current year to date, matching
// the report pages' default window.
func (s *Service) ResolveRange(start, end *time.Time) DateRange {
	today := s.now()
	if start == nil || end == nil {
		return DateRange{
			Start: time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC),
		}
	}
	return DateRange{Start: *start, End: *end}
}

// Performance builds the financial performance report.
func (s *Service) Performance(ctx context.Context, r DateRange) (*Performance, error) {
	revenue, costs, err := s.repo.Totals(ctx, r)
	if err != nil {
		return nil, err
	}
	monthly, err := s.repo.MonthlySeries(ctx, r)
	if err != nil {
		return nil, err
	}
	return &Performance{
		Range:        r,
		TotalRevenue: revenue,
		TotalCosts:   costs,
		NetProfit:    revenue.Sub(costs),
		Monthly:      monthly,
	}, nil
}

// LeadSources builds the lead source analysis.
func (s *Service) LeadSources(ctx context.Context, r DateRange) ([]LeadSourceRow, error) {
	return s.repo.LeadSources(ctx, r)
}

// Profitability builds the per-type profitability report, most profitable
// type first.
func (s *Service) Profitability(ctx context.Context, r DateRange) ([]ProfitabilityRow, error) {
	rows, err := s.repo.Profitability(ctx, r)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Profit.GreaterThan(rows[j].Profit)
	})
	return rows, nil
}

// Dashboard builds the landing page summary. The four aggregates are
// independent queries, so they run concurrently.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	today := s.now()
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, -1)
	yearStart := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := time.Date(today.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	weekStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	weekStart = weekStart.AddDate(0, 0, -int(weekStart.Weekday()))

	var d Dashboard
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		entries, exits, err := s.repo.LedgerTotals(ctx, DateRange{Start: monthStart, End: monthEnd})
		if err != nil {
			return err
		}
		d.MonthEntries, d.MonthExits = entries, exits
		d.MonthBalance = entries.Sub(exits)
		return nil
	})

	g.Go(func() error {
		entries, exits, err := s.repo.LedgerTotals(ctx, DateRange{Start: yearStart, End: yearEnd})
		if err != nil {
			return err
		}
		d.YearEntries, d.YearExits = entries, exits
		d.YearBalance = entries.Sub(exits)
		return nil
	})

	g.Go(func() error {
		count, err := s.repo.ActiveSessionCount(ctx, shoots.ArchiveStage())
		if err != nil {
			return err
		}
		d.ActiveSessions = count
		return nil
	})

	g.Go(func() error {
		count, err := s.repo.SessionCountBetween(ctx, DateRange{Start: weekStart, End: weekStart.AddDate(0, 0, 6)})
		if err != nil {
			return err
		}
		d.SessionsThisWeek = count
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}
