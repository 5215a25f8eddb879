package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EditScope controls how far an edit to a recurring transaction propagates.
type EditScope string

const (
	ScopeSingle EditScope = "single"
	ScopeFuture EditScope = "future"
	ScopeAll    EditScope = "all"
)

// Service handles ledger business logic.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// AddInput collects the fields of the add-transaction form.
type AddInput struct {
	Description string
	Type        Type
	Value       decimal.Decimal
	Date        time.Time
	Tags        string

	Recurring    bool
	Kind         SeriesKind
	Frequency    RecurrenceFrequency
	Installments int
}

// Add records a manual transaction, expanding it into a series when the
// recurring flag is set. It returns how many rows were created.
func (s *Service) Add(ctx context.Context, input AddInput) (int, error) {
	if !input.Recurring {
		t := Transaction{
			Description: input.Description,
			Type:        input.Type,
			Value:       input.Value,
			Date:        input.Date,
			Tags:        input.Tags,
			Status:      statusFor(input.Date, s.now()),
			Category:    CategoryManual,
		}
		if _, err := s.repo.Create(ctx, t); err != nil {
			return 0, fmt.Errorf("create transaction: %w", err)
		}
		return 1, nil
	}

	series := GenerateSeries(SeriesInput{
		Description:  input.Description,
		Type:         input.Type,
		Value:        input.Value,
		StartDate:    input.Date,
		Tags:         input.Tags,
		Kind:         input.Kind,
		Frequency:    input.Frequency,
		Installments: input.Installments,
	}, s.now())
	if err := s.repo.CreateBatch(ctx, series); err != nil {
		return 0, fmt.Errorf("create series: %w", err)
	}
	return len(series), nil
}

// EditInput carries the editable transaction fields plus the series scope.
type EditInput struct {
	Description string
	Type        Type
	Value       decimal.Decimal
	Date        time.Time
	Tags        string
	Scope       EditScope
}

// Edit updates a transaction. Session-linked rows keep their type and
// category regardless of the submitted values. When the row belongs to a
// recurrence group and the scope asks for it, description, value and tags
// propagate to the future or to the whole series.
func (s *Service) Edit(ctx context.Context, id int64, input EditInput) (*Transaction, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	t.Description = input.Description
	t.Value = input.Value
	t.Date = input.Date
	t.Tags = input.Tags
	if !t.IsSessionLinked() {
		t.Type = input.Type
		if t.Category == CategoryNone {
			t.Category = CategoryManual
		}
	}

	if err := s.repo.Update(ctx, *t); err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	if t.RecurrenceID != nil && (input.Scope == ScopeFuture || input.Scope == ScopeAll) {
		base := input.Description
		if t.RecurrenceInstallment != nil {
			// The stored description carries the label; the series update
			// re-appends each member's own.
			base = trimInstallmentLabel(input.Description, *t.RecurrenceInstallment)
		}
		var fromDate *time.Time
		if input.Scope == ScopeFuture {
			fromDate = &t.Date
		}
		carrier := Transaction{Value: input.Value, Tags: input.Tags}
		if err := s.repo.UpdateSeries(ctx, *t.RecurrenceID, t.ID, fromDate, base, carrier); err != nil {
			return nil, fmt.Errorf("update series: %w", err)
		}
	}
	return t, nil
}

// trimInstallmentLabel strips a trailing " (i/n)" so the label is not
// duplicated when the series update re-appends it.
func trimInstallmentLabel(description, label string) string {
	suffix := " " + label
	if len(description) > len(suffix) && description[len(description)-len(suffix):] == suffix {
		return description[:len(description)-len(suffix)]
	}
	return description
}

// ToggleStatus flips a transaction between realized and projected.
func (s *Service) ToggleStatus(ctx context.Context, id int64) (Status, error) {
	return s.repo.ToggleStatus(ctx, id)
}

// Delete removes one transaction. Series siblings stay.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// DeleteSeries removes a whole recurrence group, or its future part.
func (s *Service) DeleteSeries(ctx context.Context, recurrenceID string, fromDate *time.Time) (int64, error) {
	return s.repo.DeleteSeries(ctx, recurrenceID, fromDate)
}

// Get fetches one transaction.
func (s *Service) Get(ctx context.Context, id int64) (*Transaction, error) {
	return s.repo.Get(ctx, id)
}

// Page is the ledger listing with its summary and month pager.
type Page struct {
	Transactions []Transaction
	Summary      Summary
	UseMonthNav  bool
	Year         int
	Month        time.Month
	PrevYear     int
	PrevMonth    time.Month
	NextYear     int
	NextMonth    time.Month
}

// List resolves the filter (defaulting to the current month), loads matching
// transactions and totals them.
func (s *Service) List(ctx context.Context, filter ListFilter) (*Page, error) {
	if filter.UsesMonthNav() && filter.Year == 0 {
		now := s.now()
		filter.Year = now.Year()
		filter.Month = now.Month()
	}

	transactions, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	summary, err := s.repo.Summarize(ctx, filter)
	if err != nil {
		return nil, err
	}

	page := &Page{
		Transactions: transactions,
		Summary:      summary,
		UseMonthNav:  filter.UsesMonthNav(),
		Year:         filter.Year,
		Month:        filter.Month,
	}
	if page.UseMonthNav {
		prev := time.Date(filter.Year, filter.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		next := time.Date(filter.Year, filter.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
		page.PrevYear, page.PrevMonth = prev.Year(), prev.Month()
		page.NextYear, page.NextMonth = next.Year(), next.Month()
	}
	return page, nil
}
