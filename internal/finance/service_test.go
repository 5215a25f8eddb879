package finance

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	transactions map[int64]*Transaction
	nextID       int64

	createErr error
	updateErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{transactions: make(map[int64]*Transaction), nextID: 1}
}

func (m *mockRepository) Create(ctx context.Context, tx Transaction) (int64, error) {
	if m.createErr != nil {
		return 0, m.createErr
	}
	id := m.nextID
	m.nextID++
	tx.ID = id
	m.transactions[id] = &tx
	return id, nil
}

func (m *mockRepository) CreateBatch(ctx context.Context, txs []Transaction) error {
	for _, tx := range txs {
		if _, err := m.Create(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Transaction, error) {
	t, ok := m.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *mockRepository) List(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	var out []Transaction
	for _, t := range m.transactions {
		if filter.UsesMonthNav() && filter.Year > 0 {
			if t.Date.Year() != filter.Year || t.Date.Month() != filter.Month {
				continue
			}
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (m *mockRepository) Summarize(ctx context.Context, filter ListFilter) (Summary, error) {
	var s Summary
	rows, _ := m.List(ctx, filter)
	for _, t := range rows {
		if t.Status != StatusRealized {
			continue
		}
		if t.Type == TypeEntry {
			s.TotalEntries = s.TotalEntries.Add(t.Value)
		} else {
			s.TotalExits = s.TotalExits.Add(t.Value)
		}
	}
	s.Balance = s.TotalEntries.Sub(s.TotalExits)
	return s, nil
}

func (m *mockRepository) Update(ctx context.Context, tx Transaction) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.transactions[tx.ID]
	if !ok {
		return ErrNotFound
	}
	copied := tx
	copied.SessionID = stored.SessionID
	copied.RecurrenceID = stored.RecurrenceID
	copied.RecurrenceInstallment = stored.RecurrenceInstallment
	copied.Status = stored.Status
	m.transactions[tx.ID] = &copied
	return nil
}

func (m *mockRepository) UpdateSeries(ctx context.Context, recurrenceID string, excludeID int64, fromDate *time.Time, description string, value Transaction) error {
	for _, t := range m.transactions {
		if t.RecurrenceID == nil || *t.RecurrenceID != recurrenceID || t.ID == excludeID {
			continue
		}
		if fromDate != nil && t.Date.Before(*fromDate) {
			continue
		}
		t.Description = description
		if t.RecurrenceInstallment != nil {
			t.Description += " " + *t.RecurrenceInstallment
		}
		t.Value = value.Value
		t.Tags = value.Tags
	}
	return nil
}

func (m *mockRepository) ToggleStatus(ctx context.Context, id int64) (Status, error) {
	t, ok := m.transactions[id]
	if !ok {
		return "", ErrNotFound
	}
	if t.Status == StatusProjected {
		t.Status = StatusRealized
	} else {
		t.Status = StatusProjected
	}
	return t.Status, nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.transactions[id]; !ok {
		return ErrNotFound
	}
	delete(m.transactions, id)
	return nil
}

func (m *mockRepository) DeleteSeries(ctx context.Context, recurrenceID string, fromDate *time.Time) (int64, error) {
	var n int64
	for id, t := range m.transactions {
		if t.RecurrenceID == nil || *t.RecurrenceID != recurrenceID {
			continue
		}
		if fromDate != nil && t.Date.Before(*fromDate) {
			continue
		}
		delete(m.transactions, id)
		n++
	}
	return n, nil
}

var _ Repository = (*mockRepository)(nil)

func fixedNow() time.Time {
	return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
}

func newServiceFixture() (*Service, *mockRepository) {
	repo := newMockRepository()
	service := NewService(repo)
	service.now = fixedNow
	return service, repo
}

func TestServiceAddSingleTransaction(t *testing.T) {
	service, repo := newServiceFixture()

	n, err := service.Add(context.Background(), AddInput{
		Description: "Lens repair",
		Type:        TypeExit,
		Value:       decimal.RequireFromString("320.00"),
		Date:        time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
		Tags:        "equipment",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, repo.transactions, 1)
	stored := repo.transactions[1]
	assert.Equal(t, StatusRealized, stored.Status, "past date lands as realized")
	assert.Equal(t, CategoryManual, stored.Category)
	assert.Nil(t, stored.RecurrenceID)
}

func TestServiceAddFutureTransactionIsProjected(t *testing.T) {
	service, repo := newServiceFixture()

	_, err := service.Add(context.Background(), AddInput{
		Description: "Workshop fee",
		Type:        TypeEntry,
		Value:       decimal.RequireFromString("500.00"),
		Date:        time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusProjected, repo.transactions[1].Status)
}

func TestServiceAddRecurringCreatesSeries(t *testing.T) {
	service, repo := newServiceFixture()

	n, err := service.Add(context.Background(), AddInput{
		Description:  "Studio rent",
		Type:         TypeExit,
		Value:        decimal.RequireFromString("1200.00"),
		Date:         time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Recurring:    true,
		Kind:         SeriesInstallment,
		Frequency:    FrequencyMonthly,
		Installments: 6,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	require.Len(t, repo.transactions, 6)

	for _, tx := range repo.transactions {
		require.NotNil(t, tx.RecurrenceID)
		assert.True(t, strings.HasPrefix(tx.Description, "Studio rent ("))
	}
}

func TestServiceEditPropagatesToFuture(t *testing.T) {
	service, repo := newServiceFixture()

	_, err := service.Add(context.Background(), AddInput{
		Description:  "Studio rent",
		Type:         TypeExit,
		Value:        decimal.RequireFromString("1200.00"),
		Date:         time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Recurring:    true,
		Kind:         SeriesInstallment,
		Frequency:    FrequencyMonthly,
		Installments: 4,
	})
	require.NoError(t, err)

	// Edit the March member, scope future: March stays as submitted, April
	// and May pick up the new value, February keeps the old one.
	var marchID int64
	for id, tx := range repo.transactions {
		if tx.Date.Month() == time.March {
			marchID = id
		}
	}
	require.NotZero(t, marchID)

	edited, err := service.Edit(context.Background(), marchID, EditInput{
		Description: "Studio rent (2/4)",
		Type:        TypeExit,
		Value:       decimal.RequireFromString("1350.00"),
		Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Scope:       ScopeFuture,
	})
	require.NoError(t, err)
	assert.True(t, edited.Value.Equal(decimal.RequireFromString("1350.00")))

	for _, tx := range repo.transactions {
		switch tx.Date.Month() {
		case time.February:
			assert.True(t, tx.Value.Equal(decimal.RequireFromString("1200.00")), "past member untouched")
		case time.April, time.May:
			assert.True(t, tx.Value.Equal(decimal.RequireFromString("1350.00")))
			assert.True(t, strings.HasPrefix(tx.Description, "Studio rent ("), "label re-appended, not duplicated: %s", tx.Description)
			assert.NotContains(t, tx.Description, "(2/4) (")
		}
	}
}

func TestServiceEditAllRewritesWholeSeries(t *testing.T) {
	service, repo := newServiceFixture()

	_, err := service.Add(context.Background(), AddInput{
		Description:  "Hosting",
		Type:         TypeExit,
		Value:        decimal.RequireFromString("30.00"),
		Date:         time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Recurring:    true,
		Kind:         SeriesInstallment,
		Frequency:    FrequencyMonthly,
		Installments: 3,
	})
	require.NoError(t, err)

	_, err = service.Edit(context.Background(), 2, EditInput{
		Description: "Hosting (2/3)",
		Type:        TypeExit,
		Value:       decimal.RequireFromString("35.00"),
		Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Scope:       ScopeAll,
	})
	require.NoError(t, err)

	for _, tx := range repo.transactions {
		assert.True(t, tx.Value.Equal(decimal.RequireFromString("35.00")))
	}
}

func TestServiceEditSessionLinkedKeepsTypeAndCategory(t *testing.T) {
	service, repo := newServiceFixture()

	sessionID := int64(7)
	repo.transactions[1] = &Transaction{
		ID:          1,
		Description: "Entrada ensaio (Newborn): CODE",
		Type:        TypeEntry,
		Value:       decimal.RequireFromString("300.00"),
		Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:      StatusRealized,
		Category:    CategoryDownPayment,
		SessionID:   &sessionID,
	}
	repo.nextID = 2

	edited, err := service.Edit(context.Background(), 1, EditInput{
		Description: "tampered",
		Type:        TypeExit,
		Value:       decimal.RequireFromString("300.00"),
		Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Scope:       ScopeSingle,
	})
	require.NoError(t, err)
	assert.Equal(t, TypeEntry, edited.Type, "type locked for session rows")
	assert.Equal(t, CategoryDownPayment, edited.Category)
}

func TestServiceEditUntaggedManualRowGetsManualCategory(t *testing.T) {
	service, repo := newServiceFixture()

	repo.transactions[1] = &Transaction{
		ID:          1,
		Description: "old import",
		Type:        TypeEntry,
		Value:       decimal.RequireFromString("50.00"),
		Date:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:      StatusRealized,
	}
	repo.nextID = 2

	edited, err := service.Edit(context.Background(), 1, EditInput{
		Description: "old import",
		Type:        TypeEntry,
		Value:       decimal.RequireFromString("50.00"),
		Date:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Scope:       ScopeSingle,
	})
	require.NoError(t, err)
	assert.Equal(t, CategoryManual, edited.Category)
}

func TestServiceToggleStatus(t *testing.T) {
	service, repo := newServiceFixture()
	repo.transactions[1] = &Transaction{ID: 1, Status: StatusProjected}
	repo.nextID = 2

	status, err := service.ToggleStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StatusRealized, status)

	status, err = service.ToggleStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StatusProjected, status)
}

func TestServiceListDefaultsToCurrentMonth(t *testing.T) {
	service, repo := newServiceFixture()

	repo.transactions[1] = &Transaction{ID: 1, Type: TypeEntry, Status: StatusRealized, Value: decimal.RequireFromString("100.00"), Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)}
	repo.transactions[2] = &Transaction{ID: 2, Type: TypeExit, Status: StatusRealized, Value: decimal.RequireFromString("40.00"), Date: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)}
	repo.transactions[3] = &Transaction{ID: 3, Type: TypeEntry, Status: StatusRealized, Value: decimal.RequireFromString("999.00"), Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	repo.transactions[4] = &Transaction{ID: 4, Type: TypeEntry, Status: StatusProjected, Value: decimal.RequireFromString("77.00"), Date: time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC)}
	repo.nextID = 5

	page, err := service.List(context.Background(), ListFilter{})
	require.NoError(t, err)

	assert.True(t, page.UseMonthNav)
	assert.Equal(t, 2024, page.Year)
	assert.Equal(t, time.March, page.Month)
	assert.Equal(t, time.February, page.PrevMonth)
	assert.Equal(t, time.April, page.NextMonth)
	assert.Len(t, page.Transactions, 3, "other months excluded")

	// Projected rows show in the list but stay out of the totals.
	assert.True(t, page.Summary.TotalEntries.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, page.Summary.TotalExits.Equal(decimal.RequireFromString("40.00")))
	assert.True(t, page.Summary.Balance.Equal(decimal.RequireFromString("60.00")))
}

func TestServiceListYearBoundaryPager(t *testing.T) {
	service, _ := newServiceFixture()

	page, err := service.List(context.Background(), ListFilter{Year: 2024, Month: time.January})
	require.NoError(t, err)
	assert.Equal(t, 2023, page.PrevYear)
	assert.Equal(t, time.December, page.PrevMonth)
	assert.Equal(t, 2024, page.NextYear)
	assert.Equal(t, time.February, page.NextMonth)
}

func TestServiceListExplicitRangeDisablesPager(t *testing.T) {
	service, _ := newServiceFixture()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	page, err := service.List(context.Background(), ListFilter{StartDate: &start})
	require.NoError(t, err)
	assert.False(t, page.UseMonthNav)
}
