package finance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SeriesKind selects how a recurring entry is expanded.
type SeriesKind string

const (
	// SeriesInstallment creates a numbered run of payments, "(3/12)" style.
	SeriesInstallment SeriesKind = "installment"
	// SeriesFixed creates an open-ended charge, materialized two years ahead.
	SeriesFixed SeriesKind = "fixed"
)

// fixedSeriesPeriods is how many occurrences a fixed series materializes.
const fixedSeriesPeriods = 24

// SeriesInput describes a recurring transaction to be expanded into rows.
// Value is the per-period amount, not a total to split.
type SeriesInput struct {
	Description  string
	Type         Type
	Value        decimal.Decimal
	StartDate    time.Time
	Tags         string
	Kind         SeriesKind
	Frequency    RecurrenceFrequency
	Installments int
}

// stepDate returns the date of the nth period. Month-based frequencies clamp
// to the last day of the target month, so a series started on Jan 31 lands on
// Feb 29 and then Mar 31 instead of drifting into the next month.
func stepDate(start time.Time, frequency RecurrenceFrequency, n int) time.Time {
	switch frequency {
	case FrequencyDaily:
		return start.AddDate(0, 0, n)
	case FrequencyWeekly:
		return start.AddDate(0, 0, 7*n)
	case FrequencyMonthly:
		return addMonthsClamped(start, n)
	case FrequencyBimonthly:
		return addMonthsClamped(start, 2*n)
	case FrequencyQuarterly:
		return addMonthsClamped(start, 3*n)
	case FrequencyYearly:
		return addMonthsClamped(start, 12*n)
	default:
		return start
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, t.Location())
}

// statusFor classifies a dated row against today: past and present rows are
// realized, future rows projected.
func statusFor(date, now time.Time) Status {
	if truncateDay(date).After(truncateDay(now)) {
		return StatusProjected
	}
	return StatusRealized
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// GenerateSeries expands a recurring entry into its member transactions. All
// members share a fresh recurrence id; installment members carry a "(i/n)"
// label appended to the description.
func GenerateSeries(input SeriesInput, now time.Time) []Transaction {
	count := fixedSeriesPeriods
	if input.Kind == SeriesInstallment {
		count = input.Installments
		if count < 1 {
			count = 1
		}
	}

	recurrenceID := uuid.NewString()
	out := make([]Transaction, 0, count)
	for i := 0; i < count; i++ {
		date := stepDate(input.StartDate, input.Frequency, i)
		t := Transaction{
			Description:  input.Description,
			Type:         input.Type,
			Value:        input.Value,
			Date:         date,
			Tags:         input.Tags,
			Status:       statusFor(date, now),
			Category:     CategoryManual,
			RecurrenceID: &recurrenceID,
		}
		if input.Kind == SeriesInstallment {
			label := fmt.Sprintf("(%d/%d)", i+1, count)
			t.Description = input.Description + " " + label
			t.RecurrenceInstallment = &label
		}
		out = append(out, t)
	}
	return out
}
