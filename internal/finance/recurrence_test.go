package finance

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSeriesInstallments(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	series := GenerateSeries(SeriesInput{
		Description:  "Studio rent",
		Type:         TypeExit,
		Value:        decimal.RequireFromString("1200.00"),
		StartDate:    time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC),
		Kind:         SeriesInstallment,
		Frequency:    FrequencyMonthly,
		Installments: 4,
	}, now)

	require.Len(t, series, 4)
	for i, tx := range series {
		label := fmt.Sprintf("(%d/4)", i+1)
		assert.Equal(t, "Studio rent "+label, tx.Description)
		require.NotNil(t, tx.RecurrenceInstallment)
		assert.Equal(t, label, *tx.RecurrenceInstallment)
		require.NotNil(t, tx.RecurrenceID)
		assert.Equal(t, *series[0].RecurrenceID, *tx.RecurrenceID, "members share one group id")
		assert.Equal(t, CategoryManual, tx.Category)
	}

	assert.Equal(t, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC), series[0].Date)
	assert.Equal(t, time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC), series[3].Date)

	// Feb and Mar rows already happened, Apr and May are still ahead.
	assert.Equal(t, StatusRealized, series[0].Status)
	assert.Equal(t, StatusRealized, series[1].Status)
	assert.Equal(t, StatusProjected, series[2].Status)
	assert.Equal(t, StatusProjected, series[3].Status)
}

func TestGenerateSeriesFixed(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := GenerateSeries(SeriesInput{
		Description: "Software subscription",
		Type:        TypeExit,
		Value:       decimal.RequireFromString("49.90"),
		StartDate:   now,
		Kind:        SeriesFixed,
		Frequency:   FrequencyMonthly,
	}, now)

	require.Len(t, series, 24)
	assert.Equal(t, "Software subscription", series[0].Description, "fixed members keep the plain description")
	assert.Nil(t, series[0].RecurrenceInstallment)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), series[23].Date)
}

func TestGenerateSeriesInstallmentCountFloorsAtOne(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := GenerateSeries(SeriesInput{
		Description: "One off",
		Type:        TypeEntry,
		Value:       decimal.RequireFromString("10.00"),
		StartDate:   now,
		Kind:        SeriesInstallment,
		Frequency:   FrequencyMonthly,
	}, now)
	require.Len(t, series, 1)
	assert.Equal(t, "One off (1/1)", series[0].Description)
}

func TestStepDateMonthEndClamping(t *testing.T) {
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), stepDate(start, FrequencyMonthly, 1))
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), stepDate(start, FrequencyMonthly, 2), "clamping must not drift later steps")
	assert.Equal(t, time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC), stepDate(start, FrequencyMonthly, 3))

	// Non-leap February.
	start2023 := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), stepDate(start2023, FrequencyMonthly, 1))
}

func TestStepDateFrequencies(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		frequency RecurrenceFrequency
		expected  time.Time
	}{
		{FrequencyDaily, time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC)},
		{FrequencyWeekly, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)},
		{FrequencyMonthly, time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)},
		{FrequencyBimonthly, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)},
		{FrequencyQuarterly, time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC)},
		{FrequencyYearly, time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(string(tc.frequency), func(t *testing.T) {
			assert.Equal(t, tc.expected, stepDate(start, tc.frequency, 3))
		})
	}
}

func TestStatusForSameDayIsRealized(t *testing.T) {
	now := time.Date(2024, 5, 10, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, StatusRealized, statusFor(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, StatusProjected, statusFor(time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC), now))
}
