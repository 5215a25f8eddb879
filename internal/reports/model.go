package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateRange bounds a report query, inclusive on both ends.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// MonthlyTotal is one month's entry and exit sums in the performance series.
type MonthlyTotal struct {
	Year         int
	Month        time.Month
	TotalEntries decimal.Decimal
	TotalExits   decimal.Decimal
}

// Performance is the financial performance report.
type Performance struct {
	Range        DateRange
	TotalRevenue decimal.Decimal
	TotalCosts   decimal.Decimal
	NetProfit    decimal.Decimal
	Monthly      []MonthlyTotal
}

// LeadSourceRow aggregates clients and revenue for one lead source.
type LeadSourceRow struct {
	LeadSource   string
	ClientCount  int64
	TotalRevenue decimal.Decimal
}

// ProfitabilityRow aggregates revenue, cost and profit for one session type.
type ProfitabilityRow struct {
	SessionTypeName string
	SessionCount    int64
	TotalRevenue    decimal.Decimal
	TotalCost       decimal.Decimal
	Profit          decimal.Decimal
}

// Dashboard is the landing page summary: current month and year ledger
// totals plus session counts.
type Dashboard struct {
	MonthEntries decimal.Decimal
	MonthExits   decimal.Decimal
	MonthBalance decimal.Decimal
	YearEntries  decimal.Decimal
	YearExits    decimal.Decimal
	YearBalance  decimal.Decimal

	ActiveSessions   int64
	SessionsThisWeek int64
}
