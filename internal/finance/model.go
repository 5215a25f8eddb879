package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type discriminates money flowing in from money flowing out.
type Type string

const (
	TypeEntry Type = "entry"
	TypeExit  Type = "exit"
)

// Status tells whether a transaction already happened or is only expected.
type Status string

const (
	StatusRealized  Status = "realized"
	StatusProjected Status = "projected"
)

// Category marks why a session-linked transaction exists. Manual entries use
// CategoryManual; historical rows imported before categories existed carry an
// empty category and are matched by description prefix instead.
type Category string

const (
	CategoryNone        Category = ""
	CategoryManual      Category = "manual"
	CategoryDownPayment Category = "session_down_payment"
	CategorySettlement  Category = "session_settlement"
	CategoryExtraPhotos Category = "session_extra_photos"
	CategoryPrinting    Category = "session_printing"
	CategoryCost        Category = "session_cost"
)

// RecurrenceFrequency enumerates supported recurrence periods.
type RecurrenceFrequency string

const (
	FrequencyDaily     RecurrenceFrequency = "daily"
	FrequencyWeekly    RecurrenceFrequency = "weekly"
	FrequencyMonthly   RecurrenceFrequency = "monthly"
	FrequencyBimonthly RecurrenceFrequency = "bimonthly"
	FrequencyQuarterly RecurrenceFrequency = "quarterly"
	FrequencyYearly    RecurrenceFrequency = "yearly"
)

// Frequencies lists the supported periods in form-display order.
var Frequencies = []RecurrenceFrequency{
	FrequencyDaily,
	FrequencyWeekly,
	FrequencyMonthly,
	FrequencyBimonthly,
	FrequencyQuarterly,
	FrequencyYearly,
}

// Transaction is one dated, typed, valued ledger movement.
type Transaction struct {
	ID                    int64
	Description           string
	Type                  Type
	Value                 decimal.Decimal
	Date                  time.Time
	Tags                  string
	Status                Status
	Category              Category
	SessionID             *int64
	RecurrenceID          *string
	RecurrenceInstallment *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsSessionLinked reports whether the transaction belongs to a photo session.
func (t Transaction) IsSessionLinked() bool {
	return t.SessionID != nil
}

// Summary aggregates realized entries and exits for a listing view.
type Summary struct {
	TotalEntries decimal.Decimal
	TotalExits   decimal.Decimal
	Balance      decimal.Decimal
}
