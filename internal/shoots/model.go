package shoots

import (
	"time"

	"github.com/shopspring/decimal"
)

// KanbanStages is the fixed production pipeline, in order. The last stage is
// the archive; sessions there are hidden from the active board.
var KanbanStages = []string{
	"Scheduled",
	"PC Backup",
	"Online Backup",
	"Selection",
	"Proofing",
	"Editing",
	"Client Archive",
	"Final Delivery",
	"Printing",
	"Archive",
}

// EditingStage is the checkpoint gate: entering it requires a recorded
// selection-completed date.
const EditingStage = "Editing"

// ArchiveStage returns the terminal pipeline stage.
func ArchiveStage() string {
	return KanbanStages[len(KanbanStages)-1]
}

// FirstStage returns the initial pipeline stage for new sessions.
func FirstStage() string {
	return KanbanStages[0]
}

// StageIndex returns the position of a stage in the pipeline, or -1 when the
// name is not part of the fixed sequence.
func StageIndex(name string) int {
	for i, s := range KanbanStages {
		if s == name {
			return i
		}
	}
	return -1
}

// TypeInfo carries the session-type attributes a session needs for display
// and deadline classification.
type TypeInfo struct {
	ID                    int64
	Name                  string
	Abbreviation          string
	SelectionDeadlineDays int
	EditingDeadlineDays   int
}

// Session is one billable photography engagement.
type Session struct {
	ID                     int64
	Code                   string
	Date                   time.Time
	SelectionCompletedDate *time.Time
	TotalValue             decimal.Decimal
	DownPayment            decimal.Decimal
	Cost                   decimal.Decimal
	ExtraPhotosQty         int
	ExtraPhotoUnitPrice    decimal.Decimal
	PrintingQty            int
	PrintingUnitPrice      decimal.Decimal
	Notes                  string
	KanbanStatus           string
	ClientID               int64
	ClientName             string
	Type                   TypeInfo
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// RemainingValue is the settlement amount still owed after the down payment.
func (s Session) RemainingValue() decimal.Decimal {
	return s.TotalValue.Sub(s.DownPayment)
}

// ExtraPhotosValue is quantity times unit price for extra photos.
func (s Session) ExtraPhotosValue() decimal.Decimal {
	return decimal.NewFromInt(int64(s.ExtraPhotosQty)).Mul(s.ExtraPhotoUnitPrice)
}

// PrintingValue is quantity times unit price for prints.
func (s Session) PrintingValue() decimal.Decimal {
	return decimal.NewFromInt(int64(s.PrintingQty)).Mul(s.PrintingUnitPrice)
}

// IsArchived reports whether the session sits in the terminal stage.
func (s Session) IsArchived() bool {
	return s.KanbanStatus == ArchiveStage()
}
