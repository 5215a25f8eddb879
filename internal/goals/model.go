package goals

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is a goal's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusConcluded Status = "concluded"
	StatusCancelled Status = "cancelled"
)

// Goal is a savings target.
type Goal struct {
	ID          int64
	Name        string
	TargetValue decimal.Decimal
	TargetDate  *time.Time
	Status      Status
	Notes       string
}

// Contribution is one dated deposit toward a goal.
type Contribution struct {
	ID     int64
	GoalID int64
	Value  decimal.Decimal
	Date   time.Time
}

// Progress pairs a goal with its saved total and completion percentage.
type Progress struct {
	Goal            Goal
	SavedValue      decimal.Decimal
	RemainingValue  decimal.Decimal
	ProgressPercent decimal.Decimal
}

func progressFor(goal Goal, saved decimal.Decimal) Progress {
	percent := decimal.Zero
	if goal.TargetValue.IsPositive() {
		percent = saved.Div(goal.TargetValue).Mul(decimal.NewFromInt(100))
	}
	return Progress{
		Goal:            goal,
		SavedValue:      saved,
		RemainingValue:  goal.TargetValue.Sub(saved),
		ProgressPercent: percent,
	}
}
