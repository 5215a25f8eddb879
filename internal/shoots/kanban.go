package shoots

import (
	"errors"
	"time"
)

// ErrUnknownStage rejects transition requests naming a stage outside the
// fixed pipeline.
var ErrUnknownStage = errors.New("shoots: unknown kanban stage")

// StageChange is the outcome of a stage transition request.
type StageChange struct {
	Applied              bool
	RequiresConfirmation bool
	Archived             bool
	// ClearSelection is set when moving back before the editing checkpoint
	// invalidates the recorded selection date.
	ClearSelection bool
}

// PlanStageChange validates a transition from the session's current stage to
// target and describes the mutation to perform. It never mutates the session.
func PlanStageChange(session *Session, target string) (StageChange, error) {
	targetIdx := StageIndex(target)
	if targetIdx < 0 {
		return StageChange{}, ErrUnknownStage
	}

	current := session.KanbanStatus
	if current == target {
		return StageChange{}, nil
	}

	// Checkpoint gate: editing requires a recorded selection date. The caller
	// must collect one via ConfirmSelectionDate instead.
	if target == EditingStage && current != EditingStage && session.SelectionCompletedDate == nil {
		return StageChange{RequiresConfirmation: true}, nil
	}

	change := StageChange{
		Applied:  true,
		Archived: target == ArchiveStage(),
	}

	currentIdx := StageIndex(current)
	editingIdx := StageIndex(EditingStage)
	if currentIdx >= editingIdx && targetIdx < editingIdx {
		// Re-entering the selection phase invalidates the prior checkpoint.
		change.ClearSelection = true
	}
	return change, nil
}

// DeadlineBand classifies how close a session is to its SLA deadline.
type DeadlineBand string

const (
	DeadlineNone    DeadlineBand = "none"
	DeadlineOk      DeadlineBand = "ok"
	DeadlineDue     DeadlineBand = "due"
	DeadlineUrgent  DeadlineBand = "urgent"
	DeadlineOverdue DeadlineBand = "overdue"
)

// DeadlineStatus classifies the session against its type's SLA day counts at
// the given instant. Archived sessions and types without a configured SLA
// report DeadlineNone.
//
// While selection is pending the clock runs from the shoot date against the
// selection deadline (bands at 50%/75%/100%); once selection is done it runs
// from the selection date against the editing deadline (bands at 50%/80%/100%).
func DeadlineStatus(session Session, now time.Time) DeadlineBand {
	if session.IsArchived() {
		return DeadlineNone
	}

	var deadlineDays, daysPassed int
	var secondThreshold float64

	if session.SelectionCompletedDate == nil {
		deadlineDays = session.Type.SelectionDeadlineDays
		daysPassed = daysBetween(session.Date, now)
		secondThreshold = 0.75
	} else {
		deadlineDays = session.Type.EditingDeadlineDays
		daysPassed = daysBetween(*session.SelectionCompletedDate, now)
		secondThreshold = 0.8
	}

	if deadlineDays <= 0 {
		return DeadlineNone
	}

	passed := float64(daysPassed)
	limit := float64(deadlineDays)
	switch {
	case passed <= 0.5*limit:
		return DeadlineOk
	case passed <= secondThreshold*limit:
		return DeadlineDue
	case passed < limit:
		return DeadlineUrgent
	default:
		return DeadlineOverdue
	}
}

// daysBetween counts whole days from start to now, floored at zero so
// future-dated sessions do not produce negative elapsed time.
func daysBetween(start, now time.Time) int {
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	nowDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(nowDay.Sub(startDay).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
