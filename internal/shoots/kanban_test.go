package shoots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanStageChangeSameStageIsNoop(t *testing.T) {
	session := &Session{KanbanStatus: "Selection"}
	change, err := PlanStageChange(session, "Selection")
	require.NoError(t, err)
	assert.False(t, change.Applied)
	assert.False(t, change.RequiresConfirmation)
}

func TestPlanStageChangeUnknownStage(t *testing.T) {
	session := &Session{KanbanStatus: "Scheduled"}
	_, err := PlanStageChange(session, "Retouching")
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestPlanStageChangeEditingGate(t *testing.T) {
	session := &Session{KanbanStatus: "Scheduled", SelectionCompletedDate: nil}
	change, err := PlanStageChange(session, EditingStage)
	require.NoError(t, err)
	assert.True(t, change.RequiresConfirmation)
	assert.False(t, change.Applied, "gate must not mutate the stage")
}

func TestPlanStageChangeEditingWithSelectionDate(t *testing.T) {
	selected := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	session := &Session{KanbanStatus: "Proofing", SelectionCompletedDate: &selected}
	change, err := PlanStageChange(session, EditingStage)
	require.NoError(t, err)
	assert.True(t, change.Applied)
	assert.False(t, change.RequiresConfirmation)
	assert.False(t, change.ClearSelection)
}

func TestPlanStageChangeRegressionClearsSelection(t *testing.T) {
	selected := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	session := &Session{KanbanStatus: "Printing", SelectionCompletedDate: &selected}
	change, err := PlanStageChange(session, "Selection")
	require.NoError(t, err)
	assert.True(t, change.Applied)
	assert.True(t, change.ClearSelection)
}

func TestPlanStageChangeForwardKeepsSelection(t *testing.T) {
	selected := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	session := &Session{KanbanStatus: EditingStage, SelectionCompletedDate: &selected}
	change, err := PlanStageChange(session, "Final Delivery")
	require.NoError(t, err)
	assert.True(t, change.Applied)
	assert.False(t, change.ClearSelection)
}

func TestPlanStageChangeArchive(t *testing.T) {
	selected := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	session := &Session{KanbanStatus: "Printing", SelectionCompletedDate: &selected}
	change, err := PlanStageChange(session, ArchiveStage())
	require.NoError(t, err)
	assert.True(t, change.Applied)
	assert.True(t, change.Archived)
}

func deadlineSession(shootDaysAgo int, selectionDaysAgo *int, selectionDeadline, editingDeadline int) Session {
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)
	session := Session{
		KanbanStatus: "Selection",
		Date:         now.AddDate(0, 0, -shootDaysAgo),
		Type: TypeInfo{
			SelectionDeadlineDays: selectionDeadline,
			EditingDeadlineDays:   editingDeadline,
		},
	}
	if selectionDaysAgo != nil {
		d := now.AddDate(0, 0, -*selectionDaysAgo)
		session.SelectionCompletedDate = &d
	}
	return session
}

func TestDeadlineStatusSelectionPending(t *testing.T) {
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		daysAgo  int
		expected DeadlineBand
	}{
		{"half of deadline is ok", 4, DeadlineOk},
		{"exactly 50 percent is ok", 5, DeadlineOk},
		{"between 50 and 75 percent is due", 7, DeadlineDue},
		{"past 75 percent is urgent", 8, DeadlineUrgent},
		{"day before deadline is urgent", 9, DeadlineUrgent},
		{"deadline reached is overdue", 10, DeadlineOverdue},
		{"long past deadline is overdue", 30, DeadlineOverdue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			session := deadlineSession(tc.daysAgo, nil, 10, 15)
			assert.Equal(t, tc.expected, DeadlineStatus(session, now))
		})
	}
}

func TestDeadlineStatusSelectionDone(t *testing.T) {
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		daysAgo  int
		expected DeadlineBand
	}{
		{"within half is ok", 5, DeadlineOk},
		{"at 80 percent is due", 8, DeadlineDue},
		{"past 80 percent is urgent", 9, DeadlineUrgent},
		{"deadline reached is overdue", 10, DeadlineOverdue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			session := deadlineSession(30, &tc.daysAgo, 4, 10)
			assert.Equal(t, tc.expected, DeadlineStatus(session, now))
		})
	}
}

func TestDeadlineStatusEdgeCases(t *testing.T) {
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)

	archived := deadlineSession(30, nil, 10, 15)
	archived.KanbanStatus = ArchiveStage()
	assert.Equal(t, DeadlineNone, DeadlineStatus(archived, now))

	noSLA := deadlineSession(30, nil, 0, 15)
	assert.Equal(t, DeadlineNone, DeadlineStatus(noSLA, now))

	// Future-dated shoot: elapsed days floor at zero.
	future := deadlineSession(-5, nil, 10, 15)
	assert.Equal(t, DeadlineOk, DeadlineStatus(future, now))
}

func TestStageIndex(t *testing.T) {
	assert.Equal(t, 0, StageIndex("Scheduled"))
	assert.Equal(t, len(KanbanStages)-1, StageIndex(ArchiveStage()))
	assert.Equal(t, -1, StageIndex("nope"))
}
