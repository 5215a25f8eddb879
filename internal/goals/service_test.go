package goals

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	goals         map[int64]*Goal
	contributions map[int64]*Contribution
	nextID        int64
	nextContribID int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		goals:         make(map[int64]*Goal),
		contributions: make(map[int64]*Contribution),
		nextID:        1,
		nextContribID: 1,
	}
}

func (m *mockRepository) Create(ctx context.Context, goal Goal) (int64, error) {
	id := m.nextID
	m.nextID++
	goal.ID = id
	m.goals[id] = &goal
	return id, nil
}

func (m *mockRepository) Update(ctx context.Context, goal Goal) error {
	if _, ok := m.goals[goal.ID]; !ok {
		return ErrNotFound
	}
	copied := goal
	m.goals[goal.ID] = &copied
	return nil
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	g, ok := m.goals[id]
	if !ok {
		return ErrNotFound
	}
	g.Status = status
	return nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Goal, error) {
	g, ok := m.goals[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *g
	return &copied, nil
}

func (m *mockRepository) List(ctx context.Context, status Status) ([]Goal, error) {
	var out []Goal
	for _, g := range m.goals {
		if status != "" && g.Status != status {
			continue
		}
		out = append(out, *g)
	}
	return out, nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.goals[id]; !ok {
		return ErrNotFound
	}
	delete(m.goals, id)
	for cid, c := range m.contributions {
		if c.GoalID == id {
			delete(m.contributions, cid)
		}
	}
	return nil
}

func (m *mockRepository) AddContribution(ctx context.Context, c Contribution) (int64, error) {
	id := m.nextContribID
	m.nextContribID++
	c.ID = id
	m.contributions[id] = &c
	return id, nil
}

func (m *mockRepository) ListContributions(ctx context.Context, goalID int64) ([]Contribution, error) {
	var out []Contribution
	for _, c := range m.contributions {
		if c.GoalID == goalID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockRepository) GetContribution(ctx context.Context, id int64) (*Contribution, error) {
	c, ok := m.contributions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *mockRepository) DeleteContribution(ctx context.Context, id int64) error {
	if _, ok := m.contributions[id]; !ok {
		return ErrNotFound
	}
	delete(m.contributions, id)
	return nil
}

func (m *mockRepository) SavedValue(ctx context.Context, goalID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, c := range m.contributions {
		if c.GoalID == goalID {
			total = total.Add(c.Value)
		}
	}
	return total, nil
}

func (m *mockRepository) SavedValues(ctx context.Context) (map[int64]decimal.Decimal, error) {
	out := make(map[int64]decimal.Decimal)
	for _, c := range m.contributions {
		out[c.GoalID] = out[c.GoalID].Add(c.Value)
	}
	return out, nil
}

var _ Repository = (*mockRepository)(nil)

func seedGoal(t *testing.T, repo *mockRepository, target string) int64 {
	t.Helper()
	id, err := repo.Create(context.Background(), Goal{
		Name:        "New camera body",
		TargetValue: decimal.RequireFromString(target),
		Status:      StatusActive,
	})
	require.NoError(t, err)
	return id
}

func contribute(t *testing.T, service *Service, goalID int64, value string) bool {
	t.Helper()
	reached, err := service.Contribute(context.Background(), Contribution{
		GoalID: goalID,
		Value:  decimal.RequireFromString(value),
		Date:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return reached
}

func TestServiceContributeAndProgress(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	id := seedGoal(t, repo, "1000.00")

	assert.False(t, contribute(t, service, id, "250.00"))

	detail, err := service.Detail(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, detail.SavedValue.Equal(decimal.RequireFromString("250.00")))
	assert.True(t, detail.RemainingValue.Equal(decimal.RequireFromString("750.00")))
	assert.True(t, detail.ProgressPercent.Equal(decimal.RequireFromString("25")))
	assert.Len(t, detail.Contributions, 1)
}

func TestServiceContributeReportsTargetReached(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	id := seedGoal(t, repo, "500.00")

	assert.False(t, contribute(t, service, id, "400.00"))
	assert.True(t, contribute(t, service, id, "100.00"))
}

func TestServiceContributeRefusedOnMetGoal(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	id := seedGoal(t, repo, "500.00")

	contribute(t, service, id, "500.00")

	_, err := service.Contribute(context.Background(), Contribution{
		GoalID: id,
		Value:  decimal.RequireFromString("1.00"),
		Date:   time.Now(),
	})
	assert.ErrorIs(t, err, ErrGoalMet)
}

func TestServiceContributeRefusedOnInactiveGoal(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	id := seedGoal(t, repo, "500.00")
	require.NoError(t, service.Conclude(context.Background(), id))

	_, err := service.Contribute(context.Background(), Contribution{
		GoalID: id,
		Value:  decimal.RequireFromString("10.00"),
		Date:   time.Now(),
	})
	assert.ErrorIs(t, err, ErrGoalNotActive)
}

func TestServiceRemoveContributionRevertsConcludedGoal(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	id := seedGoal(t, repo, "500.00")

	contribute(t, service, id, "300.00")
	contribute(t, service, id, "200.00")
	require.NoError(t, service.Conclude(context.Background(), id))

	var lastContribID int64
	for cid := range repo.contributions {
		if cid > lastContribID {
			lastContribID = cid
		}
	}

	reverted, err := service.RemoveContribution(context.Background(), id, lastContribID)
	require.NoError(t, err)
	assert.True(t, reverted)
	assert.Equal(t, StatusActive, repo.goals[id].Status)
}

func TestServiceRemoveContributionKeepsConcludedWhenStillMet(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	id := seedGoal(t, repo, "500.00")

	contribute(t, service, id, "500.00")
	// A small extra deposit recorded before the goal was concluded.
	_, err := repo.AddContribution(context.Background(), Contribution{
		GoalID: id,
		Value:  decimal.RequireFromString("50.00"),
		Date:   time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, service.Conclude(context.Background(), id))

	reverted, err := service.RemoveContribution(context.Background(), id, 2)
	require.NoError(t, err)
	assert.False(t, reverted)
	assert.Equal(t, StatusConcluded, repo.goals[id].Status)
}

func TestServiceRemoveContributionGoalMismatch(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	first := seedGoal(t, repo, "500.00")
	other := seedGoal(t, repo, "900.00")

	contribute(t, service, first, "100.00")

	_, err := service.RemoveContribution(context.Background(), other, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, repo.contributions, int64(1), "mismatched delete must not remove the row")
}

func TestServiceListProgress(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	id := seedGoal(t, repo, "1000.00")
	contribute(t, service, id, "100.00")

	zeroTarget, err := repo.Create(context.Background(), Goal{Name: "Untargeted", Status: StatusActive})
	require.NoError(t, err)

	list, err := service.List(context.Background(), StatusActive)
	require.NoError(t, err)
	require.Len(t, list, 2)

	for _, p := range list {
		switch p.Goal.ID {
		case id:
			assert.True(t, p.ProgressPercent.Equal(decimal.RequireFromString("10")))
		case zeroTarget:
			assert.True(t, p.ProgressPercent.IsZero(), "zero target must not divide")
		}
	}
}
