package goals

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrGoalNotActive indicates a contribution was attempted on a concluded
	// or cancelled goal.
	ErrGoalNotActive = errors.New("goals: goal is not active")
	// ErrGoalMet indicates the saved total already covers the target.
	ErrGoalMet = errors.New("goals: target already reached")
)

// Service handles savings goal business logic.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new goal.
func (s *Service) Create(ctx context.Context, goal Goal) (int64, error) {
	goal.Status = StatusActive
	id, err := s.repo.Create(ctx, goal)
	if err != nil {
		return 0, fmt.Errorf("create goal: %w", err)
	}
	return id, nil
}

// Update persists a goal's fields including status.
func (s *Service) Update(ctx context.Context, goal Goal) error {
	if err := s.repo.Update(ctx, goal); err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	return nil
}

// Conclude marks a goal as concluded.
func (s *Service) Conclude(ctx context.Context, id int64) error {
	return s.repo.UpdateStatus(ctx, id, StatusConcluded)
}

// Delete removes a goal with its contributions.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// List returns goals with their progress, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status) ([]Progress, error) {
	goals, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, err
	}
	saved, err := s.repo.SavedValues(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Progress, 0, len(goals))
	for _, goal := range goals {
		out = append(out, progressFor(goal, saved[goal.ID]))
	}
	return out, nil
}

// Detail bundles a goal's progress with its contribution history.
type Detail struct {
	Progress
	Contributions []Contribution
}

// Detail loads one goal's progress and contributions.
func (s *Service) Detail(ctx context.Context, id int64) (*Detail, error) {
	goal, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	saved, err := s.repo.SavedValue(ctx, id)
	if err != nil {
		return nil, err
	}
	contributions, err := s.repo.ListContributions(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Progress: progressFor(*goal, saved), Contributions: contributions}, nil
}

// Contribute records a deposit. Only active goals below target accept
// contributions. The returned flag reports whether this deposit reached the
// target, so the handler can suggest concluding.
func (s *Service) Contribute(ctx context.Context, c Contribution) (reachedTarget bool, err error) {
	goal, err := s.repo.Get(ctx, c.GoalID)
	if err != nil {
		return false, err
	}
	if goal.Status != StatusActive {
		return false, ErrGoalNotActive
	}

	saved, err := s.repo.SavedValue(ctx, c.GoalID)
	if err != nil {
		return false, err
	}
	if saved.GreaterThanOrEqual(goal.TargetValue) {
		return false, ErrGoalMet
	}

	if _, err := s.repo.AddContribution(ctx, c); err != nil {
		return false, fmt.Errorf("add contribution: %w", err)
	}
	return saved.Add(c.Value).GreaterThanOrEqual(goal.TargetValue), nil
}

// RemoveContribution deletes a deposit. A concluded goal whose saved total
// drops below target reverts to active; the returned flag reports that.
func (s *Service) RemoveContribution(ctx context.Context, goalID, contributionID int64) (reverted bool, err error) {
	c, err := s.repo.GetContribution(ctx, contributionID)
	if err != nil {
		return false, err
	}
	if c.GoalID != goalID {
		return false, ErrNotFound
	}
	if err := s.repo.DeleteContribution(ctx, contributionID); err != nil {
		return false, err
	}

	goal, err := s.repo.Get(ctx, goalID)
	if err != nil {
		return false, err
	}
	if goal.Status != StatusConcluded {
		return false, nil
	}
	saved, err := s.repo.SavedValue(ctx, goalID)
	if err != nil {
		return false, err
	}
	if saved.LessThan(goal.TargetValue) {
		if err := s.repo.UpdateStatus(ctx, goalID, StatusActive); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}
