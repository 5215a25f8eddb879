package shoots

import (
	"context"
	"fmt"
	"time"

	"github.com/obscura-studio/obscura/internal/finance"
)

// Service handles session business logic: CRUD, billing reconciliation and
// the kanban stage machine.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput collects everything needed to register a shoot.
type CreateInput struct {
	ClientID      int64
	SessionTypeID int64
	Date          time.Time
	Notes         string
	Billing       BillingIntent
}

// Create registers a new session, generates its code and reconciles the
// ledger, all inside one transaction.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Session, error) {
	var created *Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		typeInfo, err := repo.GetTypeInfo(ctx, input.SessionTypeID)
		if err != nil {
			return fmt.Errorf("get session type: %w", err)
		}
		clientName, err := repo.GetClientName(ctx, input.ClientID)
		if err != nil {
			return fmt.Errorf("get client: %w", err)
		}

		session := Session{
			Code:                "TEMP",
			Date:                input.Date,
			TotalValue:          input.Billing.TotalValue,
			DownPayment:         input.Billing.DownPayment,
			Cost:                input.Billing.Cost,
			ExtraPhotosQty:      input.Billing.ExtraPhotosQty,
			ExtraPhotoUnitPrice: input.Billing.ExtraPhotoUnitPrice,
			PrintingQty:         input.Billing.PrintingQty,
			PrintingUnitPrice:   input.Billing.PrintingUnitPrice,
			Notes:               input.Notes,
			KanbanStatus:        FirstStage(),
			ClientID:            input.ClientID,
			ClientName:          clientName,
			Type:                typeInfo,
		}

		id, err := repo.CreateSession(ctx, session)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		session.ID = id
		session.Code = BuildSessionCode(session.Date, clientName, typeInfo.Abbreviation, id)
		if err := repo.UpdateSessionCode(ctx, id, session.Code); err != nil {
			return fmt.Errorf("set session code: %w", err)
		}

		if err := NewBillingSync(repo).Apply(ctx, &session, input.Billing); err != nil {
			return err
		}
		created = &session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateInput carries the editable session fields plus the billing snapshot.
type UpdateInput struct {
	SessionTypeID int64
	Date          time.Time
	Notes         string
	Billing       BillingIntent
}

// Update persists field changes and re-reconciles the ledger in one
// transaction. The session code is never regenerated on edit.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (*Session, error) {
	var updated *Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		session, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if input.SessionTypeID != 0 && input.SessionTypeID != session.Type.ID {
			typeInfo, err := repo.GetTypeInfo(ctx, input.SessionTypeID)
			if err != nil {
				return fmt.Errorf("get session type: %w", err)
			}
			session.Type = typeInfo
		}

		session.Date = input.Date
		session.Notes = input.Notes
		session.TotalValue = input.Billing.TotalValue
		session.DownPayment = input.Billing.DownPayment
		session.Cost = input.Billing.Cost
		session.ExtraPhotosQty = input.Billing.ExtraPhotosQty
		session.ExtraPhotoUnitPrice = input.Billing.ExtraPhotoUnitPrice
		session.PrintingQty = input.Billing.PrintingQty
		session.PrintingUnitPrice = input.Billing.PrintingUnitPrice

		if err := repo.UpdateSession(ctx, session); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		if err := NewBillingSync(repo).Apply(ctx, session, input.Billing); err != nil {
			return err
		}
		updated = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a session and, through the cascade, its linked transactions.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		return repo.DeleteSession(ctx, id)
	})
}

// Get fetches one session.
func (s *Service) Get(ctx context.Context, id int64) (*Session, error) {
	return s.repo.Get(ctx, id)
}

// List returns sessions matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Session, error) {
	return s.repo.List(ctx, filter)
}

// BillingState describes how the edit form's paid checkboxes should be
// pre-filled: flags derive from transaction presence, and categories whose
// computed amount is zero present as already settled.
type BillingState struct {
	DownPaymentPaid bool
	TotalValuePaid  bool
	ExtraPhotosPaid bool
	PrintingPaid    bool
}

// BillingState derives the paid flags for a session from its ledger rows.
func (s *Service) BillingState(ctx context.Context, session *Session) (BillingState, error) {
	transactions, err := s.repo.ListBySession(ctx, session.ID)
	if err != nil {
		return BillingState{}, err
	}

	state := BillingState{
		DownPaymentPaid: HasManagedTransaction(transactions, finance.CategoryDownPayment),
		TotalValuePaid:  HasManagedTransaction(transactions, finance.CategorySettlement),
		ExtraPhotosPaid: HasManagedTransaction(transactions, finance.CategoryExtraPhotos),
		PrintingPaid:    HasManagedTransaction(transactions, finance.CategoryPrinting),
	}
	if !session.RemainingValue().IsPositive() {
		state.TotalValuePaid = true
	}
	if !session.ExtraPhotosValue().IsPositive() {
		state.ExtraPhotosPaid = true
	}
	if !session.PrintingValue().IsPositive() {
		state.PrintingPaid = true
	}
	return state, nil
}

// RequestStageChange validates and applies a kanban transition. When the
// editing gate fires, no mutation happens and the caller must collect a
// selection date via ConfirmSelectionDate.
func (s *Service) RequestStageChange(ctx context.Context, id int64, target string) (StageChange, *Session, error) {
	var change StageChange
	var session *Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		var err error
		session, err = repo.Get(ctx, id)
		if err != nil {
			return err
		}
		change, err = PlanStageChange(session, target)
		if err != nil {
			return err
		}
		if !change.Applied {
			return nil
		}
		selectionDate := session.SelectionCompletedDate
		if change.ClearSelection {
			selectionDate = nil
		}
		if err := repo.UpdateStage(ctx, id, target, selectionDate); err != nil {
			return err
		}
		session.KanbanStatus = target
		session.SelectionCompletedDate = selectionDate
		return nil
	})
	if err != nil {
		return StageChange{}, nil, err
	}
	return change, session, nil
}

// ConfirmSelectionDate records the selection-completed date and advances the
// session to the editing stage in a single step.
func (s *Service) ConfirmSelectionDate(ctx context.Context, id int64, date time.Time) (*Session, error) {
	var session *Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		var err error
		session, err = repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.UpdateStage(ctx, id, EditingStage, &date); err != nil {
			return err
		}
		session.KanbanStatus = EditingStage
		session.SelectionCompletedDate = &date
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Restore moves an archived session back to the first pipeline stage.
func (s *Service) Restore(ctx context.Context, id int64) (*Session, error) {
	var session *Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		var err error
		session, err = repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.UpdateStage(ctx, id, FirstStage(), session.SelectionCompletedDate); err != nil {
			return err
		}
		session.KanbanStatus = FirstStage()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// BoardColumn is one kanban column with its sessions and deadline bands.
type BoardColumn struct {
	Stage    string
	Sessions []BoardCard
}

// BoardCard pairs a session with its current deadline classification.
type BoardCard struct {
	Session  Session
	Deadline DeadlineBand
}

// Board groups active sessions by stage for the kanban view. Sessions carrying
// a stage value outside the pipeline (bad historical data) land in the first
// column rather than disappearing.
func (s *Service) Board(ctx context.Context, now time.Time) ([]BoardColumn, error) {
	sessions, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	columns := make([]BoardColumn, len(KanbanStages))
	for i, stage := range KanbanStages {
		columns[i] = BoardColumn{Stage: stage}
	}
	for _, session := range sessions {
		idx := StageIndex(session.KanbanStatus)
		if idx < 0 {
			idx = 0
		}
		columns[idx].Sessions = append(columns[idx].Sessions, BoardCard{
			Session:  session,
			Deadline: DeadlineStatus(session, now),
		})
	}
	return columns, nil
}

// DeadlineAlerts returns active sessions currently urgent or overdue, the
// input for the notification job.
func (s *Service) DeadlineAlerts(ctx context.Context, now time.Time) ([]BoardCard, error) {
	sessions, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	var alerts []BoardCard
	for _, session := range sessions {
		band := DeadlineStatus(session, now)
		if band == DeadlineUrgent || band == DeadlineOverdue {
			alerts = append(alerts, BoardCard{Session: session, Deadline: band})
		}
	}
	return alerts, nil
}
