package clients

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Service handles client CRM business logic.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// normalize trims the form fields and uppercases the state abbreviation.
func normalize(client Client) Client {
	client.Name = strings.TrimSpace(client.Name)
	client.Email = strings.TrimSpace(client.Email)
	client.AddressState = strings.ToUpper(strings.TrimSpace(client.AddressState))
	return client
}

// Create registers a new client.
func (s *Service) Create(ctx context.Context, client Client) (int64, error) {
	client = normalize(client)
	id, err := s.repo.Create(ctx, client)
	if err != nil {
		return 0, fmt.Errorf("create client: %w", err)
	}
	return id, nil
}

// Update persists changes to a client.
func (s *Service) Update(ctx context.Context, client Client) error {
	client = normalize(client)
	if err := s.repo.Update(ctx, client); err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	return nil
}

// Get fetches one client by id.
func (s *Service) Get(ctx context.Context, id int64) (*Client, error) {
	return s.repo.Get(ctx, id)
}

// List returns clients matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Client, error) {
	return s.repo.List(ctx, filter)
}

// DetailByName loads the detail page data for a client addressed by name.
func (s *Service) DetailByName(ctx context.Context, name string) (*Detail, error) {
	client, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	sessions, err := s.repo.Sessions(ctx, client.ID)
	if err != nil {
		return nil, err
	}
	interactions, err := s.repo.ListInteractions(ctx, client.ID)
	if err != nil {
		return nil, err
	}
	totalPaid, err := s.repo.TotalPaid(ctx, client.ID)
	if err != nil {
		return nil, err
	}
	paidAmounts, err := s.repo.PaidBySession(ctx, client.ID)
	if err != nil {
		return nil, err
	}
	return &Detail{
		Client:       *client,
		Sessions:     sessions,
		Interactions: interactions,
		TotalPaid:    totalPaid,
		PaidAmounts:  paidAmounts,
	}, nil
}

// AddInteraction records a touchpoint, defaulting its date to today.
func (s *Service) AddInteraction(ctx context.Context, log InteractionLog) (int64, error) {
	if _, err := s.repo.Get(ctx, log.ClientID); err != nil {
		return 0, err
	}
	if log.Date.IsZero() {
		log.Date = s.now()
	}
	id, err := s.repo.AddInteraction(ctx, log)
	if err != nil {
		return 0, fmt.Errorf("add interaction: %w", err)
	}
	return id, nil
}

// DeleteInteraction removes a touchpoint and returns the owning client so the
// handler can redirect back to the detail page.
func (s *Service) DeleteInteraction(ctx context.Context, id int64) (*Client, error) {
	log, err := s.repo.GetInteraction(ctx, id)
	if err != nil {
		return nil, err
	}
	client, err := s.repo.Get(ctx, log.ClientID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteInteraction(ctx, id); err != nil {
		return nil, err
	}
	return client, nil
}
