package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Service handles configuration and session type business logic.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Pricing reads the default unit prices. Missing keys read as zero so a fresh
// install works without seeding.
func (s *Service) Pricing(ctx context.Context) (Pricing, error) {
	extraPhoto, err := s.priceValue(ctx, KeyExtraPhotoPrice)
	if err != nil {
		return Pricing{}, err
	}
	printing, err := s.priceValue(ctx, KeyPrintingPrice)
	if err != nil {
		return Pricing{}, err
	}
	return Pricing{ExtraPhotoPrice: extraPhoto, PrintingPrice: printing}, nil
}

func (s *Service) priceValue(ctx context.Context, key string) (decimal.Decimal, error) {
	raw, err := s.repo.GetValue(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("settings: bad stored price %q for %s: %w", raw, key, err)
	}
	return value, nil
}

// SavePricing stores the default unit prices.
func (s *Service) SavePricing(ctx context.Context, pricing Pricing) error {
	if err := s.repo.SetValue(ctx, KeyExtraPhotoPrice, pricing.ExtraPhotoPrice.String()); err != nil {
		return fmt.Errorf("save extra photo price: %w", err)
	}
	if err := s.repo.SetValue(ctx, KeyPrintingPrice, pricing.PrintingPrice.String()); err != nil {
		return fmt.Errorf("save printing price: %w", err)
	}
	return nil
}

// CreateType registers a session type, uppercasing the abbreviation.
func (s *Service) CreateType(ctx context.Context, t SessionType) (int64, error) {
	t.Abbreviation = strings.ToUpper(strings.TrimSpace(t.Abbreviation))
	id, err := s.repo.CreateType(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("create session type: %w", err)
	}
	return id, nil
}

// UpdateType persists changes to a session type.
func (s *Service) UpdateType(ctx context.Context, t SessionType) error {
	t.Abbreviation = strings.ToUpper(strings.TrimSpace(t.Abbreviation))
	if err := s.repo.UpdateType(ctx, t); err != nil {
		return fmt.Errorf("update session type: %w", err)
	}
	return nil
}

// GetType fetches one session type.
func (s *Service) GetType(ctx context.Context, id int64) (*SessionType, error) {
	return s.repo.GetType(ctx, id)
}

// ListTypes returns every session type.
func (s *Service) ListTypes(ctx context.Context) ([]SessionType, error) {
	return s.repo.ListTypes(ctx)
}

// DeleteType removes a session type unless sessions still reference it.
func (s *Service) DeleteType(ctx context.Context, id int64) error {
	inUse, err := s.repo.TypeInUse(ctx, id)
	if err != nil {
		return err
	}
	if inUse {
		return ErrTypeInUse
	}
	return s.repo.DeleteType(ctx, id)
}
