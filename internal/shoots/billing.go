package shoots

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/obscura-studio/obscura/internal/finance"
)

// Legacy description prefixes. Rows created before the category column existed
// carry no category tag and are identified by these prefixes; they must stay
// byte-identical to the historical data.
const (
	legacyPrefixDownPayment = "Entrada ensaio"
	legacyPrefixSettlement  = "Pag. final ensaio"
	legacyPrefixExtraPhotos = "Fotos extras ensaio"
	legacyPrefixPrinting    = "Impressões ensaio"
	legacyPrefixCost        = "Custo ensaio"
)

// LedgerStore is the staged-mutation surface the billing sync operates on.
// Implementations run inside the caller's transaction boundary; the sync
// never commits on its own.
type LedgerStore interface {
	ListBySession(ctx context.Context, sessionID int64) ([]finance.Transaction, error)
	CreateTransaction(ctx context.Context, tx finance.Transaction) (int64, error)
	UpdateTransaction(ctx context.Context, tx finance.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
}

// BillingIntent is the billing snapshot submitted with a session form: which
// categories should currently have money recorded, and at what value.
type BillingIntent struct {
	TotalValue          decimal.Decimal
	DownPayment         decimal.Decimal
	Cost                decimal.Decimal
	ExtraPhotosQty      int
	ExtraPhotoUnitPrice decimal.Decimal
	PrintingQty         int
	PrintingUnitPrice   decimal.Decimal

	DownPaymentPaid bool
	TotalValuePaid  bool
	ExtraPhotosPaid bool
	PrintingPaid    bool

	// Date stamps the synced transactions; zero means the session's shoot date.
	Date time.Time
}

// BillingSync reconciles a session's ledger transactions against a billing
// intent. At most one transaction exists per (session, category) pair, and
// repeated application of the same intent converges to the same ledger state.
type BillingSync struct {
	ledger LedgerStore
}

// NewBillingSync constructs a BillingSync over the given ledger store.
func NewBillingSync(ledger LedgerStore) *BillingSync {
	return &BillingSync{ledger: ledger}
}

type categoryPolicy struct {
	category     finance.Category
	txType       finance.Type
	shouldExist  bool
	value        decimal.Decimal
	legacyPrefix string
	description  string
}

// Apply stages create/update/delete operations so the ledger reflects the
// intent. Manual transactions without a recognized category are never touched
// unless they match a legacy prefix for a category being synced.
func (b *BillingSync) Apply(ctx context.Context, session *Session, intent BillingIntent) error {
	date := intent.Date
	if date.IsZero() {
		date = session.Date
	}

	remaining := intent.TotalValue.Sub(intent.DownPayment)
	extraPhotos := decimal.NewFromInt(int64(intent.ExtraPhotosQty)).Mul(intent.ExtraPhotoUnitPrice)
	printing := decimal.NewFromInt(int64(intent.PrintingQty)).Mul(intent.PrintingUnitPrice)

	policies := []categoryPolicy{
		{
			category:     finance.CategoryDownPayment,
			txType:       finance.TypeEntry,
			shouldExist:  intent.DownPaymentPaid,
			value:        intent.DownPayment,
			legacyPrefix: legacyPrefixDownPayment,
			description:  fmt.Sprintf("%s (%s): %s", legacyPrefixDownPayment, session.Type.Name, session.Code),
		},
		{
			// A session fully covered by its down payment never gets a
			// zero-value settlement row.
			category:     finance.CategorySettlement,
			txType:       finance.TypeEntry,
			shouldExist:  intent.TotalValuePaid && remaining.IsPositive(),
			value:        remaining,
			legacyPrefix: legacyPrefixSettlement,
			description:  fmt.Sprintf("%s: %s", legacyPrefixSettlement, session.Code),
		},
		{
			category:     finance.CategoryExtraPhotos,
			txType:       finance.TypeEntry,
			shouldExist:  intent.ExtraPhotosPaid,
			value:        extraPhotos,
			legacyPrefix: legacyPrefixExtraPhotos,
			description:  fmt.Sprintf("%s: %s", legacyPrefixExtraPhotos, session.Code),
		},
		{
			category:     finance.CategoryPrinting,
			txType:       finance.TypeEntry,
			shouldExist:  intent.PrintingPaid,
			value:        printing,
			legacyPrefix: legacyPrefixPrinting,
			description:  fmt.Sprintf("%s: %s", legacyPrefixPrinting, session.Code),
		},
		{
			// Cost has no paid flag: it is recorded as an outflow whenever set.
			category:     finance.CategoryCost,
			txType:       finance.TypeExit,
			shouldExist:  intent.Cost.IsPositive(),
			value:        intent.Cost,
			legacyPrefix: legacyPrefixCost,
			description:  fmt.Sprintf("%s: %s", legacyPrefixCost, session.Code),
		},
	}

	transactions, err := b.ledger.ListBySession(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("shoots: list session transactions: %w", err)
	}

	for _, policy := range policies {
		transactions, err = b.syncCategory(ctx, session, transactions, policy, date)
		if err != nil {
			return fmt.Errorf("shoots: sync %s: %w", policy.category, err)
		}
	}
	return nil
}

// syncCategory reconciles a single (session, category) pair against policy and
// returns the updated transaction snapshot.
func (b *BillingSync) syncCategory(ctx context.Context, session *Session, transactions []finance.Transaction, policy categoryPolicy, date time.Time) ([]finance.Transaction, error) {
	idx := findManaged(transactions, policy.category, policy.legacyPrefix)

	if policy.shouldExist && policy.value.IsPositive() {
		if idx >= 0 {
			managed := transactions[idx]
			managed.Value = policy.value
			managed.Date = date
			if managed.Category == finance.CategoryNone {
				// Opportunistic backfill of pre-category rows.
				managed.Category = policy.category
			}
			if err := b.ledger.UpdateTransaction(ctx, managed); err != nil {
				return transactions, err
			}
			transactions[idx] = managed
			return transactions, nil
		}

		sessionID := session.ID
		created := finance.Transaction{
			Description: policy.description,
			Type:        policy.txType,
			Value:       policy.value,
			Date:        date,
			Status:      finance.StatusRealized,
			Category:    policy.category,
			SessionID:   &sessionID,
		}
		id, err := b.ledger.CreateTransaction(ctx, created)
		if err != nil {
			return transactions, err
		}
		created.ID = id
		return append(transactions, created), nil
	}

	if idx >= 0 {
		if err := b.ledger.DeleteTransaction(ctx, transactions[idx].ID); err != nil {
			return transactions, err
		}
		return append(transactions[:idx], transactions[idx+1:]...), nil
	}
	return transactions, nil
}

// findManaged locates the transaction owned by a category: exact tag match
// first, then the legacy untagged-description fallback.
func findManaged(transactions []finance.Transaction, category finance.Category, legacyPrefix string) int {
	for i, t := range transactions {
		if t.Category == category {
			return i
		}
	}
	if legacyPrefix == "" {
		return -1
	}
	for i, t := range transactions {
		if t.Category == finance.CategoryNone && strings.HasPrefix(t.Description, legacyPrefix) {
			return i
		}
	}
	return -1
}

// HasManagedTransaction reports whether a category is currently recorded for
// the session, honoring the legacy prefix fallback. Used to pre-fill the paid
// checkboxes on the edit form.
func HasManagedTransaction(transactions []finance.Transaction, category finance.Category) bool {
	return findManaged(transactions, category, legacyPrefixFor(category)) >= 0
}

func legacyPrefixFor(category finance.Category) string {
	switch category {
	case finance.CategoryDownPayment:
		return legacyPrefixDownPayment
	case finance.CategorySettlement:
		return legacyPrefixSettlement
	case finance.CategoryExtraPhotos:
		return legacyPrefixExtraPhotos
	case finance.CategoryPrinting:
		return legacyPrefixPrinting
	case finance.CategoryCost:
		return legacyPrefixCost
	default:
		return ""
	}
}
