package partner

import (
	"fmt"
	"sort"

	"github.com/cobranza/backend/internal/domain/shared"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditBalanceService computes and applies a partner's unused credit
// balance from open credit notes. Balances are tracked per currency.
type CreditBalanceService struct{}

// NewCreditBalanceService creates a credit balance service
func NewCreditBalanceService() *CreditBalanceService {
	return &CreditBalanceService{}
}

// AvailableBalance sums the remaining amounts of usable credit notes in the
// given currency. Pending amounts are sums already earmarked by in-flight
// payments and are subtracted when excludePending is set.
func (s *CreditBalanceService) AvailableBalance(notes []*CreditNote, ccy valueobject.Currency, pending decimal.Decimal, excludePending bool) decimal.Decimal {
	total := decimal.Zero
	for _, note := range notes {
		if note == nil || !note.Status.Usable() {
			continue
		}
		if note.Currency != ccy {
			continue
		}
		total = total.Add(note.RemainingAmount)
	}
	if excludePending && pending.GreaterThan(decimal.Zero) {
		total = total.Sub(pending)
		if total.IsNegative() {
			total = decimal.Zero
		}
	}
	return total
}

// BalanceConsumption records how much of a single credit note funded a payment
type BalanceConsumption struct {
	NoteID   uuid.UUID
	NoteCode string
	Amount   decimal.Decimal
}

// ApplyBalance consumes the given amount from the partner's open credit
// notes, oldest issue date first. Fails with ErrInsufficientBalance when the
// amount exceeds what the notes can cover; partial application never happens.
func (s *CreditBalanceService) ApplyBalance(notes []*CreditNote, ccy valueobject.Currency, amount decimal.Decimal) ([]BalanceConsumption, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Applied balance must be positive")
	}

	available := s.AvailableBalance(notes, ccy, decimal.Zero, false)
	if amount.GreaterThan(available) {
		return nil, fmt.Errorf("%w: requested %s exceeds available %s %s",
			shared.ErrInsufficientBalance, amount.StringFixed(2), available.StringFixed(2), ccy)
	}

	usable := make([]*CreditNote, 0, len(notes))
	for _, note := range notes {
		if note != nil && note.Status.Usable() && note.Currency == ccy {
			usable = append(usable, note)
		}
	}
	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].IssuedAt.Before(usable[j].IssuedAt)
	})

	remaining := amount
	consumptions := make([]BalanceConsumption, 0, len(usable))
	for _, note := range usable {
		if remaining.IsZero() {
			break
		}
		take := decimal.Min(remaining, note.RemainingAmount)
		if err := note.Consume(take); err != nil {
			return nil, err
		}
		consumptions = append(consumptions, BalanceConsumption{
			NoteID:   note.ID,
			NoteCode: note.Code,
			Amount:   take,
		})
		remaining = remaining.Sub(take)
	}
	return consumptions, nil
}
