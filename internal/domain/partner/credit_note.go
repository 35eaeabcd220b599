package partner

import (
	"fmt"
	"time"

	"github.com/cobranza/backend/internal/domain/shared"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// CreditNoteStatus represents the lifecycle status of a credit note
type CreditNoteStatus string

const (
	CreditNoteStatusOpen     CreditNoteStatus = "OPEN"     // Has remaining amount
	CreditNoteStatusConsumed CreditNoteStatus = "CONSUMED" // Fully consumed by balance-crossing payments
	CreditNoteStatusVoid     CreditNoteStatus = "VOID"     // Voided, never usable
)

// IsValid checks if the status is a valid CreditNoteStatus
func (s CreditNoteStatus) IsValid() bool {
	switch s {
	case CreditNoteStatusOpen, CreditNoteStatusConsumed, CreditNoteStatusVoid:
		return true
	}
	return false
}

// String returns the string representation
func (s CreditNoteStatus) String() string {
	return string(s)
}

// Usable returns true if the note can still fund balance-crossing payments
func (s CreditNoteStatus) Usable() bool {
	return s == CreditNoteStatusOpen
}

// CreditNote represents unused credit a partner holds against the company,
// issued by the billing workflow or left by an overpayment. RemainingAmount
// decreases monotonically as balance-crossing payments consume it.
type CreditNote struct {
	shared.BaseEntity
	Code            string               `json:"code"`
	PartnerID       string               `json:"partner_id"`
	Currency        valueobject.Currency `json:"currency"`
	Total           decimal.Decimal      `json:"total"`
	RemainingAmount decimal.Decimal      `json:"remaining_amount"`
	Status          CreditNoteStatus     `json:"status"`
	IssuedAt        time.Time            `json:"issued_at"`
}

// NewCreditNote creates a credit note snapshot
func NewCreditNote(code, partnerID string, ccy valueobject.Currency, total decimal.Decimal, issuedAt time.Time) (*CreditNote, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CREDIT_NOTE", "Credit note code cannot be empty")
	}
	if partnerID == "" {
		return nil, shared.NewDomainError("INVALID_PARTNER", "Partner ID cannot be empty")
	}
	if ccy == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Currency cannot be empty")
	}
	if total.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Credit note total must be positive")
	}
	return &CreditNote{
		BaseEntity:      shared.NewBaseEntity(),
		Code:            code,
		PartnerID:       partnerID,
		Currency:        ccy,
		Total:           total,
		RemainingAmount: total,
		Status:          CreditNoteStatusOpen,
		IssuedAt:        issuedAt,
	}, nil
}

// Consume reduces the remaining amount by the given value.
// The remaining amount never goes negative.
func (cn *CreditNote) Consume(amount decimal.Decimal) error {
	if !cn.Status.Usable() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot consume credit note in %s status", cn.Status))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Consumed amount must be positive")
	}
	if amount.GreaterThan(cn.RemainingAmount) {
		return shared.NewDomainError("EXCEEDS_REMAINING",
			fmt.Sprintf("Consumed amount %s exceeds remaining %s", amount.StringFixed(2), cn.RemainingAmount.StringFixed(2)))
	}

	cn.RemainingAmount = cn.RemainingAmount.Sub(amount)
	if cn.RemainingAmount.IsZero() {
		cn.Status = CreditNoteStatusConsumed
	}
	cn.UpdatedAt = time.Now()
	return nil
}

// GetRemainingMoney returns the remaining amount as Money
func (cn *CreditNote) GetRemainingMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(cn.RemainingAmount, cn.Currency)
	return m
}
