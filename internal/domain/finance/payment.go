package finance

import (
	"fmt"
	"time"

	"github.com/cobranza/backend/internal/domain/shared"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentType distinguishes money received from money paid out
type PaymentType string

const (
	PaymentTypeIncome  PaymentType = "INCOME"
	PaymentTypeExpense PaymentType = "EXPENSE"
)

// IsValid checks if the payment type is valid
func (t PaymentType) IsValid() bool {
	return t == PaymentTypeIncome || t == PaymentTypeExpense
}

// String returns the string representation
func (t PaymentType) String() string {
	return string(t)
}

// PaymentStatus represents the lifecycle status of a payment
type PaymentStatus string

const (
	PaymentStatusDraft      PaymentStatus = "DRAFT"
	PaymentStatusRegistered PaymentStatus = "REGISTERED"
)

// Allocation is the portion of one payment applied to one invoice,
// expressed in the payment's currency.
type Allocation struct {
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	InvoiceCode string          `json:"invoice_code"`
	Amount      decimal.Decimal `json:"amount"`
}

// PaymentMetadata carries the tax and funding details attached to a payment
// for downstream accounting. IGTF is additive and never allocated.
type PaymentMetadata struct {
	RetentionMethodCode string          `json:"retention_method_code,omitempty"`
	RetentionRate       decimal.Decimal `json:"retention_rate"`
	RetentionAmount     decimal.Decimal `json:"retention_amount"`
	VoucherNumber       string          `json:"voucher_number,omitempty"`
	VoucherDate         *time.Time      `json:"voucher_date,omitempty"`
	IgtfAmount          decimal.Decimal `json:"igtf_amount"`
	BalanceCrossing     bool            `json:"balance_crossing"`
	DegradedConversion  bool            `json:"degraded_conversion"`
}

// Payment is the aggregate the engine produces: a gross amount in one
// currency plus the allocation set the external ledger applies atomically.
// Once registered it is immutable; corrections happen by voiding at the
// ledger, never by editing.
type Payment struct {
	shared.BaseAggregateRoot
	PartnerID     uuid.UUID            `json:"partner_id"`
	InvoiceID     *uuid.UUID           `json:"invoice_id,omitempty"` // legacy single-invoice mode
	MethodCode    string               `json:"method_code"`
	Currency      valueobject.Currency `json:"currency"`
	Amount        decimal.Decimal      `json:"amount"`
	Type          PaymentType          `json:"type"`
	Reference     string               `json:"reference"`
	BankAccountID *uuid.UUID           `json:"bank_account_id,omitempty"`
	Status        PaymentStatus        `json:"status"`
	Allocations   []Allocation         `json:"allocations"`
	Metadata      PaymentMetadata      `json:"metadata"`
	ReceivedAt    time.Time            `json:"received_at"`
}

// NewPayment creates a draft payment
func NewPayment(partnerID uuid.UUID, methodCode string, ccy valueobject.Currency, amount decimal.Decimal, paymentType PaymentType, receivedAt time.Time) (*Payment, error) {
	if partnerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PARTNER", "Partner ID cannot be empty")
	}
	if methodCode == "" {
		return nil, shared.NewDomainError("INVALID_METHOD_CODE", "Payment method code cannot be empty")
	}
	if ccy == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Payment currency cannot be empty")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if !paymentType.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_TYPE", "Payment type must be INCOME or EXPENSE")
	}
	return &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PartnerID:         partnerID,
		MethodCode:        methodCode,
		Currency:          ccy,
		Amount:            amount,
		Type:              paymentType,
		Status:            PaymentStatusDraft,
		Allocations:       make([]Allocation, 0),
		ReceivedAt:        receivedAt,
	}, nil
}

// AmountMoney returns the gross amount as Money
func (p *Payment) AmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(p.Amount, p.Currency)
	return m
}

// AllocatedTotal returns the sum of allocation amounts, in payment currency
func (p *Payment) AllocatedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range p.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// Remainder is the portion of the gross amount not applied to any invoice.
// A positive remainder becomes future credit balance, it is never dropped.
func (p *Payment) Remainder() decimal.Decimal {
	r := p.Amount.Sub(p.AllocatedTotal())
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// SetAllocations replaces the allocation set on a draft payment.
// The allocation sum may exceed the gross amount only within the rounding
// tolerance.
func (p *Payment) SetAllocations(allocations []Allocation) error {
	if p.Status == PaymentStatusRegistered {
		return shared.NewDomainError("PAYMENT_IMMUTABLE", "Cannot modify a registered payment")
	}
	total := decimal.Zero
	for _, a := range allocations {
		if a.Amount.IsNegative() {
			return shared.NewDomainError("INVALID_ALLOCATION", "Allocation amounts cannot be negative")
		}
		total = total.Add(a.Amount)
	}
	if total.GreaterThan(p.Amount.Add(AllocationEpsilon)) {
		return shared.NewDomainError("OVER_ALLOCATION",
			fmt.Sprintf("Allocation total %s exceeds payment amount %s", total.StringFixed(2), p.Amount.StringFixed(2)))
	}
	p.Allocations = allocations
	p.UpdatedAt = time.Now()
	return nil
}

// Register marks the payment as registered at the ledger; it is immutable
// from this point on.
func (p *Payment) Register() error {
	if p.Status == PaymentStatusRegistered {
		return shared.NewDomainError("INVALID_STATE", "Payment is already registered")
	}
	p.Status = PaymentStatusRegistered
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	return nil
}

// IsRegistered returns true once the payment has been registered
func (p *Payment) IsRegistered() bool {
	return p.Status == PaymentStatusRegistered
}
