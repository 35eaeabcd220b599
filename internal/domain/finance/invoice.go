package finance

import (
	"time"

	"github.com/cobranza/backend/internal/domain/shared"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusPosted        InvoiceStatus = "POSTED"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusVoid          InvoiceStatus = "VOID"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusPosted, InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid, InvoiceStatusVoid:
		return true
	}
	return false
}

// String returns the string representation
func (s InvoiceStatus) String() string {
	return string(s)
}

// CanApplyPayment returns true if payments can be applied in this status
func (s InvoiceStatus) CanApplyPayment() bool {
	return s == InvoiceStatusPosted || s == InvoiceStatusPartiallyPaid
}

// AppliedPayment is one prior payment line embedded in an invoice snapshot,
// expressed in the invoice's currency.
type AppliedPayment struct {
	PaymentID  uuid.UUID       `json:"payment_id"`
	MethodCode string          `json:"method_code"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAt     time.Time       `json:"paid_at"`
}

// Invoice is a read snapshot of an invoice as served by the external ledger.
// The engine never mutates invoices; status transitions happen ledger-side as
// a consequence of successful payment registration.
type Invoice struct {
	shared.BaseEntity
	Code        string               `json:"code"`
	PartnerID   uuid.UUID            `json:"partner_id"`
	Currency    valueobject.Currency `json:"currency"`
	Status      InvoiceStatus        `json:"status"`
	Total       decimal.Decimal      `json:"total"`
	TotalBase   decimal.Decimal      `json:"total_base"`
	TotalTax    decimal.Decimal      `json:"total_tax"`
	TotalIgtf   decimal.Decimal      `json:"total_igtf"`
	InvoiceDate time.Time            `json:"invoice_date"`
	Payments    []AppliedPayment     `json:"payments"`
}

// NewInvoice creates an invoice snapshot
func NewInvoice(code string, partnerID uuid.UUID, ccy valueobject.Currency, status InvoiceStatus, total, totalTax decimal.Decimal, invoiceDate time.Time) (*Invoice, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_CODE", "Invoice code cannot be empty")
	}
	if ccy == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Invoice currency cannot be empty")
	}
	if !status.IsValid() {
		return nil, shared.NewDomainError("INVALID_STATUS", "Invoice status is not valid")
	}
	if total.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Invoice total must be positive")
	}
	if totalTax.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Invoice tax cannot be negative")
	}
	return &Invoice{
		BaseEntity:  shared.NewBaseEntity(),
		Code:        code,
		PartnerID:   partnerID,
		Currency:    ccy,
		Status:      status,
		Total:       total,
		TotalTax:    totalTax,
		InvoiceDate: invoiceDate,
		Payments:    make([]AppliedPayment, 0),
	}, nil
}

// PaidAmount returns the sum of prior payment amounts, in invoice currency
func (inv *Invoice) PaidAmount() decimal.Decimal {
	paid := decimal.Zero
	for _, p := range inv.Payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

// PendingAmount returns total minus the sum of prior payments
func (inv *Invoice) PendingAmount() decimal.Decimal {
	return inv.Total.Sub(inv.PaidAmount())
}

// PendingMoney returns the pending amount as Money in the invoice currency
func (inv *Invoice) PendingMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(inv.PendingAmount(), inv.Currency)
	return m
}

// IsEligibleForAllocation returns true when the invoice can receive a new
// allocation: payable status and a positive pending amount.
func (inv *Invoice) IsEligibleForAllocation() bool {
	return inv.Status.CanApplyPayment() && inv.PendingAmount().GreaterThan(decimal.Zero)
}

// HasVATRetention returns true if a VAT-retention payment has already been
// applied. At most one retention of that family may exist per invoice.
func (inv *Invoice) HasVATRetention() bool {
	for _, p := range inv.Payments {
		if IsVATRetentionCode(p.MethodCode) {
			return true
		}
	}
	return false
}
