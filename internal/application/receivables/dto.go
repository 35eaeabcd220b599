package receivables

import (
	"time"

	"github.com/cobranza/backend/internal/domain/finance"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RegisterContext identifies who is performing a registration. It travels
// explicitly with the call, never through ambient state.
type RegisterContext struct {
	UserID   uuid.UUID
	UserName string
}

// AllocationRequest is one caller-edited allocation line
type AllocationRequest struct {
	InvoiceID uuid.UUID       `json:"invoice_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
}

// PaymentRequest is the common input of preview and registration.
// PaymentID is client-generated so a retried submission is recognized as the
// same payment.
type PaymentRequest struct {
	PaymentID     uuid.UUID            `json:"payment_id" binding:"required"`
	PartnerID     uuid.UUID            `json:"partner_id" binding:"required"`
	MethodCode    string               `json:"method_code" binding:"required"`
	Currency      valueobject.Currency `json:"currency" binding:"required"`
	Amount        decimal.Decimal      `json:"amount" binding:"required"`
	Type          finance.PaymentType  `json:"type" binding:"required"`
	InvoiceID     *uuid.UUID           `json:"invoice_id,omitempty"` // legacy single-invoice mode
	Reference     string               `json:"reference,omitempty"`
	BankAccountID *uuid.UUID           `json:"bank_account_id,omitempty"`
	VoucherNumber string               `json:"voucher_number,omitempty"`
	VoucherDate   *time.Time           `json:"voucher_date,omitempty"`
	Allocations   []AllocationRequest  `json:"allocations,omitempty"` // empty means auto FIFO
	ReceivedAt    time.Time            `json:"received_at"`
}

// WithholdingResult carries the tax figures computed for a payment
type WithholdingResult struct {
	RetentionMethodCode string          `json:"retention_method_code,omitempty"`
	RetentionAmount     decimal.Decimal `json:"retention_amount"`
	IgtfAmount          decimal.Decimal `json:"igtf_amount"`
}

// PreviewResponse is the proposed allocation set plus the tax layer and any
// warnings. Nothing is persisted by a preview.
type PreviewResponse struct {
	Proposal    *finance.AllocationProposal `json:"proposal"`
	Withholding WithholdingResult           `json:"withholding"`
	Warnings    []string                    `json:"warnings,omitempty"`
}

// RegisterResponse reports a successfully registered payment
type RegisterResponse struct {
	Payment  *finance.Payment `json:"payment"`
	Warnings []string         `json:"warnings,omitempty"`
}

// CurrencyResponse is one currency row with its latest rate versus base
// (zero when the currency is base or no rate is known)
type CurrencyResponse struct {
	ID     uuid.UUID            `json:"id"`
	Code   valueobject.Currency `json:"code"`
	Name   string               `json:"name"`
	Symbol string               `json:"symbol"`
	IsBase bool                 `json:"is_base"`
	Rate   decimal.Decimal      `json:"rate"`
}

// RateResponse is one latest-rate row
type RateResponse struct {
	Currency valueobject.Currency `json:"currency"`
	Rate     decimal.Decimal      `json:"rate"`
	AsOf     time.Time            `json:"as_of"`
}

// MethodResponse is one selectable payment method, with the pre-selection
// flag set on the partner's default retention method
type MethodResponse struct {
	ID          uuid.UUID            `json:"id"`
	Code        string               `json:"code"`
	Name        string               `json:"name"`
	Currency    valueobject.Currency `json:"currency,omitempty"`
	IsRetention bool                 `json:"is_retention"`
	IsBalance   bool                 `json:"is_balance"`
	Preselected bool                 `json:"preselected"`
}

// StatementResponse is a partner's per-currency position
type StatementResponse struct {
	PartnerID  uuid.UUID                                         `json:"partner_id"`
	Statements map[valueobject.Currency]*finance.Statement       `json:"statements"`
	Summary    map[valueobject.Currency]finance.StatementSummary `json:"summary"`
}
