package receivables

import (
	"context"

	"github.com/cobranza/backend/internal/domain/currency"
	"github.com/cobranza/backend/internal/domain/finance"
	"github.com/cobranza/backend/internal/domain/partner"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// InvoiceLedger is the external source of truth for invoices. The engine
// reads snapshots from it and never writes invoices directly.
type InvoiceLedger interface {
	// OpenInvoices returns a partner's allocation candidates with embedded
	// payment history
	OpenInvoices(ctx context.Context, partnerID uuid.UUID) ([]*finance.Invoice, error)

	// Invoice returns a single invoice snapshot
	Invoice(ctx context.Context, id uuid.UUID) (*finance.Invoice, error)
}

// CreditNoteLedger serves a partner's credit notes with remaining amounts
type CreditNoteLedger interface {
	CreditNotes(ctx context.Context, partnerID uuid.UUID, ccy valueobject.Currency) ([]*partner.CreditNote, error)
}

// RateProvider serves the currency set and the latest rate per non-base
// currency
type RateProvider interface {
	Currencies(ctx context.Context) ([]*currency.Currency, error)
	LatestRates(ctx context.Context) ([]currency.ExchangeRate, error)
}

// PartnerDirectory serves partner tax profiles and the payment method catalog
type PartnerDirectory interface {
	Partner(ctx context.Context, id uuid.UUID) (*partner.Partner, error)
	PaymentMethods(ctx context.Context) ([]*finance.PaymentMethod, error)
}

// PaymentLedger registers payments at the authoritative ledger. The ledger
// re-validates allocations against live invoice state and applies them
// atomically; a refusal surfaces as shared.ErrSubmissionRejected.
type PaymentLedger interface {
	Register(ctx context.Context, payment *finance.Payment) error

	// Transactions returns a partner's full transaction set for statements
	Transactions(ctx context.Context, partnerID uuid.UUID) ([]finance.Transaction, error)
}

// PaymentJournal is the local audit trail of registered payments
type PaymentJournal interface {
	Save(ctx context.Context, payment *finance.Payment) error
	FindByPartner(ctx context.Context, partnerID uuid.UUID) ([]*finance.Payment, error)
}
