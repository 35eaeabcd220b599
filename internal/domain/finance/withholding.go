package finance

import (
	"time"

	"github.com/cobranza/backend/internal/domain/partner"
	"github.com/cobranza/backend/internal/domain/shared"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// igtfRate is the foreign-currency transaction levy: 3% of the pre-levy
// payment amount when settlement happens in a non-base currency.
var igtfRate = decimal.NewFromFloat(0.03)

// WithholdingCalculator derives the two tax figures layered on top of a
// payment: VAT retention (a fraction of the invoice tax withheld on behalf of
// the tax authority) and the IGTF levy. Both are pure computations over
// snapshots.
type WithholdingCalculator struct{}

// NewWithholdingCalculator creates a withholding calculator
func NewWithholdingCalculator() *WithholdingCalculator {
	return &WithholdingCalculator{}
}

// VATRetention computes the retention amount for a RET_IVA_* method:
// invoice tax times the method's fraction, rounded to 2 places.
func (c *WithholdingCalculator) VATRetention(method *PaymentMethod, invoice *Invoice) (decimal.Decimal, error) {
	if method == nil || !method.IsVATRetention() {
		return decimal.Zero, shared.NewDomainError("INVALID_METHOD", "Method is not a VAT retention method")
	}
	if invoice == nil {
		return decimal.Zero, shared.NewDomainError("INVALID_INVOICE", "Invoice is required for retention")
	}
	if invoice.HasVATRetention() {
		return decimal.Zero, shared.NewDomainError("RETENTION_EXISTS", "Invoice already has a VAT retention payment")
	}
	return invoice.TotalTax.Mul(method.VATRetentionFraction()).Round(2), nil
}

// ISLRRetention computes an income-tax retention with an explicitly supplied
// rate, applied to the invoice base amount.
func (c *WithholdingCalculator) ISLRRetention(invoice *Invoice, rate decimal.Decimal) (decimal.Decimal, error) {
	if invoice == nil {
		return decimal.Zero, shared.NewDomainError("INVALID_INVOICE", "Invoice is required for retention")
	}
	if rate.LessThanOrEqual(decimal.Zero) || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, shared.NewDomainError("INVALID_RATE", "ISLR rate must be between 0 and 1")
	}
	return invoice.TotalBase.Mul(rate).Round(2), nil
}

// IGTF computes the foreign-currency levy on the pre-levy payment amount.
// It returns zero for base-currency payments. The levy is additional to the
// settlement and is never allocated against invoices.
func (c *WithholdingCalculator) IGTF(amount valueobject.Money, base valueobject.Currency) decimal.Decimal {
	if amount.Currency() == base {
		return decimal.Zero
	}
	return amount.Amount().Mul(igtfRate).Round(2)
}

// DefaultRetentionMethod returns the VAT retention method to pre-select for
// a partner, or nil when no retention applies. Partners with an explicit 100
// entitlement get RET_IVA_100; everyone else entitled (rate 75 or special
// taxpayer without explicit 100) defaults to RET_IVA_75.
func (c *WithholdingCalculator) DefaultRetentionMethod(p *partner.Partner, methods []*PaymentMethod) *PaymentMethod {
	if p == nil || !p.RetainsVAT() {
		return nil
	}
	wantCode := MethodCodeRetIVA75
	if p.RetentionRate == partner.RetentionRate100 {
		wantCode = MethodCodeRetIVA100
	}
	for _, m := range methods {
		if m != nil && m.Code == wantCode {
			return m
		}
	}
	return nil
}

// SelectableMethods filters the method list for an invoice: once an invoice
// carries a VAT retention payment, the whole RET_IVA family disappears from
// the selectable set.
func (c *WithholdingCalculator) SelectableMethods(methods []*PaymentMethod, invoice *Invoice) []*PaymentMethod {
	selectable := make([]*PaymentMethod, 0, len(methods))
	for _, m := range methods {
		if m == nil {
			continue
		}
		if invoice != nil && invoice.HasVATRetention() && m.IsVATRetention() {
			continue
		}
		selectable = append(selectable, m)
	}
	return selectable
}

// ValidateRetentionVoucher enforces that retention payments carry a voucher
// number and date. Absence is a hard validation error, never defaulted.
func (c *WithholdingCalculator) ValidateRetentionVoucher(method *PaymentMethod, voucherNumber string, voucherDate *time.Time) error {
	if method == nil || !method.IsRetention() {
		return nil
	}
	if voucherNumber == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Retention payments require a voucher number")
	}
	if voucherDate == nil || voucherDate.IsZero() {
		return shared.NewDomainError("VALIDATION_ERROR", "Retention payments require a voucher date")
	}
	return nil
}
