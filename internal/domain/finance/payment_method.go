package finance

import (
	"strings"

	"github.com/cobranza/backend/internal/domain/shared"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment method codes the engine gives special behavior to. Anything else
// (transfer, card, mobile payment) is a plain funds movement.
const (
	MethodCodeRetIVA75  = "RET_IVA_75"
	MethodCodeRetIVA100 = "RET_IVA_100"
	MethodCodeRetISLR   = "RET_ISLR"
	MethodCodeBalance   = "BALANCE"
	MethodCodeCash      = "CASH"
	MethodCodeTransfer  = "TRANSFER"
)

const (
	vatRetentionPrefix    = "RET_IVA"
	retentionPrefix       = "RET_"
	balanceCrossingPrefix = "BALANCE"
	cashPrefix            = "CASH"
)

// IsVATRetentionCode returns true for codes of the VAT-retention family
// (RET_IVA_75, RET_IVA_100 and currency-suffixed variants).
func IsVATRetentionCode(code string) bool {
	return strings.HasPrefix(code, vatRetentionPrefix)
}

// PaymentMethod describes how a payment is funded and which special behavior
// its code triggers: VAT/ISLR retention, balance crossing, cash, IGTF.
type PaymentMethod struct {
	shared.BaseEntity
	Code              string               `json:"code"`
	Name              string               `json:"name"`
	Currency          valueobject.Currency `json:"currency"` // empty means any currency
	AllowedAccounts   []uuid.UUID          `json:"allowed_accounts"`
	RequiresReference bool                 `json:"requires_reference"`
}

// NewPaymentMethod creates a payment method
func NewPaymentMethod(code, name string, ccy valueobject.Currency) (*PaymentMethod, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_METHOD_CODE", "Payment method code cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_METHOD_NAME", "Payment method name cannot be empty")
	}
	return &PaymentMethod{
		BaseEntity:      shared.NewBaseEntity(),
		Code:            code,
		Name:            name,
		Currency:        ccy,
		AllowedAccounts: make([]uuid.UUID, 0),
	}, nil
}

// IsVATRetention returns true for the RET_IVA_* family
func (m *PaymentMethod) IsVATRetention() bool {
	return IsVATRetentionCode(m.Code)
}

// IsRetention returns true for any retention method (VAT or ISLR)
func (m *PaymentMethod) IsRetention() bool {
	return strings.HasPrefix(m.Code, retentionPrefix)
}

// IsBalanceCrossing returns true when the method settles invoices with the
// partner's existing credit balance instead of new funds.
func (m *PaymentMethod) IsBalanceCrossing() bool {
	return strings.HasPrefix(m.Code, balanceCrossingPrefix)
}

// IsCash returns true for cash methods
func (m *PaymentMethod) IsCash() bool {
	return strings.HasPrefix(m.Code, cashPrefix)
}

// VATRetentionFraction returns the fraction of the invoice tax this method
// withholds: 0.75 for RET_IVA_75, 1.00 for RET_IVA_100, zero otherwise.
func (m *PaymentMethod) VATRetentionFraction() decimal.Decimal {
	switch {
	case strings.HasPrefix(m.Code, MethodCodeRetIVA100):
		return decimal.NewFromInt(1)
	case strings.HasPrefix(m.Code, MethodCodeRetIVA75):
		return decimal.NewFromFloat(0.75)
	}
	return decimal.Zero
}

// RestrictsCurrency returns true when the method may only be used in one
// specific currency.
func (m *PaymentMethod) RestrictsCurrency() bool {
	return m.Currency != ""
}

// AcceptsCurrency returns true if a payment in the given currency may use
// this method.
func (m *PaymentMethod) AcceptsCurrency(ccy valueobject.Currency) bool {
	return m.Currency == "" || m.Currency == ccy
}

// AllowsAccount returns true if the given bank account may fund this method.
// An empty allowlist means any account.
func (m *PaymentMethod) AllowsAccount(accountID uuid.UUID) bool {
	if len(m.AllowedAccounts) == 0 {
		return true
	}
	for _, id := range m.AllowedAccounts {
		if id == accountID {
			return true
		}
	}
	return false
}
