package currency

import (
	"time"

	"github.com/cobranza/backend/internal/domain/shared"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Currency represents a currency known to the ledger.
// Exactly one currency is flagged as base; all cross-currency math routes
// through it.
type Currency struct {
	shared.BaseEntity
	Code   valueobject.Currency `json:"code"`
	Name   string               `json:"name"`
	Symbol string               `json:"symbol"`
	IsBase bool                 `json:"is_base"`
}

// NewCurrency creates a new currency
func NewCurrency(code valueobject.Currency, name, symbol string, isBase bool) (*Currency, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY_CODE", "Currency code cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY_NAME", "Currency name cannot be empty")
	}
	return &Currency{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
		Name:       name,
		Symbol:     symbol,
		IsBase:     isBase,
	}, nil
}

// ExchangeRate is the most recent quote of a non-base currency versus the
// base currency: units of the quoted currency per 1 unit of base.
// Only the latest rate per currency is used; there is no historical lookup.
type ExchangeRate struct {
	Code valueobject.Currency `json:"code"`
	Rate decimal.Decimal      `json:"rate"`
	AsOf time.Time            `json:"as_of"`
}

// NewExchangeRate creates a new exchange rate quote
func NewExchangeRate(code valueobject.Currency, rate decimal.Decimal, asOf time.Time) (*ExchangeRate, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY_CODE", "Currency code cannot be empty")
	}
	if rate.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_RATE", "Exchange rate must be positive")
	}
	return &ExchangeRate{Code: code, Rate: rate, AsOf: asOf}, nil
}
