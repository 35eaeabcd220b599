package currency

import (
	"github.com/cobranza/backend/internal/domain/shared"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// RateTable is an immutable snapshot of the latest known exchange rates
// versus the base currency. A single allocation computation works against one
// snapshot, so it is internally consistent even if the registry moves on.
type RateTable struct {
	base  valueobject.Currency
	rates map[valueobject.Currency]decimal.Decimal
}

// NewRateTable creates a rate table snapshot for the given base currency
func NewRateTable(base valueobject.Currency, quotes []ExchangeRate) (*RateTable, error) {
	if base == "" {
		return nil, shared.NewDomainError("INVALID_BASE_CURRENCY", "Base currency cannot be empty")
	}
	rates := make(map[valueobject.Currency]decimal.Decimal, len(quotes))
	for _, q := range quotes {
		if q.Code == base {
			continue // base is always 1:1 with itself
		}
		if q.Rate.LessThanOrEqual(decimal.Zero) {
			return nil, shared.NewDomainError("INVALID_RATE", "Exchange rate must be positive")
		}
		rates[q.Code] = q.Rate
	}
	return &RateTable{base: base, rates: rates}, nil
}

// Base returns the base currency code
func (t *RateTable) Base() valueobject.Currency {
	return t.base
}

// IsBase returns true if the given currency is the base currency
func (t *RateTable) IsBase(code valueobject.Currency) bool {
	return code == t.base
}

// RateOf returns the latest rate of the given currency versus base
// (units of currency per 1 unit of base) and whether a rate is known.
// The base currency itself always reports a rate of 1.
func (t *RateTable) RateOf(code valueobject.Currency) (decimal.Decimal, bool) {
	if code == t.base {
		return decimal.NewFromInt(1), true
	}
	rate, ok := t.rates[code]
	return rate, ok
}

// Currencies returns the codes the table has quotes for, base excluded
func (t *RateTable) Currencies() []valueobject.Currency {
	codes := make([]valueobject.Currency, 0, len(t.rates))
	for code := range t.rates {
		codes = append(codes, code)
	}
	return codes
}
