package currency

import (
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ConversionService converts monetary amounts between currencies using a
// rate table snapshot. All pairs route through the base currency: a pair of
// two non-base currencies is triangulated (amount → base → target) rather
// than silently compared 1:1.
//
// A missing rate never fails the conversion: the amount passes through 1:1
// and the result is flagged as degraded so callers can surface the
// precision loss instead of hiding it.
type ConversionService struct {
	table *RateTable
}

// NewConversionService creates a conversion service over a rate snapshot
func NewConversionService(table *RateTable) *ConversionService {
	return &ConversionService{table: table}
}

// Table returns the underlying rate snapshot
func (s *ConversionService) Table() *RateTable {
	return s.table
}

// Convert converts m into the target currency. The returned degraded flag is
// true when a required rate was missing and a 1:1 passthrough was used.
func (s *ConversionService) Convert(m valueobject.Money, to valueobject.Currency) (valueobject.Money, bool) {
	if m.Currency() == to {
		return m, false
	}

	inBase, degraded := s.toBase(m)
	if s.table.IsBase(to) {
		return inBase, degraded
	}

	rate, ok := s.table.RateOf(to)
	if !ok {
		result, _ := valueobject.NewMoney(inBase.Amount(), to)
		return result, true
	}
	result, _ := valueobject.NewMoney(inBase.Amount().Mul(rate), to)
	return result, degraded
}

// ToBase converts m into the base currency
func (s *ConversionService) ToBase(m valueobject.Money) (valueobject.Money, bool) {
	return s.toBase(m)
}

func (s *ConversionService) toBase(m valueobject.Money) (valueobject.Money, bool) {
	if s.table.IsBase(m.Currency()) {
		return m, false
	}
	rate, ok := s.table.RateOf(m.Currency())
	if !ok || rate.IsZero() {
		result, _ := valueobject.NewMoney(m.Amount(), s.table.Base())
		return result, true
	}
	result, _ := valueobject.NewMoney(m.Amount().Div(rate), s.table.Base())
	return result, false
}

// Rate returns the effective rate for converting one unit of from into to,
// and whether both legs had a known quote.
func (s *ConversionService) Rate(from, to valueobject.Currency) (decimal.Decimal, bool) {
	one, _ := valueobject.NewMoney(decimal.NewFromInt(1), from)
	converted, degraded := s.Convert(one, to)
	return converted.Amount(), !degraded
}
