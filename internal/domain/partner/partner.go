package partner

import (
	"github.com/cobranza/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TaxpayerType classifies a partner for withholding purposes
type TaxpayerType string

const (
	TaxpayerTypeOrdinary TaxpayerType = "ORDINARY" // No automatic retention
	TaxpayerTypeSpecial  TaxpayerType = "SPECIAL"  // Special taxpayer, retains VAT by default
	TaxpayerTypeFormal   TaxpayerType = "FORMAL"   // Formal taxpayer
)

// IsValid checks if the taxpayer type is valid
func (t TaxpayerType) IsValid() bool {
	switch t {
	case TaxpayerTypeOrdinary, TaxpayerTypeSpecial, TaxpayerTypeFormal:
		return true
	}
	return false
}

// String returns the string representation
func (t TaxpayerType) String() string {
	return string(t)
}

// RetentionRate is the VAT retention percentage a partner is entitled to
// apply: 0 (none), 75 or 100.
type RetentionRate int

const (
	RetentionRateNone RetentionRate = 0
	RetentionRate75   RetentionRate = 75
	RetentionRate100  RetentionRate = 100
)

// IsValid checks if the retention rate is one of the legal values
func (r RetentionRate) IsValid() bool {
	return r == RetentionRateNone || r == RetentionRate75 || r == RetentionRate100
}

// Fraction returns the rate as a decimal fraction of the tax amount
func (r RetentionRate) Fraction() decimal.Decimal {
	return decimal.NewFromInt(int64(r)).Div(decimal.NewFromInt(100))
}

// Partner represents a customer/supplier as the reconciliation engine sees
// it: identity plus the tax profile that drives withholding defaults.
// The partner master data lives in the external ledger; this is a snapshot.
type Partner struct {
	shared.BaseEntity
	Name          string        `json:"name"`
	TaxID         string        `json:"tax_id"`
	TaxpayerType  TaxpayerType  `json:"taxpayer_type"`
	RetentionRate RetentionRate `json:"retention_rate"`
}

// NewPartner creates a partner snapshot
func NewPartner(name, taxID string, taxpayerType TaxpayerType, retentionRate RetentionRate) (*Partner, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_PARTNER_NAME", "Partner name cannot be empty")
	}
	if !taxpayerType.IsValid() {
		return nil, shared.NewDomainError("INVALID_TAXPAYER_TYPE", "Taxpayer type is not valid")
	}
	if !retentionRate.IsValid() {
		return nil, shared.NewDomainError("INVALID_RETENTION_RATE", "Retention rate must be 0, 75 or 100")
	}
	return &Partner{
		BaseEntity:    shared.NewBaseEntity(),
		Name:          name,
		TaxID:         taxID,
		TaxpayerType:  taxpayerType,
		RetentionRate: retentionRate,
	}, nil
}

// IsSpecialTaxpayer returns true if the partner is a special taxpayer
func (p *Partner) IsSpecialTaxpayer() bool {
	return p.TaxpayerType == TaxpayerTypeSpecial
}

// RetainsVAT returns true if the partner's profile entitles it to withhold
// VAT on payments (drives default method pre-selection).
func (p *Partner) RetainsVAT() bool {
	return p.RetentionRate == RetentionRate75 || p.RetentionRate == RetentionRate100 || p.IsSpecialTaxpayer()
}
