package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cobranza/backend/internal/domain/finance"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
)

// PaymentModel is the journal row for a registered payment. Journal rows are
// append-only: the ledger is the source of truth and rows are never updated
// after the payment registers.
type PaymentModel struct {
	AggregateModel
	PartnerID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID     *uuid.UUID      `gorm:"type:uuid"`
	MethodCode    string          `gorm:"size:50;not null"`
	Currency      string          `gorm:"size:3;not null"`
	Amount        decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Type          string          `gorm:"size:20;not null"`
	Reference     string          `gorm:"size:100"`
	BankAccountID *uuid.UUID      `gorm:"type:uuid"`
	Status        string          `gorm:"size:20;not null"`
	ReceivedAt    time.Time       `gorm:"not null;index"`

	RetentionMethodCode string          `gorm:"size:50"`
	RetentionRate       decimal.Decimal `gorm:"type:numeric(8,4)"`
	RetentionAmount     decimal.Decimal `gorm:"type:numeric(18,2)"`
	VoucherNumber       string          `gorm:"size:50"`
	VoucherDate         *time.Time
	IgtfAmount          decimal.Decimal `gorm:"type:numeric(18,2)"`
	BalanceCrossing     bool            `gorm:"not null;default:false"`
	DegradedConversion  bool            `gorm:"not null;default:false"`

	Allocations []PaymentAllocationModel `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for PaymentModel
func (PaymentModel) TableName() string {
	return "payment_journal"
}

// PaymentAllocationModel is one allocation line of a journaled payment
type PaymentAllocationModel struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"`
	PaymentID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceCode string          `gorm:"size:50;not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(18,2);not null"`
}

// TableName returns the table name for PaymentAllocationModel
func (PaymentAllocationModel) TableName() string {
	return "payment_journal_allocations"
}

// ToDomain converts PaymentModel to a domain Payment
func (m *PaymentModel) ToDomain() *finance.Payment {
	allocations := make([]finance.Allocation, 0, len(m.Allocations))
	for _, a := range m.Allocations {
		allocations = append(allocations, finance.Allocation{
			InvoiceID:   a.InvoiceID,
			InvoiceCode: a.InvoiceCode,
			Amount:      a.Amount,
		})
	}

	return &finance.Payment{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		PartnerID:         m.PartnerID,
		InvoiceID:         m.InvoiceID,
		MethodCode:        m.MethodCode,
		Currency:          valueobject.Currency(m.Currency),
		Amount:            m.Amount,
		Type:              finance.PaymentType(m.Type),
		Reference:         m.Reference,
		BankAccountID:     m.BankAccountID,
		Status:            finance.PaymentStatus(m.Status),
		Allocations:       allocations,
		Metadata: finance.PaymentMetadata{
			RetentionMethodCode: m.RetentionMethodCode,
			RetentionRate:       m.RetentionRate,
			RetentionAmount:     m.RetentionAmount,
			VoucherNumber:       m.VoucherNumber,
			VoucherDate:         m.VoucherDate,
			IgtfAmount:          m.IgtfAmount,
			BalanceCrossing:     m.BalanceCrossing,
			DegradedConversion:  m.DegradedConversion,
		},
		ReceivedAt: m.ReceivedAt,
	}
}

// PaymentModelFromDomain converts a domain Payment to PaymentModel
func PaymentModelFromDomain(p *finance.Payment) *PaymentModel {
	m := &PaymentModel{
		PartnerID:           p.PartnerID,
		InvoiceID:           p.InvoiceID,
		MethodCode:          p.MethodCode,
		Currency:            string(p.Currency),
		Amount:              p.Amount,
		Type:                string(p.Type),
		Reference:           p.Reference,
		BankAccountID:       p.BankAccountID,
		Status:              string(p.Status),
		ReceivedAt:          p.ReceivedAt,
		RetentionMethodCode: p.Metadata.RetentionMethodCode,
		RetentionRate:       p.Metadata.RetentionRate,
		RetentionAmount:     p.Metadata.RetentionAmount,
		VoucherNumber:       p.Metadata.VoucherNumber,
		VoucherDate:         p.Metadata.VoucherDate,
		IgtfAmount:          p.Metadata.IgtfAmount,
		BalanceCrossing:     p.Metadata.BalanceCrossing,
		DegradedConversion:  p.Metadata.DegradedConversion,
	}
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)

	m.Allocations = make([]PaymentAllocationModel, 0, len(p.Allocations))
	for _, a := range p.Allocations {
		m.Allocations = append(m.Allocations, PaymentAllocationModel{
			PaymentID:   p.ID,
			InvoiceID:   a.InvoiceID,
			InvoiceCode: a.InvoiceCode,
			Amount:      a.Amount,
		})
	}
	return m
}
