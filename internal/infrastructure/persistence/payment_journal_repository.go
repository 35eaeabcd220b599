package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cobranza/backend/internal/domain/finance"
	"github.com/cobranza/backend/internal/infrastructure/persistence/models"
)

// GormPaymentJournalRepository implements the payment journal using GORM.
// The journal is a local append-only audit trail of payments registered at
// the external ledger; a journal write never blocks a registration.
type GormPaymentJournalRepository struct {
	db *gorm.DB
}

// NewGormPaymentJournalRepository creates a new GormPaymentJournalRepository
func NewGormPaymentJournalRepository(db *gorm.DB) *GormPaymentJournalRepository {
	return &GormPaymentJournalRepository{db: db}
}

// Save appends a registered payment to the journal. Saving the same payment
// ID twice is a no-op so that a retried registration does not duplicate the
// audit trail.
func (r *GormPaymentJournalRepository) Save(ctx context.Context, payment *finance.Payment) error {
	model := models.PaymentModelFromDomain(payment)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Omit("Allocations").
			Create(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Already journaled
			return nil
		}
		if len(model.Allocations) > 0 {
			if err := tx.Create(&model.Allocations).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to journal payment %s: %w", payment.ID, err)
	}
	return nil
}

// FindByPartner returns a partner's journaled payments, newest first
func (r *GormPaymentJournalRepository) FindByPartner(ctx context.Context, partnerID uuid.UUID) ([]*finance.Payment, error) {
	var rows []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Preload("Allocations").
		Where("partner_id = ?", partnerID).
		Order("received_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	payments := make([]*finance.Payment, 0, len(rows))
	for i := range rows {
		payments = append(payments, rows[i].ToDomain())
	}
	return payments, nil
}

// FindByID returns a single journaled payment, or nil when absent
func (r *GormPaymentJournalRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Preload("Allocations").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}
