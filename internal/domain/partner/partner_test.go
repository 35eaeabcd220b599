package partner

import (
	"testing"
	"time"

	"github.com/cobranza/backend/internal/domain/shared"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetentionRate(t *testing.T) {
	t.Run("IsValid returns true for valid rates", func(t *testing.T) {
		assert.True(t, RetentionRateNone.IsValid())
		assert.True(t, RetentionRate75.IsValid())
		assert.True(t, RetentionRate100.IsValid())
	})

	t.Run("IsValid returns false for invalid rates", func(t *testing.T) {
		assert.False(t, RetentionRate(50).IsValid())
		assert.False(t, RetentionRate(-75).IsValid())
	})

	t.Run("Fraction returns the rate as a fraction", func(t *testing.T) {
		assert.True(t, RetentionRate75.Fraction().Equal(decimal.NewFromFloat(0.75)))
		assert.True(t, RetentionRate100.Fraction().Equal(decimal.NewFromInt(1)))
		assert.True(t, RetentionRateNone.Fraction().IsZero())
	})
}

func TestPartner(t *testing.T) {
	t.Run("NewPartner creates valid partner", func(t *testing.T) {
		p, err := NewPartner("ACME C.A.", "J-12345678-9", TaxpayerTypeSpecial, RetentionRate75)
		require.NoError(t, err)
		assert.Equal(t, "ACME C.A.", p.Name)
		assert.Equal(t, "J-12345678-9", p.TaxID)
		assert.Equal(t, TaxpayerTypeSpecial, p.TaxpayerType)
		assert.NotEmpty(t, p.ID)
	})

	t.Run("NewPartner with empty name returns error", func(t *testing.T) {
		_, err := NewPartner("", "J-12345678-9", TaxpayerTypeOrdinary, RetentionRateNone)
		assert.Error(t, err)
	})

	t.Run("NewPartner with invalid retention rate returns error", func(t *testing.T) {
		_, err := NewPartner("ACME C.A.", "J-12345678-9", TaxpayerTypeOrdinary, RetentionRate(30))
		assert.Error(t, err)
	})

	t.Run("RetainsVAT true for partners with retention rate", func(t *testing.T) {
		p, err := NewPartner("ACME C.A.", "J-12345678-9", TaxpayerTypeSpecial, RetentionRate75)
		require.NoError(t, err)
		assert.True(t, p.RetainsVAT())
	})

	t.Run("RetainsVAT false for ordinary partner without rate", func(t *testing.T) {
		p, err := NewPartner("Bodega El Sol", "V-9876543-1", TaxpayerTypeOrdinary, RetentionRateNone)
		require.NoError(t, err)
		assert.False(t, p.RetainsVAT())
	})
}

func TestCreditNote(t *testing.T) {
	issued := time.Now().Add(-48 * time.Hour)

	t.Run("NewCreditNote creates open note with full remaining", func(t *testing.T) {
		cn, err := NewCreditNote("NC-001", "partner-1", valueobject.USD, decimal.NewFromInt(100), issued)
		require.NoError(t, err)
		assert.Equal(t, CreditNoteStatusOpen, cn.Status)
		assert.True(t, cn.RemainingAmount.Equal(decimal.NewFromInt(100)))
		assert.True(t, cn.Total.Equal(decimal.NewFromInt(100)))
	})

	t.Run("NewCreditNote with non-positive total returns error", func(t *testing.T) {
		_, err := NewCreditNote("NC-001", "partner-1", valueobject.USD, decimal.Zero, issued)
		assert.Error(t, err)
	})

	t.Run("Consume reduces remaining amount", func(t *testing.T) {
		cn, err := NewCreditNote("NC-001", "partner-1", valueobject.USD, decimal.NewFromInt(100), issued)
		require.NoError(t, err)

		err = cn.Consume(decimal.NewFromInt(30))
		require.NoError(t, err)
		assert.True(t, cn.RemainingAmount.Equal(decimal.NewFromInt(70)))
		assert.Equal(t, CreditNoteStatusOpen, cn.Status)
	})

	t.Run("Consume to zero marks note consumed", func(t *testing.T) {
		cn, err := NewCreditNote("NC-001", "partner-1", valueobject.USD, decimal.NewFromInt(100), issued)
		require.NoError(t, err)

		err = cn.Consume(decimal.NewFromInt(100))
		require.NoError(t, err)
		assert.True(t, cn.RemainingAmount.IsZero())
		assert.Equal(t, CreditNoteStatusConsumed, cn.Status)
	})

	t.Run("Consume never goes negative", func(t *testing.T) {
		cn, err := NewCreditNote("NC-001", "partner-1", valueobject.USD, decimal.NewFromInt(50), issued)
		require.NoError(t, err)

		err = cn.Consume(decimal.NewFromInt(60))
		assert.Error(t, err)
		assert.True(t, cn.RemainingAmount.Equal(decimal.NewFromInt(50)))
	})

	t.Run("Consume on consumed note returns error", func(t *testing.T) {
		cn, err := NewCreditNote("NC-001", "partner-1", valueobject.USD, decimal.NewFromInt(50), issued)
		require.NoError(t, err)
		require.NoError(t, cn.Consume(decimal.NewFromInt(50)))

		err = cn.Consume(decimal.NewFromInt(1))
		assert.Error(t, err)
	})
}

func TestCreditBalanceService(t *testing.T) {
	svc := NewCreditBalanceService()
	now := time.Now()

	makeNote := func(t *testing.T, code string, ccy valueobject.Currency, amount int64, issued time.Time) *CreditNote {
		t.Helper()
		cn, err := NewCreditNote(code, "partner-1", ccy, decimal.NewFromInt(amount), issued)
		require.NoError(t, err)
		return cn
	}

	t.Run("AvailableBalance sums open notes per currency", func(t *testing.T) {
		notes := []*CreditNote{
			makeNote(t, "NC-001", valueobject.USD, 100, now.Add(-72*time.Hour)),
			makeNote(t, "NC-002", valueobject.USD, 50, now.Add(-24*time.Hour)),
			makeNote(t, "NC-003", valueobject.VES, 1000, now.Add(-48*time.Hour)),
		}

		assert.True(t, svc.AvailableBalance(notes, valueobject.USD, decimal.Zero, false).Equal(decimal.NewFromInt(150)))
		assert.True(t, svc.AvailableBalance(notes, valueobject.VES, decimal.Zero, false).Equal(decimal.NewFromInt(1000)))
		assert.True(t, svc.AvailableBalance(notes, valueobject.EUR, decimal.Zero, false).IsZero())
	})

	t.Run("AvailableBalance excludes voided and consumed notes", func(t *testing.T) {
		voided := makeNote(t, "NC-001", valueobject.USD, 100, now)
		voided.Status = CreditNoteStatusVoid
		consumed := makeNote(t, "NC-002", valueobject.USD, 100, now)
		require.NoError(t, consumed.Consume(decimal.NewFromInt(100)))
		open := makeNote(t, "NC-003", valueobject.USD, 40, now)

		got := svc.AvailableBalance([]*CreditNote{voided, consumed, open}, valueobject.USD, decimal.Zero, false)
		assert.True(t, got.Equal(decimal.NewFromInt(40)))
	})

	t.Run("AvailableBalance subtracts pending when requested", func(t *testing.T) {
		notes := []*CreditNote{makeNote(t, "NC-001", valueobject.USD, 100, now)}

		got := svc.AvailableBalance(notes, valueobject.USD, decimal.NewFromInt(30), true)
		assert.True(t, got.Equal(decimal.NewFromInt(70)))
	})

	t.Run("AvailableBalance never negative after pending", func(t *testing.T) {
		notes := []*CreditNote{makeNote(t, "NC-001", valueobject.USD, 10, now)}

		got := svc.AvailableBalance(notes, valueobject.USD, decimal.NewFromInt(30), true)
		assert.True(t, got.IsZero())
	})

	t.Run("ApplyBalance consumes oldest note first", func(t *testing.T) {
		oldest := makeNote(t, "NC-001", valueobject.USD, 60, now.Add(-72*time.Hour))
		newest := makeNote(t, "NC-002", valueobject.USD, 60, now.Add(-24*time.Hour))

		consumptions, err := svc.ApplyBalance([]*CreditNote{newest, oldest}, valueobject.USD, decimal.NewFromInt(80))
		require.NoError(t, err)

		require.Len(t, consumptions, 2)
		assert.Equal(t, "NC-001", consumptions[0].NoteCode)
		assert.True(t, consumptions[0].Amount.Equal(decimal.NewFromInt(60)))
		assert.Equal(t, "NC-002", consumptions[1].NoteCode)
		assert.True(t, consumptions[1].Amount.Equal(decimal.NewFromInt(20)))

		assert.Equal(t, CreditNoteStatusConsumed, oldest.Status)
		assert.True(t, newest.RemainingAmount.Equal(decimal.NewFromInt(40)))
	})

	t.Run("ApplyBalance fails when amount exceeds availability", func(t *testing.T) {
		notes := []*CreditNote{makeNote(t, "NC-001", valueobject.USD, 50, now)}

		_, err := svc.ApplyBalance(notes, valueobject.USD, decimal.NewFromInt(80))
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInsufficientBalance)
		assert.True(t, notes[0].RemainingAmount.Equal(decimal.NewFromInt(50)))
	})

	t.Run("ApplyBalance ignores notes in other currencies", func(t *testing.T) {
		notes := []*CreditNote{
			makeNote(t, "NC-001", valueobject.VES, 1000, now),
			makeNote(t, "NC-002", valueobject.USD, 50, now),
		}

		_, err := svc.ApplyBalance(notes, valueobject.USD, decimal.NewFromInt(100))
		assert.ErrorIs(t, err, shared.ErrInsufficientBalance)
	})

	t.Run("ApplyBalance with non-positive amount returns error", func(t *testing.T) {
		notes := []*CreditNote{makeNote(t, "NC-001", valueobject.USD, 50, now)}

		_, err := svc.ApplyBalance(notes, valueobject.USD, decimal.Zero)
		assert.Error(t, err)
	})
}
