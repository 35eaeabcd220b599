package handler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cobranza/backend/internal/application/receivables"
	"github.com/cobranza/backend/internal/domain/currency"
	"github.com/cobranza/backend/internal/domain/finance"
	"github.com/cobranza/backend/internal/domain/partner"
	"github.com/cobranza/backend/internal/domain/shared"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeInvoiceLedger struct {
	invoices []*finance.Invoice
}

func (f *fakeInvoiceLedger) OpenInvoices(ctx context.Context, partnerID uuid.UUID) ([]*finance.Invoice, error) {
	return f.invoices, nil
}

func (f *fakeInvoiceLedger) Invoice(ctx context.Context, id uuid.UUID) (*finance.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.ID == id {
			return inv, nil
		}
	}
	return nil, shared.ErrNotFound
}

type fakeCreditNoteLedger struct {
	notes []*partner.CreditNote
}

func (f *fakeCreditNoteLedger) CreditNotes(ctx context.Context, partnerID uuid.UUID, ccy valueobject.Currency) ([]*partner.CreditNote, error) {
	return f.notes, nil
}

type fakeRateProvider struct {
	currencies []*currency.Currency
	rates      []currency.ExchangeRate
}

func (f *fakeRateProvider) Currencies(ctx context.Context) ([]*currency.Currency, error) {
	return f.currencies, nil
}

func (f *fakeRateProvider) LatestRates(ctx context.Context) ([]currency.ExchangeRate, error) {
	return f.rates, nil
}

type fakeDirectory struct {
	partner *partner.Partner
	methods []*finance.PaymentMethod
}

func (f *fakeDirectory) Partner(ctx context.Context, id uuid.UUID) (*partner.Partner, error) {
	return f.partner, nil
}

func (f *fakeDirectory) PaymentMethods(ctx context.Context) ([]*finance.PaymentMethod, error) {
	return f.methods, nil
}

type fakePaymentLedger struct {
	registered   []*finance.Payment
	registerErr  error
	transactions []finance.Transaction
}

func (f *fakePaymentLedger) Register(ctx context.Context, payment *finance.Payment) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered = append(f.registered, payment)
	return nil
}

func (f *fakePaymentLedger) Transactions(ctx context.Context, partnerID uuid.UUID) ([]finance.Transaction, error) {
	return f.transactions, nil
}

type fakeJournal struct {
	saved []*finance.Payment
}

func (f *fakeJournal) Save(ctx context.Context, payment *finance.Payment) error {
	f.saved = append(f.saved, payment)
	return nil
}

func (f *fakeJournal) FindByPartner(ctx context.Context, partnerID uuid.UUID) ([]*finance.Payment, error) {
	return f.saved, nil
}

type fakeIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{seen: make(map[string]bool)}
}

func (f *fakeIdempotencyStore) MarkSubmitted(ctx context.Context, paymentID string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[paymentID] {
		return false, nil
	}
	f.seen[paymentID] = true
	return true, nil
}

func (f *fakeIdempotencyStore) IsSubmitted(ctx context.Context, paymentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[paymentID], nil
}

func (f *fakeIdempotencyStore) Release(ctx context.Context, paymentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, paymentID)
	return nil
}

func (f *fakeIdempotencyStore) Close() error { return nil }

type handlerFixture struct {
	service *receivables.Service
	pay     *fakePaymentLedger
	partner *partner.Partner
	invoice *finance.Invoice
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	now := time.Now()

	p, err := partner.NewPartner("ACME C.A.", "J-12345678-9", partner.TaxpayerTypeOrdinary, partner.RetentionRateNone)
	require.NoError(t, err)

	inv, err := finance.NewInvoice("INV-001", p.ID, valueobject.VES, finance.InvoiceStatusPosted,
		decimal.NewFromInt(100), decimal.NewFromInt(16), now.Add(-24*time.Hour))
	require.NoError(t, err)

	transfer, err := finance.NewPaymentMethod(finance.MethodCodeTransfer, "Bank transfer", "")
	require.NoError(t, err)

	ves, err := currency.NewCurrency(valueobject.VES, "Bolívar", "Bs.", true)
	require.NoError(t, err)
	usd, err := currency.NewCurrency(valueobject.USD, "US Dollar", "$", false)
	require.NoError(t, err)

	ledger := &fakeInvoiceLedger{invoices: []*finance.Invoice{inv}}
	rates := &fakeRateProvider{
		currencies: []*currency.Currency{ves, usd},
		rates: []currency.ExchangeRate{
			{Code: valueobject.USD, Rate: decimal.NewFromInt(30), AsOf: now},
		},
	}
	dir := &fakeDirectory{partner: p, methods: []*finance.PaymentMethod{transfer}}
	pay := &fakePaymentLedger{}

	svc := receivables.NewService(ledger, &fakeCreditNoteLedger{}, rates, dir, pay,
		receivables.WithJournal(&fakeJournal{}),
		receivables.WithIdempotency(newFakeIdempotencyStore(), shared.DefaultIdempotencyConfig()),
	)

	return &handlerFixture{
		service: svc,
		pay:     pay,
		partner: p,
		invoice: inv,
	}
}
