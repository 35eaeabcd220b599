package receivables

import (
	"context"
	"fmt"
	"time"

	"github.com/cobranza/backend/internal/domain/currency"
	"github.com/cobranza/backend/internal/domain/finance"
	"github.com/cobranza/backend/internal/domain/partner"
	"github.com/cobranza/backend/internal/domain/shared"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WarningConversionDegraded is attached to responses computed through a 1:1
// rate fallback. The computation proceeds; the precision loss is surfaced.
const WarningConversionDegraded = "CONVERSION_DEGRADED"

// Service orchestrates the reconciliation flow: it fetches a consistent
// snapshot from the external ledgers, runs the pure domain computations over
// it and submits the result. Stale-snapshot conflicts are the ledger's to
// detect; they surface here as SUBMISSION_REJECTED.
type Service struct {
	invoices    InvoiceLedger
	creditNotes CreditNoteLedger
	rates       RateProvider
	directory   PartnerDirectory
	payments    PaymentLedger
	journal     PaymentJournal
	idempotency shared.IdempotencyStore
	idemCfg     shared.IdempotencyConfig

	withholding *finance.WithholdingCalculator
	balances    *partner.CreditBalanceService
	statements  *finance.StatementBuilder
	logger      *zap.Logger
}

// ServiceOption is a functional option for configuring the Service
type ServiceOption func(*Service)

// WithJournal sets the local payment journal
func WithJournal(journal PaymentJournal) ServiceOption {
	return func(s *Service) {
		s.journal = journal
	}
}

// WithIdempotency sets the idempotency store and its configuration
func WithIdempotency(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) ServiceOption {
	return func(s *Service) {
		s.idempotency = store
		s.idemCfg = cfg
	}
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates the reconciliation service
func NewService(
	invoices InvoiceLedger,
	creditNotes CreditNoteLedger,
	rates RateProvider,
	directory PartnerDirectory,
	payments PaymentLedger,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		invoices:    invoices,
		creditNotes: creditNotes,
		rates:       rates,
		directory:   directory,
		payments:    payments,
		idemCfg:     shared.DefaultIdempotencyConfig(),
		withholding: finance.NewWithholdingCalculator(),
		balances:    partner.NewCreditBalanceService(),
		statements:  finance.NewStatementBuilder(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// snapshot bundles the externally fetched facts one computation runs against
type snapshot struct {
	conversions *currency.ConversionService
	engine      *finance.AllocationEngine
	invoices    []*finance.Invoice
	base        valueobject.Currency
}

func (s *Service) fetchSnapshot(ctx context.Context, partnerID uuid.UUID) (*snapshot, error) {
	quotes, err := s.rates.LatestRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch latest rates: %w", err)
	}
	table, err := currency.NewRateTable(valueobject.DefaultCurrency, quotes)
	if err != nil {
		return nil, err
	}
	invoices, err := s.invoices.OpenInvoices(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("fetch open invoices: %w", err)
	}
	conversions := currency.NewConversionService(table)
	return &snapshot{
		conversions: conversions,
		engine:      finance.NewAllocationEngine(conversions),
		invoices:    invoices,
		base:        table.Base(),
	}, nil
}

// ListCurrencies returns the currency set with the latest rate attached
func (s *Service) ListCurrencies(ctx context.Context) ([]CurrencyResponse, error) {
	currencies, err := s.rates.Currencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch currencies: %w", err)
	}
	quotes, err := s.rates.LatestRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch latest rates: %w", err)
	}

	rateByCode := make(map[valueobject.Currency]decimal.Decimal, len(quotes))
	for _, q := range quotes {
		rateByCode[q.Code] = q.Rate
	}

	out := make([]CurrencyResponse, 0, len(currencies))
	for _, c := range currencies {
		out = append(out, CurrencyResponse{
			ID:     c.ID,
			Code:   c.Code,
			Name:   c.Name,
			Symbol: c.Symbol,
			IsBase: c.IsBase,
			Rate:   rateByCode[c.Code],
		})
	}
	return out, nil
}

// LatestRates returns one row per non-base currency, latest quote only
func (s *Service) LatestRates(ctx context.Context) ([]RateResponse, error) {
	quotes, err := s.rates.LatestRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch latest rates: %w", err)
	}
	out := make([]RateResponse, 0, len(quotes))
	for _, q := range quotes {
		if q.Code == valueobject.DefaultCurrency {
			continue
		}
		out = append(out, RateResponse{Currency: q.Code, Rate: q.Rate, AsOf: q.AsOf})
	}
	return out, nil
}

// SelectableMethods returns the method catalog filtered for the partner and,
// when an invoice is given, for that invoice's retention history. The
// partner's default retention method carries the preselected flag.
func (s *Service) SelectableMethods(ctx context.Context, partnerID uuid.UUID, invoiceID *uuid.UUID) ([]MethodResponse, error) {
	p, err := s.directory.Partner(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("fetch partner: %w", err)
	}
	methods, err := s.directory.PaymentMethods(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch payment methods: %w", err)
	}

	var invoice *finance.Invoice
	if invoiceID != nil {
		invoice, err = s.invoices.Invoice(ctx, *invoiceID)
		if err != nil {
			return nil, fmt.Errorf("fetch invoice: %w", err)
		}
	}

	selectable := s.withholding.SelectableMethods(methods, invoice)
	preselected := s.withholding.DefaultRetentionMethod(p, selectable)

	out := make([]MethodResponse, 0, len(selectable))
	for _, m := range selectable {
		out = append(out, MethodResponse{
			ID:          m.ID,
			Code:        m.Code,
			Name:        m.Name,
			Currency:    m.Currency,
			IsRetention: m.IsRetention(),
			IsBalance:   m.IsBalanceCrossing(),
			Preselected: preselected != nil && m.Code == preselected.Code,
		})
	}
	return out, nil
}

// PreviewPayment computes the allocation proposal and the tax layer for a
// payment without persisting anything.
func (s *Service) PreviewPayment(ctx context.Context, req PaymentRequest) (*PreviewResponse, error) {
	method, err := s.resolveMethod(ctx, req)
	if err != nil {
		return nil, err
	}

	snap, err := s.fetchSnapshot(ctx, req.PartnerID)
	if err != nil {
		return nil, err
	}

	proposal, err := s.propose(snap, req)
	if err != nil {
		return nil, err
	}

	resp := &PreviewResponse{Proposal: proposal}
	if proposal.DegradedConversion {
		resp.Warnings = append(resp.Warnings, WarningConversionDegraded)
	}

	resp.Withholding, err = s.computeWithholding(ctx, method, req, snap.base)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// RegisterPayment validates a payment end to end, marks it submitted and
// registers it at the external ledger. The allocation set is applied
// atomically ledger-side; a stale-snapshot refusal propagates as
// SUBMISSION_REJECTED and the caller must recompute from a fresh snapshot
// before retrying.
func (s *Service) RegisterPayment(ctx context.Context, rc RegisterContext, req PaymentRequest) (*RegisterResponse, error) {
	method, err := s.resolveMethod(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.validateFunding(method, req); err != nil {
		return nil, err
	}
	if err := s.withholding.ValidateRetentionVoucher(method, req.VoucherNumber, req.VoucherDate); err != nil {
		return nil, err
	}

	snap, err := s.fetchSnapshot(ctx, req.PartnerID)
	if err != nil {
		return nil, err
	}

	proposal, err := s.propose(snap, req)
	if err != nil {
		return nil, err
	}

	if method.IsBalanceCrossing() {
		if err := s.checkBalance(ctx, req); err != nil {
			return nil, err
		}
	}

	payment, err := s.buildPayment(ctx, rc, method, req, proposal, snap.base)
	if err != nil {
		return nil, err
	}

	if s.idempotency != nil && s.idemCfg.Enabled {
		fresh, err := s.idempotency.MarkSubmitted(ctx, req.PaymentID.String(), s.idemCfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("idempotency check: %w", err)
		}
		if !fresh {
			return nil, shared.NewDomainError("SUBMISSION_REJECTED",
				fmt.Sprintf("Payment %s was already submitted", req.PaymentID))
		}
	}

	if err := s.payments.Register(ctx, payment); err != nil {
		s.logger.Warn("payment registration rejected",
			zap.String("payment_id", req.PaymentID.String()),
			zap.String("partner_id", req.PartnerID.String()),
			zap.Error(err))
		// the mark reserved above must not outlive a failed registration,
		// otherwise a recomputed retry of the same payment ID is refused
		// for the full TTL
		if s.idempotency != nil && s.idemCfg.Enabled {
			if relErr := s.idempotency.Release(ctx, req.PaymentID.String()); relErr != nil {
				s.logger.Error("idempotency release failed",
					zap.String("payment_id", req.PaymentID.String()),
					zap.Error(relErr))
			}
		}
		return nil, err
	}
	if err := payment.Register(); err != nil {
		return nil, err
	}

	if s.journal != nil {
		if err := s.journal.Save(ctx, payment); err != nil {
			// the ledger registration already succeeded; a journal miss is
			// an observability gap, not a failed payment
			s.logger.Error("journal write failed",
				zap.String("payment_id", payment.ID.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("payment registered",
		zap.String("payment_id", payment.ID.String()),
		zap.String("partner_id", payment.PartnerID.String()),
		zap.String("method", payment.MethodCode),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("currency", string(payment.Currency)),
		zap.String("user_id", rc.UserID.String()))

	resp := &RegisterResponse{Payment: payment}
	if proposal.DegradedConversion {
		resp.Warnings = append(resp.Warnings, WarningConversionDegraded)
	}
	return resp, nil
}

// PartnerStatement rebuilds the partner's position per currency from the
// ledger's transaction set.
func (s *Service) PartnerStatement(ctx context.Context, partnerID uuid.UUID) (*StatementResponse, error) {
	transactions, err := s.payments.Transactions(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}

	seen := make(map[valueobject.Currency]bool)
	order := make([]valueobject.Currency, 0)
	for _, tx := range transactions {
		if !seen[tx.Currency] {
			seen[tx.Currency] = true
			order = append(order, tx.Currency)
		}
	}

	resp := &StatementResponse{
		PartnerID:  partnerID,
		Statements: make(map[valueobject.Currency]*finance.Statement, len(order)),
		Summary:    make(map[valueobject.Currency]finance.StatementSummary, len(order)),
	}
	for _, ccy := range order {
		notes, err := s.creditNotes.CreditNotes(ctx, partnerID, ccy)
		if err != nil {
			return nil, fmt.Errorf("fetch credit notes: %w", err)
		}
		unused := s.balances.AvailableBalance(notes, ccy, decimal.Zero, false)

		stmt, err := s.statements.Build(transactions, ccy, unused)
		if err != nil {
			return nil, err
		}
		resp.Statements[ccy] = stmt
		resp.Summary[ccy] = stmt.Summary
	}
	return resp, nil
}

func (s *Service) resolveMethod(ctx context.Context, req PaymentRequest) (*finance.PaymentMethod, error) {
	methods, err := s.directory.PaymentMethods(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch payment methods: %w", err)
	}
	for _, m := range methods {
		if m.Code == req.MethodCode {
			if !m.AcceptsCurrency(req.Currency) {
				return nil, shared.NewDomainError("VALIDATION_ERROR",
					fmt.Sprintf("Method %s cannot be used in %s", m.Code, req.Currency))
			}
			return m, nil
		}
	}
	return nil, shared.NewDomainError("VALIDATION_ERROR",
		fmt.Sprintf("Unknown payment method %s", req.MethodCode))
}

func (s *Service) validateFunding(method *finance.PaymentMethod, req PaymentRequest) error {
	if method.RequiresReference && req.Reference == "" {
		return shared.NewDomainError("VALIDATION_ERROR",
			fmt.Sprintf("Method %s requires a reference", method.Code))
	}
	if req.BankAccountID != nil && !method.AllowsAccount(*req.BankAccountID) {
		return shared.NewDomainError("VALIDATION_ERROR",
			fmt.Sprintf("Bank account is not allowed for method %s", method.Code))
	}
	return nil
}

func (s *Service) propose(snap *snapshot, req PaymentRequest) (*finance.AllocationProposal, error) {
	gross, err := valueobject.NewMoney(req.Amount, req.Currency)
	if err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", err.Error())
	}

	candidates := snap.invoices
	if req.InvoiceID != nil {
		// legacy single-invoice mode narrows the candidate set
		narrowed := make([]*finance.Invoice, 0, 1)
		for _, inv := range candidates {
			if inv.ID == *req.InvoiceID {
				narrowed = append(narrowed, inv)
			}
		}
		candidates = narrowed
	}

	if len(req.Allocations) > 0 {
		manual := make([]finance.ManualAllocation, 0, len(req.Allocations))
		for _, a := range req.Allocations {
			manual = append(manual, finance.ManualAllocation{InvoiceID: a.InvoiceID, Amount: a.Amount})
		}
		return snap.engine.Manual(gross, manual, candidates)
	}
	return snap.engine.Distribute(gross, candidates)
}

func (s *Service) computeWithholding(ctx context.Context, method *finance.PaymentMethod, req PaymentRequest, base valueobject.Currency) (WithholdingResult, error) {
	result := WithholdingResult{
		RetentionAmount: decimal.Zero,
		IgtfAmount:      decimal.Zero,
	}

	if method.IsVATRetention() {
		if req.InvoiceID == nil {
			return result, shared.NewDomainError("VALIDATION_ERROR", "VAT retention requires a target invoice")
		}
		invoice, err := s.invoices.Invoice(ctx, *req.InvoiceID)
		if err != nil {
			return result, fmt.Errorf("fetch invoice: %w", err)
		}
		amount, err := s.withholding.VATRetention(method, invoice)
		if err != nil {
			return result, err
		}
		result.RetentionMethodCode = method.Code
		result.RetentionAmount = amount
	}

	gross, err := valueobject.NewMoney(req.Amount, req.Currency)
	if err != nil {
		return result, shared.NewDomainError("VALIDATION_ERROR", err.Error())
	}
	result.IgtfAmount = s.withholding.IGTF(gross, base)
	return result, nil
}

func (s *Service) checkBalance(ctx context.Context, req PaymentRequest) error {
	notes, err := s.creditNotes.CreditNotes(ctx, req.PartnerID, req.Currency)
	if err != nil {
		return fmt.Errorf("fetch credit notes: %w", err)
	}
	available := s.balances.AvailableBalance(notes, req.Currency, decimal.Zero, false)
	if req.Amount.GreaterThan(available) {
		return fmt.Errorf("%w: requested %s exceeds available %s %s",
			shared.ErrInsufficientBalance,
			req.Amount.StringFixed(2), available.StringFixed(2), req.Currency)
	}
	return nil
}

func (s *Service) buildPayment(ctx context.Context, rc RegisterContext, method *finance.PaymentMethod, req PaymentRequest, proposal *finance.AllocationProposal, base valueobject.Currency) (*finance.Payment, error) {
	receivedAt := req.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	payment, err := finance.NewPayment(req.PartnerID, req.MethodCode, req.Currency, req.Amount, req.Type, receivedAt)
	if err != nil {
		return nil, err
	}
	payment.ID = req.PaymentID
	payment.InvoiceID = req.InvoiceID
	payment.Reference = req.Reference
	payment.BankAccountID = req.BankAccountID

	allocations := make([]finance.Allocation, 0, len(proposal.Allocations))
	for _, a := range proposal.Allocations {
		allocations = append(allocations, finance.Allocation{
			InvoiceID:   a.InvoiceID,
			InvoiceCode: a.InvoiceCode,
			Amount:      a.Amount,
		})
	}
	if err := payment.SetAllocations(allocations); err != nil {
		return nil, err
	}

	withholding, err := s.computeWithholding(ctx, method, req, base)
	if err != nil {
		return nil, err
	}
	payment.Metadata = finance.PaymentMetadata{
		RetentionMethodCode: withholding.RetentionMethodCode,
		RetentionRate:       method.VATRetentionFraction(),
		RetentionAmount:     withholding.RetentionAmount,
		VoucherNumber:       req.VoucherNumber,
		VoucherDate:         req.VoucherDate,
		IgtfAmount:          withholding.IgtfAmount,
		BalanceCrossing:     method.IsBalanceCrossing(),
		DegradedConversion:  proposal.DegradedConversion,
	}
	return payment, nil
}
