package finance

import (
	"sort"
	"time"

	"github.com/cobranza/backend/internal/domain/shared"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind tags a statement transaction by its origin
type TransactionKind string

const (
	TransactionKindInvoice    TransactionKind = "INVOICE"
	TransactionKindPayment    TransactionKind = "PAYMENT"
	TransactionKindCreditNote TransactionKind = "CREDIT_NOTE"
)

// IsValid checks if the transaction kind is valid
func (k TransactionKind) IsValid() bool {
	switch k {
	case TransactionKindInvoice, TransactionKindPayment, TransactionKindCreditNote:
		return true
	}
	return false
}

// String returns the string representation
func (k TransactionKind) String() string {
	return string(k)
}

// Transaction is one entry of a partner's ledger as fed to the statement
// builder. Invoices are debits; payments and credit notes are credits.
// Balance-crossing payments carry the real cash amount separately so the
// statement does not double-count money that never moved.
type Transaction struct {
	Kind            TransactionKind      `json:"kind"`
	RefID           uuid.UUID            `json:"ref_id"`
	Code            string               `json:"code"`
	Currency        valueobject.Currency `json:"currency"`
	Date            time.Time            `json:"date"`
	Debit           decimal.Decimal      `json:"debit"`
	Credit          decimal.Decimal      `json:"credit"`
	BalanceCrossing bool                 `json:"balance_crossing"`
	CashAmount      decimal.Decimal      `json:"cash_amount"`
}

// StatementLine is a transaction with its chronological running balance
type StatementLine struct {
	Transaction
	RunningBalance decimal.Decimal `json:"running_balance"`
	DisplayAmount  decimal.Decimal `json:"display_amount"`
}

// StatementSummary is the per-currency position: latest running balance and
// the credit balance tracker's unused-balance figure.
type StatementSummary struct {
	Balance       decimal.Decimal `json:"balance"`
	UnusedBalance decimal.Decimal `json:"unused_balance"`
}

// Statement is a partner's chronological position in one currency
type Statement struct {
	Currency valueobject.Currency `json:"currency"`
	Lines    []StatementLine      `json:"lines"`
	Summary  StatementSummary     `json:"summary"`
}

// StatementBuilder reconstructs a partner's running balance per currency
type StatementBuilder struct{}

// NewStatementBuilder creates a statement builder
func NewStatementBuilder() *StatementBuilder {
	return &StatementBuilder{}
}

// Build filters the transaction set to the target currency, sorts it
// chronologically (stable, ties keep input order) and walks it accumulating
// runningBalance += debit - credit. The running balances are fixed at build
// time; reversing for display never recomputes them.
func (b *StatementBuilder) Build(transactions []Transaction, ccy valueobject.Currency, unusedBalance decimal.Decimal) (*Statement, error) {
	if ccy == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Statement currency cannot be empty")
	}

	filtered := make([]Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx.Currency == ccy {
			filtered = append(filtered, tx)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Date.Before(filtered[j].Date)
	})

	lines := make([]StatementLine, 0, len(filtered))
	running := decimal.Zero
	for _, tx := range filtered {
		running = running.Add(tx.Debit).Sub(tx.Credit)

		display := tx.Debit
		if tx.Debit.IsZero() {
			display = tx.Credit
		}
		if tx.BalanceCrossing {
			display = tx.CashAmount
		}

		lines = append(lines, StatementLine{
			Transaction:    tx,
			RunningBalance: running,
			DisplayAmount:  display,
		})
	}

	return &Statement{
		Currency: ccy,
		Lines:    lines,
		Summary: StatementSummary{
			Balance:       running,
			UnusedBalance: unusedBalance,
		},
	}, nil
}

// Reversed returns the lines most-recent-first for display. Running balances
// keep their chronologically computed values.
func (s *Statement) Reversed() []StatementLine {
	reversed := make([]StatementLine, len(s.Lines))
	for i, line := range s.Lines {
		reversed[len(s.Lines)-1-i] = line
	}
	return reversed
}
