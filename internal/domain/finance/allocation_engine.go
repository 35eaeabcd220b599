package finance

import (
	"fmt"
	"sort"

	"github.com/cobranza/backend/internal/domain/currency"
	"github.com/cobranza/backend/internal/domain/shared"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationEpsilon absorbs rounding drift in allocation-sum comparisons.
// All monetary tolerance checks in the engine use this value.
var AllocationEpsilon = decimal.NewFromFloat(0.05)

// AllocationStrategyType defines how a payment is distributed over invoices
type AllocationStrategyType string

const (
	AllocationStrategyTypeFIFO   AllocationStrategyType = "FIFO"   // Oldest invoice first by invoice date
	AllocationStrategyTypeManual AllocationStrategyType = "MANUAL" // Caller-supplied allocations, engine validates
)

// IsValid checks if the strategy type is valid
func (t AllocationStrategyType) IsValid() bool {
	switch t {
	case AllocationStrategyTypeFIFO, AllocationStrategyTypeManual:
		return true
	}
	return false
}

// String returns the string representation
func (t AllocationStrategyType) String() string {
	return string(t)
}

// AllAllocationStrategyTypes returns all valid allocation strategy types
func AllAllocationStrategyTypes() []AllocationStrategyType {
	return []AllocationStrategyType{
		AllocationStrategyTypeFIFO,
		AllocationStrategyTypeManual,
	}
}

// ProposedAllocation is one line of a proposal: how much of the payment, in
// payment currency, goes to one invoice.
type ProposedAllocation struct {
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceCode   string          `json:"invoice_code"`
	Amount        decimal.Decimal `json:"amount"`
	PendingBefore decimal.Decimal `json:"pending_before"` // invoice pending in payment currency
	FullySettled  bool            `json:"fully_settled"`
}

// AllocationProposal is the complete result of distributing one payment.
// The engine persists nothing; the caller submits the proposal atomically.
type AllocationProposal struct {
	Allocations        []ProposedAllocation `json:"allocations"`
	TotalAllocated     decimal.Decimal      `json:"total_allocated"`
	Remainder          decimal.Decimal      `json:"remainder"` // becomes unapplied credit
	FullyConsumed      bool                 `json:"fully_consumed"`
	InvoicesSettled    []uuid.UUID          `json:"invoices_settled"`
	InvoicesPartial    []uuid.UUID          `json:"invoices_partial"`
	DegradedConversion bool                 `json:"degraded_conversion"`
}

// ManualAllocation is a caller-supplied allocation line for manual mode
type ManualAllocation struct {
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// AllocationEngine distributes a gross payment amount over a partner's
// eligible invoices, oldest first, converting each invoice's pending amount
// into the payment currency. The whole computation runs against one rate
// snapshot, so the result is deterministic for a given candidate list.
type AllocationEngine struct {
	conversions *currency.ConversionService
}

// NewAllocationEngine creates an allocation engine over a conversion service
func NewAllocationEngine(conversions *currency.ConversionService) *AllocationEngine {
	return &AllocationEngine{conversions: conversions}
}

// Distribute allocates the gross amount greedily, oldest invoice date first.
// Ineligible invoices (wrong status or nothing pending) are skipped. Each
// recorded allocation is rounded to 2 places; the unrounded amount drives the
// running available balance so the sum never exceeds gross plus epsilon.
func (e *AllocationEngine) Distribute(gross valueobject.Money, candidates []*Invoice) (*AllocationProposal, error) {
	if gross.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}

	eligible := make([]*Invoice, 0, len(candidates))
	for _, inv := range candidates {
		if inv != nil && inv.IsEligibleForAllocation() {
			eligible = append(eligible, inv)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].InvoiceDate.Before(eligible[j].InvoiceDate)
	})

	proposal := &AllocationProposal{
		Allocations:     make([]ProposedAllocation, 0, len(eligible)),
		TotalAllocated:  decimal.Zero,
		InvoicesSettled: make([]uuid.UUID, 0),
		InvoicesPartial: make([]uuid.UUID, 0),
	}

	available := gross.Amount()
	for _, inv := range eligible {
		if available.LessThanOrEqual(decimal.Zero) {
			break
		}

		pendingInPaymentCcy, degraded := e.pendingInCurrency(inv, gross.Currency())
		if degraded {
			proposal.DegradedConversion = true
		}
		if pendingInPaymentCcy.LessThanOrEqual(decimal.Zero) {
			continue
		}

		toAllocate := decimal.Min(available, pendingInPaymentCcy)
		if toAllocate.LessThanOrEqual(AllocationEpsilon) {
			continue
		}

		fullySettled := toAllocate.GreaterThanOrEqual(pendingInPaymentCcy)
		proposal.Allocations = append(proposal.Allocations, ProposedAllocation{
			InvoiceID:     inv.ID,
			InvoiceCode:   inv.Code,
			Amount:        toAllocate.Round(2),
			PendingBefore: pendingInPaymentCcy,
			FullySettled:  fullySettled,
		})
		proposal.TotalAllocated = proposal.TotalAllocated.Add(toAllocate.Round(2))
		available = available.Sub(toAllocate)

		if fullySettled {
			proposal.InvoicesSettled = append(proposal.InvoicesSettled, inv.ID)
		} else {
			proposal.InvoicesPartial = append(proposal.InvoicesPartial, inv.ID)
		}
	}

	if available.IsNegative() {
		available = decimal.Zero
	}
	proposal.Remainder = available
	proposal.FullyConsumed = available.LessThanOrEqual(AllocationEpsilon)
	return proposal, nil
}

// ValidateManual checks a caller-edited allocation set against the gross
// amount and each invoice's pending amount. Each invoice may appear at most
// once so the pending comparison caps the invoice's cumulative allocation.
// It rejects, never adjusts.
func (e *AllocationEngine) ValidateManual(gross valueobject.Money, requested []ManualAllocation, candidates []*Invoice) error {
	if gross.Amount().LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}

	byID := make(map[uuid.UUID]*Invoice, len(candidates))
	for _, inv := range candidates {
		if inv != nil {
			byID[inv.ID] = inv
		}
	}

	seen := make(map[uuid.UUID]bool, len(requested))
	total := decimal.Zero
	for _, req := range requested {
		if req.Amount.IsNegative() {
			return shared.NewDomainError("VALIDATION_ERROR", "Allocation amounts cannot be negative")
		}
		inv, exists := byID[req.InvoiceID]
		if !exists {
			return shared.NewDomainError("VALIDATION_ERROR",
				fmt.Sprintf("Invoice %s is not an allocation candidate", req.InvoiceID))
		}
		if seen[req.InvoiceID] {
			return shared.NewDomainError("VALIDATION_ERROR",
				fmt.Sprintf("Invoice %s appears more than once in the allocation set", inv.Code))
		}
		seen[req.InvoiceID] = true
		if !inv.IsEligibleForAllocation() {
			return shared.NewDomainError("VALIDATION_ERROR",
				fmt.Sprintf("Invoice %s is not eligible for allocation", inv.Code))
		}

		pendingInPaymentCcy, _ := e.pendingInCurrency(inv, gross.Currency())
		if req.Amount.GreaterThan(pendingInPaymentCcy.Add(AllocationEpsilon)) {
			return shared.NewDomainError("VALIDATION_ERROR",
				fmt.Sprintf("Allocation %s exceeds pending amount %s of invoice %s",
					req.Amount.StringFixed(2), pendingInPaymentCcy.StringFixed(2), inv.Code))
		}
		total = total.Add(req.Amount)
	}

	if total.GreaterThan(gross.Amount().Add(AllocationEpsilon)) {
		return shared.NewDomainError("VALIDATION_ERROR",
			fmt.Sprintf("Allocation total %s exceeds payment amount %s",
				total.StringFixed(2), gross.Amount().StringFixed(2)))
	}
	return nil
}

// Manual validates a caller-supplied allocation set and turns it into a
// proposal so previews render manual edits through the same shape as FIFO.
func (e *AllocationEngine) Manual(gross valueobject.Money, requested []ManualAllocation, candidates []*Invoice) (*AllocationProposal, error) {
	if err := e.ValidateManual(gross, requested, candidates); err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*Invoice, len(candidates))
	for _, inv := range candidates {
		if inv != nil {
			byID[inv.ID] = inv
		}
	}

	proposal := &AllocationProposal{
		Allocations:     make([]ProposedAllocation, 0, len(requested)),
		TotalAllocated:  decimal.Zero,
		InvoicesSettled: make([]uuid.UUID, 0),
		InvoicesPartial: make([]uuid.UUID, 0),
	}

	for _, req := range requested {
		if req.Amount.IsZero() {
			continue
		}
		inv := byID[req.InvoiceID]
		pendingInPaymentCcy, degraded := e.pendingInCurrency(inv, gross.Currency())
		if degraded {
			proposal.DegradedConversion = true
		}

		fullySettled := req.Amount.GreaterThanOrEqual(pendingInPaymentCcy.Sub(AllocationEpsilon))
		proposal.Allocations = append(proposal.Allocations, ProposedAllocation{
			InvoiceID:     inv.ID,
			InvoiceCode:   inv.Code,
			Amount:        req.Amount.Round(2),
			PendingBefore: pendingInPaymentCcy,
			FullySettled:  fullySettled,
		})
		proposal.TotalAllocated = proposal.TotalAllocated.Add(req.Amount.Round(2))

		if fullySettled {
			proposal.InvoicesSettled = append(proposal.InvoicesSettled, inv.ID)
		} else {
			proposal.InvoicesPartial = append(proposal.InvoicesPartial, inv.ID)
		}
	}

	remainder := gross.Amount().Sub(proposal.TotalAllocated)
	if remainder.IsNegative() {
		remainder = decimal.Zero
	}
	proposal.Remainder = remainder
	proposal.FullyConsumed = remainder.LessThanOrEqual(AllocationEpsilon)
	return proposal, nil
}

// pendingInCurrency converts an invoice's pending amount into the target
// currency through the rate snapshot.
func (e *AllocationEngine) pendingInCurrency(inv *Invoice, ccy valueobject.Currency) (decimal.Decimal, bool) {
	pending := inv.PendingMoney()
	converted, degraded := e.conversions.Convert(pending, ccy)
	return converted.Amount(), degraded
}
