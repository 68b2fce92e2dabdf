package app

import (
	"context"
	"fmt"

	"github.com/feedmill/quote-service/internal/domain"
)

// Simulation is a stateless pricing of a list of line requests.
type Simulation struct {
	Items      []domain.LineItem
	Totals     domain.Totals
	Conditions []domain.PaymentCondition
	// Allocation is set only when a term was requested.
	Allocation *Allocation
}

// Simulate prices items without opening a session. When term is non-nil the
// result also carries the per-line allocation for that term.
func (s *QuoteService) Simulate(ctx context.Context, inputs []ItemInput, term *domain.TermID) (*Simulation, error) {
	if term != nil && !term.Valid() {
		return nil, domain.NewValidationError("term", "unknown payment term")
	}

	if len(inputs) > domain.MaxQuoteItems {
		return nil, domain.NewValidationErrorWithValue("items", fmt.Sprintf("at most %d items", domain.MaxQuoteItems), len(inputs))
	}

	catalog := s.catalog.Current()
	items := make([]domain.LineItem, 0, len(inputs))

	for i, in := range inputs {
		item, err := domain.NewLineItem(catalog, in.Product, in.Quantity, in.FreightPerUnit, in.DiscountPercent)
		if err != nil {
			return nil, fmt.Errorf("pricing item %d: %w", i, err)
		}
		items = append(items, item)
	}

	totals := domain.ComputeTotals(items)
	sim := &Simulation{
		Items:      items,
		Totals:     totals,
		Conditions: domain.PaymentConditions(totals.Subtotal, totals.Quantity),
	}

	if term != nil {
		value := domain.TermValue(totals.Subtotal, *term, totals.Quantity)
		sim.Allocation = &Allocation{
			Term:      *term,
			Subtotal:  totals.Subtotal,
			TermValue: value,
			Lines:     domain.AllocateForTerm(items, totals.Subtotal, value),
		}
	}

	s.log(ctx).DebugContext(ctx, "pricing simulated")

	return sim, nil
}
