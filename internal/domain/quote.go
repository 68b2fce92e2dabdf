package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is an in-progress quoting session: an ordered list of line items
// and the payment term selected for export. A Quote is owned by a single
// session; it is not safe for concurrent mutation.
type Quote struct {
	id        string
	items     []LineItem
	term      TermID
	createdAt time.Time
	updatedAt time.Time
}

// NewQuote starts an empty quote paid in cash.
func NewQuote(id string, now time.Time) *Quote {
	return &Quote{
		id:        id,
		term:      TermCash,
		createdAt: now,
		updatedAt: now,
	}
}

// RestoreQuote rebuilds a quote from stored state.
func RestoreQuote(id string, items []LineItem, term TermID, createdAt, updatedAt time.Time) *Quote {
	q := &Quote{
		id:        id,
		items:     make([]LineItem, len(items)),
		term:      term,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
	copy(q.items, items)
	return q
}

// ID returns the session identifier.
func (q *Quote) ID() string { return q.id }

// Term returns the selected payment term.
func (q *Quote) Term() TermID { return q.term }

// CreatedAt returns when the session started.
func (q *Quote) CreatedAt() time.Time { return q.createdAt }

// UpdatedAt returns when the quote last changed.
func (q *Quote) UpdatedAt() time.Time { return q.updatedAt }

// Items returns a copy of the line items in insertion order.
func (q *Quote) Items() []LineItem {
	out := make([]LineItem, len(q.items))
	copy(out, q.items)
	return out
}

// IsEmpty reports whether the quote has no items.
func (q *Quote) IsEmpty() bool { return len(q.items) == 0 }

// MaxQuoteItems caps the line items of one quote.
const MaxQuoteItems = 500

// AddItem appends a priced line item. A quote already holding
// MaxQuoteItems lines is a conflict.
func (q *Quote) AddItem(item LineItem, now time.Time) error {
	if len(q.items) >= MaxQuoteItems {
		return NewConflictError("quote", fmt.Sprintf("already holds %d items", MaxQuoteItems))
	}
	q.items = append(q.items, item)
	q.updatedAt = now
	return nil
}

// Clear removes every line item. The selected term is kept.
func (q *Quote) Clear(now time.Time) {
	q.items = nil
	q.updatedAt = now
}

// SelectTerm chooses the payment term used for allocation and export.
func (q *Quote) SelectTerm(term TermID, now time.Time) error {
	if !term.Valid() {
		return NewValidationErrorWithValue("term", "unknown payment term", int(term))
	}
	q.term = term
	q.updatedAt = now
	return nil
}

// Totals sums the quote's items.
func (q *Quote) Totals() Totals {
	return ComputeTotals(q.items)
}

// Conditions returns the six-row pricing table for the quote.
func (q *Quote) Conditions() []PaymentCondition {
	t := q.Totals()
	return PaymentConditions(t.Subtotal, t.Quantity)
}

// Allocation reprices every line for the given term.
func (q *Quote) Allocation(term TermID) []AllocatedLine {
	t := q.Totals()
	return AllocateForTerm(q.items, t.Subtotal, TermValue(t.Subtotal, term, t.Quantity))
}

// Document is the export snapshot of a quote handed to renderers.
type Document struct {
	QuoteID     string
	GeneratedAt time.Time
	Items       []LineItem
	Totals      Totals
	Conditions  []PaymentCondition
	Term        TermID
	TermValue   decimal.Decimal
	Allocation  []AllocatedLine
}

// Document builds the export snapshot for the selected term.
func (q *Quote) Document(now time.Time) Document {
	t := q.Totals()
	return Document{
		QuoteID:     q.id,
		GeneratedAt: now,
		Items:       q.Items(),
		Totals:      t,
		Conditions:  PaymentConditions(t.Subtotal, t.Quantity),
		Term:        q.term,
		TermValue:   TermValue(t.Subtotal, q.term, t.Quantity),
		Allocation:  q.Allocation(q.term),
	}
}
