package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/feedmill/quote-service/internal/app"
	"github.com/feedmill/quote-service/internal/domain"
)

// MaxSimulationItems bounds a single simulation request.
const MaxSimulationItems = 200

// ItemRequest describes one line to price. Amounts accept JSON strings or
// numbers; omitted amounts are zero. The quantity bound matches
// domain.MaxQuantity; amount bounds are enforced by domain.NewLineItem.
type ItemRequest struct {
	Product         string          `json:"product"          validate:"required,notempty"`
	Quantity        int             `json:"quantity"         validate:"required,min=1,max=100000"`
	FreightPerUnit  decimal.Decimal `json:"freight_per_unit"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// ToInput converts the request to the service input.
func (r ItemRequest) ToInput() app.ItemInput {
	return app.ItemInput{
		Product:         r.Product,
		Quantity:        r.Quantity,
		FreightPerUnit:  r.FreightPerUnit,
		DiscountPercent: r.DiscountPercent,
	}
}

// SelectTermRequest is the body of PUT /quotes/:id/term.
type SelectTermRequest struct {
	Term *domain.TermID `json:"term" validate:"required"`
}

// SimulateRequest is the body of POST /pricing/simulate.
type SimulateRequest struct {
	Items []ItemRequest `json:"items" validate:"dive"`
	// Term, when set, adds the allocation for that term to the result.
	Term *domain.TermID `json:"term,omitempty"`
}

// Validate implements Validatable.
func (r SimulateRequest) Validate() error {
	if len(r.Items) > MaxSimulationItems {
		return domain.NewValidationError("items", fmt.Sprintf("must be at most %d entries", MaxSimulationItems))
	}
	return nil
}

// Inputs converts the requested lines to service inputs.
func (r SimulateRequest) Inputs() []app.ItemInput {
	out := make([]app.ItemInput, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.ToInput()
	}
	return out
}

// AllocationQuery is the query of GET /quotes/:id/allocation.
type AllocationQuery struct {
	Term string `form:"term"`
}

// TermID parses the optional term override.
func (q AllocationQuery) TermID() (*domain.TermID, error) {
	if q.Term == "" {
		return nil, nil
	}
	id, err := domain.ParseTermID(q.Term)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// LineItemResponse is a priced line. Amounts are decimal strings with a BRL
// rendering alongside.
type LineItemResponse struct {
	Product                 string `json:"product"`
	Quantity                int    `json:"quantity"`
	QuantityLabel           string `json:"quantity_label"`
	UnitPrice               string `json:"unit_price"`
	UnitPriceFormatted      string `json:"unit_price_formatted"`
	FreightPerUnit          string `json:"freight_per_unit"`
	FreightPerUnitFormatted string `json:"freight_per_unit_formatted"`
	DiscountPercent         string `json:"discount_percent"`
	DiscountLabel           string `json:"discount_label"`
	FreightTotal            string `json:"freight_total"`
	FreightTotalFormatted   string `json:"freight_total_formatted"`
	DiscountTotal           string `json:"discount_total"`
	DiscountTotalFormatted  string `json:"discount_total_formatted"`
	LineTotal               string `json:"line_total"`
	LineTotalFormatted      string `json:"line_total_formatted"`
}

// TotalsResponse aggregates a list of lines.
type TotalsResponse struct {
	Subtotal          string `json:"subtotal"`
	SubtotalFormatted string `json:"subtotal_formatted"`
	Quantity          int    `json:"quantity"`
	QuantityLabel     string `json:"quantity_label"`
	Freight           string `json:"freight"`
	FreightFormatted  string `json:"freight_formatted"`
}

// ConditionResponse is one row of the payment conditions table.
type ConditionResponse struct {
	Term                domain.TermID `json:"term"`
	Label               string        `json:"label"`
	FinalValue          string        `json:"final_value"`
	FinalValueFormatted string        `json:"final_value_formatted"`
	Installments        int           `json:"installments"`
	InstallmentText     string        `json:"installment_text"`
}

// QuoteResponse is the full view of a quote session.
type QuoteResponse struct {
	ID         string              `json:"id"`
	Term       domain.TermID       `json:"term"`
	TermLabel  string              `json:"term_label"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
	Items      []LineItemResponse  `json:"items"`
	Totals     TotalsResponse      `json:"totals"`
	Conditions []ConditionResponse `json:"conditions"`
}

// AddItemResponse returns the priced line and the updated quote.
type AddItemResponse struct {
	Item  LineItemResponse `json:"item"`
	Quote *QuoteResponse   `json:"quote"`
}

// AllocatedLineResponse is a line repriced for a term.
type AllocatedLineResponse struct {
	Product                  string `json:"product"`
	Quantity                 int    `json:"quantity"`
	UnitPriceAtTerm          string `json:"unit_price_at_term"`
	UnitPriceAtTermFormatted string `json:"unit_price_at_term_formatted"`
	LineTotalAtTerm          string `json:"line_total_at_term"`
	LineTotalAtTermFormatted string `json:"line_total_at_term_formatted"`
}

// AllocationResponse is the per-line repricing for one term.
type AllocationResponse struct {
	Term               domain.TermID           `json:"term"`
	TermLabel          string                  `json:"term_label"`
	Subtotal           string                  `json:"subtotal"`
	SubtotalFormatted  string                  `json:"subtotal_formatted"`
	TermValue          string                  `json:"term_value"`
	TermValueFormatted string                  `json:"term_value_formatted"`
	Lines              []AllocatedLineResponse `json:"lines"`
}

// SimulationResponse is the result of a stateless pricing.
type SimulationResponse struct {
	Items      []LineItemResponse  `json:"items"`
	Totals     TotalsResponse      `json:"totals"`
	Conditions []ConditionResponse `json:"conditions"`
	Allocation *AllocationResponse `json:"allocation,omitempty"`
}

// NewLineItemResponse converts a domain line item.
func NewLineItemResponse(it domain.LineItem) LineItemResponse {
	return LineItemResponse{
		Product:                 it.ProductName,
		Quantity:                it.Quantity,
		QuantityLabel:           SacksLabel(it.Quantity),
		UnitPrice:               it.UnitPrice.String(),
		UnitPriceFormatted:      domain.FormatBRL(it.UnitPrice),
		FreightPerUnit:          it.FreightPerUnit.String(),
		FreightPerUnitFormatted: domain.FormatBRL(it.FreightPerUnit),
		DiscountPercent:         it.DiscountPercent.String(),
		DiscountLabel:           it.DiscountPercent.String() + "%",
		FreightTotal:            it.FreightTotal.String(),
		FreightTotalFormatted:   domain.FormatBRL(it.FreightTotal),
		DiscountTotal:           it.DiscountTotal.String(),
		DiscountTotalFormatted:  domain.FormatBRL(it.DiscountTotal),
		LineTotal:               it.LineTotal.String(),
		LineTotalFormatted:      domain.FormatBRL(it.LineTotal),
	}
}

func newLineItemResponses(items []domain.LineItem) []LineItemResponse {
	out := make([]LineItemResponse, len(items))
	for i, it := range items {
		out[i] = NewLineItemResponse(it)
	}
	return out
}

func newTotalsResponse(t domain.Totals) TotalsResponse {
	return TotalsResponse{
		Subtotal:          t.Subtotal.String(),
		SubtotalFormatted: domain.FormatBRL(t.Subtotal),
		Quantity:          t.Quantity,
		QuantityLabel:     SacksLabel(t.Quantity),
		Freight:           t.Freight.String(),
		FreightFormatted:  domain.FormatBRL(t.Freight),
	}
}

func newConditionResponses(conditions []domain.PaymentCondition) []ConditionResponse {
	out := make([]ConditionResponse, len(conditions))
	for i, c := range conditions {
		out[i] = ConditionResponse{
			Term:                c.Term,
			Label:               c.Term.String(),
			FinalValue:          c.FinalValue.String(),
			FinalValueFormatted: domain.FormatBRL(c.FinalValue),
			Installments:        c.Installments,
			InstallmentText:     c.InstallmentText(),
		}
	}
	return out
}

// NewQuoteResponse converts a quote session.
func NewQuoteResponse(q *domain.Quote) *QuoteResponse {
	return &QuoteResponse{
		ID:         q.ID(),
		Term:       q.Term(),
		TermLabel:  q.Term().String(),
		CreatedAt:  q.CreatedAt(),
		UpdatedAt:  q.UpdatedAt(),
		Items:      newLineItemResponses(q.Items()),
		Totals:     newTotalsResponse(q.Totals()),
		Conditions: newConditionResponses(q.Conditions()),
	}
}

// NewAllocationResponse converts a term allocation.
func NewAllocationResponse(a *app.Allocation) *AllocationResponse {
	lines := make([]AllocatedLineResponse, len(a.Lines))
	for i, l := range a.Lines {
		lines[i] = AllocatedLineResponse{
			Product:                  l.ProductName,
			Quantity:                 l.Quantity,
			UnitPriceAtTerm:          l.UnitPriceAtTerm.String(),
			UnitPriceAtTermFormatted: domain.FormatBRL(l.UnitPriceAtTerm),
			LineTotalAtTerm:          l.LineTotalAtTerm.String(),
			LineTotalAtTermFormatted: domain.FormatBRL(l.LineTotalAtTerm),
		}
	}

	return &AllocationResponse{
		Term:               a.Term,
		TermLabel:          a.Term.String(),
		Subtotal:           a.Subtotal.String(),
		SubtotalFormatted:  domain.FormatBRL(a.Subtotal),
		TermValue:          a.TermValue.String(),
		TermValueFormatted: domain.FormatBRL(a.TermValue),
		Lines:              lines,
	}
}

// NewSimulationResponse converts a simulation result.
func NewSimulationResponse(s *app.Simulation) *SimulationResponse {
	resp := &SimulationResponse{
		Items:      newLineItemResponses(s.Items),
		Totals:     newTotalsResponse(s.Totals),
		Conditions: newConditionResponses(s.Conditions),
	}
	if s.Allocation != nil {
		resp.Allocation = NewAllocationResponse(s.Allocation)
	}
	return resp
}

// SacksLabel renders a quantity as "N saco(s)".
func SacksLabel(n int) string {
	return fmt.Sprintf("%d saco(s)", n)
}
