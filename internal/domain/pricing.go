package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Line item input bounds. MaxQuantity × MaxQuoteItems must fit in an int.
const (
	MaxQuantity = 100_000

	// MaxAmountDecimals is the finest precision accepted for freight and
	// discount amounts.
	MaxAmountDecimals = 4

	// maxAmountExponent rejects amounts written with a huge positive
	// exponent before any comparison rescales them.
	maxAmountExponent = 9
)

// MaxFreightPerUnit caps the freight charged per sack.
var MaxFreightPerUnit = decimal.NewFromInt(100_000)

// LineItem is one product entry of a quote with its pricing frozen at
// creation time. Build it with NewLineItem; the derived totals are never
// recomputed, so later catalog changes do not affect existing items.
type LineItem struct {
	ProductName     string
	UnitPrice       decimal.Decimal
	FreightPerUnit  decimal.Decimal
	Quantity        int
	DiscountPercent decimal.Decimal

	FreightTotal  decimal.Decimal
	DiscountTotal decimal.Decimal
	LineTotal     decimal.Decimal
}

// NewLineItem prices a product from the catalog.
func NewLineItem(
	catalog *Catalog,
	productName string,
	quantity int,
	freightPerUnit decimal.Decimal,
	discountPercent decimal.Decimal,
) (LineItem, error) {
	productName = strings.TrimSpace(productName)
	unitPrice, ok := catalog.Price(productName)
	if !ok {
		return LineItem{}, NewUnknownProductError(productName)
	}

	if quantity < 1 || quantity > MaxQuantity {
		return LineItem{}, NewValidationErrorWithValue("quantity", fmt.Sprintf("must be between 1 and %d", MaxQuantity), quantity)
	}

	if err := checkAmount("freight_per_unit", freightPerUnit, MaxFreightPerUnit); err != nil {
		return LineItem{}, err
	}

	if err := checkAmount("discount_percent", discountPercent, hundred); err != nil {
		return LineItem{}, err
	}

	qty := decimal.NewFromInt(int64(quantity))
	freightTotal := freightPerUnit.Mul(qty)
	discountTotal := unitPrice.Mul(discountPercent.Div(hundred)).Mul(qty)

	return LineItem{
		ProductName:     productName,
		UnitPrice:       unitPrice,
		FreightPerUnit:  freightPerUnit,
		Quantity:        quantity,
		DiscountPercent: discountPercent,
		FreightTotal:    freightTotal,
		DiscountTotal:   discountTotal,
		LineTotal:       unitPrice.Mul(qty).Add(freightTotal).Sub(discountTotal),
	}, nil
}

// checkAmount bounds v to [0, limit] with at most MaxAmountDecimals places.
// The exponent is checked first so oversized values are never rescaled.
func checkAmount(field string, v, limit decimal.Decimal) error {
	if e := v.Exponent(); e < -MaxAmountDecimals || e > maxAmountExponent {
		return NewValidationError(field, fmt.Sprintf("must have at most %d decimal places and be at most %s", MaxAmountDecimals, limit))
	}
	if v.IsNegative() || v.GreaterThan(limit) {
		return NewValidationErrorWithValue(field, "must be between 0 and "+limit.String(), v.String())
	}
	return nil
}

// Totals aggregates a sequence of line items.
type Totals struct {
	Subtotal decimal.Decimal
	Quantity int
	Freight  decimal.Decimal
}

// ComputeTotals sums line totals, quantities and freight. An empty
// sequence yields zeros.
func ComputeTotals(items []LineItem) Totals {
	t := Totals{Subtotal: decimal.Zero, Freight: decimal.Zero}
	for _, it := range items {
		t.Subtotal = t.Subtotal.Add(it.LineTotal)
		t.Quantity += it.Quantity
		t.Freight = t.Freight.Add(it.FreightTotal)
	}
	return t
}

// CoefficientFor returns the interest coefficient of a term for a quantity
// total. Cash carries no coefficient and yields zero; ids outside the term
// table get FallbackCoefficient.
func CoefficientFor(term TermID, quantityTotal int) decimal.Decimal {
	t, ok := term.Term()
	if !ok {
		return FallbackCoefficient
	}
	if t.Tiers == nil {
		return decimal.Zero
	}
	return t.Tiers.forQuantity(quantityTotal)
}

// TermValue is the amount payable under a term: the subtotal itself for
// cash, otherwise subtotal × (1 + coefficient). Interest is applied once
// to the whole subtotal.
func TermValue(subtotal decimal.Decimal, term TermID, quantityTotal int) decimal.Decimal {
	if term == TermCash {
		return subtotal
	}
	return subtotal.Mul(decimal.NewFromInt(1).Add(CoefficientFor(term, quantityTotal)))
}

// PaymentCondition is one row of the pricing table.
type PaymentCondition struct {
	Term         TermID
	FinalValue   decimal.Decimal
	Installments int
}

// InstallmentText renders the installment column of this condition.
func (c PaymentCondition) InstallmentText() string {
	return InstallmentText(c.FinalValue, c.Installments)
}

// PaymentConditions returns the six-row pricing table in fixed order.
func PaymentConditions(subtotal decimal.Decimal, quantityTotal int) []PaymentCondition {
	out := make([]PaymentCondition, 0, len(paymentTerms))
	for _, t := range paymentTerms {
		out = append(out, PaymentCondition{
			Term:         t.ID,
			FinalValue:   TermValue(subtotal, t.ID, quantityTotal),
			Installments: t.Installments,
		})
	}
	return out
}

// InstallmentText renders "N x R$ …" for split payments and the plain
// amount for a single payment. Installments are not reconciled against the
// final value, so their displayed sum may differ by a cent.
func InstallmentText(finalValue decimal.Decimal, installments int) string {
	if installments > 1 {
		each := finalValue.Div(decimal.NewFromInt(int64(installments)))
		return fmt.Sprintf("%d x %s", installments, FormatBRL(each))
	}
	return FormatBRL(finalValue)
}

// AllocatedLine is a line item repriced for a payment term.
type AllocatedLine struct {
	ProductName     string
	Quantity        int
	UnitPriceAtTerm decimal.Decimal
	LineTotalAtTerm decimal.Decimal
}

// AllocateForTerm spreads a term's final value over the items in
// proportion to each item's share of the cash subtotal. A zero subtotal
// leaves the lines unscaled. Items must have a positive quantity.
func AllocateForTerm(items []LineItem, subtotal, termFinalValue decimal.Decimal) []AllocatedLine {
	proportion := decimal.NewFromInt(1)
	if !subtotal.IsZero() {
		proportion = termFinalValue.Div(subtotal)
	}

	out := make([]AllocatedLine, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			panic(fmt.Sprintf("domain: line item %q has non-positive quantity %d", it.ProductName, it.Quantity))
		}
		qty := decimal.NewFromInt(int64(it.Quantity))
		out = append(out, AllocatedLine{
			ProductName:     it.ProductName,
			Quantity:        it.Quantity,
			UnitPriceAtTerm: it.LineTotal.Div(qty).Mul(proportion),
			LineTotalAtTerm: it.LineTotal.Mul(proportion),
		})
	}
	return out
}
