package domain

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func benchItems(b *testing.B, n int) []LineItem {
	b.Helper()

	catalog := DefaultCatalog()
	products := catalog.Products()
	items := make([]LineItem, 0, n)
	for i := range n {
		p := products[i%len(products)]
		item, err := NewLineItem(catalog, p.Name, 10+i, decimal.NewFromInt(2), decimal.NewFromInt(5))
		if err != nil {
			b.Fatal(err)
		}
		items = append(items, item)
	}
	return items
}

// BenchmarkPaymentConditions measures the per-render cost of the six
// payment conditions shown with every quote view.
func BenchmarkPaymentConditions(b *testing.B) {
	subtotal := decimal.RequireFromString("67557.80")

	b.ReportAllocs()
	for b.Loop() {
		_ = PaymentConditions(subtotal, 650)
	}
}

func BenchmarkAllocateForTerm(b *testing.B) {
	for _, n := range []int{1, 20, 200} {
		b.Run(fmt.Sprintf("items=%d", n), func(b *testing.B) {
			items := benchItems(b, n)
			totals := ComputeTotals(items)
			value := TermValue(totals.Subtotal, Term30x60x90, totals.Quantity)

			b.ReportAllocs()
			for b.Loop() {
				_ = AllocateForTerm(items, totals.Subtotal, value)
			}
		})
	}
}

func BenchmarkFormatBRL(b *testing.B) {
	v := decimal.RequireFromString("1234567.891")

	b.ReportAllocs()
	for b.Loop() {
		_ = FormatBRL(v)
	}
}
