// Package store implements ports.QuoteStore over process memory and Redis.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/feedmill/quote-service/internal/domain"
)

// quoteRecord is the serialised form of a quote session.
type quoteRecord struct {
	ID        string        `json:"id"`
	Term      domain.TermID `json:"term"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Items     []itemRecord  `json:"items"`
}

type itemRecord struct {
	Product         string          `json:"product"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	FreightPerUnit  decimal.Decimal `json:"freight_per_unit"`
	Quantity        int             `json:"quantity"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	FreightTotal    decimal.Decimal `json:"freight_total"`
	DiscountTotal   decimal.Decimal `json:"discount_total"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

func toRecord(q *domain.Quote) quoteRecord {
	items := q.Items()
	rec := quoteRecord{
		ID:        q.ID(),
		Term:      q.Term(),
		CreatedAt: q.CreatedAt(),
		UpdatedAt: q.UpdatedAt(),
		Items:     make([]itemRecord, len(items)),
	}
	for i, it := range items {
		rec.Items[i] = itemRecord{
			Product:         it.ProductName,
			UnitPrice:       it.UnitPrice,
			FreightPerUnit:  it.FreightPerUnit,
			Quantity:        it.Quantity,
			DiscountPercent: it.DiscountPercent,
			FreightTotal:    it.FreightTotal,
			DiscountTotal:   it.DiscountTotal,
			LineTotal:       it.LineTotal,
		}
	}
	return rec
}

// Derived line amounts are restored as stored, never recomputed.
func (r quoteRecord) toQuote() *domain.Quote {
	items := make([]domain.LineItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = domain.LineItem{
			ProductName:     it.Product,
			UnitPrice:       it.UnitPrice,
			FreightPerUnit:  it.FreightPerUnit,
			Quantity:        it.Quantity,
			DiscountPercent: it.DiscountPercent,
			FreightTotal:    it.FreightTotal,
			DiscountTotal:   it.DiscountTotal,
			LineTotal:       it.LineTotal,
		}
	}
	return domain.RestoreQuote(r.ID, items, r.Term, r.CreatedAt, r.UpdatedAt)
}

func encodeQuote(q *domain.Quote) ([]byte, error) {
	data, err := json.Marshal(toRecord(q))
	if err != nil {
		return nil, fmt.Errorf("encoding quote %s: %w", q.ID(), err)
	}
	return data, nil
}

func decodeQuote(data []byte) (*domain.Quote, error) {
	var rec quoteRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding quote: %w", err)
	}
	return rec.toQuote(), nil
}
