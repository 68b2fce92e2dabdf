package dto

import "github.com/feedmill/quote-service/internal/domain"

// ProductResponse is a catalog entry.
type ProductResponse struct {
	Name               string `json:"name"`
	UnitPrice          string `json:"unit_price"`
	UnitPriceFormatted string `json:"unit_price_formatted"`
}

// CatalogResponse lists the active catalog.
type CatalogResponse struct {
	Products []ProductResponse `json:"products"`
	Count    int               `json:"count"`
}

// NewCatalogResponse converts catalog products in source order.
func NewCatalogResponse(products []domain.Product) *CatalogResponse {
	out := make([]ProductResponse, len(products))
	for i, p := range products {
		out[i] = ProductResponse{
			Name:               p.Name,
			UnitPrice:          p.UnitPrice.String(),
			UnitPriceFormatted: domain.FormatBRL(p.UnitPrice),
		}
	}
	return &CatalogResponse{Products: out, Count: len(out)}
}

// CoefficientsResponse holds the interest coefficient per quantity tier.
type CoefficientsResponse struct {
	High   string `json:"high"`
	Medium string `json:"medium"`
	Low    string `json:"low"`
}

// TermResponse is one entry of the payment term table.
type TermResponse struct {
	Code         string `json:"code"`
	Label        string `json:"label"`
	Installments int    `json:"installments"`
	// Coefficients is omitted for cash.
	Coefficients *CoefficientsResponse `json:"coefficients,omitempty"`
}

// TermsResponse is the payment term table with its tier thresholds.
type TermsResponse struct {
	Terms                 []TermResponse `json:"terms"`
	HighVolumeThreshold   int            `json:"high_volume_threshold"`
	MediumVolumeThreshold int            `json:"medium_volume_threshold"`
}

// NewTermsResponse converts the term table.
func NewTermsResponse(terms []domain.PaymentTerm) *TermsResponse {
	out := make([]TermResponse, len(terms))
	for i, t := range terms {
		out[i] = TermResponse{Code: t.Code, Label: t.Label, Installments: t.Installments}
		if t.Tiers != nil {
			out[i].Coefficients = &CoefficientsResponse{
				High:   t.Tiers.High.String(),
				Medium: t.Tiers.Medium.String(),
				Low:    t.Tiers.Low.String(),
			}
		}
	}
	return &TermsResponse{
		Terms:                 out,
		HighVolumeThreshold:   domain.HighVolumeThreshold,
		MediumVolumeThreshold: domain.MediumVolumeThreshold,
	}
}
