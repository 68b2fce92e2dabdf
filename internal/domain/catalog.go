package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry.
type Product struct {
	Name      string
	UnitPrice decimal.Decimal
}

// Catalog maps product names to unit prices, keeping the source order.
// A Catalog is immutable once built.
type Catalog struct {
	products []Product
	index    map[string]int
}

// NewCatalog builds a catalog, rejecting blank or duplicate names and
// negative prices.
func NewCatalog(products []Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]Product, 0, len(products)),
		index:    make(map[string]int, len(products)),
	}

	for _, p := range products {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, NewValidationError("product", "name must not be empty")
		}

		if p.UnitPrice.IsNegative() {
			return nil, NewValidationErrorWithValue("unit_price", "must not be negative for "+name, p.UnitPrice.String())
		}

		if _, dup := c.index[name]; dup {
			return nil, NewValidationErrorWithValue("product", "duplicate product name", name)
		}

		c.index[name] = len(c.products)
		c.products = append(c.products, Product{Name: name, UnitPrice: p.UnitPrice})
	}

	return c, nil
}

// DefaultCatalog is used when no catalog spreadsheet is available.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog([]Product{
		{Name: "Ração Crescimento", UnitPrice: decimal.RequireFromString("75.50")},
		{Name: "Ração Engorda", UnitPrice: decimal.RequireFromString("82.00")},
		{Name: "Sal Mineral", UnitPrice: decimal.RequireFromString("55.90")},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Price returns the unit price of a product and whether it exists.
// Surrounding whitespace in name is ignored, as it is in NewCatalog.
func (c *Catalog) Price(name string) (decimal.Decimal, bool) {
	if c == nil {
		return decimal.Zero, false
	}
	i, ok := c.index[strings.TrimSpace(name)]
	if !ok {
		return decimal.Zero, false
	}
	return c.products[i].UnitPrice, true
}

// Products returns the catalog entries in source order.
func (c *Catalog) Products() []Product {
	if c == nil {
		return nil
	}
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.products)
}
