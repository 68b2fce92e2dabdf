// Package pdf renders quote documents with gofpdf.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/feedmill/quote-service/internal/domain"
)

// ContentType of the rendered documents.
const ContentType = "application/pdf"

const (
	fontFamily = "Helvetica"
	rowHeight  = 16.0
	timeLayout = "02/01/2006 15:04"
)

// Default texts used when Config leaves them empty.
const (
	DefaultTitle  = "Orçamento - Fábrica de Ração"
	DefaultFooter = "Orçamento gerado automaticamente - Fábrica de Ração"
)

// DefaultHighlightThreshold is the line total above which an item row is
// highlighted.
var DefaultHighlightThreshold = decimal.NewFromInt(1000)

// Config controls the document texts and layout.
type Config struct {
	Title              string
	Footer             string
	HighlightThreshold decimal.Decimal
	// Location of the generation timestamp. Nil means UTC.
	Location *time.Location
}

// Renderer implements ports.DocumentRenderer for A4 PDF output.
type Renderer struct {
	cfg Config
}

// NewRenderer creates a renderer, filling unset texts with defaults.
func NewRenderer(cfg Config) *Renderer {
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.Footer == "" {
		cfg.Footer = DefaultFooter
	}
	if cfg.HighlightThreshold.IsZero() {
		cfg.HighlightThreshold = DefaultHighlightThreshold
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Renderer{cfg: cfg}
}

// ContentType returns the MIME type of rendered documents.
func (r *Renderer) ContentType() string { return ContentType }

type column struct {
	title string
	width float64
	align string
}

var itemColumns = []column{
	{"Produto", 110, "L"},
	{"Valor", 60, "R"},
	{"Frete", 55, "R"},
	{"Quantidade", 65, "C"},
	{"Desconto", 50, "C"},
	{"Frete Total", 60, "R"},
	{"Desconto por item", 70, "R"},
	{"Total", 65, "R"},
}

var conditionColumns = []column{
	{"Condição", 180, "L"},
	{"Valor Total", 175, "R"},
	{"Parcela(s)", 180, "R"},
}

var allocationColumns = []column{
	{"Produto", 180, "L"},
	{"Quantidade", 95, "C"},
	{"Valor unitário", 130, "R"},
	{"Total", 130, "R"},
}

// Render draws doc on a single A4 portrait document, adding pages as the
// tables grow. ctx is checked between stages.
func (r *Renderer) Render(ctx context.Context, doc domain.Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := gofpdf.New("P", "pt", "A4", "")
	tr := p.UnicodeTranslatorFromDescriptor("")

	p.SetMargins(30, 30, 30)
	p.SetAutoPageBreak(true, 18+rowHeight)
	p.SetTitle(r.cfg.Title, true)
	p.SetFooterFunc(func() {
		p.SetY(-(18 + rowHeight))
		p.SetFont(fontFamily, "I", 8)
		p.SetTextColor(110, 110, 110)
		p.CellFormat(0, rowHeight, tr(r.cfg.Footer), "", 0, "C", false, 0, "")
	})
	p.AddPage()

	p.SetFont(fontFamily, "B", 16)
	p.CellFormat(0, 24, tr(r.cfg.Title), "", 1, "C", false, 0, "")
	p.SetFont(fontFamily, "", 9)
	p.CellFormat(0, rowHeight, tr("Gerado em "+doc.GeneratedAt.In(r.cfg.Location).Format(timeLayout)), "", 1, "C", false, 0, "")
	p.Ln(8)

	r.itemsTable(p, tr, doc.Items)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.Ln(8)
	totalsBlock(p, tr, doc.Totals)
	p.Ln(8)

	section(p, tr, "Condições de Pagamento")
	tableHeader(p, tr, conditionColumns)
	for _, c := range doc.Conditions {
		tableRow(p, tr, conditionColumns, false,
			c.Term.String(), domain.FormatBRL(c.FinalValue), c.InstallmentText())
	}

	if doc.Term != domain.TermCash && len(doc.Allocation) > 0 {
		p.Ln(8)
		section(p, tr, "Valores na condição "+doc.Term.String())
		tableHeader(p, tr, allocationColumns)
		for _, l := range doc.Allocation {
			tableRow(p, tr, allocationColumns, false,
				l.ProductName, sacks(l.Quantity), domain.FormatBRL(l.UnitPriceAtTerm), domain.FormatBRL(l.LineTotalAtTerm))
		}
		p.SetFont(fontFamily, "B", 9)
		p.CellFormat(0, rowHeight, tr("Total na condição: "+domain.FormatBRL(doc.TermValue)), "", 1, "R", false, 0, "")
	}

	// Output is the costly stage; skip it for a request that already expired.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering quote %s: %w", doc.QuoteID, err)
	}

	return buf.Bytes(), nil
}

func (r *Renderer) itemsTable(p *gofpdf.Fpdf, tr func(string) string, items []domain.LineItem) {
	tableHeader(p, tr, itemColumns)
	for _, it := range items {
		tableRow(p, tr, itemColumns, it.LineTotal.GreaterThan(r.cfg.HighlightThreshold),
			it.ProductName,
			domain.FormatBRL(it.UnitPrice),
			domain.FormatBRL(it.FreightPerUnit),
			sacks(it.Quantity),
			it.DiscountPercent.String()+"%",
			domain.FormatBRL(it.FreightTotal),
			domain.FormatBRL(it.DiscountTotal),
			domain.FormatBRL(it.LineTotal),
		)
	}
}

func totalsBlock(p *gofpdf.Fpdf, tr func(string) string, t domain.Totals) {
	p.SetFont(fontFamily, "B", 10)
	for _, line := range []string{
		"Total Geral (à vista): " + domain.FormatBRL(t.Subtotal),
		"Quantidade Total: " + sacks(t.Quantity),
		"Frete Total: " + domain.FormatBRL(t.Freight),
	} {
		p.CellFormat(0, rowHeight, tr(line), "", 1, "L", false, 0, "")
	}
}

func section(p *gofpdf.Fpdf, tr func(string) string, title string) {
	p.SetFont(fontFamily, "B", 12)
	p.CellFormat(0, 20, tr(title), "", 1, "L", false, 0, "")
}

func tableHeader(p *gofpdf.Fpdf, tr func(string) string, cols []column) {
	p.SetFont(fontFamily, "B", 8)
	p.SetFillColor(46, 125, 50)
	p.SetTextColor(255, 255, 255)
	for _, c := range cols {
		p.CellFormat(c.width, rowHeight, tr(c.title), "1", 0, "C", true, 0, "")
	}
	p.Ln(-1)
	p.SetTextColor(0, 0, 0)
}

func tableRow(p *gofpdf.Fpdf, tr func(string) string, cols []column, highlight bool, cells ...string) {
	p.SetFont(fontFamily, "", 8)
	if highlight {
		p.SetFillColor(255, 236, 179)
	}
	for i, c := range cols {
		p.CellFormat(c.width, rowHeight, tr(cells[i]), "1", 0, c.align, highlight, 0, "")
	}
	p.Ln(-1)
}

func sacks(n int) string {
	return fmt.Sprintf("%d saco(s)", n)
}
