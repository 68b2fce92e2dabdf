// Package catalog loads the product catalog from an Excel workbook read
// from disk or downloaded over HTTP.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/feedmill/quote-service/internal/domain"
	"github.com/feedmill/quote-service/internal/platform/logging"
)

// Header names of the catalog sheet, matched case-insensitively.
const (
	ColumnProduct = "Produto"
	ColumnPrice   = "Valor"
)

// XLSXConfig configures an XLSXSource.
type XLSXConfig struct {
	// Path of the workbook.
	Path string
	// Sheet to read; empty means the first sheet.
	Sheet string
	// Fallback serves domain.DefaultCatalog when the workbook does not exist.
	Fallback bool
}

// XLSXSource reads products from a workbook whose header row names a
// Produto and a Valor column, in any position.
type XLSXSource struct {
	cfg XLSXConfig
}

// NewXLSXSource creates a catalog source for cfg.
func NewXLSXSource(cfg XLSXConfig) *XLSXSource {
	return &XLSXSource{cfg: cfg}
}

// Load implements ports.CatalogSource. A missing workbook yields the
// fallback catalog when enabled; a malformed one is always an error.
func (s *XLSXSource) Load(ctx context.Context) (*domain.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(s.cfg.Path); errors.Is(err, os.ErrNotExist) {
		if !s.cfg.Fallback {
			return nil, domain.NewNotFoundError("catalog workbook", s.cfg.Path)
		}
		logging.FromContext(ctx).WarnContext(ctx, "catalog workbook not found, using fallback catalog",
			slog.String("path", s.cfg.Path),
		)
		return domain.DefaultCatalog(), nil
	}

	f, err := excelize.OpenFile(s.cfg.Path)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, fmt.Errorf("opening %s: %w", s.cfg.Path, err)
		}
		return nil, fmt.Errorf("%w: %w", domain.NewValidationErrorWithValue("workbook", "not an xlsx file", s.cfg.Path), err)
	}
	defer func() { _ = f.Close() }()

	return readWorkbook(f, s.cfg.Sheet, s.cfg.Path)
}

// readWorkbook builds a catalog from sheet, or the first sheet when empty.
// origin names the workbook in errors.
func readWorkbook(f *excelize.File, sheet, origin string) (*domain.Catalog, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, domain.NewValidationError("sheet", "workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}

	products, err := parseRows(rows)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", origin, err)
	}

	return domain.NewCatalog(products)
}

func parseRows(rows [][]string) ([]domain.Product, error) {
	if len(rows) == 0 {
		return nil, domain.NewValidationError("sheet", "no header row")
	}

	productCol, priceCol := -1, -1
	for i, cell := range rows[0] {
		switch {
		case strings.EqualFold(strings.TrimSpace(cell), ColumnProduct):
			productCol = i
		case strings.EqualFold(strings.TrimSpace(cell), ColumnPrice):
			priceCol = i
		}
	}
	if productCol < 0 {
		return nil, domain.NewValidationError(ColumnProduct, "column missing from header")
	}
	if priceCol < 0 {
		return nil, domain.NewValidationError(ColumnPrice, "column missing from header")
	}

	products := make([]domain.Product, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		name := strings.TrimSpace(cellAt(row, productCol))
		rawPrice := strings.TrimSpace(cellAt(row, priceCol))

		if name == "" && rawPrice == "" {
			continue
		}
		if name == "" {
			return nil, domain.NewValidationError(ColumnProduct, fmt.Sprintf("row %d: empty product name", line))
		}

		price, err := parsePrice(rawPrice)
		if err != nil {
			return nil, domain.NewValidationErrorWithValue(ColumnPrice, fmt.Sprintf("row %d: not a number", line), rawPrice)
		}

		products = append(products, domain.Product{Name: name, UnitPrice: price})
	}

	return products, nil
}

func cellAt(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}
	return ""
}

// parsePrice accepts raw numeric cells and text cells written with a
// decimal comma ("75,50").
func parsePrice(raw string) (decimal.Decimal, error) {
	if strings.Contains(raw, ",") && !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	return decimal.NewFromString(raw)
}
