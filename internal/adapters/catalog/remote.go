package catalog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/feedmill/quote-service/internal/domain"
	"github.com/feedmill/quote-service/internal/platform/logging"
)

// Fetcher downloads a document by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// RemoteConfig configures a RemoteSource.
type RemoteConfig struct {
	// URL of the workbook.
	URL string
	// Sheet to read; empty means the first sheet.
	Sheet string
}

// RemoteSource downloads the catalog workbook on every Load, so a reload
// picks up the file currently published at URL.
type RemoteSource struct {
	cfg     RemoteConfig
	fetcher Fetcher
}

// NewRemoteSource creates a catalog source reading cfg.URL through fetcher.
func NewRemoteSource(cfg RemoteConfig, fetcher Fetcher) *RemoteSource {
	if fetcher == nil {
		panic("catalog: fetcher is required")
	}
	return &RemoteSource{cfg: cfg, fetcher: fetcher}
}

// Load implements ports.CatalogSource. Download failures are reported as
// unavailable; malformed workbooks as validation errors.
func (s *RemoteSource) Load(ctx context.Context) (*domain.Catalog, error) {
	data, err := s.fetcher.Fetch(ctx, s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.NewUnavailableError("catalog", "download failed"), err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, domain.NewValidationErrorWithValue("workbook", "not an xlsx file", s.cfg.URL)
	}
	defer func() { _ = f.Close() }()

	catalog, err := readWorkbook(f, s.cfg.Sheet, s.cfg.URL)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).DebugContext(ctx, "catalog downloaded",
		slog.String("url", s.cfg.URL),
		slog.Int("bytes", len(data)),
	)

	return catalog, nil
}
