package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/feedmill/quote-service/internal/domain"
	"github.com/feedmill/quote-service/internal/platform/logging"
	"github.com/feedmill/quote-service/internal/platform/metrics"
	"github.com/feedmill/quote-service/internal/ports"
)

// CatalogProvider serves the active catalog and swaps it atomically on reload.
// A failed reload keeps the previous catalog.
type CatalogProvider struct {
	source  ports.CatalogSource
	metrics *metrics.Quotes
	current atomic.Pointer[domain.Catalog]

	// reloadMu serialises loads so two reloads never race on the source.
	reloadMu sync.Mutex
}

// NewCatalogProvider creates a provider; call Load before serving requests.
func NewCatalogProvider(source ports.CatalogSource, m *metrics.Quotes) *CatalogProvider {
	if source == nil {
		panic("app: catalog source is required")
	}
	return &CatalogProvider{source: source, metrics: m}
}

// Load reads the catalog from the source and makes it current.
func (p *CatalogProvider) Load(ctx context.Context) (*domain.Catalog, error) {
	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()

	catalog, err := p.source.Load(ctx)
	if err != nil {
		p.metrics.CatalogLoaded(metrics.ResultError, 0)
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	p.current.Store(catalog)
	p.metrics.CatalogLoaded(metrics.ResultOK, catalog.Len())

	logging.FromContext(ctx).InfoContext(ctx, "catalog loaded", slog.Int("products", catalog.Len()))

	return catalog, nil
}

// Current returns the active catalog, or nil before the first Load.
func (p *CatalogProvider) Current() *domain.Catalog {
	return p.current.Load()
}

// Name implements ports.HealthChecker.
func (p *CatalogProvider) Name() string { return "catalog" }

// Check implements ports.HealthChecker. The service is not ready until a
// catalog has been loaded.
func (p *CatalogProvider) Check(context.Context) error {
	if p.Current() == nil {
		return errors.New("catalog not loaded")
	}
	return nil
}
