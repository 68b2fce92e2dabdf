// Package app contains application services that orchestrate use cases.
// It coordinates the pricing engine in the domain layer with the session
// store, catalog source and document renderer behind ports.
package app

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/feedmill/quote-service/internal/domain"
	"github.com/feedmill/quote-service/internal/platform/logging"
	"github.com/feedmill/quote-service/internal/platform/metrics"
	"github.com/feedmill/quote-service/internal/platform/telemetry"
	"github.com/feedmill/quote-service/internal/ports"
)

// ExportFilename is the attachment name of exported quotes.
const ExportFilename = "orcamento.pdf"

const lockStripes = 64

// QuoteService orchestrates quote session use cases.
type QuoteService struct {
	store    ports.QuoteStore
	catalog  *CatalogProvider
	renderer ports.DocumentRenderer
	clock    ports.Clock
	metrics  *metrics.Quotes
	newID    func() string
	logger   *slog.Logger

	// locks serialise read-modify-write cycles per quote id within a process.
	locks [lockStripes]sync.Mutex
}

// QuoteServiceConfig contains the dependencies of the quote service.
type QuoteServiceConfig struct {
	Store    ports.QuoteStore
	Catalog  *CatalogProvider
	Renderer ports.DocumentRenderer
	Clock    ports.Clock
	Metrics  *metrics.Quotes
	Logger   *slog.Logger

	// NewID generates session ids. Defaults to random UUIDs.
	NewID func() string
}

// NewQuoteService creates a quote service. Store, Catalog and Renderer are
// required; Clock, Logger and NewID have defaults and Metrics may be nil.
func NewQuoteService(cfg QuoteServiceConfig) *QuoteService {
	if cfg.Store == nil {
		panic("app: quote store is required")
	}
	if cfg.Catalog == nil {
		panic("app: catalog provider is required")
	}
	if cfg.Renderer == nil {
		panic("app: document renderer is required")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newID := cfg.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}

	return &QuoteService{
		store:    cfg.Store,
		catalog:  cfg.Catalog,
		renderer: cfg.Renderer,
		clock:    clock,
		metrics:  cfg.Metrics,
		newID:    newID,
		logger:   logger.With(slog.String("component", "app.QuoteService")),
	}
}

// ItemInput is an operator's line item request.
type ItemInput struct {
	Product         string
	Quantity        int
	FreightPerUnit  decimal.Decimal
	DiscountPercent decimal.Decimal
}

// Allocation is the per-line repricing of a quote for one term.
type Allocation struct {
	Term      domain.TermID
	Subtotal  decimal.Decimal
	TermValue decimal.Decimal
	Lines     []domain.AllocatedLine
}

// Export is a rendered quote document.
type Export struct {
	Content     []byte
	ContentType string
	Filename    string
}

func (s *QuoteService) log(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, s.logger)
}

func (s *QuoteService) lock(id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// CreateQuote opens an empty session with the cash term selected.
func (s *QuoteService) CreateQuote(ctx context.Context) (*domain.Quote, error) {
	quote := domain.NewQuote(s.newID(), s.clock.Now())

	if err := s.store.Save(ctx, quote); err != nil {
		return nil, fmt.Errorf("saving quote: %w", err)
	}

	s.metrics.QuoteCreated()
	s.log(ctx).InfoContext(ctx, "quote created", slog.String("quote_id", quote.ID()))

	return quote, nil
}

// GetQuote loads a session.
func (s *QuoteService) GetQuote(ctx context.Context, id string) (*domain.Quote, error) {
	quote, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting quote: %w", err)
	}
	return quote, nil
}

// DiscardQuote deletes a session.
func (s *QuoteService) DiscardQuote(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("discarding quote: %w", err)
	}

	s.metrics.QuoteDiscarded()
	s.log(ctx).InfoContext(ctx, "quote discarded", slog.String("quote_id", id))

	return nil
}

// AddItem prices a line against the current catalog and appends it.
// The returned item carries the unit price snapshot taken now.
func (s *QuoteService) AddItem(ctx context.Context, id string, in ItemInput) (*domain.Quote, domain.LineItem, error) {
	unlock := s.lock(id)
	defer unlock()

	quote, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, domain.LineItem{}, fmt.Errorf("getting quote: %w", err)
	}

	item, err := domain.NewLineItem(s.catalog.Current(), in.Product, in.Quantity, in.FreightPerUnit, in.DiscountPercent)
	if err != nil {
		switch {
		case domain.IsUnknownProduct(err):
			s.metrics.ItemAdded(metrics.ResultUnknownProduct)
		default:
			s.metrics.ItemAdded(metrics.ResultInvalid)
		}
		return nil, domain.LineItem{}, fmt.Errorf("pricing item: %w", err)
	}

	if err := quote.AddItem(item, s.clock.Now()); err != nil {
		s.metrics.ItemAdded(metrics.ResultInvalid)
		return nil, domain.LineItem{}, fmt.Errorf("adding item: %w", err)
	}

	if err := s.store.Save(ctx, quote); err != nil {
		return nil, domain.LineItem{}, fmt.Errorf("saving quote: %w", err)
	}

	s.metrics.ItemAdded(metrics.ResultOK)
	logging.Trace(ctx, "line priced",
		slog.String("quote_id", id),
		slog.String("product", item.ProductName),
		slog.Int("quantity", item.Quantity),
		slog.String("line_total", item.LineTotal.String()),
	)

	return quote, item, nil
}

// ClearItems empties a session. The selected term is kept.
func (s *QuoteService) ClearItems(ctx context.Context, id string) (*domain.Quote, error) {
	unlock := s.lock(id)
	defer unlock()

	quote, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting quote: %w", err)
	}

	quote.Clear(s.clock.Now())

	if err := s.store.Save(ctx, quote); err != nil {
		return nil, fmt.Errorf("saving quote: %w", err)
	}

	s.log(ctx).InfoContext(ctx, "quote cleared", slog.String("quote_id", id))

	return quote, nil
}

// SelectTerm sets the payment term used by allocation and export.
func (s *QuoteService) SelectTerm(ctx context.Context, id string, term domain.TermID) (*domain.Quote, error) {
	unlock := s.lock(id)
	defer unlock()

	quote, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting quote: %w", err)
	}

	if err := quote.SelectTerm(term, s.clock.Now()); err != nil {
		return nil, fmt.Errorf("selecting term: %w", err)
	}

	if err := s.store.Save(ctx, quote); err != nil {
		return nil, fmt.Errorf("saving quote: %w", err)
	}

	return quote, nil
}

// Allocation reprices each line of a session for term. When term is nil the
// session's selected term is used.
func (s *QuoteService) Allocation(ctx context.Context, id string, term *domain.TermID) (*Allocation, error) {
	quote, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting quote: %w", err)
	}

	selected := quote.Term()
	if term != nil {
		if !term.Valid() {
			return nil, domain.NewValidationError("term", "unknown payment term")
		}
		selected = *term
	}

	totals := quote.Totals()

	return &Allocation{
		Term:      selected,
		Subtotal:  totals.Subtotal,
		TermValue: domain.TermValue(totals.Subtotal, selected, totals.Quantity),
		Lines:     quote.Allocation(selected),
	}, nil
}

// Export renders a session for its selected term.
// Returns a ConflictError when the session has no items.
func (s *QuoteService) Export(ctx context.Context, id string) (_ *Export, err error) {
	ctx, span := telemetry.StartSpan(ctx, "quote.export", attribute.String("quote.id", id))
	defer func() { telemetry.EndSpan(span, err) }()

	quote, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting quote: %w", err)
	}

	term := quote.Term().Code()
	span.SetAttributes(attribute.String("quote.term", term), attribute.Int("quote.items", len(quote.Items())))

	if quote.IsEmpty() {
		s.metrics.Exported(term, metrics.ResultEmpty, 0)
		return nil, domain.NewConflictError("quote", "no items to export")
	}

	start := time.Now()

	content, err := s.renderer.Render(ctx, quote.Document(s.clock.Now()))
	if err != nil {
		s.metrics.Exported(term, metrics.ResultError, time.Since(start))
		s.log(ctx).ErrorContext(ctx, "quote export failed",
			slog.String("quote_id", id),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("rendering quote: %w", err)
	}

	s.metrics.Exported(term, metrics.ResultOK, time.Since(start))
	s.log(ctx).InfoContext(ctx, "quote exported",
		slog.String("quote_id", id),
		slog.String("term", term),
		slog.Int("bytes", len(content)),
	)

	return &Export{
		Content:     content,
		ContentType: s.renderer.ContentType(),
		Filename:    ExportFilename,
	}, nil
}

// Catalog returns the active catalog's products.
func (s *QuoteService) Catalog() []domain.Product {
	return s.catalog.Current().Products()
}

// ReloadCatalog re-reads the catalog source. On failure the previous
// catalog stays active and the error is returned.
func (s *QuoteService) ReloadCatalog(ctx context.Context) (*domain.Catalog, error) {
	catalog, err := s.catalog.Load(ctx)
	if err != nil {
		s.log(ctx).WarnContext(ctx, "catalog reload failed, keeping previous catalog", slog.Any("error", err))
		return nil, err
	}
	return catalog, nil
}

// Terms returns the payment term table.
func (s *QuoteService) Terms() []domain.PaymentTerm {
	return domain.PaymentTerms()
}
