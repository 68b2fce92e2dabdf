package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/feedmill/quote-service/internal/domain"
	"github.com/feedmill/quote-service/internal/mocks"
)

var testNow = time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// discardLogger returns a logger that discards all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is a minimal QuoteStore keeping quotes by id.
type memStore struct {
	mu     sync.Mutex
	quotes map[string]*domain.Quote
}

func newMemStore() *memStore {
	return &memStore{quotes: make(map[string]*domain.Quote)}
}

func (s *memStore) Save(_ context.Context, q *domain.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.ID()] = domain.RestoreQuote(q.ID(), q.Items(), q.Term(), q.CreatedAt(), q.UpdatedAt())
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[id]
	if !ok {
		return nil, domain.NewNotFoundError("quote", id)
	}
	return domain.RestoreQuote(q.ID(), q.Items(), q.Term(), q.CreatedAt(), q.UpdatedAt()), nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quotes[id]; !ok {
		return domain.NewNotFoundError("quote", id)
	}
	delete(s.quotes, id)
	return nil
}

func testCatalog(t *testing.T) *domain.Catalog {
	t.Helper()
	c, err := domain.NewCatalog([]domain.Product{
		{Name: "A", UnitPrice: decimal.RequireFromString("100")},
		{Name: "Ração Engorda", UnitPrice: decimal.RequireFromString("82")},
		{Name: "Sal Mineral", UnitPrice: decimal.RequireFromString("55.90")},
	})
	require.NoError(t, err)
	return c
}

func loadedProvider(t *testing.T, catalog *domain.Catalog) *CatalogProvider {
	t.Helper()
	source := mocks.NewMockCatalogSource(t)
	source.On("Load", mock.Anything).Return(catalog, nil).Once()

	p := NewCatalogProvider(source, nil)
	_, err := p.Load(context.Background())
	require.NoError(t, err)
	return p
}

type serviceDeps struct {
	store    *memStore
	renderer *mocks.MockDocumentRenderer
	catalog  *CatalogProvider
}

func newTestService(t *testing.T) (*QuoteService, serviceDeps) {
	t.Helper()
	deps := serviceDeps{
		store:    newMemStore(),
		renderer: mocks.NewMockDocumentRenderer(t),
		catalog:  loadedProvider(t, testCatalog(t)),
	}

	ids := 0
	svc := NewQuoteService(QuoteServiceConfig{
		Store:    deps.store,
		Catalog:  deps.catalog,
		Renderer: deps.renderer,
		Clock:    fixedClock{now: testNow},
		Logger:   discardLogger(),
		NewID: func() string {
			ids++
			return fmt.Sprintf("q-%d", ids)
		},
	})

	return svc, deps
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "want %s, got %s", want, got)
}
