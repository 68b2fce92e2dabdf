package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/feedmill/quote-service/internal/domain"
	"github.com/feedmill/quote-service/internal/mocks"
	"github.com/feedmill/quote-service/internal/platform/metrics"
)

func TestNewQuoteService_PanicsWithoutDependencies(t *testing.T) {
	provider := loadedProvider(t, testCatalog(t))
	renderer := mocks.NewMockDocumentRenderer(t)

	tests := []struct {
		name string
		cfg  QuoteServiceConfig
	}{
		{"no store", QuoteServiceConfig{Catalog: provider, Renderer: renderer}},
		{"no catalog", QuoteServiceConfig{Store: newMemStore(), Renderer: renderer}},
		{"no renderer", QuoteServiceConfig{Store: newMemStore(), Catalog: provider}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, func() { NewQuoteService(tt.cfg) })
		})
	}
}

func TestNewQuoteService_Defaults(t *testing.T) {
	svc := NewQuoteService(QuoteServiceConfig{
		Store:    newMemStore(),
		Catalog:  loadedProvider(t, testCatalog(t)),
		Renderer: mocks.NewMockDocumentRenderer(t),
		Metrics:  metrics.NewQuotes(prometheus.NewRegistry()),
	})

	quote, err := svc.CreateQuote(context.Background())
	require.NoError(t, err)
	assert.Len(t, quote.ID(), 36, "default ids are UUIDs")
}

func TestQuoteService_CreateAndGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateQuote(ctx)
	require.NoError(t, err)
	assert.Equal(t, "q-1", created.ID())
	assert.Equal(t, domain.TermCash, created.Term())
	assert.Equal(t, testNow, created.CreatedAt())

	got, err := svc.GetQuote(ctx, "q-1")
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())

	_, err = svc.GetQuote(ctx, "missing")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestQuoteService_CreateQuote_StoreError(t *testing.T) {
	store := mocks.NewMockQuoteStore(t)
	store.On("Save", mock.Anything, mock.AnythingOfType("*domain.Quote")).
		Return(domain.NewUnavailableError("redis", "connection refused")).Once()

	svc := NewQuoteService(QuoteServiceConfig{
		Store:    store,
		Catalog:  loadedProvider(t, testCatalog(t)),
		Renderer: mocks.NewMockDocumentRenderer(t),
		Logger:   discardLogger(),
	})

	_, err := svc.CreateQuote(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
	assert.Contains(t, err.Error(), "saving quote")
}

func TestQuoteService_AddItem(t *testing.T) {
	tests := []struct {
		name     string
		quoteID  string
		input    ItemInput
		errCheck func(error) bool
	}{
		{
			name:    "priced from catalog",
			quoteID: "q-1",
			input:   ItemInput{Product: "Ração Engorda", Quantity: 10, FreightPerUnit: d("2"), DiscountPercent: d("5")},
		},
		{
			name:     "unknown product",
			quoteID:  "q-1",
			input:    ItemInput{Product: "Milho", Quantity: 1},
			errCheck: domain.IsUnknownProduct,
		},
		{
			name:     "zero quantity",
			quoteID:  "q-1",
			input:    ItemInput{Product: "A", Quantity: 0},
			errCheck: domain.IsValidation,
		},
		{
			name:     "missing quote",
			quoteID:  "q-404",
			input:    ItemInput{Product: "A", Quantity: 1},
			errCheck: domain.IsNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			ctx := context.Background()
			_, err := svc.CreateQuote(ctx)
			require.NoError(t, err)

			quote, item, err := svc.AddItem(ctx, tt.quoteID, tt.input)

			if tt.errCheck != nil {
				require.Error(t, err)
				assert.True(t, tt.errCheck(err), "unexpected error: %v", err)
				return
			}

			require.NoError(t, err)
			assertDecimal(t, "82", item.UnitPrice)
			assertDecimal(t, "20", item.FreightTotal)
			assertDecimal(t, "41", item.DiscountTotal)
			assertDecimal(t, "799", item.LineTotal)
			require.Len(t, quote.Items(), 1)

			stored, err := svc.GetQuote(ctx, tt.quoteID)
			require.NoError(t, err)
			assert.Len(t, stored.Items(), 1)
		})
	}
}

func TestQuoteService_AddItem_PriceSnapshotSurvivesReload(t *testing.T) {
	ctx := context.Background()

	repriced, err := domain.NewCatalog([]domain.Product{{Name: "A", UnitPrice: d("150")}})
	require.NoError(t, err)

	source := mocks.NewMockCatalogSource(t)
	source.On("Load", mock.Anything).Return(testCatalog(t), nil).Once()
	source.On("Load", mock.Anything).Return(repriced, nil).Once()

	provider := NewCatalogProvider(source, nil)
	_, err = provider.Load(ctx)
	require.NoError(t, err)

	svc := NewQuoteService(QuoteServiceConfig{
		Store:    newMemStore(),
		Catalog:  provider,
		Renderer: mocks.NewMockDocumentRenderer(t),
		Logger:   discardLogger(),
		NewID:    func() string { return "q-1" },
	})

	_, err = svc.CreateQuote(ctx)
	require.NoError(t, err)
	_, _, err = svc.AddItem(ctx, "q-1", ItemInput{Product: "A", Quantity: 1})
	require.NoError(t, err)

	_, err = svc.ReloadCatalog(ctx)
	require.NoError(t, err)
	_, _, err = svc.AddItem(ctx, "q-1", ItemInput{Product: "A", Quantity: 1})
	require.NoError(t, err)

	quote, err := svc.GetQuote(ctx, "q-1")
	require.NoError(t, err)
	items := quote.Items()
	assertDecimal(t, "100", items[0].UnitPrice)
	assertDecimal(t, "150", items[1].UnitPrice)
}

func TestQuoteService_AddItem_FullQuote(t *testing.T) {
	ctx := context.Background()
	svc, deps := newTestService(t)

	item, err := domain.NewLineItem(testCatalog(t), "A", 1, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	items := make([]domain.LineItem, domain.MaxQuoteItems)
	for i := range items {
		items[i] = item
	}
	require.NoError(t, deps.store.Save(ctx, domain.RestoreQuote("q-full", items, domain.TermCash, testNow, testNow)))

	_, _, err = svc.AddItem(ctx, "q-full", ItemInput{Product: "A", Quantity: 1})
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))

	quote, err := svc.GetQuote(ctx, "q-full")
	require.NoError(t, err)
	assert.Len(t, quote.Items(), domain.MaxQuoteItems)
}

func TestQuoteService_AddItem_Concurrent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateQuote(ctx)
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, addErr := svc.AddItem(ctx, "q-1", ItemInput{Product: "A", Quantity: 1})
			assert.NoError(t, addErr)
		}()
	}
	wg.Wait()

	quote, err := svc.GetQuote(ctx, "q-1")
	require.NoError(t, err)
	assert.Len(t, quote.Items(), workers)
	assert.Equal(t, workers, quote.Totals().Quantity)
}

func TestQuoteService_ClearItemsKeepsTerm(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateQuote(ctx)
	require.NoError(t, err)
	_, _, err = svc.AddItem(ctx, "q-1", ItemInput{Product: "A", Quantity: 2})
	require.NoError(t, err)
	_, err = svc.SelectTerm(ctx, "q-1", domain.Term60)
	require.NoError(t, err)

	quote, err := svc.ClearItems(ctx, "q-1")
	require.NoError(t, err)

	assert.True(t, quote.IsEmpty())
	assert.Equal(t, domain.Term60, quote.Term())
}

func TestQuoteService_SelectTerm_Invalid(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateQuote(ctx)
	require.NoError(t, err)

	_, err = svc.SelectTerm(ctx, "q-1", domain.TermID(42))
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	quote, err := svc.GetQuote(ctx, "q-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TermCash, quote.Term())
}

func TestQuoteService_Allocation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateQuote(ctx)
	require.NoError(t, err)
	_, _, err = svc.AddItem(ctx, "q-1", ItemInput{Product: "A", Quantity: 2})
	require.NoError(t, err)
	_, err = svc.SelectTerm(ctx, "q-1", domain.Term30)
	require.NoError(t, err)

	t.Run("selected term", func(t *testing.T) {
		alloc, err := svc.Allocation(ctx, "q-1", nil)
		require.NoError(t, err)
		assert.Equal(t, domain.Term30, alloc.Term)
		assertDecimal(t, "200", alloc.Subtotal)
		assertDecimal(t, "206.6588006923887", alloc.TermValue)
		require.Len(t, alloc.Lines, 1)
		assertDecimal(t, "103.32940034619435", alloc.Lines[0].UnitPriceAtTerm)
	})

	t.Run("explicit cash", func(t *testing.T) {
		cash := domain.TermCash
		alloc, err := svc.Allocation(ctx, "q-1", &cash)
		require.NoError(t, err)
		assertDecimal(t, "200", alloc.TermValue)
		assertDecimal(t, "100", alloc.Lines[0].UnitPriceAtTerm)
	})

	t.Run("invalid term", func(t *testing.T) {
		bad := domain.TermID(-1)
		_, err := svc.Allocation(ctx, "q-1", &bad)
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})
}

func TestQuoteService_Export(t *testing.T) {
	ctx := context.Background()

	t.Run("empty quote conflicts", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.CreateQuote(ctx)
		require.NoError(t, err)

		_, err = svc.Export(ctx, "q-1")
		require.Error(t, err)
		assert.True(t, domain.IsConflict(err))
	})

	t.Run("renders the selected term", func(t *testing.T) {
		svc, deps := newTestService(t)
		_, err := svc.CreateQuote(ctx)
		require.NoError(t, err)
		_, _, err = svc.AddItem(ctx, "q-1", ItemInput{Product: "A", Quantity: 2})
		require.NoError(t, err)
		_, err = svc.SelectTerm(ctx, "q-1", domain.Term30)
		require.NoError(t, err)

		deps.renderer.On("Render", mock.Anything, mock.MatchedBy(func(doc domain.Document) bool {
			return doc.QuoteID == "q-1" &&
				doc.Term == domain.Term30 &&
				doc.GeneratedAt.Equal(testNow) &&
				len(doc.Allocation) == 1 &&
				doc.TermValue.Equal(d("206.6588006923887"))
		})).Return([]byte("%PDF-1.3"), nil).Once()
		deps.renderer.On("ContentType").Return("application/pdf").Once()

		export, err := svc.Export(ctx, "q-1")
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-1.3"), export.Content)
		assert.Equal(t, "application/pdf", export.ContentType)
		assert.Equal(t, ExportFilename, export.Filename)
	})

	t.Run("renderer failure", func(t *testing.T) {
		svc, deps := newTestService(t)
		_, err := svc.CreateQuote(ctx)
		require.NoError(t, err)
		_, _, err = svc.AddItem(ctx, "q-1", ItemInput{Product: "A", Quantity: 1})
		require.NoError(t, err)

		renderErr := errors.New("font missing")
		deps.renderer.On("Render", mock.Anything, mock.Anything).Return(nil, renderErr).Once()

		_, err = svc.Export(ctx, "q-1")
		require.ErrorIs(t, err, renderErr)
	})
}

func TestQuoteService_DiscardQuote(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateQuote(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.DiscardQuote(ctx, "q-1"))

	_, err = svc.GetQuote(ctx, "q-1")
	assert.True(t, domain.IsNotFound(err))

	err = svc.DiscardQuote(ctx, "q-1")
	assert.True(t, domain.IsNotFound(err))
}

func TestQuoteService_CatalogAndTerms(t *testing.T) {
	svc, _ := newTestService(t)

	products := svc.Catalog()
	require.Len(t, products, 3)
	assert.Equal(t, "A", products[0].Name)

	terms := svc.Terms()
	require.Len(t, terms, 6)
	assert.Equal(t, domain.TermCash, terms[0].ID)
	assert.Equal(t, domain.Term30x60x90, terms[5].ID)
}

func TestQuoteService_ReloadCatalogFailureKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	source := mocks.NewMockCatalogSource(t)
	source.On("Load", mock.Anything).Return(testCatalog(t), nil).Once()
	source.On("Load", mock.Anything).Return(nil, domain.NewValidationError("Valor", "row 3: not a number")).Once()

	provider := NewCatalogProvider(source, nil)
	_, err := provider.Load(ctx)
	require.NoError(t, err)

	svc := NewQuoteService(QuoteServiceConfig{
		Store:    newMemStore(),
		Catalog:  provider,
		Renderer: mocks.NewMockDocumentRenderer(t),
		Logger:   discardLogger(),
	})

	_, err = svc.ReloadCatalog(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Len(t, svc.Catalog(), 3)

	_, _, err = svc.AddItem(ctx, "missing", ItemInput{Product: "A", Quantity: 1, FreightPerUnit: decimal.Zero})
	assert.True(t, domain.IsNotFound(err))
}
