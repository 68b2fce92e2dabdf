// Package mocks provides testify mocks for the port interfaces.
package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/feedmill/quote-service/internal/domain"
	"github.com/feedmill/quote-service/internal/ports"
)

var (
	_ ports.QuoteStore       = (*MockQuoteStore)(nil)
	_ ports.CatalogSource    = (*MockCatalogSource)(nil)
	_ ports.DocumentRenderer = (*MockDocumentRenderer)(nil)
	_ ports.HealthRegistry   = (*MockHealthRegistry)(nil)
)

// MockQuoteStore is a mock ports.QuoteStore.
type MockQuoteStore struct {
	mock.Mock
}

// NewMockQuoteStore creates a mock whose expectations are asserted on cleanup.
func NewMockQuoteStore(t *testing.T) *MockQuoteStore {
	m := &MockQuoteStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Save implements ports.QuoteStore.
func (m *MockQuoteStore) Save(ctx context.Context, quote *domain.Quote) error {
	return m.Called(ctx, quote).Error(0)
}

// Get implements ports.QuoteStore.
func (m *MockQuoteStore) Get(ctx context.Context, id string) (*domain.Quote, error) {
	args := m.Called(ctx, id)
	quote, _ := args.Get(0).(*domain.Quote)
	return quote, args.Error(1)
}

// Delete implements ports.QuoteStore.
func (m *MockQuoteStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// MockCatalogSource is a mock ports.CatalogSource.
type MockCatalogSource struct {
	mock.Mock
}

// NewMockCatalogSource creates a mock whose expectations are asserted on cleanup.
func NewMockCatalogSource(t *testing.T) *MockCatalogSource {
	m := &MockCatalogSource{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Load implements ports.CatalogSource.
func (m *MockCatalogSource) Load(ctx context.Context) (*domain.Catalog, error) {
	args := m.Called(ctx)
	catalog, _ := args.Get(0).(*domain.Catalog)
	return catalog, args.Error(1)
}

// MockDocumentRenderer is a mock ports.DocumentRenderer.
type MockDocumentRenderer struct {
	mock.Mock
}

// NewMockDocumentRenderer creates a mock whose expectations are asserted on cleanup.
func NewMockDocumentRenderer(t *testing.T) *MockDocumentRenderer {
	m := &MockDocumentRenderer{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// ContentType implements ports.DocumentRenderer.
func (m *MockDocumentRenderer) ContentType() string {
	return m.Called().String(0)
}

// Render implements ports.DocumentRenderer.
func (m *MockDocumentRenderer) Render(ctx context.Context, doc domain.Document) ([]byte, error) {
	args := m.Called(ctx, doc)
	content, _ := args.Get(0).([]byte)
	return content, args.Error(1)
}

// MockHealthRegistry is a mock ports.HealthRegistry.
type MockHealthRegistry struct {
	mock.Mock
}

// NewMockHealthRegistry creates a mock whose expectations are asserted on cleanup.
func NewMockHealthRegistry(t *testing.T) *MockHealthRegistry {
	m := &MockHealthRegistry{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Register implements ports.HealthRegistry.
func (m *MockHealthRegistry) Register(checker ports.HealthChecker) error {
	return m.Called(checker).Error(0)
}

// CheckAll implements ports.HealthRegistry.
func (m *MockHealthRegistry) CheckAll(ctx context.Context) *ports.HealthResult {
	result, _ := m.Called(ctx).Get(0).(*ports.HealthResult)
	return result
}
