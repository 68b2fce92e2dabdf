// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter for anything that may block
//   - Return domain types, never storage or transport types
//   - Error returns use domain error types (ErrNotFound, ErrUnavailable, etc.)
package ports

import (
	"context"
	"time"

	"github.com/feedmill/quote-service/internal/domain"
)

// QuoteStore holds quote sessions for their lifetime.
// Sessions expire after the store's TTL; nothing outlives the session.
type QuoteStore interface {
	// Save creates or replaces the session and refreshes its TTL.
	Save(ctx context.Context, quote *domain.Quote) error

	// Get loads a session.
	// Returns domain.ErrNotFound if the session does not exist or expired.
	Get(ctx context.Context, id string) (*domain.Quote, error)

	// Delete discards a session.
	// Returns domain.ErrNotFound if the session does not exist.
	Delete(ctx context.Context, id string) error
}

// CatalogSource loads the product catalog.
type CatalogSource interface {
	// Load reads the catalog from its backing source.
	Load(ctx context.Context) (*domain.Catalog, error)
}

// DocumentRenderer renders a quote export.
type DocumentRenderer interface {
	// ContentType is the MIME type of the rendered bytes.
	ContentType() string

	// Render produces the document bytes.
	Render(ctx context.Context, doc domain.Document) ([]byte, error)
}

// Clock abstracts the current time so services stay deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }
