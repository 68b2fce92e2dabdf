package store

import (
	"context"
	"sync"
	"time"

	"github.com/feedmill/quote-service/internal/domain"
)

type memoryEntry struct {
	quote     quoteRecord
	expiresAt time.Time
}

// Memory keeps quote sessions in process memory. Each Save refreshes the
// session's TTL; expired sessions are dropped lazily on access and on Save.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates an in-memory store whose sessions live for ttl after
// their last save.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Save stores a copy of quote.
func (m *Memory) Save(ctx context.Context, quote *domain.Quote) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweepLocked(now)
	m.entries[quote.ID()] = memoryEntry{quote: toRecord(quote), expiresAt: now.Add(m.ttl)}

	return nil
}

// Get returns a copy of the stored session.
func (m *Memory) Get(ctx context.Context, id string) (*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	if !ok || !m.now().Before(entry.expiresAt) {
		delete(m.entries, id)
		return nil, domain.NewNotFoundError("quote", id)
	}

	return entry.quote.toQuote(), nil
}

// Delete removes a session.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	delete(m.entries, id)
	if !ok || !m.now().Before(entry.expiresAt) {
		return domain.NewNotFoundError("quote", id)
	}

	return nil
}

// Len reports how many live sessions are held.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked(m.now())
	return len(m.entries)
}

func (m *Memory) sweepLocked(now time.Time) {
	for id, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, id)
		}
	}
}
