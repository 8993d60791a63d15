// internal/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"bookswap/internal/models"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs the engine
// tests and serves as the dev backend when no database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	books  map[uuid.UUID]*models.Book
	trades map[uuid.UUID]*models.Trade
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books:  make(map[uuid.UUID]*models.Book),
		trades: make(map[uuid.UUID]*models.Trade),
	}
}

func (m *MemoryStore) CreateBook(ctx context.Context, book *models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	book.Version = 1
	book.CreatedAt = now
	book.UpdatedAt = now

	stored := *book
	m.books[book.ID] = &stored
	return nil
}

func (m *MemoryStore) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	book := *stored
	return &book, nil
}

func (m *MemoryStore) ListBooksByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var books []*models.Book
	for _, stored := range m.books {
		if stored.OwnerID == ownerID {
			book := *stored
			books = append(books, &book)
		}
	}
	sortBooks(books)
	return books, nil
}

func (m *MemoryStore) ListAvailableBooks(ctx context.Context) ([]*models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var books []*models.Book
	for _, stored := range m.books {
		if stored.Available {
			book := *stored
			books = append(books, &book)
		}
	}
	sortBooks(books)
	return books, nil
}

func (m *MemoryStore) CreateTrade(ctx context.Context, trade *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	trade.Version = 1
	trade.CreatedAt = now
	trade.UpdatedAt = now

	stored := *trade
	m.trades[trade.ID] = &stored
	return nil
}

func (m *MemoryStore) GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.trades[id]
	if !ok {
		return nil, ErrNotFound
	}
	trade := *stored
	return &trade, nil
}

func (m *MemoryStore) ListTradesForUser(ctx context.Context, userID uuid.UUID) ([]*models.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var trades []*models.Trade
	for _, stored := range m.trades {
		if stored.InitiatorID == userID || stored.ReceiverID == userID {
			trade := *stored
			trades = append(trades, &trade)
		}
	}
	sort.Slice(trades, func(i, j int) bool {
		return trades[i].CreatedAt.After(trades[j].CreatedAt)
	})
	return trades, nil
}

func (m *MemoryStore) MarkTradesSeen(ctx context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := 0
	for _, stored := range m.trades {
		if stored.ReceiverID == userID && stored.Status == models.StatusPending && !stored.Seen {
			stored.Seen = true
			stored.Version++
			stored.UpdatedAt = time.Now().UTC()
			changed++
		}
	}
	return changed, nil
}

func (m *MemoryStore) ApplyTransition(ctx context.Context, trade *models.Trade, books ...*models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	storedTrade, ok := m.trades[trade.ID]
	if !ok {
		return ErrNotFound
	}
	if storedTrade.Version != trade.Version {
		return ErrVersionConflict
	}
	for _, book := range books {
		stored, ok := m.books[book.ID]
		if !ok {
			return ErrNotFound
		}
		if stored.Version != book.Version {
			return ErrVersionConflict
		}
	}

	// All versions verified; commit the whole set.
	now := time.Now().UTC()
	trade.Version++
	trade.UpdatedAt = now
	next := *trade
	m.trades[trade.ID] = &next
	for _, book := range books {
		book.Version++
		book.UpdatedAt = now
		nextBook := *book
		m.books[book.ID] = &nextBook
	}
	return nil
}

func sortBooks(books []*models.Book) {
	sort.Slice(books, func(i, j int) bool {
		return books[i].CreatedAt.After(books[j].CreatedAt)
	})
}
