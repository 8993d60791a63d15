// internal/store/store.go
package store

import (
	"context"
	"errors"

	"bookswap/internal/models"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("version conflict")
)

// Store is the durable boundary for books and trades. Both entities carry
// an optimistic version; every mutation checks it and bumps it by one.
type Store interface {
	CreateBook(ctx context.Context, book *models.Book) error
	GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error)
	ListBooksByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Book, error)
	ListAvailableBooks(ctx context.Context) ([]*models.Book, error)

	CreateTrade(ctx context.Context, trade *models.Trade) error
	GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error)
	ListTradesForUser(ctx context.Context, userID uuid.UUID) ([]*models.Trade, error)

	// MarkTradesSeen sets seen=true on every pending trade received by
	// userID and returns how many rows changed. Safe to call repeatedly.
	MarkTradesSeen(ctx context.Context, userID uuid.UUID) (int, error)

	// ApplyTransition commits one trade row plus any book rows in a single
	// atomic step. Each record's Version must equal the stored version; a
	// mismatch on any record fails the whole set with ErrVersionConflict
	// and writes nothing. On success the passed records' versions are
	// bumped to match the stored state.
	ApplyTransition(ctx context.Context, trade *models.Trade, books ...*models.Book) error
}
