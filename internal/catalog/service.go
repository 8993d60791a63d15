// internal/catalog/service.go
package catalog

import (
	"context"
	"errors"

	"bookswap/internal/models"

	"github.com/google/uuid"
)

// ErrInvalidInput marks listing input the caller can correct.
var ErrInvalidInput = errors.New("invalid book input")

// NewBook carries the owner-supplied fields of a listing.
type NewBook struct {
	Title         string           `json:"title"`
	Author        string           `json:"author"`
	Condition     models.Condition `json:"condition"`
	Genres        []string         `json:"genres"`
	ISBN          string           `json:"isbn"`
	PublishedYear int              `json:"published_year"`
	ImageURL      string           `json:"image_url"`
}

// Service defines the interface for the book listing service.
type Service interface {
	AddBook(ctx context.Context, ownerID uuid.UUID, input NewBook) (*models.Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error)
	ListAvailable(ctx context.Context) ([]*models.Book, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Book, error)
	Search(ctx context.Context, query string) ([]*models.Book, error)
}
