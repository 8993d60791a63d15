// internal/catalog/implementation.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"bookswap/internal/models"
	"bookswap/internal/store"

	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"
)

// SearchIndex is the full-text index listings are mirrored into. A nil
// index makes Search fall back to a store scan.
type SearchIndex interface {
	AddDocuments(documentsPtr interface{}, primaryKey *string) (*meilisearch.TaskInfo, error)
	Search(query string, request *meilisearch.SearchRequest) (*meilisearch.SearchResponse, error)
}

var _ SearchIndex = meilisearch.IndexManager(nil)

// bookDocument is the indexed projection of a listing.
type bookDocument struct {
	ID     uuid.UUID `json:"id"`
	Title  string    `json:"title"`
	Author string    `json:"author"`
	Genres []string  `json:"genres"`
	ISBN   string    `json:"isbn"`
}

// service implements the Service interface.
type service struct {
	store store.Store
	index SearchIndex
}

// NewService creates a new book listing service. index may be nil.
func NewService(st store.Store, index SearchIndex) Service {
	return &service{store: st, index: index}
}

// AddBook lists a new book under its owner. Indexing is best effort; a
// failed index write never fails the listing.
func (s *service) AddBook(ctx context.Context, ownerID uuid.UUID, input NewBook) (*models.Book, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if !input.Condition.Valid() {
		return nil, fmt.Errorf("%w: unknown condition %q", ErrInvalidInput, input.Condition)
	}

	book := &models.Book{
		ID:            uuid.New(),
		Title:         input.Title,
		Author:        input.Author,
		Condition:     input.Condition,
		Genres:        input.Genres,
		ISBN:          input.ISBN,
		PublishedYear: input.PublishedYear,
		ImageURL:      input.ImageURL,
		OwnerID:       ownerID,
		Available:     true,
	}
	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	if s.index != nil {
		doc := bookDocument{ID: book.ID, Title: book.Title, Author: book.Author, Genres: book.Genres, ISBN: book.ISBN}
		pk := "id"
		if _, err := s.index.AddDocuments([]bookDocument{doc}, &pk); err != nil {
			log.Printf("catalog: failed to index book %s: %v", book.ID, err)
		}
	}
	return book, nil
}

func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	book, err := s.store.GetBook(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

func (s *service) ListAvailable(ctx context.Context) ([]*models.Book, error) {
	return s.store.ListAvailableBooks(ctx)
}

func (s *service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Book, error) {
	return s.store.ListBooksByOwner(ctx, ownerID)
}

// Search finds listings by title or author.
func (s *service) Search(ctx context.Context, query string) ([]*models.Book, error) {
	if s.index == nil {
		return s.searchStore(ctx, query)
	}

	resp, err := s.index.Search(query, &meilisearch.SearchRequest{Limit: 20})
	if err != nil {
		// Index down: degrade to the store scan rather than fail the read.
		log.Printf("catalog: index search failed, falling back: %v", err)
		return s.searchStore(ctx, query)
	}

	raw, err := json.Marshal(resp.Hits)
	if err != nil {
		return nil, fmt.Errorf("decode search hits: %w", err)
	}
	var hits []struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(raw, &hits); err != nil {
		return nil, fmt.Errorf("decode search hits: %w", err)
	}

	var books []*models.Book
	for _, hit := range hits {
		book, err := s.store.GetBook(ctx, hit.ID)
		if err != nil {
			continue // stale index entry
		}
		books = append(books, book)
	}
	return books, nil
}

func (s *service) searchStore(ctx context.Context, query string) ([]*models.Book, error) {
	available, err := s.store.ListAvailableBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("search fallback: %w", err)
	}
	needle := strings.ToLower(query)
	var books []*models.Book
	for _, book := range available {
		if strings.Contains(strings.ToLower(book.Title), needle) ||
			strings.Contains(strings.ToLower(book.Author), needle) {
			books = append(books, book)
		}
	}
	return books, nil
}
