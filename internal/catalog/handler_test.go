// internal/catalog/handler_test.go
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bookswap/internal/auth"
	"bookswap/internal/models"
	"bookswap/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenStore fails every book write, standing in for a database outage.
type brokenStore struct {
	store.Store
}

func (brokenStore) CreateBook(ctx context.Context, book *models.Book) error {
	return errors.New("connection refused")
}

func newCatalogServer(t *testing.T, st store.Store) (*httptest.Server, *auth.Verifier) {
	t.Helper()
	verifier := auth.NewVerifier("test_secret")
	handler := NewHandler(NewService(st, nil))

	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(verifier.Middleware)
		r.Route("/books", handler.Routes)
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, verifier
}

func postBook(t *testing.T, server *httptest.Server, verifier *auth.Verifier, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req, err := http.NewRequest(http.MethodPost, server.URL+"/books", &buf)
	require.NoError(t, err)

	token, err := verifier.Mint(uuid.New())
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAddBookStatusCodes(t *testing.T) {
	server, verifier := newCatalogServer(t, store.NewMemoryStore())

	resp := postBook(t, server, verifier, map[string]string{
		"title":     "The Leopard",
		"author":    "Giuseppe Tomasi di Lampedusa",
		"condition": "good",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Caller mistakes stay 400.
	resp = postBook(t, server, verifier, map[string]string{"title": "", "condition": "good"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postBook(t, server, verifier, map[string]string{"title": "ok", "condition": "mint"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddBookStoreFailureIsServerError(t *testing.T) {
	server, verifier := newCatalogServer(t, brokenStore{store.NewMemoryStore()})

	resp := postBook(t, server, verifier, map[string]string{
		"title":     "The Leopard",
		"condition": "good",
	})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
