// cmd/server/main.go
package main

import (
	"fmt"
	"log"
	"net/http"

	"bookswap/internal/auth"
	"bookswap/internal/catalog"
	"bookswap/internal/config"
	"bookswap/internal/notify"
	"bookswap/internal/realtime"
	"bookswap/internal/store"
	"bookswap/internal/trade"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/meilisearch/meilisearch-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pg.Close()
		st = pg
	} else {
		log.Println("DATABASE_URL not set, using in-memory store")
		st = store.NewMemoryStore()
	}

	verifier := auth.NewVerifier(cfg.TokenSecret)
	hub := realtime.NewHub(verifier)
	dispatcher := notify.NewDispatcher(hub)
	trades := trade.NewService(st, dispatcher)

	var index catalog.SearchIndex
	if cfg.MeiliURL != "" {
		client := meilisearch.New(cfg.MeiliURL, meilisearch.WithAPIKey(cfg.MeiliKey))
		index = client.Index("books")
	}
	books := catalog.NewService(st, index)

	tradeHandler := trade.NewHandler(trades)
	catalogHandler := catalog.NewHandler(books)

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Handle("/ws", hub)

	router.Group(func(r chi.Router) {
		r.Use(verifier.Middleware)
		r.Route("/books", catalogHandler.Routes)
		r.Route("/trades", tradeHandler.Routes)
	})

	fmt.Printf("🚀 Starting BookSwap server on port %s\n", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, router))
}
