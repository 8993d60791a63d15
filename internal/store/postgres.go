// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bookswap/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id UUID PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT NOT NULL,
	condition TEXT NOT NULL,
	genres TEXT[] NOT NULL DEFAULT '{}',
	isbn TEXT NOT NULL DEFAULT '',
	published_year INT NOT NULL DEFAULT 0,
	image_url TEXT NOT NULL DEFAULT '',
	owner_id UUID NOT NULL,
	available BOOLEAN NOT NULL DEFAULT TRUE,
	version INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS trades (
	id UUID PRIMARY KEY,
	initiator_id UUID NOT NULL,
	receiver_id UUID NOT NULL,
	book_offered_id UUID NOT NULL REFERENCES books(id),
	book_requested_id UUID NOT NULL REFERENCES books(id),
	status TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	seen BOOLEAN NOT NULL DEFAULT FALSE,
	version INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_trades_receiver ON trades (receiver_id, status);
CREATE INDEX IF NOT EXISTS idx_books_owner ON books (owner_id);
`

// PostgresStore is the durable Store backend.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(connString string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) CreateBook(ctx context.Context, book *models.Book) error {
	book.Version = 1
	query := `
		INSERT INTO books (id, title, author, condition, genres, isbn, published_year, image_url, owner_id, available, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	return p.db.QueryRowContext(ctx, query,
		book.ID, book.Title, book.Author, book.Condition, pq.Array(book.Genres),
		book.ISBN, book.PublishedYear, book.ImageURL, book.OwnerID, book.Available, book.Version,
	).Scan(&book.CreatedAt, &book.UpdatedAt)
}

const bookColumns = `id, title, author, condition, genres, isbn, published_year, image_url, owner_id, available, version, created_at, updated_at`

func scanBook(row interface{ Scan(...interface{}) error }) (*models.Book, error) {
	book := &models.Book{}
	err := row.Scan(
		&book.ID, &book.Title, &book.Author, &book.Condition, pq.Array(&book.Genres),
		&book.ISBN, &book.PublishedYear, &book.ImageURL, &book.OwnerID, &book.Available,
		&book.Version, &book.CreatedAt, &book.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return book, nil
}

func (p *PostgresStore) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`
	book, err := scanBook(p.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

func (p *PostgresStore) ListBooksByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE owner_id = $1 ORDER BY created_at DESC`
	return p.listBooks(ctx, query, ownerID)
}

func (p *PostgresStore) ListAvailableBooks(ctx context.Context) ([]*models.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE available ORDER BY created_at DESC`
	return p.listBooks(ctx, query)
}

func (p *PostgresStore) listBooks(ctx context.Context, query string, args ...interface{}) ([]*models.Book, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []*models.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

func (p *PostgresStore) CreateTrade(ctx context.Context, trade *models.Trade) error {
	trade.Version = 1
	query := `
		INSERT INTO trades (id, initiator_id, receiver_id, book_offered_id, book_requested_id, status, message, seen, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	return p.db.QueryRowContext(ctx, query,
		trade.ID, trade.InitiatorID, trade.ReceiverID, trade.BookOfferedID, trade.BookRequestedID,
		trade.Status, trade.Message, trade.Seen, trade.Version,
	).Scan(&trade.CreatedAt, &trade.UpdatedAt)
}

func (p *PostgresStore) GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	trade := &models.Trade{}
	query := `SELECT * FROM trades WHERE id = $1`
	err := p.db.GetContext(ctx, trade, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trade: %w", err)
	}
	return trade, nil
}

func (p *PostgresStore) ListTradesForUser(ctx context.Context, userID uuid.UUID) ([]*models.Trade, error) {
	var trades []*models.Trade
	query := `SELECT * FROM trades WHERE initiator_id = $1 OR receiver_id = $1 ORDER BY created_at DESC`
	if err := p.db.SelectContext(ctx, &trades, query, userID); err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	return trades, nil
}

func (p *PostgresStore) MarkTradesSeen(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		UPDATE trades
		SET seen = TRUE, version = version + 1, updated_at = NOW()
		WHERE receiver_id = $1 AND status = $2 AND NOT seen
	`
	res, err := p.db.ExecContext(ctx, query, userID, models.StatusPending)
	if err != nil {
		return 0, fmt.Errorf("mark trades seen: %w", err)
	}
	changed, err := res.RowsAffected()
	return int(changed), err
}

func (p *PostgresStore) ApplyTransition(ctx context.Context, trade *models.Trade, books ...*models.Book) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	tradeQuery := `
		UPDATE trades
		SET status = $1, seen = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4
	`
	res, err := tx.ExecContext(ctx, tradeQuery, trade.Status, trade.Seen, trade.ID, trade.Version)
	if err != nil {
		return fmt.Errorf("update trade: %w", err)
	}
	if err := requireOneRow(res); err != nil {
		return err
	}

	bookQuery := `
		UPDATE books
		SET owner_id = $1, available = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4
	`
	for _, book := range books {
		res, err := tx.ExecContext(ctx, bookQuery, book.OwnerID, book.Available, book.ID, book.Version)
		if err != nil {
			return fmt.Errorf("update book: %w", err)
		}
		if err := requireOneRow(res); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	trade.Version++
	for _, book := range books {
		book.Version++
	}
	return nil
}

// requireOneRow maps a version-guarded UPDATE that matched nothing to a
// concurrency conflict.
func requireOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return ErrVersionConflict
	}
	return nil
}
