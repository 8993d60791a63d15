// internal/trade/implementation.go
package trade

import (
	"context"
	"errors"
	"fmt"

	"bookswap/internal/models"
	"bookswap/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Notifier receives the domain events produced by trade transitions.
// Dispatch must never fail the caller; delivery is best effort.
type Notifier interface {
	Dispatch(event models.NotificationEvent)
}

// service implements the Service interface.
type service struct {
	store    store.Store
	notifier Notifier
	tracer   trace.Tracer
}

// NewService creates a new trade engine instance.
func NewService(st store.Store, notifier Notifier) Service {
	return &service{
		store:    st,
		notifier: notifier,
		tracer:   otel.Tracer("bookswap/trade"),
	}
}

// Create opens a pending trade offering one book for another. The receiver
// is the requested book's current owner.
func (s *service) Create(ctx context.Context, initiatorID, bookOfferedID, bookRequestedID uuid.UUID, message string) (*models.Trade, error) {
	ctx, span := s.tracer.Start(ctx, "trade.create",
		trace.WithAttributes(
			attribute.String("initiator.id", initiatorID.String()),
			attribute.String("book.offered", bookOfferedID.String()),
			attribute.String("book.requested", bookRequestedID.String()),
		),
	)
	defer span.End()

	if bookOfferedID == bookRequestedID {
		return nil, fmt.Errorf("%w: cannot offer a book for itself", ErrConflict)
	}

	requested, err := s.store.GetBook(ctx, bookRequestedID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: requested book %s", ErrNotFound, bookRequestedID)
		}
		return nil, fmt.Errorf("load requested book: %w", err)
	}
	offered, err := s.store.GetBook(ctx, bookOfferedID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: offered book %s", ErrNotFound, bookOfferedID)
		}
		return nil, fmt.Errorf("load offered book: %w", err)
	}

	if offered.OwnerID != initiatorID {
		return nil, fmt.Errorf("%w: offered book belongs to another user", ErrForbidden)
	}
	if requested.OwnerID == initiatorID {
		return nil, fmt.Errorf("%w: cannot trade with yourself", ErrConflict)
	}
	if !offered.Available || !requested.Available {
		return nil, fmt.Errorf("%w: book is not available", ErrConflict)
	}

	trade := &models.Trade{
		ID:              uuid.New(),
		InitiatorID:     initiatorID,
		ReceiverID:      requested.OwnerID,
		BookOfferedID:   bookOfferedID,
		BookRequestedID: bookRequestedID,
		Status:          models.StatusPending,
		Message:         message,
		Seen:            false,
	}
	if err := s.store.CreateTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("create trade: %w", err)
	}

	span.SetAttributes(attribute.String("trade.id", trade.ID.String()))
	s.notifier.Dispatch(newEvent(models.EventTradeRequest, trade.ReceiverID, trade.ID,
		"You received a trade offer for %q", requested.Title))
	return trade, nil
}

// UpdateStatus moves a pending trade to accepted, rejected or cancelled.
// Accepting re-validates both books' availability inside the same atomic
// transition, so a double-booking race loses with ErrConflict.
func (s *service) UpdateStatus(ctx context.Context, tradeID, actorID uuid.UUID, newStatus models.Status) (*models.Trade, error) {
	ctx, span := s.tracer.Start(ctx, "trade.update_status",
		trace.WithAttributes(
			attribute.String("trade.id", tradeID.String()),
			attribute.String("actor.id", actorID.String()),
			attribute.String("status.target", string(newStatus)),
		),
	)
	defer span.End()

	if newStatus != models.StatusAccepted && newStatus != models.StatusRejected && newStatus != models.StatusCancelled {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	trade, err := s.loadTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !canTransition(trade.Status, newStatus) {
		span.SetAttributes(attribute.Bool("conflict.detected", true))
		return nil, fmt.Errorf("%w: trade is %s, not pending", ErrConflict, trade.Status)
	}

	switch newStatus {
	case models.StatusAccepted, models.StatusRejected:
		if actorID != trade.ReceiverID {
			return nil, fmt.Errorf("%w: only the receiver may %s a trade", ErrForbidden, newStatus)
		}
	case models.StatusCancelled:
		if actorID != trade.InitiatorID {
			return nil, fmt.Errorf("%w: only the initiator may cancel a trade", ErrForbidden)
		}
	}

	switch newStatus {
	case models.StatusAccepted:
		offered, requested, err := s.loadBooks(ctx, trade)
		if err != nil {
			return nil, err
		}
		// Availability is re-checked here, not just at creation time:
		// another trade may have locked either book since.
		if !offered.Available || !requested.Available {
			span.SetAttributes(attribute.Bool("conflict.detected", true))
			return nil, fmt.Errorf("%w: book no longer available", ErrConflict)
		}
		offered.Available = false
		requested.Available = false
		trade.Status = models.StatusAccepted
		trade.Seen = true
		if err := s.apply(ctx, trade, offered, requested); err != nil {
			return nil, err
		}
		s.notifier.Dispatch(newEvent(models.EventTradeAccepted, trade.InitiatorID, trade.ID,
			"Your trade offer for %q was accepted", requested.Title))

	case models.StatusRejected:
		trade.Status = models.StatusRejected
		trade.Seen = true
		if err := s.apply(ctx, trade); err != nil {
			return nil, err
		}
		s.notifier.Dispatch(newEvent(models.EventTradeRejected, trade.InitiatorID, trade.ID,
			"Your trade offer was rejected"))

	case models.StatusCancelled:
		trade.Status = models.StatusCancelled
		if err := s.apply(ctx, trade); err != nil {
			return nil, err
		}
		s.notifier.Dispatch(newEvent(models.EventSystem, trade.ReceiverID, trade.ID,
			"A trade offer you received was withdrawn"))
	}

	return trade, nil
}

// Complete executes the pivot: ownership of both books swaps and both
// return to the marketplace under their new owners.
func (s *service) Complete(ctx context.Context, tradeID, actorID uuid.UUID) (*models.Trade, error) {
	ctx, span := s.tracer.Start(ctx, "trade.complete",
		trace.WithAttributes(
			attribute.String("trade.id", tradeID.String()),
			attribute.String("actor.id", actorID.String()),
		),
	)
	defer span.End()

	trade, err := s.loadTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !canTransition(trade.Status, models.StatusCompleted) {
		span.SetAttributes(attribute.Bool("conflict.detected", true))
		return nil, fmt.Errorf("%w: trade is %s, not accepted", ErrConflict, trade.Status)
	}
	if actorID != trade.InitiatorID && actorID != trade.ReceiverID {
		return nil, fmt.Errorf("%w: only a participant may complete a trade", ErrForbidden)
	}

	offered, requested, err := s.loadBooks(ctx, trade)
	if err != nil {
		return nil, err
	}

	offered.OwnerID = trade.ReceiverID
	requested.OwnerID = trade.InitiatorID
	offered.Available = true
	requested.Available = true
	trade.Status = models.StatusCompleted
	if err := s.apply(ctx, trade, offered, requested); err != nil {
		return nil, err
	}

	s.notifier.Dispatch(newEvent(models.EventTradeCompleted, trade.InitiatorID, trade.ID,
		"Trade completed: %q is now yours", requested.Title))
	s.notifier.Dispatch(newEvent(models.EventTradeCompleted, trade.ReceiverID, trade.ID,
		"Trade completed: %q is now yours", offered.Title))
	return trade, nil
}

// MarkSeen bulk-acknowledges a user's pending received trades. Calling it
// again is a no-op.
func (s *service) MarkSeen(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx, span := s.tracer.Start(ctx, "trade.mark_seen",
		trace.WithAttributes(attribute.String("user.id", userID.String())),
	)
	defer span.End()

	changed, err := s.store.MarkTradesSeen(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark trades seen: %w", err)
	}
	span.SetAttributes(attribute.Int("trades.marked", changed))
	return changed, nil
}

// Get returns a trade with its book projections resolved.
func (s *service) Get(ctx context.Context, tradeID uuid.UUID) (*models.TradeView, error) {
	trade, err := s.loadTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, trade), nil
}

// ListForUser returns every trade the user participates in, newest first.
func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.TradeView, error) {
	trades, err := s.store.ListTradesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	views := make([]*models.TradeView, len(trades))
	for i, trade := range trades {
		views[i] = s.project(ctx, trade)
	}
	return views, nil
}

func (s *service) loadTrade(ctx context.Context, tradeID uuid.UUID) (*models.Trade, error) {
	trade, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: trade %s", ErrNotFound, tradeID)
		}
		return nil, fmt.Errorf("load trade: %w", err)
	}
	return trade, nil
}

func (s *service) loadBooks(ctx context.Context, trade *models.Trade) (offered, requested *models.Book, err error) {
	offered, err = s.store.GetBook(ctx, trade.BookOfferedID)
	if err != nil {
		return nil, nil, fmt.Errorf("load offered book: %w", err)
	}
	requested, err = s.store.GetBook(ctx, trade.BookRequestedID)
	if err != nil {
		return nil, nil, fmt.Errorf("load requested book: %w", err)
	}
	return offered, requested, nil
}

// apply commits the transition atomically; a lost version race surfaces
// as ErrConflict so a failed transition leaves every record unchanged.
func (s *service) apply(ctx context.Context, trade *models.Trade, books ...*models.Book) error {
	if err := s.store.ApplyTransition(ctx, trade, books...); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return fmt.Errorf("%w: concurrent transition won", ErrConflict)
		}
		return fmt.Errorf("apply transition: %w", err)
	}
	return nil
}

// project resolves the optional book projections for the API boundary.
// Missing projections are left nil rather than failing the read.
func (s *service) project(ctx context.Context, trade *models.Trade) *models.TradeView {
	view := &models.TradeView{Trade: *trade}
	if book, err := s.store.GetBook(ctx, trade.BookOfferedID); err == nil {
		view.BookOffered = book
	}
	if book, err := s.store.GetBook(ctx, trade.BookRequestedID); err == nil {
		view.BookRequested = book
	}
	return view
}
