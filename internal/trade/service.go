// internal/trade/service.go
package trade

import (
	"context"

	"bookswap/internal/models"

	"github.com/google/uuid"
)

// Service defines the interface for the trade engine.
type Service interface {
	Create(ctx context.Context, initiatorID, bookOfferedID, bookRequestedID uuid.UUID, message string) (*models.Trade, error)
	UpdateStatus(ctx context.Context, tradeID, actorID uuid.UUID, newStatus models.Status) (*models.Trade, error)
	Complete(ctx context.Context, tradeID, actorID uuid.UUID) (*models.Trade, error)
	MarkSeen(ctx context.Context, userID uuid.UUID) (int, error)
	Get(ctx context.Context, tradeID uuid.UUID) (*models.TradeView, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.TradeView, error)
}
