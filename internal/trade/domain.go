// internal/trade/domain.go
package trade

import (
	"errors"
	"fmt"
	"time"

	"bookswap/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrNotFound means a referenced trade or book does not exist.
	ErrNotFound = errors.New("trade: not found")
	// ErrConflict means an invariant blocked the transition: a book is
	// unavailable, the trade is not in the required source state, or a
	// concurrent transition won the race.
	ErrConflict = errors.New("trade: conflict")
	// ErrForbidden means the actor is not the permitted participant for
	// the requested transition.
	ErrForbidden = errors.New("trade: actor not permitted")
	// ErrInvalidStatus means the requested target status is not a valid
	// transition target.
	ErrInvalidStatus = errors.New("trade: invalid status")
)

// canTransition reports whether the state machine permits moving from one
// status to another. Terminal states admit no outgoing edges.
func canTransition(from, to models.Status) bool {
	switch from {
	case models.StatusPending:
		return to == models.StatusAccepted || to == models.StatusRejected || to == models.StatusCancelled
	case models.StatusAccepted:
		return to == models.StatusCompleted
	default:
		return false
	}
}

func newEvent(kind models.EventType, target uuid.UUID, tradeID uuid.UUID, format string, args ...interface{}) models.NotificationEvent {
	return models.NotificationEvent{
		Type:           kind,
		TargetUserID:   target,
		Message:        fmt.Sprintf(format, args...),
		RelatedTradeID: tradeID,
		Timestamp:      time.Now().UTC(),
	}
}
