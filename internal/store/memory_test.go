// internal/store/memory_test.go
package store

import (
	"context"
	"testing"

	"bookswap/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTrade(t *testing.T, st *MemoryStore) (*models.Trade, *models.Book, *models.Book) {
	t.Helper()
	ctx := context.Background()

	offered := &models.Book{ID: uuid.New(), Title: "a", Author: "x", Condition: models.ConditionGood, OwnerID: uuid.New(), Available: true}
	requested := &models.Book{ID: uuid.New(), Title: "b", Author: "y", Condition: models.ConditionFair, OwnerID: uuid.New(), Available: true}
	require.NoError(t, st.CreateBook(ctx, offered))
	require.NoError(t, st.CreateBook(ctx, requested))

	trade := &models.Trade{
		ID:              uuid.New(),
		InitiatorID:     offered.OwnerID,
		ReceiverID:      requested.OwnerID,
		BookOfferedID:   offered.ID,
		BookRequestedID: requested.ID,
		Status:          models.StatusPending,
	}
	require.NoError(t, st.CreateTrade(ctx, trade))
	return trade, offered, requested
}

func TestApplyTransitionBumpsVersions(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	trade, offered, requested := seedTrade(t, st)

	trade.Status = models.StatusAccepted
	offered.Available = false
	requested.Available = false
	require.NoError(t, st.ApplyTransition(ctx, trade, offered, requested))

	assert.Equal(t, 2, trade.Version)
	assert.Equal(t, 2, offered.Version)

	got, err := st.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)
	assert.Equal(t, 2, got.Version)
}

func TestApplyTransitionStaleTrade(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	trade, _, _ := seedTrade(t, st)

	stale := *trade
	trade.Status = models.StatusRejected
	require.NoError(t, st.ApplyTransition(ctx, trade))

	stale.Status = models.StatusAccepted
	err := st.ApplyTransition(ctx, &stale)
	assert.ErrorIs(t, err, ErrVersionConflict)

	got, err := st.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
}

func TestApplyTransitionAllOrNothing(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	trade, offered, requested := seedTrade(t, st)

	// Make the requested book's version stale.
	requested.Version = 99

	trade.Status = models.StatusAccepted
	offered.Available = false
	err := st.ApplyTransition(ctx, trade, offered, requested)
	assert.ErrorIs(t, err, ErrVersionConflict)

	// Nothing may have been written, the offered book included.
	gotTrade, err := st.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, gotTrade.Status)
	assert.Equal(t, 1, gotTrade.Version)

	gotOffered, err := st.GetBook(ctx, offered.ID)
	require.NoError(t, err)
	assert.True(t, gotOffered.Available)
	assert.Equal(t, 1, gotOffered.Version)
}

func TestGetReturnsCopies(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	_, offered, _ := seedTrade(t, st)

	first, err := st.GetBook(ctx, offered.ID)
	require.NoError(t, err)
	first.Available = false

	second, err := st.GetBook(ctx, offered.ID)
	require.NoError(t, err)
	assert.True(t, second.Available, "mutating a returned record must not touch the store")
}

func TestMarkTradesSeen(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	trade, _, _ := seedTrade(t, st)

	changed, err := st.MarkTradesSeen(ctx, trade.ReceiverID)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	changed, err = st.MarkTradesSeen(ctx, trade.ReceiverID)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)

	got, err := st.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.True(t, got.Seen)
}

func TestNotFound(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	_, err := st.GetBook(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.GetTrade(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	missing := &models.Trade{ID: uuid.New(), Version: 1}
	assert.ErrorIs(t, st.ApplyTransition(ctx, missing), ErrNotFound)
}
