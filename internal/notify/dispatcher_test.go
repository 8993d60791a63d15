// internal/notify/dispatcher_test.go
package notify

import (
	"encoding/json"
	"testing"
	"time"

	"bookswap/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender records sends and reports a configured delivery count.
type fakeSender struct {
	delivered int
	payloads  map[uuid.UUID][][]byte
}

func newFakeSender(delivered int) *fakeSender {
	return &fakeSender{delivered: delivered, payloads: make(map[uuid.UUID][][]byte)}
}

func (f *fakeSender) Send(userID uuid.UUID, payload []byte) int {
	f.payloads[userID] = append(f.payloads[userID], payload)
	return f.delivered
}

func TestDispatchBuildsEnvelope(t *testing.T) {
	sender := newFakeSender(1)
	dispatcher := NewDispatcher(sender)

	target := uuid.New()
	tradeID := uuid.New()
	sent := time.Now().UTC().Truncate(time.Second)

	dispatcher.Dispatch(models.NotificationEvent{
		Type:           models.EventTradeAccepted,
		TargetUserID:   target,
		Message:        "Your trade offer was accepted",
		RelatedTradeID: tradeID,
		Timestamp:      sent,
	})

	require.Len(t, sender.payloads[target], 1)
	var envelope models.Envelope
	require.NoError(t, json.Unmarshal(sender.payloads[target][0], &envelope))
	assert.Equal(t, models.EventTradeAccepted, envelope.Type)
	assert.Equal(t, "Your trade offer was accepted", envelope.Payload.Message)
	assert.Equal(t, tradeID.String(), envelope.Payload.TradeID)
	assert.True(t, envelope.Payload.SentAt.Equal(sent))
}

func TestDispatchOmitsNilTradeID(t *testing.T) {
	sender := newFakeSender(1)
	dispatcher := NewDispatcher(sender)
	target := uuid.New()

	dispatcher.Dispatch(models.NotificationEvent{
		Type:         models.EventSystem,
		TargetUserID: target,
		Message:      "maintenance window tonight",
		Timestamp:    time.Now(),
	})

	require.Len(t, sender.payloads[target], 1)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(sender.payloads[target][0], &raw))
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(raw["payload"], &payload))
	assert.NotContains(t, payload, "trade_id")
}

func TestDispatchSwallowsDeliveryFailure(t *testing.T) {
	// Zero live connections: the dispatch must return normally.
	dispatcher := NewDispatcher(newFakeSender(0))
	assert.NotPanics(t, func() {
		dispatcher.Dispatch(models.NotificationEvent{
			Type:         models.EventTradeRequest,
			TargetUserID: uuid.New(),
			Message:      "You received a trade offer",
			Timestamp:    time.Now(),
		})
	})
}
