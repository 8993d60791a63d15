// internal/notify/dispatcher.go
package notify

import (
	"encoding/json"
	"log"

	"bookswap/internal/models"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics
var (
	eventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookswap_notifications_dispatched_total",
		Help: "Notification events handed to the dispatcher",
	}, []string{"type"})

	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookswap_notifications_dropped_total",
		Help: "Notification events with no live connection to deliver to",
	})
)

// Sender pushes a serialized message to every live connection of a user
// and reports how many connections received it.
type Sender interface {
	Send(userID uuid.UUID, payload []byte) int
}

// Dispatcher translates domain events into wire envelopes and routes them
// to the channel hub keyed by target user.
type Dispatcher struct {
	hub Sender
}

func NewDispatcher(hub Sender) *Dispatcher {
	return &Dispatcher{hub: hub}
}

// Dispatch delivers the event best effort. It never fails the caller: a
// trade mutation's success must not depend on notification delivery, so a
// user with no live connection simply loses the event.
func (d *Dispatcher) Dispatch(event models.NotificationEvent) {
	envelope := models.Envelope{
		Type: event.Type,
		Payload: models.EventPayload{
			Message: event.Message,
			SentAt:  event.Timestamp,
		},
	}
	if event.RelatedTradeID != uuid.Nil {
		envelope.Payload.TradeID = event.RelatedTradeID.String()
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("notify: failed to marshal %s event: %v", event.Type, err)
		return
	}

	eventsDispatched.WithLabelValues(string(event.Type)).Inc()
	if delivered := d.hub.Send(event.TargetUserID, data); delivered == 0 {
		eventsDropped.Inc()
		log.Printf("notify: no live connection for user %s, dropped %s event", event.TargetUserID, event.Type)
	}
}
