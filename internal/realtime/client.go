// internal/realtime/client.go
package realtime

import (
	"context"
	"log"
	"time"

	"bookswap/internal/models"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

// Client is the companion side of the channel: it dials the hub,
// authenticates with its token, and surfaces pushed envelopes on Events.
// After an unexpected close it reconnects on its own with a fixed delay;
// only one attempt is ever in flight.
type Client struct {
	url   string
	token string

	// ReconnectDelay is the fixed wait between attempts. No growth, no
	// retry cap: the client keeps trying until the context is cancelled.
	ReconnectDelay time.Duration
	WriteTimeout   time.Duration

	Events chan models.Envelope
}

func NewClient(url, token string) *Client {
	return &Client{
		url:            url,
		token:          token,
		ReconnectDelay: 5 * time.Second,
		WriteTimeout:   10 * time.Second,
		Events:         make(chan models.Envelope, 64),
	}
}

// Run connects and reads until ctx is cancelled. It returns only the
// context's error: connection loss is handled internally by reconnecting.
func (c *Client) Run(ctx context.Context) error {
	for {
		conn, err := c.connect(ctx)
		if err != nil {
			// connect retries forever; an error means ctx is done.
			return ctx.Err()
		}
		c.readLoop(ctx, conn)
		conn.Close()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.ReconnectDelay):
		}
	}
}

// connect dials and authenticates, retrying at the fixed delay until it
// succeeds or the context ends.
func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	attempt := func() (*websocket.Conn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			return nil, err
		}
		conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
		if err := conn.WriteJSON(map[string]string{"token": c.token}); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.ReconnectDelay)),
		backoff.WithMaxElapsedTime(0), // retry until the context ends
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Printf("realtime client: connect failed (%v), retrying in %s", err, next)
		}),
	)
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var envelope models.Envelope
		if err := conn.ReadJSON(&envelope); err != nil {
			if ctx.Err() == nil {
				log.Printf("realtime client: connection lost: %v", err)
			}
			return
		}
		select {
		case c.Events <- envelope:
		default:
			// Slow consumer: drop rather than stall the read pump.
		}
	}
}
