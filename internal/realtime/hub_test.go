// internal/realtime/hub_test.go
package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bookswap/internal/auth"
	"bookswap/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, *auth.Verifier, string) {
	t.Helper()
	verifier := auth.NewVerifier("test_secret")
	hub := NewHub(verifier)
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	return hub, verifier, wsURL
}

// dialAuthed connects and completes the token handshake, returning the
// socket only after the hub has confirmed registration.
func dialAuthed(t *testing.T, wsURL, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(map[string]string{"token": token}))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ack models.Envelope
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, models.EventSystem, ack.Type)
	return conn
}

func TestHandshakeAndDelivery(t *testing.T) {
	hub, verifier, wsURL := newTestHub(t)
	userID := uuid.New()
	token, err := verifier.Mint(userID)
	require.NoError(t, err)

	conn := dialAuthed(t, wsURL, token)
	defer conn.Close()
	assert.Equal(t, 1, hub.Connections(userID))

	payload, _ := json.Marshal(models.Envelope{
		Type:    models.EventTradeRequest,
		Payload: models.EventPayload{Message: "You received a trade offer"},
	})
	assert.Equal(t, 1, hub.Send(userID, payload))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got models.Envelope
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, models.EventTradeRequest, got.Type)
	assert.Equal(t, "You received a trade offer", got.Payload.Message)
}

func TestMultiDeviceFanOut(t *testing.T) {
	hub, verifier, wsURL := newTestHub(t)
	userID := uuid.New()
	token, err := verifier.Mint(userID)
	require.NoError(t, err)

	first := dialAuthed(t, wsURL, token)
	defer first.Close()
	second := dialAuthed(t, wsURL, token)
	defer second.Close()
	require.Equal(t, 2, hub.Connections(userID))

	payload := []byte(`{"type":"system","payload":{"message":"hello"}}`)
	assert.Equal(t, 2, hub.Send(userID, payload))

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var got models.Envelope
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, "hello", got.Payload.Message)
	}
}

func TestBadTokenClosesConnection(t *testing.T) {
	hub, _, wsURL := newTestHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(map[string]string{"token": "garbage"}))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err, "unauthenticated socket must be closed, not served")
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))

	assert.Equal(t, 0, hub.Connections(uuid.New()))
}

func TestNoRoutingBeforeAuthentication(t *testing.T) {
	hub, verifier, wsURL := newTestHub(t)
	userID := uuid.New()

	// Connected but not yet authenticated: nothing may be routed.
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, 0, hub.Connections(userID))
	assert.Equal(t, 0, hub.Send(userID, []byte(`{}`)))

	// The same socket can still complete the handshake afterwards.
	token, err := verifier.Mint(userID)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(map[string]string{"token": token}))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ack models.Envelope
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, 1, hub.Connections(userID))
}

func TestCloseReleasesRegistration(t *testing.T) {
	hub, verifier, wsURL := newTestHub(t)
	userID := uuid.New()
	token, err := verifier.Mint(userID)
	require.NoError(t, err)

	conn := dialAuthed(t, wsURL, token)
	require.Equal(t, 1, hub.Connections(userID))
	conn.Close()

	require.Eventually(t, func() bool {
		return hub.Connections(userID) == 0
	}, 5*time.Second, 10*time.Millisecond, "close must release the registration promptly")

	assert.Equal(t, 0, hub.Send(userID, []byte(`{}`)))
}
