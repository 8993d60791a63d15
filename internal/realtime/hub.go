// internal/realtime/hub.go
package realtime

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

const (
	handshakeDeadline = 10 * time.Second
	writeTimeout      = 10 * time.Second
	maxMessageSize    = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

var liveConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "bookswap_realtime_connections",
	Help: "Authenticated live websocket connections",
})

// TokenVerifier resolves a handshake token to a user id.
type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// connection is one live socket bound to a user after the handshake.
type connection struct {
	sock   *websocket.Conn
	userID uuid.UUID

	writeMu sync.Mutex
}

func (c *connection) write(messageType int, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.sock.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.sock.WriteMessage(messageType, payload)
}

// Hub tracks the live per-user connections. A user may hold several at
// once (multi-device); Send fans out to all of them.
type Hub struct {
	verifier TokenVerifier
	limiter  *rate.Limiter

	mu    sync.RWMutex
	users map[uuid.UUID]map[*connection]struct{}
}

func NewHub(verifier TokenVerifier) *Hub {
	return &Hub{
		verifier: verifier,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 20),
		users:    make(map[uuid.UUID]map[*connection]struct{}),
	}
}

// ServeHTTP upgrades the request and starts the handshake. A connection
// receives nothing until it authenticates with a token message.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}
	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: upgrade failed: %v", err)
		return
	}
	go h.serve(sock)
}

func (h *Hub) serve(sock *websocket.Conn) {
	defer sock.Close()
	sock.SetReadLimit(maxMessageSize)

	conn := &connection{sock: sock}
	userID, err := h.handshake(conn)
	if err != nil {
		// Unauthenticated sockets get a policy close, never a route.
		deadline := time.Now().Add(writeTimeout)
		sock.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required"), deadline)
		return
	}
	conn.userID = userID

	h.register(conn)
	defer h.unregister(conn)

	if err := conn.write(websocket.TextMessage, []byte(`{"type":"system","payload":{"message":"authenticated"}}`)); err != nil {
		return
	}

	// Inbound frames after the handshake carry no meaning; reading keeps
	// the connection alive and detects the close promptly.
	for {
		if _, _, err := sock.ReadMessage(); err != nil {
			return
		}
	}
}

// handshake waits for the first message, which must be {"token": "..."}.
func (h *Hub) handshake(conn *connection) (uuid.UUID, error) {
	conn.sock.SetReadDeadline(time.Now().Add(handshakeDeadline))
	defer conn.sock.SetReadDeadline(time.Time{})

	var msg struct {
		Token string `json:"token"`
	}
	if err := conn.sock.ReadJSON(&msg); err != nil {
		return uuid.Nil, err
	}
	return h.verifier.Verify(msg.Token)
}

func (h *Hub) register(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.users[conn.userID]
	if !ok {
		conns = make(map[*connection]struct{})
		h.users[conn.userID] = conns
	}
	conns[conn] = struct{}{}
	liveConnections.Inc()
}

func (h *Hub) unregister(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.users[conn.userID]
	if !ok {
		return
	}
	if _, ok := conns[conn]; !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.users, conn.userID)
	}
	liveConnections.Dec()
}

// Send delivers the payload to every live connection owned by userID and
// reports how many received it. A connection that fails the write is
// closed and dropped, not retried.
func (h *Hub) Send(userID uuid.UUID, payload []byte) int {
	h.mu.RLock()
	conns := make([]*connection, 0, len(h.users[userID]))
	for conn := range h.users[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, conn := range conns {
		if err := conn.write(websocket.TextMessage, payload); err != nil {
			conn.sock.Close()
			h.unregister(conn)
			continue
		}
		delivered++
	}
	return delivered
}

// Connections reports how many live connections a user holds.
func (h *Hub) Connections(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
