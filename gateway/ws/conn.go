// Package ws bridges an accepted security verdict to a live gorilla
// WebSocket connection: it performs the upgrade, enforces per-message rate
// limits on the read loop and notifies the gateway when the socket closes.
// The gateway core stays transport-free; this package is its in-process
// calling collaborator.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/grasp-labs/ds-go-ws-gateway/gateway"
	"github.com/grasp-labs/ds-go-ws-gateway/gateway/interfaces"
	"github.com/grasp-labs/ds-go-ws-gateway/gateway/models"
)

const (
	readDeadline  = 60 * time.Second
	pingInterval  = 45 * time.Second
	writeDeadline = 10 * time.Second
	sendQueueSize = 256
)

// Handler processes one admitted inbound message.
// Handlers run in their own goroutine so they never block the read loop.
type Handler func(conn *Conn, messageType string, payload json.RawMessage)

// Envelope is the JSON frame exchanged on the socket. Type selects the
// message quota; Error/RetryAfter are set on rate-limit denial replies.
type Envelope struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Error      string          `json:"error,omitempty"`
	RetryAfter int64           `json:"retry_after,omitempty"`
}

// Upgrader performs the HTTP upgrade. Origin is already validated by the
// gateway pipeline, so CheckOrigin accepts everything here.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Conn is one accepted, authenticated WebSocket connection.
type Conn struct {
	connCtx models.ConnectionContext
	conn    *websocket.Conn
	gw      *gateway.SecurityGateway
	logger  interfaces.Logger

	ctx    context.Context
	cancel context.CancelFunc
	sendCh chan []byte

	mu     sync.RWMutex
	closed bool
}

// Accept upgrades the HTTP request and wraps the socket. The connection
// context must come from a successful PerformSecurityCheck on the same
// request.
func Accept(w http.ResponseWriter, r *http.Request, g *gateway.SecurityGateway, connCtx *models.ConnectionContext, logger interfaces.Logger) (*Conn, error) {
	socket, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade connection %s: %w", connCtx.ConnectionID, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		connCtx: *connCtx,
		conn:    socket,
		gw:      g,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		sendCh:  make(chan []byte, sendQueueSize),
	}

	go c.writePump()
	return c, nil
}

// ID returns the gateway connection id.
func (c *Conn) ID() string {
	return c.connCtx.ConnectionID
}

// User returns the authenticated identity behind the connection.
func (c *Conn) User() *models.AuthenticatedUser {
	return c.connCtx.User
}

// Context returns the connection's lifecycle context.
func (c *Conn) Context() context.Context {
	return c.ctx
}

// ReadLoop reads message envelopes until the socket closes. Each message is
// checked against its type's rate limit before being handed to the handler;
// a denied message gets an error envelope back but the connection stays
// open. On exit the gateway is notified of the close.
func (c *Conn) ReadLoop(handler Handler) {
	defer func() {
		c.gw.HandleConnectionClose(context.Background(), c.connCtx.ConnectionID)
		c.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					c.logger.Warning(c.ctx, "Unexpected close on connection %s: %v", c.connCtx.ConnectionID, err)
				}
				return
			}

			c.conn.SetReadDeadline(time.Now().Add(readDeadline))

			var env Envelope
			if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
				c.closeWithCode(websocket.CloseProtocolError, "invalid message format")
				return
			}

			result := c.gw.CheckMessageRateLimit(c.ctx, c.connCtx.ConnectionID, env.Type)
			if !result.Allowed {
				c.sendEnvelope(Envelope{
					Type:       "error",
					Error:      gateway.RateLimitExceededMessage,
					RetryAfter: result.RetryAfter,
				})
				continue
			}

			go handler(c, env.Type, env.Payload)
		}
	}
}

// Send marshals the payload into an envelope and queues it for writing.
func (c *Conn) Send(ctx context.Context, messageType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", messageType, err)
	}
	return c.sendEnvelope(Envelope{Type: messageType, Payload: raw})
}

func (c *Conn) sendEnvelope(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return fmt.Errorf("connection %s is closed", c.connCtx.ConnectionID)
	}

	select {
	case c.sendCh <- data:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// Close tears the connection down. Idempotent.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.conn.Close()
}

func (c *Conn) closeWithCode(code int, reason string) {
	deadline := time.Now().Add(writeDeadline)
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	c.Close()
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error(c.ctx, "Write failed on connection %s: %v", c.connCtx.ConnectionID, err)
				c.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
