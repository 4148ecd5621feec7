package events

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// client is one websocket subscriber. Subscribers only listen; anything they send
// is read and discarded to keep the connection's control frames flowing.
type client struct {
	id     string
	userID string
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	heartbeat   time.Time
	heartbeatMu sync.RWMutex

	closed atomic.Bool
}

func newClient(userID string, conn *websocket.Conn, hub *Hub) *client {
	ctx, cancel := context.WithCancel(hub.ctx)
	return &client{
		id:        uuid.New().String(),
		userID:    userID,
		conn:      conn,
		hub:       hub,
		send:      make(chan []byte, 64),
		ctx:       ctx,
		cancel:    cancel,
		heartbeat: time.Now(),
	}
}

func (c *client) touch() {
	c.heartbeatMu.Lock()
	defer c.heartbeatMu.Unlock()
	c.heartbeat = time.Now()
}

func (c *client) lastSeen() time.Time {
	c.heartbeatMu.RLock()
	defer c.heartbeatMu.RUnlock()
	return c.heartbeat
}

func (c *client) readPump() {
	defer func() {
		c.cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("subscriber read failed", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
		c.touch()
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Authenticator resolves the caller of an upgrade request. An error refuses the
// connection.
type Authenticator func(r *http.Request) (userID string, err error)

// Handler returns the http handler that upgrades subscribers onto the hub. With a
// nil authenticator every caller is accepted anonymously.
func (h *Hub) Handler(auth Authenticator) http.HandlerFunc {
	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var userID string
		if auth != nil {
			id, err := auth(r)
			if err != nil {
				h.logger.Info("subscriber refused", zap.String("remote", r.RemoteAddr), zap.Error(err))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			userID = id
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		c := newClient(userID, conn, h)
		select {
		case h.register <- c:
		case <-h.ctx.Done():
			conn.Close()
			return
		}
		go c.writePump()
		go c.readPump()
	}
}
