package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrHubClosed is returned when publishing to a hub that has shut down
var ErrHubClosed = errors.New("event hub is closed")

// Hub broadcasts events to the websocket subscribers it holds
type Hub struct {
	clients   map[*client]bool
	clientsMu sync.RWMutex

	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewHub creates a hub bound to ctx. Call Start to begin delivering events.
func NewHub(ctx context.Context, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client, 64),
		unregister: make(chan *client, 64),
		broadcast:  make(chan []byte, 256),
		logger:     logger.Named("events"),
		ctx:        hubCtx,
		cancel:     cancel,
	}
}

// Start runs the hub's event loop in the background until Shutdown
func (h *Hub) Start() {
	h.wg.Add(1)
	go h.run()
}

func (h *Hub) run() {
	defer h.wg.Done()

	sweep := time.NewTicker(30 * time.Second)
	defer sweep.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return

		case c := <-h.register:
			h.clientsMu.Lock()
			h.clients[c] = true
			h.clientsMu.Unlock()
			h.logger.Debug("subscriber connected", zap.String("client", c.id),
				zap.String("user", c.userID), zap.Int("subscribers", h.ClientCount()))

		case c := <-h.unregister:
			h.drop(c)

		case frame := <-h.broadcast:
			h.deliver(frame)

		case <-sweep.C:
			h.sweepStale(90 * time.Second)
		}
	}
}

// Publish queues the event for every connected subscriber. A full queue drops the
// event with a warning rather than blocking the caller.
func (h *Hub) Publish(ctx context.Context, event Event) error {
	frame, err := json.Marshal(event)
	if err != nil {
		return err
	}
	select {
	case <-h.ctx.Done():
		return ErrHubClosed
	default:
	}
	select {
	case h.broadcast <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		h.logger.Warn("event queue full, dropping event",
			zap.String("kind", string(event.Kind)), zap.String("instance", event.InstanceGUID()))
		return nil
	}
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects every subscriber and stops the event loop
func (h *Hub) Shutdown() {
	h.once.Do(func() {
		h.cancel()
		h.wg.Wait()
		h.logger.Debug("event hub stopped")
	})
}

func (h *Hub) deliver(frame []byte) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			h.logger.Warn("subscriber send queue full, skipping", zap.String("client", c.id))
		}
	}
}

func (h *Hub) drop(c *client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.closed.Store(true)
	close(c.send)
	h.logger.Debug("subscriber disconnected", zap.String("client", c.id), zap.Int("subscribers", len(h.clients)))
}

func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for c := range h.clients {
		c.closed.Store(true)
		if c.conn != nil {
			c.conn.Close()
		}
	}
	h.clients = make(map[*client]bool)
}

func (h *Hub) sweepStale(maxIdle time.Duration) {
	h.clientsMu.RLock()
	stale := make([]*client, 0)
	for c := range h.clients {
		if time.Since(c.lastSeen()) > maxIdle {
			stale = append(stale, c)
		}
	}
	h.clientsMu.RUnlock()

	for _, c := range stale {
		h.logger.Debug("removing stale subscriber", zap.String("client", c.id))
		h.drop(c)
	}
}
