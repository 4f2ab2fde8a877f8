package fanout

import (
	"AgentOffice/backend/go/internal/metrics"
	"AgentOffice/backend/go/internal/models"
	"AgentOffice/backend/go/pkg/logger"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultWriteTimeout = 5 * time.Second

// Client is the part of *websocket.Conn the hub writes to.
type Client interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Hub keeps the set of connected real-time clients.
type Hub struct {
	mu           sync.Mutex
	clients      map[Client]struct{}
	writeTimeout time.Duration
	log          *logger.Logger
	metrics      *metrics.Metrics
}

func NewHub(log *logger.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		clients:      make(map[Client]struct{}),
		writeTimeout: defaultWriteTimeout,
		log:          log.Named("hub"),
		metrics:      m,
	}
}

// Attach sends the snapshot built by init and then adds c to the set. No
// broadcast can reach c before its snapshot.
func (h *Hub) Attach(c Client, init func() models.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := json.Marshal(init())
	if err != nil {
		return fmt.Errorf("marshal init event: %w", err)
	}
	if err := h.write(c, data); err != nil {
		return fmt.Errorf("send init event: %w", err)
	}
	h.clients[c] = struct{}{}
	h.metrics.SetRealtimeClients(len(h.clients))
	return nil
}

// Detach removes and closes c. Detaching an unknown client is a no-op.
func (h *Hub) Detach(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	_ = c.Close()
	h.metrics.SetRealtimeClients(len(h.clients))
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast writes e to every client. A client whose write fails is dropped;
// the others are unaffected and nothing is retried.
func (h *Hub) Broadcast(e models.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.log.WithErr(err).WithField("type", e.Type).Error("marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if err := h.write(c, data); err != nil {
			h.log.WithErr(err).Debug("dropping real-time client")
			h.removeLocked(c)
		}
	}
}

func (h *Hub) write(c Client, data []byte) error {
	_ = c.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	return c.WriteMessage(websocket.TextMessage, data)
}
