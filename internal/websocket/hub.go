package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/vimestats/internal/directory"
	"github.com/vimestats/internal/domain"
	"github.com/vimestats/internal/metrics"
)

// Message types
const (
	MessageTypeLoading    = "loading"
	MessageTypeError      = "error"
	MessageTypeRows       = "rows"
	MessageTypePagination = "pagination"
	MessageTypeRankAccent = "rank_accent"
	MessageTypeRankCount  = "rank_count"
	MessageTypeRankStats  = "rank_stats"
	MessageTypePong       = "pong"
	MessageTypeState      = "state"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// RankCount is the payload of a rank_count message
type RankCount struct {
	Rank  string `json:"rank"`
	Count int64  `json:"count"`
}

// RowsPayload is the payload of a rows message
type RowsPayload struct {
	Rows  []directory.Row `json:"rows"`
	Empty string          `json:"empty,omitempty"`
}

// Hub maintains the set of live directory connections and broadcasts
// refreshed rank statistics to all of them
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message

	mu     sync.RWMutex
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 64),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
				metrics.LiveConnections.Dec()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.LiveConnections.Inc()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				metrics.LiveConnections.Dec()
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub and closes every connection's send queue
func (h *Hub) Stop() {
	h.cancel()
}

func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.enqueue(data) {
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// BroadcastRankStats sends refreshed per-rank counts to every connection
func (h *Hub) BroadcastRankStats(stats domain.RankStats) {
	message := &Message{
		Type:      MessageTypeRankStats,
		Data:      stats,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		client.close()
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
