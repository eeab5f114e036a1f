package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vimestats/internal/directory"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	sendBuffer = 256
)

// Client commands
const (
	CommandLoad   = "load"
	CommandFirst  = "first"
	CommandPrev   = "prev"
	CommandNext   = "next"
	CommandLast   = "last"
	CommandPage   = "page"
	CommandRank   = "rank"
	CommandSearch = "search"
	CommandPing   = "ping"
	CommandState  = "state"
)

// Upgrader returns a websocket upgrader accepting the given origins. An
// empty list or "*" accepts any origin.
func Upgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || allowed[origin]
		},
	}
}

// DirectoryFactory creates the directory controller behind a connection
type DirectoryFactory interface {
	NewDirectory(r directory.Renderer) *directory.Controller
}

// Client is one live directory connection. It owns a directory controller
// and renders it as messages on the socket.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	dir    *directory.Controller
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// ClientMessage represents a command from the client
type ClientMessage struct {
	Type   string `json:"type"`
	Page   int    `json:"page,omitempty"`
	Rank   string `json:"rank,omitempty"`
	Search string `json:"search,omitempty"`
}

// NewClient creates a new WebSocket client with its own directory controller
func NewClient(hub *Hub, conn *websocket.Conn, factory DirectoryFactory, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		id:     uuid.New().String(),
		hub:    hub,
		conn:   conn,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan []byte, sendBuffer),
	}
	c.logger = logger.With("client_id", c.id)
	c.dir = factory.NewDirectory(c)
	return c
}

// ShowLoading implements directory.Renderer
func (c *Client) ShowLoading() {
	c.sendMessage(MessageTypeLoading, map[string]string{"message": directory.LoadingMessage})
}

// ShowError implements directory.Renderer
func (c *Client) ShowError(message string) {
	c.sendMessage(MessageTypeError, map[string]string{"message": message})
}

// RenderRows implements directory.Renderer
func (c *Client) RenderRows(rows []directory.Row) {
	payload := RowsPayload{Rows: rows}
	if len(rows) == 0 {
		payload.Rows = []directory.Row{}
		payload.Empty = directory.EmptyMessage
	}
	c.sendMessage(MessageTypeRows, payload)
}

// UpdatePagination implements directory.Renderer
func (c *Client) UpdatePagination(view directory.PaginationView) {
	c.sendMessage(MessageTypePagination, view)
}

// UpdateRankAccent implements directory.Renderer
func (c *Client) UpdateRankAccent(accent string) {
	c.sendMessage(MessageTypeRankAccent, map[string]string{"accent": accent})
}

// UpdateRankCount implements directory.Renderer
func (c *Client) UpdateRankCount(rank string, count int64) {
	c.sendMessage(MessageTypeRankCount, RankCount{Rank: rank, Count: count})
}

// start loads the first page and the rank counts
func (c *Client) start() {
	go c.dir.LoadPlayers(c.ctx)
	go c.dir.LoadRankStats(c.ctx)
}

// readPump pumps commands from the WebSocket connection to the controller
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.dir.Close()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Warn("invalid message format", "error", err)
			c.ShowError("invalid message format")
			continue
		}

		// fetches block on the upstream API
		go c.handleMessage(c.ctx, &msg)
	}
}

// handleMessage runs one client command against the controller
func (c *Client) handleMessage(ctx context.Context, msg *ClientMessage) {
	switch msg.Type {
	case CommandLoad:
		c.dir.LoadPlayers(ctx)
	case CommandFirst:
		c.dir.First(ctx)
	case CommandPrev:
		c.dir.Prev(ctx)
	case CommandNext:
		c.dir.Next(ctx)
	case CommandLast:
		c.dir.Last(ctx)
	case CommandPage:
		if err := c.dir.GoTo(ctx, msg.Page); err != nil {
			c.ShowError(err.Error())
		}
	case CommandRank:
		if err := c.dir.SelectRank(ctx, msg.Rank); err != nil {
			c.ShowError(err.Error())
		}
	case CommandSearch:
		c.dir.SetSearch(ctx, msg.Search)
	case CommandPing:
		c.sendMessage(MessageTypePong, nil)
	case CommandState:
		c.sendMessage(MessageTypeState, c.dir.Snapshot())
	default:
		c.logger.Debug("unknown message type", "type", msg.Type)
	}
}

// writePump pumps messages from the send queue to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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

func (c *Client) sendMessage(msgType string, data interface{}) {
	payload, err := json.Marshal(Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		c.logger.Error("failed to marshal message", "type", msgType, "error", err)
		return
	}
	if !c.enqueue(payload) {
		c.logger.Warn("client buffer full, dropping message", "type", msgType)
	}
}

// enqueue queues data without blocking. It reports false when the queue is
// full; messages for a closed client are silently dropped.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close closes the send queue once
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ServeWs upgrades the request and starts a live directory session
func ServeWs(hub *Hub, factory DirectoryFactory, upgrader websocket.Upgrader, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(hub, conn, factory, logger)
	hub.Register(client)

	// Start client goroutines
	go client.writePump()
	go client.readPump()
	client.start()

	logger.Debug("new websocket connection", "client_id", client.id)
}
