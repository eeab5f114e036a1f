package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vimestats/internal/directory"
	"github.com/vimestats/internal/domain"
	"github.com/vimestats/internal/ranks"
	"github.com/vimestats/internal/service"
	"github.com/vimestats/internal/websocket"
)

// SessionCookie carries the anonymous visitor id
const SessionCookie = "vimestats_session"

// Options configures the HTTP handler
type Options struct {
	AllowedOrigins []string
	SessionTTL     time.Duration
	// Ready reports whether backing stores are reachable; nil means always ready
	Ready func(ctx context.Context) error
}

// Handler provides HTTP handlers for the portal API
type Handler struct {
	portal   *service.Portal
	hub      *websocket.Hub
	opts     Options
	validate *validator.Validate
	upgrader gorillaws.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(portal *service.Portal, hub *websocket.Hub, opts Options, logger *slog.Logger) *Handler {
	return &Handler{
		portal:   portal,
		hub:      hub,
		opts:     opts,
		validate: validator.New(),
		upgrader: websocket.Upgrader(opts.AllowedOrigins),
		logger:   logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SearchRequest is the quick-search form
type SearchRequest struct {
	Input string `json:"input" validate:"max=64"`
}

// RecentRequest remembers a nickname in the visitor's recent list
type RecentRequest struct {
	Nick string `json:"nick" validate:"required,max=32"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	r.Handle("/metrics", promhttp.Handler())

	// Live directory
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ranks", h.ListRanks)
		r.Get("/ranks/stats", h.GetRankStats)

		r.Get("/players", h.ListPlayers)
		r.Get("/players/{username}", h.GetPlayerCard)

		r.Post("/search", h.Search)
		r.Get("/recent", h.GetRecent)
		r.Post("/recent", h.RememberRecent)

		r.Get("/lookups/popular", h.GetPopularLookups)

		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

func (h *Handler) allowedOrigins() []string {
	if len(h.opts.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return h.opts.AllowedOrigins
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   message,
	})
}

// writeUpstreamError maps an upstream failure to a status and message
func (h *Handler) writeUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, domain.ErrPlayerNotFound.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, http.StatusGatewayTimeout, directory.ErrorMessage(err))
	case domain.IsUpstreamError(err):
		h.logger.Warn("upstream API rejected request", "error", err)
		h.writeError(w, http.StatusBadGateway, directory.ErrorMessage(err))
	default:
		h.logger.Error("upstream API unreachable", "error", err)
		h.writeError(w, http.StatusBadGateway, directory.ErrorMessage(err))
	}
}

// sessionID returns the visitor's session id, issuing a new cookie when the
// request carries none or a malformed one
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}

	id := uuid.New().String()
	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if h.opts.SessionTTL > 0 {
		cookie.MaxAge = int(h.opts.SessionTTL.Seconds())
	}
	http.SetCookie(w, cookie)
	return id
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.portal, h.upgrader, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
		"active_sessions":   h.portal.ActiveSessions(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if h.opts.Ready != nil {
		if err := h.opts.Ready(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", "error", err)
			h.writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// ListRanks returns the rank catalog in priority order
func (h *Handler) ListRanks(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, ranks.All())
}

// GetRankStats returns the number of players per rank
func (h *Handler) GetRankStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.portal.RankStats(r.Context()))
}

// ListPlayers returns one rendered directory page
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	q := service.DirectoryQuery{
		Page:   1,
		Rank:   r.URL.Query().Get("rank"),
		Search: r.URL.Query().Get("search"),
	}
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p < 1 {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest.Error())
			return
		}
		q.Page = p
	}

	view, err := h.portal.Directory(r.Context(), q)
	if err != nil {
		h.logger.Error("failed to load directory", "page", q.Page, "rank", q.Rank, "error", err)
		h.writeUpstreamError(w, err)
		return
	}

	h.writeSuccess(w, view)
}

// GetPlayerCard returns the cached or freshly fetched player summary
func (h *Handler) GetPlayerCard(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest.Error())
		return
	}

	card, err := h.portal.PlayerCard(r.Context(), username)
	if err != nil {
		if !domain.IsNotFoundError(err) {
			h.logger.Error("failed to get player card", "username", username, "error", err)
		}
		h.writeUpstreamError(w, err)
		return
	}

	h.writeSuccess(w, card)
}

// Search runs a quick search for the visitor
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest.Error())
		return
	}

	outcome := h.portal.Search(r.Context(), h.sessionID(w, r), req.Input)
	h.writeSuccess(w, outcome)
}

// GetRecent returns the visitor's recent nicknames
func (h *Handler) GetRecent(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.portal.RecentNicks(r.Context(), h.sessionID(w, r)))
}

// RememberRecent adds a nickname to the visitor's recent list
func (h *Handler) RememberRecent(w http.ResponseWriter, r *http.Request) {
	var req RecentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest.Error())
		return
	}

	h.writeSuccess(w, h.portal.RememberNick(r.Context(), h.sessionID(w, r), req.Nick))
}

// GetPopularLookups returns the most looked-up players
func (h *Handler) GetPopularLookups(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	lookups, err := h.portal.PopularLookups(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to get popular lookups", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError.Error())
		return
	}

	h.writeSuccess(w, lookups)
}
