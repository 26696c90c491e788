package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/groupchat-server/internal/core"
	"github.com/vovakirdan/groupchat-server/internal/proto"
	"github.com/vovakirdan/groupchat-server/internal/store"
)

// APIHandlers provides HTTP handlers for REST API endpoints.
type APIHandlers struct {
	hub          *core.Hub
	store        store.Store
	defaultLimit int
	maxLimit     int
	log          *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(hub *core.Hub, st store.Store, defaultLimit, maxLimit int, logger *zerolog.Logger) *APIHandlers {
	if defaultLimit <= 0 {
		defaultLimit = core.DefaultHistoryLimit
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &APIHandlers{
		hub:          hub,
		store:        st,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		log:          logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessagesResponse represents the recent messages response body.
type MessagesResponse struct {
	Messages []proto.HistoryEntry `json:"messages"`
}

// OnlineResponse represents the online users response body.
type OnlineResponse struct {
	Users []string `json:"users"`
	Count int      `json:"count"`
}

// StatusResponse represents a health or readiness response body.
type StatusResponse struct {
	Status string `json:"status"`
}

// Messages returns recent messages, oldest first.
// GET /api/messages?limit=N
func (h *APIHandlers) Messages(c *gin.Context) {
	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, h.maxLimit)
	}

	messages, err := h.hub.History(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Int("limit", limit).Msg("failed to load messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	entries := make([]proto.HistoryEntry, 0, len(messages))
	for _, msg := range messages {
		entries = append(entries, historyEntry(msg))
	}
	c.JSON(http.StatusOK, MessagesResponse{Messages: entries})
}

// Online lists connected usernames.
// GET /api/online
func (h *APIHandlers) Online(c *gin.Context) {
	users := h.hub.OnlineUsers()
	c.JSON(http.StatusOK, OnlineResponse{Users: users, Count: len(users)})
}

// Health reports that the process is up.
// GET /health
func (h *APIHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{Status: "healthy"})
}

// Ready reports whether the store is reachable.
// GET /ready
func (h *APIHandlers) Ready(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.log.Warn().Err(err).Msg("store not ready")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Status: "ready"})
}
