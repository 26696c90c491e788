package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/groupchat-server/internal/config"
	"github.com/vovakirdan/groupchat-server/internal/core"
	"github.com/vovakirdan/groupchat-server/internal/store"
)

// NewServer builds an HTTP server with the chat socket and REST routes.
func NewServer(hub *core.Hub, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	api := NewAPIHandlers(hub, st, cfg.HistoryLimit, cfg.MaxHistoryLimit, logger)
	router.GET("/health", api.Health)
	router.GET("/ready", api.Ready)

	apiGroup := router.Group("/api")
	apiGroup.GET("/messages", api.Messages)
	apiGroup.GET("/online", api.Online)

	router.GET("/ws/:username", NewWSHandler(hub, cfg.WriteTimeout, logger).Handle)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
