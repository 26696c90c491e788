package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/groupchat-server/internal/core"
)

const defaultWriteTimeout = 10 * time.Second

// WSHandler upgrades HTTP connections and bridges them to the chat hub.
type WSHandler struct {
	hub          *core.Hub
	writeTimeout time.Duration
	log          *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, writeTimeout time.Duration, logger *zerolog.Logger) *WSHandler {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &WSHandler{hub: hub, writeTimeout: writeTimeout, log: logger}
}

// Handle serves GET /ws/:username.
func (h *WSHandler) Handle(c *gin.Context) {
	username := strings.TrimSpace(c.Param("username"))
	if username == "" {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "username is required"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}

	ctx := c.Request.Context()
	id := core.NewConnID()
	ws := &wsConn{conn: conn, writeTimeout: h.writeTimeout}

	if _, err := h.hub.Connect(ctx, id, ws, username); err != nil {
		h.log.Warn().Err(err).Str("username", username).Msg("connect failed")
		conn.Close(websocket.StatusInternalError, "internal error")
		return
	}
	defer h.hub.Disconnect(context.WithoutCancel(ctx), id)

	err = h.readLoop(ctx, conn, id, username)
	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure, status == websocket.StatusGoingAway:
	case errors.Is(err, context.Canceled):
	case err != nil:
		h.log.Debug().Err(err).Str("conn_id", id.String()).Msg("ws connection closed")
	}
	conn.CloseNow()
}

// readLoop feeds chat messages to the hub until the connection ends.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, id core.ConnID, username string) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			h.log.Debug().Str("conn_id", id.String()).Msg("ignoring binary frame")
			continue
		}

		content, ok := decodeInbound(data)
		if !ok {
			h.log.Debug().Str("conn_id", id.String()).Msg("ignoring malformed frame")
			continue
		}

		if err := h.hub.Post(ctx, id, content); err != nil {
			h.log.Error().Err(err).Str("username", username).Msg("failed to post message")
			conn.Close(websocket.StatusInternalError, "storage failure")
			return err
		}
	}
}

// wsConn adapts a websocket connection to core.Conn.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	broken       atomic.Bool
}

func (w *wsConn) Send(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, w.writeTimeout)
	defer cancel()

	if err := w.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		w.broken.Store(true)
		return err
	}
	return nil
}

// Close skips the close handshake once a write has failed.
func (w *wsConn) Close(reason string) error {
	if w.broken.Load() {
		return w.conn.CloseNow()
	}
	return w.conn.Close(websocket.StatusGoingAway, reason)
}

func (w *wsConn) CloseNow() error {
	return w.conn.CloseNow()
}
