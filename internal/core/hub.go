package core

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/groupchat-server/internal/store"
)

// DefaultHistoryLimit is how many messages a new session receives on join.
const DefaultHistoryLimit = 50

// Options tunes a Hub.
type Options struct {
	// HistoryLimit is the size of the history sent on connect.
	HistoryLimit int
	// Fanout bounds concurrent writes per broadcast.
	Fanout int
}

// Hub coordinates sessions: it registers connections, replays history,
// persists chat messages and announces presence.
type Hub struct {
	registry     *Registry
	broadcaster  *Broadcaster
	presence     *Presence
	store        store.MessageStore
	historyLimit int
	log          zerolog.Logger
}

// NewHub creates a hub with its own empty registry.
func NewHub(st store.MessageStore, encode EncodeFunc, opts Options, logger *zerolog.Logger) *Hub {
	if opts.HistoryLimit < 1 {
		opts.HistoryLimit = DefaultHistoryLimit
	}

	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, encode, opts.Fanout, logger)

	return &Hub{
		registry:     registry,
		broadcaster:  broadcaster,
		presence:     NewPresence(registry, broadcaster, logger),
		store:        st,
		historyLimit: opts.HistoryLimit,
		log:          componentLogger(logger, "hub"),
	}
}

// Registry exposes the live session set.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Broadcaster exposes the broadcast engine.
func (h *Hub) Broadcaster() *Broadcaster {
	return h.broadcaster
}

// Presence exposes the presence notifier.
func (h *Hub) Presence() *Presence {
	return h.presence
}

// Connect registers conn as username, sends it the recent history and
// announces the join. When the history cannot be loaded or delivered the
// connection is unregistered again and no join is announced. The session is
// live from Register on, so concurrent broadcasts may reach it before history.
func (h *Hub) Connect(ctx context.Context, id ConnID, conn Conn, username string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}

	sess, err := h.registry.Register(id, conn, username)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", username, err)
	}

	if err := h.sendHistory(ctx, sess); err != nil {
		h.registry.Unregister(id)
		return nil, err
	}

	h.log.Info().
		Str("conn_id", id.String()).
		Str("username", username).
		Int("online", h.registry.Count()).
		Msg("user connected")

	h.presence.Join(ctx, username)
	return sess, nil
}

func (h *Hub) sendHistory(ctx context.Context, sess *Session) error {
	rows, err := h.store.Recent(ctx, h.historyLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	if err := h.broadcaster.SendTo(ctx, sess.ID, HistoryEnvelope(chronological(rows))); err != nil {
		return fmt.Errorf("send history: %w", err)
	}
	return nil
}

// Post persists content from the session behind id and broadcasts it.
// Blank content and connections that are no longer registered are ignored.
// A storage failure is returned and nothing is broadcast.
func (h *Hub) Post(ctx context.Context, id ConnID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	sess, ok := h.registry.Lookup(id)
	if !ok {
		h.log.Debug().Str("conn_id", id.String()).Msg("dropping message from unregistered connection")
		return nil
	}

	saved, err := h.store.Append(ctx, sess.Username, content)
	if err != nil {
		return fmt.Errorf("persist message from %s: %w", sess.Username, err)
	}

	h.log.Debug().
		Int64("message_id", saved.ID).
		Str("username", sess.Username).
		Msg("message persisted")

	h.presence.Broadcast(ctx, MessageEnvelope(messageFromStore(saved)))
	return nil
}

// Disconnect unregisters id and announces the departure. Calling it for a
// connection that is already gone does nothing.
func (h *Hub) Disconnect(ctx context.Context, id ConnID) {
	sess, ok := h.registry.Unregister(id)
	if !ok {
		return
	}

	h.log.Info().
		Str("conn_id", id.String()).
		Str("username", sess.Username).
		Int("online", h.registry.Count()).
		Msg("user disconnected")

	h.presence.Leave(ctx, sess.Username)
}

// OnlineUsers lists the usernames of live sessions.
func (h *Hub) OnlineUsers() []string {
	return h.registry.Usernames()
}

// OnlineCount returns the number of live sessions.
func (h *Hub) OnlineCount() int {
	return h.registry.Count()
}

// History returns at most limit recent messages, oldest first.
func (h *Hub) History(ctx context.Context, limit int) ([]Message, error) {
	rows, err := h.store.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return chronological(rows), nil
}

// Shutdown closes every live connection in parallel. Their read loops then
// disconnect them through the usual path. Connections still closing when ctx
// ends are dropped without the close handshake.
func (h *Hub) Shutdown(ctx context.Context, reason string) {
	sessions := h.registry.Sessions()
	closed := make([]atomic.Bool, len(sessions))

	var g errgroup.Group
	for i, sess := range sessions {
		g.Go(func() error {
			if err := sess.conn.Close(reason); err != nil {
				h.log.Debug().Err(err).Str("conn_id", sess.ID.String()).Msg("close connection on shutdown")
			}
			closed[i].Store(true)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info().Int("connections", len(sessions)).Msg("closed live connections")
	case <-ctx.Done():
		dropped := 0
		for i, sess := range sessions {
			if closed[i].Load() {
				continue
			}
			dropped++
			if err := sess.conn.CloseNow(); err != nil {
				h.log.Debug().Err(err).Str("conn_id", sess.ID.String()).Msg("drop connection on shutdown")
			}
		}
		h.log.Warn().
			Int("connections", len(sessions)).
			Int("dropped", dropped).
			Msg("shutdown deadline reached, dropped unresponsive connections")
	}
}
