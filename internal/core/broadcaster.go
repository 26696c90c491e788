package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultFanout = 32

// Broadcaster delivers envelopes to sessions held by a Registry.
type Broadcaster struct {
	registry *Registry
	encode   EncodeFunc
	fanout   int
	log      zerolog.Logger
}

// NewBroadcaster builds a broadcaster. fanout bounds the number of concurrent
// writes per broadcast; values below 1 use the default.
func NewBroadcaster(registry *Registry, encode EncodeFunc, fanout int, logger *zerolog.Logger) *Broadcaster {
	if fanout < 1 {
		fanout = defaultFanout
	}
	return &Broadcaster{
		registry: registry,
		encode:   encode,
		fanout:   fanout,
		log:      componentLogger(logger, "broadcaster"),
	}
}

// SendTo writes env to a single connection. A failed write is returned as a
// *SendError and the connection stays registered; the caller decides.
func (b *Broadcaster) SendTo(ctx context.Context, id ConnID, env Envelope) error {
	sess, ok := b.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("send %s to %s: %w", env.Kind, id, ErrNotRegistered)
	}

	payload, err := b.encode(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Kind, err)
	}

	return b.send(ctx, sess, payload)
}

// Broadcast writes env to every session live when the call starts. Sessions
// whose write fails are unregistered and closed after the whole pass and are
// returned. Only an encoding failure is reported as an error.
func (b *Broadcaster) Broadcast(ctx context.Context, env Envelope) ([]*Session, error) {
	payload, err := b.encode(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", env.Kind, err)
	}

	// A recipient's failure must come from its own connection, never from
	// the caller going away.
	ctx = context.WithoutCancel(ctx)

	targets := b.registry.Sessions()

	var (
		mu     sync.Mutex
		failed []*Session
		g      errgroup.Group
	)
	g.SetLimit(b.fanout)
	for _, sess := range targets {
		g.Go(func() error {
			if err := b.send(ctx, sess, payload); err != nil {
				b.log.Debug().Err(err).Str("kind", env.Kind.String()).Msg("broadcast write failed")
				mu.Lock()
				failed = append(failed, sess)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return b.evict(failed), nil
}

func (b *Broadcaster) send(ctx context.Context, sess *Session, payload []byte) error {
	if err := sess.conn.Send(ctx, payload); err != nil {
		return &SendError{ConnID: sess.ID, Username: sess.Username, Err: err}
	}
	return nil
}

// evict unregisters failed sessions. A session already removed elsewhere
// (for example by its own read loop) is skipped so it is reported once.
func (b *Broadcaster) evict(failed []*Session) []*Session {
	if len(failed) == 0 {
		return nil
	}

	evicted := make([]*Session, 0, len(failed))
	for _, sess := range failed {
		removed, ok := b.registry.Unregister(sess.ID)
		if !ok {
			continue
		}
		if err := removed.conn.Close("write failed"); err != nil {
			b.log.Debug().Err(err).Str("conn_id", removed.ID.String()).Msg("close evicted connection")
		}
		b.log.Info().
			Str("conn_id", removed.ID.String()).
			Str("username", removed.Username).
			Int("online", b.registry.Count()).
			Msg("evicted connection after failed write")
		evicted = append(evicted, removed)
	}
	return evicted
}

func componentLogger(logger *zerolog.Logger, component string) zerolog.Logger {
	if logger == nil {
		return zerolog.Nop()
	}
	return logger.With().Str("component", component).Logger()
}
