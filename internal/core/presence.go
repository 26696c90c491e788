package core

import (
	"context"
	"slices"

	"github.com/rs/zerolog"
)

// Presence announces joins, departures and the online count.
type Presence struct {
	registry    *Registry
	broadcaster *Broadcaster
	log         zerolog.Logger
}

// NewPresence builds a presence notifier on top of a broadcaster.
func NewPresence(registry *Registry, broadcaster *Broadcaster, logger *zerolog.Logger) *Presence {
	return &Presence{
		registry:    registry,
		broadcaster: broadcaster,
		log:         componentLogger(logger, "presence"),
	}
}

// notice is a queued broadcast. Count notices read the registry when they are
// sent, not when they are queued.
type notice struct {
	env   Envelope
	count bool
}

// Join announces that username joined, then the new online count.
func (p *Presence) Join(ctx context.Context, username string) []*Session {
	return p.deliver(ctx, joinedNotice(username), countNotice())
}

// Leave announces that username left, then the new online count.
func (p *Presence) Leave(ctx context.Context, username string) []*Session {
	return p.deliver(ctx, leftNotice(username), countNotice())
}

// Broadcast sends env to every live session and announces the departure of
// every session evicted along the way. It returns all evicted sessions.
func (p *Presence) Broadcast(ctx context.Context, env Envelope) []*Session {
	return p.deliver(ctx, notice{env: env})
}

func (p *Presence) deliver(ctx context.Context, queue ...notice) []*Session {
	var evicted []*Session
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		env := next.env
		if next.count {
			env = OnlineCountEnvelope(p.registry.Count())
		}

		gone, err := p.broadcaster.Broadcast(ctx, env)
		if err != nil {
			p.log.Error().Err(err).Str("kind", env.Kind.String()).Msg("broadcast failed")
			continue
		}
		if len(gone) == 0 {
			continue
		}

		// Departures go ahead of any pending count so a count never
		// changes before its narrative has been sent.
		pending := queue
		queue = make([]notice, 0, len(gone)+len(pending)+1)
		for _, sess := range gone {
			evicted = append(evicted, sess)
			queue = append(queue, leftNotice(sess.Username))
		}
		queue = append(queue, pending...)
		if !slices.ContainsFunc(pending, func(n notice) bool { return n.count }) {
			queue = append(queue, countNotice())
		}
	}
	return evicted
}

func joinedNotice(username string) notice {
	return notice{env: SystemEnvelope(username + " joined")}
}

func leftNotice(username string) notice {
	return notice{env: SystemEnvelope(username + " left")}
}

func countNotice() notice {
	return notice{count: true}
}
