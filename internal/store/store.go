package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrInvalidLimit is returned when Recent is asked for a non-positive limit.
var ErrInvalidLimit = errors.New("limit must be positive")

// Message represents a persisted chat message.
type Message struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageStore is the durable, append-only chat log.
type MessageStore interface {
	// Append persists a message and returns it with its id and timestamp set.
	// The message is durable when Append returns.
	Append(ctx context.Context, username, content string) (*Message, error)

	// Recent returns at most limit messages, newest first.
	Recent(ctx context.Context, limit int) ([]*Message, error)
}

// Store aggregates the storage interfaces.
type Store interface {
	MessageStore

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close closes the underlying database connection.
	Close() error
}

// Clock hands out UTC timestamps that never go backwards, so commit order and
// timestamp order agree for appends serialized through the same clock.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewClock returns a clock backed by time.Now.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Next returns the current time, clamped to the last value handed out.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
