package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConnID identifies one accepted connection. It is issued by the transport at
// accept time and never reused.
type ConnID uuid.UUID

// NewConnID returns a fresh random connection id.
func NewConnID() ConnID {
	return ConnID(uuid.New())
}

func (id ConnID) String() string {
	return uuid.UUID(id).String()
}

// Conn is the transport handle behind a session. The core only routes through
// it; the transport owns its lifetime.
type Conn interface {
	// Send writes one frame. Implementations must be safe for concurrent use.
	Send(ctx context.Context, payload []byte) error
	// Close terminates the underlying connection. Calling it more than once is allowed.
	Close(reason string) error
	// CloseNow drops the connection without waiting for the peer. It must
	// also unblock a Close in progress.
	CloseNow() error
}

// Session is a chat participant as seen by the core layer: one live
// connection paired with a display name.
type Session struct {
	ID       ConnID
	Username string
	JoinedAt time.Time

	conn Conn
	seq  uint64
}
