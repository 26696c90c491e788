package core

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// Registry is the authoritative set of live sessions.
// Mutations are serialized; reads observe a state between two mutations.
type Registry struct {
	mu       sync.RWMutex
	sessions map[ConnID]*Session
	nextSeq  uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[ConnID]*Session),
	}
}

// Register adds a connection under the given username.
func (r *Registry) Register(id ConnID, conn Conn, username string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return nil, ErrAlreadyRegistered
	}

	r.nextSeq++
	sess := &Session{
		ID:       id,
		Username: username,
		JoinedAt: time.Now(),
		conn:     conn,
		seq:      r.nextSeq,
	}
	r.sessions[id] = sess
	return sess, nil
}

// Unregister removes a connection. It returns false when the connection was
// never registered or is already gone; that case is a no-op.
func (r *Registry) Unregister(id ConnID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	return sess, true
}

// Lookup returns the live session for id, if any.
func (r *Registry) Lookup(id ConnID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	return sess, ok
}

// Sessions returns a snapshot of live sessions in join order.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Session) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return out
}

// Usernames lists the usernames of live sessions in join order.
// Duplicates are kept: one entry per connection.
func (r *Registry) Usernames() []string {
	sessions := r.Sessions()
	names := make([]string, len(sessions))
	for i, sess := range sessions {
		names[i] = sess.Username
	}
	return names
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
