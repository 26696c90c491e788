package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/groupchat-server/internal/store"
)

var errBrokenPipe = errors.New("broken pipe")

// frame is the decoded form of what testEncode produces.
type frame struct {
	Kind     string   `json:"kind"`
	Text     string   `json:"text,omitempty"`
	Count    int      `json:"count,omitempty"`
	Username string   `json:"username,omitempty"`
	Content  string   `json:"content,omitempty"`
	History  []string `json:"history,omitempty"`
}

func testEncode(env Envelope) ([]byte, error) {
	f := frame{
		Kind:     env.Kind.String(),
		Text:     env.Text,
		Count:    env.Count,
		Username: env.Message.Username,
		Content:  env.Message.Content,
	}
	for _, m := range env.Messages {
		f.History = append(f.History, m.Content)
	}
	return json.Marshal(f)
}

// fakeConn records every frame written to it and can be switched to fail.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
	closed bool
	reason string
}

func (c *fakeConn) Send(_ context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail || c.closed {
		return errBrokenPipe
	}
	c.frames = append(c.frames, append([]byte(nil), payload...))
	return nil
}

func (c *fakeConn) Close(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.reason = reason
	return nil
}

func (c *fakeConn) CloseNow() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// flakyConn accepts failAfter frames and fails every write after that.
type flakyConn struct {
	fakeConn
	failAfter int
}

func (c *flakyConn) Send(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	if len(c.frames) >= c.failAfter {
		c.fail = true
	}
	c.mu.Unlock()
	return c.fakeConn.Send(ctx, payload)
}

// slowConn takes delay to finish Close unless CloseNow cuts it short.
type slowConn struct {
	fakeConn
	delay   time.Duration
	release chan struct{}
	once    sync.Once
	dropped atomic.Bool
}

func newSlowConn(delay time.Duration) *slowConn {
	return &slowConn{delay: delay, release: make(chan struct{})}
}

func (c *slowConn) Close(reason string) error {
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-c.release:
	}
	return c.fakeConn.Close(reason)
}

func (c *slowConn) CloseNow() error {
	c.dropped.Store(true)
	c.once.Do(func() { close(c.release) })
	return c.fakeConn.CloseNow()
}

func (c *fakeConn) breakWrites() {
	c.mu.Lock()
	c.fail = true
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) received(t *testing.T) []frame {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]frame, 0, len(c.frames))
	for _, raw := range c.frames {
		var f frame
		require.NoError(t, json.Unmarshal(raw, &f))
		out = append(out, f)
	}
	return out
}

// memStore is an in-memory MessageStore.
type memStore struct {
	mu        sync.Mutex
	messages  []*store.Message
	appendErr error
	recentErr error
	clock     *store.Clock

	// beforeRecent runs ahead of every Recent call, outside the lock.
	beforeRecent func()
}

func newMemStore() *memStore {
	return &memStore{clock: store.NewClock()}
}

func (s *memStore) Append(_ context.Context, username, content string) (*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	msg := &store.Message{
		ID:        int64(len(s.messages) + 1),
		Username:  username,
		Content:   content,
		CreatedAt: s.clock.Next(),
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *memStore) Recent(_ context.Context, limit int) ([]*store.Message, error) {
	if s.beforeRecent != nil {
		s.beforeRecent()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	out := make([]*store.Message, 0, limit)
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.messages[i])
	}
	return out, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func newTestHub(t *testing.T, st store.MessageStore) *Hub {
	t.Helper()
	logger := testLogger()
	return NewHub(st, testEncode, Options{}, &logger)
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func kinds(frames []frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Kind
	}
	return out
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}
