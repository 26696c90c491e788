package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroadcaster(t *testing.T) (*Registry, *Broadcaster) {
	t.Helper()
	logger := testLogger()
	r := NewRegistry()
	return r, NewBroadcaster(r, testEncode, 4, &logger)
}

func TestBroadcastDeliversToEveryLiveConnection(t *testing.T) {
	r, b := newTestBroadcaster(t)
	ctx := testContext(t)

	alice, bob := &fakeConn{}, &fakeConn{}
	_, err := r.Register(NewConnID(), alice, "Alice")
	require.NoError(t, err)
	_, err = r.Register(NewConnID(), bob, "Bob")
	require.NoError(t, err)

	evicted, err := b.Broadcast(ctx, MessageEnvelope(Message{Username: "Alice", Content: "hi"}))
	require.NoError(t, err)
	assert.Empty(t, evicted)

	for _, conn := range []*fakeConn{alice, bob} {
		frames := conn.received(t)
		require.Len(t, frames, 1)
		assert.Equal(t, "message", frames[0].Kind)
		assert.Equal(t, "hi", frames[0].Content)
	}
	assert.Equal(t, 2, r.Count())
}

func TestBroadcastEvictsFailedConnections(t *testing.T) {
	r, b := newTestBroadcaster(t)
	ctx := testContext(t)

	healthy, broken := &fakeConn{}, &fakeConn{}
	_, err := r.Register(NewConnID(), healthy, "Bob")
	require.NoError(t, err)
	brokenID := NewConnID()
	_, err = r.Register(brokenID, broken, "Alice")
	require.NoError(t, err)
	broken.breakWrites()

	evicted, err := b.Broadcast(ctx, SystemEnvelope("first"))
	require.NoError(t, err)
	require.Len(t, evicted, 1)
	assert.Equal(t, brokenID, evicted[0].ID)
	assert.Equal(t, "Alice", evicted[0].Username)

	_, live := r.Lookup(brokenID)
	assert.False(t, live)
	assert.True(t, broken.isClosed())
	assert.Len(t, healthy.received(t), 1, "healthy peer still served")

	evicted, err = b.Broadcast(ctx, SystemEnvelope("second"))
	require.NoError(t, err)
	assert.Empty(t, evicted)
	assert.Empty(t, broken.received(t))
	assert.Len(t, healthy.received(t), 2)
}

func TestBroadcastIgnoresCallerCancellation(t *testing.T) {
	r, b := newTestBroadcaster(t)

	conn := &fakeConn{}
	_, err := r.Register(NewConnID(), conn, "Alice")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	evicted, err := b.Broadcast(ctx, SystemEnvelope("Bob left"))
	require.NoError(t, err)
	assert.Empty(t, evicted)
	assert.Len(t, conn.received(t), 1)
}

func TestBroadcastDoesNotDeduplicate(t *testing.T) {
	r, b := newTestBroadcaster(t)
	ctx := testContext(t)

	conn := &fakeConn{}
	_, err := r.Register(NewConnID(), conn, "Alice")
	require.NoError(t, err)

	env := SystemEnvelope("same")
	for range 2 {
		_, err := b.Broadcast(ctx, env)
		require.NoError(t, err)
	}
	assert.Len(t, conn.received(t), 2)
}

func TestBroadcastEncodeFailureSendsNothing(t *testing.T) {
	logger := testLogger()
	r := NewRegistry()
	encodeErr := errors.New("boom")
	b := NewBroadcaster(r, func(Envelope) ([]byte, error) { return nil, encodeErr }, 0, &logger)

	conn := &fakeConn{}
	_, err := r.Register(NewConnID(), conn, "Alice")
	require.NoError(t, err)

	_, err = b.Broadcast(testContext(t), SystemEnvelope("x"))
	require.ErrorIs(t, err, encodeErr)
	assert.Empty(t, conn.received(t))
	assert.Equal(t, 1, r.Count())
}

func TestSendToReportsFailureWithoutUnregistering(t *testing.T) {
	r, b := newTestBroadcaster(t)
	ctx := testContext(t)

	conn := &fakeConn{}
	id := NewConnID()
	_, err := r.Register(id, conn, "Alice")
	require.NoError(t, err)

	require.NoError(t, b.SendTo(ctx, id, HistoryEnvelope(nil)))
	frames := conn.received(t)
	require.Len(t, frames, 1)
	assert.Equal(t, "history", frames[0].Kind)

	conn.breakWrites()
	err = b.SendTo(ctx, id, SystemEnvelope("private"))
	require.ErrorIs(t, err, ErrSendFailed)
	require.ErrorIs(t, err, errBrokenPipe)

	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, "Alice", sendErr.Username)

	_, live := r.Lookup(id)
	assert.True(t, live, "SendTo leaves eviction to the caller")
	assert.False(t, conn.isClosed())
}

func TestSendToUnknownConnection(t *testing.T) {
	_, b := newTestBroadcaster(t)
	err := b.SendTo(testContext(t), NewConnID(), SystemEnvelope("x"))
	require.ErrorIs(t, err, ErrNotRegistered)
}
