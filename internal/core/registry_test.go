package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndUnregister(t *testing.T) {
	r := NewRegistry()
	alice, bob := NewConnID(), NewConnID()

	sess, err := r.Register(alice, &fakeConn{}, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", sess.Username)
	assert.Equal(t, alice, sess.ID)

	_, err = r.Register(bob, &fakeConn{}, "Bob")
	require.NoError(t, err)
	assert.Equal(t, 2, r.Count())
	assert.Equal(t, []string{"Alice", "Bob"}, r.Usernames())

	removed, ok := r.Unregister(alice)
	require.True(t, ok)
	assert.Equal(t, "Alice", removed.Username)
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, []string{"Bob"}, r.Usernames())
}

func TestRegistryRejectsDuplicateConnection(t *testing.T) {
	r := NewRegistry()
	id := NewConnID()

	_, err := r.Register(id, &fakeConn{}, "Alice")
	require.NoError(t, err)

	_, err = r.Register(id, &fakeConn{}, "Mallory")
	require.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, []string{"Alice"}, r.Usernames())
}

func TestRegistryUnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	id := NewConnID()

	_, ok := r.Unregister(id)
	assert.False(t, ok, "never registered")

	_, err := r.Register(id, &fakeConn{}, "Alice")
	require.NoError(t, err)

	_, ok = r.Unregister(id)
	assert.True(t, ok)
	_, ok = r.Unregister(id)
	assert.False(t, ok, "already removed")
	assert.Equal(t, 0, r.Count())
}

func TestRegistrySameUsernameTwoConnections(t *testing.T) {
	r := NewRegistry()
	first, second := NewConnID(), NewConnID()

	_, err := r.Register(first, &fakeConn{}, "Alice")
	require.NoError(t, err)
	_, err = r.Register(second, &fakeConn{}, "Alice")
	require.NoError(t, err)

	assert.Equal(t, []string{"Alice", "Alice"}, r.Usernames())

	r.Unregister(first)
	sess, ok := r.Lookup(second)
	require.True(t, ok)
	assert.Equal(t, "Alice", sess.Username)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryCountTracksSequences(t *testing.T) {
	r := NewRegistry()
	ids := make([]ConnID, 10)
	for i := range ids {
		ids[i] = NewConnID()
	}

	live := 0
	steps := []struct {
		register bool
		idx      int
	}{
		{true, 0}, {true, 1}, {false, 0}, {false, 0}, {true, 2}, {true, 3},
		{false, 5}, {true, 4}, {false, 1}, {false, 2}, {true, 0}, {false, 9},
	}
	for _, step := range steps {
		if step.register {
			_, err := r.Register(ids[step.idx], &fakeConn{}, "user")
			require.NoError(t, err)
			live++
		} else if _, ok := r.Unregister(ids[step.idx]); ok {
			live--
		}
		require.Equal(t, live, r.Count())
		require.Len(t, r.Usernames(), live)
	}
}

func TestRegistryConcurrentMutations(t *testing.T) {
	r := NewRegistry()
	const workers = 50

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NewConnID()
			if _, err := r.Register(id, &fakeConn{}, "user"); err != nil {
				t.Errorf("register: %v", err)
				return
			}
			_ = r.Usernames()
			_ = r.Count()
			// Two racing unregisters: exactly one wins.
			results := make(chan bool, 2)
			for range 2 {
				go func() {
					_, ok := r.Unregister(id)
					results <- ok
				}()
			}
			if a, b := <-results, <-results; a == b {
				t.Errorf("expected exactly one successful unregister, got %v and %v", a, b)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.Count())
	assert.Empty(t, r.Usernames())
}
