// Package cache wraps a store.Store with a Redis cache of the newest messages.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/vovakirdan/groupchat-server/internal/store"
)

const defaultKey = "groupchat:recent"

// Store serves Recent from a cached window of the newest messages
// (cache-aside). Append writes through to the backend and invalidates.
type Store struct {
	store.Store

	client *redis.Client
	key    string
	window int
	ttl    time.Duration

	group singleflight.Group // Prevents cache stampede
	gen   atomic.Uint64      // bumped by every Append
	log   zerolog.Logger
}

var _ store.Store = (*Store)(nil)

// New wraps backend. window is the number of newest messages kept in Redis;
// Recent calls asking for more bypass the cache.
func New(backend store.Store, client *redis.Client, window int, ttl time.Duration, logger *zerolog.Logger) *Store {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "history_cache").Logger()
	}
	return &Store{
		Store:  backend,
		client: client,
		key:    defaultKey,
		window: window,
		ttl:    ttl,
		log:    l,
	}
}

// Append persists through the backend, then drops the cached window.
func (s *Store) Append(ctx context.Context, username, content string) (*store.Message, error) {
	msg, err := s.Store.Append(ctx, username, content)
	if err != nil {
		return nil, err
	}

	s.gen.Add(1)
	s.invalidate(ctx)
	return msg, nil
}

// Recent returns at most limit messages, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		return nil, store.ErrInvalidLimit
	}
	if limit > s.window {
		return s.Store.Recent(ctx, limit)
	}

	cached, err := s.load(ctx)
	if err == nil {
		s.log.Debug().Int("limit", limit).Msg("history cache hit")
		return head(cached, limit), nil
	}
	if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("history cache read failed")
	}

	val, err, _ := s.group.Do(s.key, func() (any, error) {
		return s.fill(ctx)
	})
	if err != nil {
		return nil, err
	}

	rows, ok := val.([]*store.Message)
	if !ok {
		return nil, fmt.Errorf("unexpected cached value %T", val)
	}
	return head(rows, limit), nil
}

// Close closes the Redis client and the backend.
func (s *Store) Close() error {
	return errors.Join(s.client.Close(), s.Store.Close())
}

// fill reads the window from the backend and caches it. An Append racing
// with the fill invalidates whatever the fill wrote.
func (s *Store) fill(ctx context.Context) ([]*store.Message, error) {
	before := s.gen.Load()

	rows, err := s.Store.Recent(ctx, s.window)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Msg("history cache write failed")
		return rows, nil
	}
	if s.gen.Load() != before {
		s.invalidate(ctx)
	}
	return rows, nil
}

func (s *Store) load(ctx context.Context) ([]*store.Message, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		return nil, err
	}

	var rows []*store.Message
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	return rows, nil
}

func (s *Store) invalidate(ctx context.Context) {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		s.log.Warn().Err(err).Msg("history cache invalidation failed")
	}
}

func head(rows []*store.Message, limit int) []*store.Message {
	if len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
