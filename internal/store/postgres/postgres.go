// Package postgres implements store.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vovakirdan/groupchat-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id         BIGSERIAL PRIMARY KEY,
	username   TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages (created_at DESC);
`

// PostgresStore implements store.Store for PostgreSQL.
type PostgresStore struct {
	pool  *pgxpool.Pool
	clock *store.Clock

	appendMu sync.Mutex
}

var _ store.Store = (*PostgresStore)(nil)

// IsURL reports whether dsn addresses a PostgreSQL server.
func IsURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// NormalizeURL rewrites the legacy postgres:// scheme that some hosting
// platforms hand out into postgresql://.
func NormalizeURL(dsn string) string {
	if rest, ok := strings.CutPrefix(dsn, "postgres://"); ok {
		return "postgresql://" + rest
	}
	return dsn
}

// New connects to databaseURL and applies the schema.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(NormalizeURL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	cfg.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &PostgresStore{pool: pool, clock: store.NewClock()}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks that the server is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Append persists a message to storage.
func (s *PostgresStore) Append(ctx context.Context, username, content string) (*store.Message, error) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	// timestamptz keeps microseconds.
	msg := &store.Message{
		Username:  username,
		Content:   content,
		CreatedAt: s.clock.Next().Truncate(time.Microsecond),
	}

	query := `
		INSERT INTO messages (username, content, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	if err := s.pool.QueryRow(ctx, query, msg.Username, msg.Content, msg.CreatedAt).Scan(&msg.ID); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	return msg, nil
}

// Recent retrieves the newest messages, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		return nil, store.ErrInvalidLimit
	}

	query := `
		SELECT id, username, content, created_at
		FROM messages
		ORDER BY id DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0, limit)
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.Username, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}
