// Package postgres stores conversations and usage directly in the Postgres
// database behind the Supabase project.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema matches the Supabase tables. It is only applied by EnsureSchema,
// for databases that were not provisioned by Supabase.
const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id uuid NOT NULL,
	title text NOT NULL,
	category text,
	created_at timestamptz NOT NULL DEFAULT now(),
	last_message_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS chat_sessions_user_activity
	ON chat_sessions (user_id, last_message_at DESC);

CREATE TABLE IF NOT EXISTS chat_messages (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	session_id uuid NOT NULL REFERENCES chat_sessions (id) ON DELETE CASCADE,
	user_id uuid NOT NULL,
	content text NOT NULL,
	is_ai boolean NOT NULL DEFAULT false,
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS chat_messages_session_created
	ON chat_messages (session_id, created_at);

CREATE TABLE IF NOT EXISTS user_usage (
	user_id uuid PRIMARY KEY,
	queries_used bigint NOT NULL DEFAULT 0,
	words_used bigint NOT NULL DEFAULT 0,
	subscription_tier text NOT NULL DEFAULT 'free'
);
`

type DB struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and checks the connection.
func Open(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &DB{pool: pool}, nil
}

// EnsureSchema creates the tables if they do not exist.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (d *DB) Close() {
	d.pool.Close()
}

func (d *DB) Sessions(userID string) *SessionStore {
	return &SessionStore{pool: d.pool, userID: userID}
}

func (d *DB) Usage() *UsageStore {
	return &UsageStore{pool: d.pool}
}
