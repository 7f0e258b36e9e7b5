// Package db provides the Postgres connection, schema migration, and the data
// access layer behind the content gateway and comment backend.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// Connect opens a Postgres connection for the given DSN. The caller decides
// whether an unreachable database is fatal; degraded mode runs without one.
func Connect(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// Migrate applies idempotent schema changes for all required tables, indices,
// and the comment notify trigger. Used as the fallback when the versioned
// migrations directory is not available.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS streamers (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT NOT NULL,
			platform TEXT NOT NULL DEFAULT 'Twitch',
			status TEXT NOT NULL DEFAULT 'offline',
			lat DOUBLE PRECISION NOT NULL DEFAULT 0,
			lng DOUBLE PRECISION NOT NULL DEFAULT 0,
			location_name TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			votes INTEGER NOT NULL DEFAULT 0,
			avatar TEXT NOT NULL DEFAULT '',
			bio TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS clips (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			streamer_name TEXT NOT NULL,
			title TEXT NOT NULL,
			thumbnail TEXT NOT NULL DEFAULT '',
			video_url TEXT NOT NULL DEFAULT '',
			votes INTEGER NOT NULL DEFAULT 0,
			tags JSONB NOT NULL DEFAULT '[]',
			user_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// Only backend-durable clips get remote threads; no foreign key so a
		// thread survives its clip being deleted out of band.
		`CREATE TABLE IF NOT EXISTS comments (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			clip_id UUID NOT NULL,
			user_id TEXT,
			username TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_clips_created_at ON clips(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_clip_created ON comments(clip_id, created_at)`,
		`CREATE OR REPLACE FUNCTION notify_comment_insert() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('comments_insert', row_to_json(NEW)::text);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS comments_insert_notify ON comments`,
		`CREATE TRIGGER comments_insert_notify AFTER INSERT ON comments
			FOR EACH ROW EXECUTE FUNCTION notify_comment_insert()`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres migrate step %d failed: %w", i, err)
		}
	}
	return nil
}
