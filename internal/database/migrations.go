// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/krre/ocean-backend/internal/logging"
)

// Migration is a versioned schema change. Migrations are append-only;
// never modify or remove an entry once a deployment has applied it.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         string
	AppliedAt   time.Time
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const initialSchema = `
CREATE TABLE IF NOT EXISTS user_groups (
	id SERIAL PRIMARY KEY,
	name TEXT,
	code TEXT NOT NULL UNIQUE
);

INSERT INTO user_groups (name, code) VALUES
	('Administrator', 'admin'),
	('User', 'user'),
	('Anonymous', 'anonym')
ON CONFLICT (code) DO NOTHING;

CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	token TEXT NOT NULL UNIQUE,
	group_id INTEGER NOT NULL REFERENCES user_groups (id),
	create_ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	update_ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	gender SMALLINT NOT NULL DEFAULT 0,
	blocked BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS mandels (
	id SERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	user_id INTEGER NOT NULL REFERENCES users (id),
	images JSONB NOT NULL DEFAULT '[]',
	videos JSONB NOT NULL DEFAULT '[]',
	links JSONB NOT NULL DEFAULT '[]',
	create_ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	update_ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	title_mode INTEGER NOT NULL DEFAULT 0,
	what TEXT NOT NULL DEFAULT '',
	before TEXT NOT NULL DEFAULT '',
	after TEXT NOT NULL DEFAULT '',
	trash BOOLEAN NOT NULL DEFAULT FALSE,
	automatic_trash BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS categories (
	id SERIAL PRIMARY KEY,
	mandela_id INTEGER NOT NULL REFERENCES mandels (id) ON DELETE CASCADE,
	number SMALLINT NOT NULL
);

CREATE TABLE IF NOT EXISTS marks (
	id SERIAL PRIMARY KEY,
	mandela_id INTEGER NOT NULL REFERENCES mandels (id) ON DELETE CASCADE,
	user_id INTEGER NOT NULL REFERENCES users (id),
	create_ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (mandela_id, user_id)
);

CREATE TABLE IF NOT EXISTS votes (
	id SERIAL PRIMARY KEY,
	mandela_id INTEGER NOT NULL REFERENCES mandels (id) ON DELETE CASCADE,
	user_id INTEGER NOT NULL REFERENCES users (id),
	vote SMALLINT NOT NULL,
	create_ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (mandela_id, user_id)
);

CREATE TABLE IF NOT EXISTS comments (
	id SERIAL PRIMARY KEY,
	mandela_id INTEGER NOT NULL REFERENCES mandels (id) ON DELETE CASCADE,
	user_id INTEGER NOT NULL REFERENCES users (id),
	message TEXT NOT NULL,
	create_ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	update_ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS forum_categories (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	order_index SMALLINT NOT NULL DEFAULT 0,
	create_ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	update_ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS forum_sections (
	id SERIAL PRIMARY KEY,
	category_id INTEGER NOT NULL REFERENCES forum_categories (id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	order_index SMALLINT NOT NULL DEFAULT 0,
	create_ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	update_ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS forum_topics (
	id SERIAL PRIMARY KEY,
	section_id INTEGER NOT NULL REFERENCES forum_sections (id) ON DELETE CASCADE,
	user_id INTEGER NOT NULL REFERENCES users (id),
	name TEXT NOT NULL,
	create_ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	update_ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_post_id INTEGER,
	last_post_create_ts TIMESTAMPTZ,
	type SMALLINT NOT NULL DEFAULT 0,
	poll_selection_type SMALLINT
);

CREATE TABLE IF NOT EXISTS forum_poll_answers (
	id SERIAL PRIMARY KEY,
	topic_id INTEGER NOT NULL REFERENCES forum_topics (id) ON DELETE CASCADE,
	answer TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS forum_poll_votes (
	id SERIAL PRIMARY KEY,
	topic_id INTEGER NOT NULL REFERENCES forum_topics (id) ON DELETE CASCADE,
	answer_id INTEGER NOT NULL REFERENCES forum_poll_answers (id) ON DELETE CASCADE,
	user_id INTEGER NOT NULL REFERENCES users (id),
	create_ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS forum_posts (
	id SERIAL PRIMARY KEY,
	topic_id INTEGER NOT NULL REFERENCES forum_topics (id) ON DELETE CASCADE,
	user_id INTEGER NOT NULL REFERENCES users (id),
	post TEXT NOT NULL,
	create_ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	update_ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS likes (
	id SERIAL PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users (id),
	comment_id INTEGER REFERENCES comments (id) ON DELETE CASCADE,
	post_id INTEGER REFERENCES forum_posts (id) ON DELETE CASCADE,
	value SMALLINT NOT NULL,
	create_ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS "values" (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	value JSONB
);

CREATE INDEX IF NOT EXISTS idx_mandels_trash ON mandels (trash);
CREATE INDEX IF NOT EXISTS idx_comments_mandela ON comments (mandela_id);
CREATE INDEX IF NOT EXISTS idx_forum_posts_topic ON forum_posts (topic_id);
CREATE INDEX IF NOT EXISTS idx_forum_topics_section ON forum_topics (section_id);
CREATE INDEX IF NOT EXISTS idx_mandels_search ON mandels
	USING GIN (to_tsvector('russian', title || ' ' || what || ' ' || before || ' ' || after || ' ' || description));
`

func migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Name:        "initial_schema",
			Description: "Create content, forum, voting and auxiliary tables",
			SQL:         initialSchema,
		},
	}
}

func (db *DB) runMigrations(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	count := 0
	for _, m := range migrations() {
		if _, ok := applied[m.Version]; ok {
			continue
		}

		if _, err := db.pool.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := db.pool.Exec(ctx,
			`INSERT INTO schema_migrations (version, name, description) VALUES ($1, $2, $3)`,
			m.Version, m.Name, m.Description); err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
		}
		count++
	}

	if count > 0 {
		logging.Info().Int("count", count).Msg("Applied database migrations")
	}
	return nil
}

func (db *DB) appliedMigrations(ctx context.Context) (map[int]Migration, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT version, name, description, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]Migration)
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[m.Version] = m
	}
	return applied, rows.Err()
}

// SchemaVersion returns the highest applied migration version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := db.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
