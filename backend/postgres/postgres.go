package postgres

import (
	"context"

	"github.com/aquilax/threadboard/backend/sqldb"
	_ "github.com/lib/pq"
)

const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	points INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS communities (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS posts (
	id BIGSERIAL PRIMARY KEY,
	community_id BIGINT REFERENCES communities(id),
	user_id BIGINT NOT NULL REFERENCES users(id),
	title TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS comments (
	id BIGSERIAL PRIMARY KEY,
	post_id BIGINT NOT NULL REFERENCES posts(id),
	parent_id BIGINT,
	user_id BIGINT NOT NULL REFERENCES users(id),
	text TEXT NOT NULL,
	points INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS comments_post_id ON comments(post_id)
`

// Open connects to postgres and applies the schema.
func Open(ctx context.Context, dsn string) (*sqldb.DB, error) {
	return sqldb.Open(ctx, "postgres", dsn, Schema)
}
