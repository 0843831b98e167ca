package sqlite

import (
	"context"

	"github.com/aquilax/threadboard/backend/sqldb"
	_ "modernc.org/sqlite"
)

const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	points INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS communities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	community_id INTEGER REFERENCES communities(id),
	user_id INTEGER NOT NULL REFERENCES users(id),
	title TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS comments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	post_id INTEGER NOT NULL REFERENCES posts(id),
	parent_id INTEGER REFERENCES comments(id),
	user_id INTEGER NOT NULL REFERENCES users(id),
	text TEXT NOT NULL,
	points INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS comments_post_id ON comments(post_id)
`

// Open opens a sqlite database file, or ":memory:", and applies the schema.
func Open(ctx context.Context, dsn string) (*sqldb.DB, error) {
	db, err := sqldb.Open(ctx, "sqlite", dsn, "")
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer and every ":memory:" connection is its
	// own database.
	db.SQL().SetMaxOpenConns(1)
	if _, err := db.SQL().ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.Migrate(ctx, Schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
