// Package db provides the persistence layer used by the application. It wraps
// a SQL database holding users and the playlists generated for them. SQLite is
// used for file paths (and ":memory:" in tests) while postgres:// URLs are
// served by lib/pq. Callers open a single DB with New and share it between
// requests; *sql.DB handles pooling.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("db: not found")

type dialect int

const (
	sqlite dialect = iota
	postgres
)

// DB wraps a sql.DB connection and exposes helper methods for the
// application's persistence layer.
type DB struct {
	*sql.DB
	dialect dialect
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		spotify_id TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		email TEXT,
		password_hash TEXT NOT NULL DEFAULT '',
		access_token TEXT,
		refresh_token TEXT,
		token_expiry TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
	`CREATE TABLE IF NOT EXISTS playlists (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL REFERENCES users(id),
		mood TEXT NOT NULL,
		language TEXT NOT NULL,
		spotify_playlist_id TEXT,
		name TEXT NOT NULL,
		track_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_playlists_user ON playlists(user_id, created_at)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		spotify_id TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		email TEXT,
		password_hash TEXT NOT NULL DEFAULT '',
		access_token TEXT,
		refresh_token TEXT,
		token_expiry TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
	`CREATE TABLE IF NOT EXISTS playlists (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL REFERENCES users(id),
		mood TEXT NOT NULL,
		language TEXT NOT NULL,
		spotify_playlist_id TEXT,
		name TEXT NOT NULL,
		track_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_playlists_user ON playlists(user_id, created_at)`,
}

// New opens the database named by dsn. A postgres:// or postgresql:// URL
// selects PostgreSQL, anything else is treated as a SQLite path. The schema is
// created when missing.
func New(dsn string) (*DB, error) {
	driver, d := "sqlite3", sqlite
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver, d = "postgres", postgres
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	stmts := sqliteSchema
	if d == sqlite {
		// Every connection to ":memory:" gets its own database.
		if dsn == ":memory:" {
			conn.SetMaxOpenConns(1)
		}
	} else {
		stmts = postgresSchema
	}
	for _, s := range stmts {
		if _, err := conn.Exec(s); err != nil {
			conn.Close()
			return nil, fmt.Errorf("init db: %w", err)
		}
	}
	return &DB{DB: conn, dialect: d}, nil
}

// rebind rewrites '?' placeholders into the $n form expected by PostgreSQL.
func (db *DB) rebind(query string) string {
	if db.dialect != postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.ExecContext(ctx, db.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.QueryRowContext(ctx, db.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.QueryContext(ctx, db.rebind(query), args...)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
