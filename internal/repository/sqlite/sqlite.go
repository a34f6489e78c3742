// Package sqlite implements the repository contracts on an embedded SQLite
// database (modernc.org/sqlite, pure Go, no cgo).
//
// Videos, comments and playlists live in their own tables and point at
// their account through owner_id. Tags are stored as a JSON array column
// and searched with json_each, so a video row never needs a second table
// to be read back whole.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/watchme/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// SQLite's LIKE folds ASCII letters only. fold(x) lowercases with Go's
// Unicode rules so "ÉTÉ" matches "été"; search compares fold(col) LIKE fold(?).
func init() {
	msqlite.MustRegisterDeterministicScalarFunction("fold", 1, foldFunc)
}

func foldFunc(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// DB wraps the connection pool. All repository methods hang off it.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and applies migrations.
// Use ":memory:" for tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite allows one writer at a time, and every pooled connection to
	// ":memory:" would be a separate empty database.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// dsn appends the per-connection pragmas so a reconnect gets them too.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	steps := []struct {
		name string
		sql  string
	}{
		{"accounts", `
			CREATE TABLE IF NOT EXISTS accounts (
				id             TEXT PRIMARY KEY,
				username       TEXT NOT NULL UNIQUE,
				email          TEXT NOT NULL DEFAULT '',
				first_name     TEXT NOT NULL DEFAULT '',
				last_name      TEXT NOT NULL DEFAULT '',
				name           TEXT NOT NULL DEFAULT '',
				about          TEXT NOT NULL DEFAULT '',
				avatar_url     TEXT NOT NULL DEFAULT '',
				profile_url    TEXT NOT NULL DEFAULT '',
				permission     INTEGER NOT NULL DEFAULT 1,
				auth_kind      TEXT NOT NULL,
				password_hash  TEXT NOT NULL DEFAULT '',
				provider       TEXT NOT NULL DEFAULT '',
				provider_id    INTEGER NOT NULL DEFAULT 0,
				provider_token TEXT NOT NULL DEFAULT '',
				last_login_at  DATETIME,
				created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_local_email
				ON accounts(email) WHERE auth_kind = 'local' AND email <> '';
			CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_provider
				ON accounts(provider, provider_id) WHERE auth_kind = 'external';
		`},
		{"videos", `
			CREATE TABLE IF NOT EXISTS videos (
				id           TEXT PRIMARY KEY,
				owner_id     TEXT NOT NULL REFERENCES accounts(id),
				title        TEXT NOT NULL,
				description  TEXT NOT NULL DEFAULT '',
				tags         TEXT NOT NULL DEFAULT '[]',
				path         TEXT NOT NULL,
				thumb        TEXT NOT NULL DEFAULT '',
				cover        TEXT NOT NULL DEFAULT '',
				visits       INTEGER NOT NULL DEFAULT 0,
				stat         INTEGER NOT NULL DEFAULT 1,
				media_status TEXT NOT NULL DEFAULT 'pending',
				upload_date  DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_videos_owner ON videos(owner_id);
			CREATE INDEX IF NOT EXISTS idx_videos_stat_date ON videos(stat, upload_date);
			CREATE INDEX IF NOT EXISTS idx_videos_media_status ON videos(media_status);
		`},
		{"comments", `
			CREATE TABLE IF NOT EXISTS comments (
				id       TEXT PRIMARY KEY,
				owner_id TEXT NOT NULL REFERENCES accounts(id),
				video_id TEXT NOT NULL,
				text     TEXT NOT NULL,
				date     DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_comments_video ON comments(video_id, owner_id);
			CREATE INDEX IF NOT EXISTS idx_comments_owner ON comments(owner_id);
		`},
		{"playlists", `
			CREATE TABLE IF NOT EXISTS playlists (
				id         TEXT PRIMARY KEY,
				owner_id   TEXT NOT NULL REFERENCES accounts(id),
				name       TEXT NOT NULL,
				is_private INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_playlists_owner ON playlists(owner_id);

			CREATE TABLE IF NOT EXISTS playlist_entries (
				playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
				video_id    TEXT NOT NULL,
				position    INTEGER NOT NULL,
				title       TEXT NOT NULL DEFAULT '',
				author      TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				thumb       TEXT NOT NULL DEFAULT '',
				cover       TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (playlist_id, video_id)
			);
		`},
	}

	for _, step := range steps {
		if _, err := db.conn.Exec(step.sql); err != nil {
			return fmt.Errorf("creating %s: %w", step.name, err)
		}
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// execOne runs a write that must touch exactly one row; zero rows means
// the target does not exist.
func (db *DB) execOne(ctx context.Context, notFound error, query string, args ...any) error {
	result, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}

	return nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
