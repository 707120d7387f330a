package sessiondb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the local SQLite database that holds session state: the bearer
// token, named cursors, and the last issued referral links for offline
// display. Server data is never persisted here; the cache is authoritative
// only for a process lifetime.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS session (
	  id INTEGER PRIMARY KEY CHECK (id=1),
	  access_token TEXT NOT NULL,
	  updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS cursors (
	  name TEXT PRIMARY KEY,
	  value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS referral_links (
	  code TEXT PRIMARY KEY,
	  invite_url TEXT NOT NULL,
	  created_at INTEGER NOT NULL
	);
	`)
	return err
}

// SaveToken stores the bearer token for subsequent requests.
func (d *DB) SaveToken(ctx context.Context, token string) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO session(id, access_token, updated_at) VALUES(1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET access_token=excluded.access_token, updated_at=excluded.updated_at`,
		token, time.Now().UTC().Unix())
	return err
}

// LoadToken returns the stored token, or "" when no session exists. A missing
// token is not an error: requests are simply sent unauthenticated.
func (d *DB) LoadToken(ctx context.Context) (string, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT access_token FROM session WHERE id=1`)
	var tok string
	if err := row.Scan(&tok); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return tok, nil
}

// ClearToken drops the session (logout).
func (d *DB) ClearToken(ctx context.Context) error {
	_, err := d.sql.ExecContext(ctx, `DELETE FROM session WHERE id=1`)
	return err
}

func (d *DB) SaveCursor(ctx context.Context, name, value string) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO cursors(name, value) VALUES(?, ?)
		 ON CONFLICT(name) DO UPDATE SET value=excluded.value`, name, value)
	return err
}

func (d *DB) LoadCursor(ctx context.Context, name string) (string, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT value FROM cursors WHERE name=?`, name)
	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

// SaveReferralLink remembers an issued link so it can be shown offline.
func (d *DB) SaveReferralLink(ctx context.Context, code, inviteURL string, createdAt time.Time) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO referral_links(code, invite_url, created_at) VALUES(?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET invite_url=excluded.invite_url, created_at=excluded.created_at`,
		code, inviteURL, createdAt.UTC().Unix())
	return err
}

// LatestReferralLink returns the most recently issued link, ok=false when
// none was saved.
func (d *DB) LatestReferralLink(ctx context.Context) (code, inviteURL string, ok bool, err error) {
	row := d.sql.QueryRowContext(ctx,
		`SELECT code, invite_url FROM referral_links ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	if err := row.Scan(&code, &inviteURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", false, nil
		}
		return "", "", false, err
	}
	return code, inviteURL, true, nil
}
