// Package prefs persists board preferences and local todo lists in SQLite.
package prefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"famboard/internal/timeutil"
)

var ErrNotFound = errors.New("preference not found")

const prefsKey = "board.prefs"

// Prefs are the user toggles that survive restarts.
type Prefs struct {
	// VisibleSources lists the calendar IDs shown on the board.
	VisibleSources []string `json:"visible_sources"`
	// Persons narrows the board to these people; empty shows everyone.
	Persons []string `json:"persons"`
}

// DB wraps the SQLite database. It is safe for concurrent use.
type DB struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens (creating if needed) the database at path and migrates it.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string, clock timeutil.Clock) (*DB, error) {
	if path == "" {
		return nil, errors.New("prefs: database path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("prefs: %w", err)
		}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}

	// modernc.org/sqlite registers the "sqlite" driver.
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("prefs: open %s: %w", path, err)
	}
	// One connection: writers are serialized, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("prefs: %s: %w", p, err)
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prefs: migrate: %w", err)
	}
	return &DB{db: db, clock: clock}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS todo_items (
			list_id TEXT NOT NULL,
			uid TEXT NOT NULL,
			summary TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			due_kind TEXT NOT NULL DEFAULT '',
			due_value TEXT NOT NULL DEFAULT '',
			created_at_unixms INTEGER NOT NULL,
			PRIMARY KEY(list_id, uid)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_todo_items_list ON todo_items(list_id, created_at_unixms);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Get returns the raw value stored under key.
func (d *DB) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := d.db.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("prefs: get %q: %w", key, err)
	}
	return v, nil
}

// Put stores value under key, replacing any previous value.
func (d *DB) Put(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO kv (k, v, updated_at_unixms) VALUES (?, ?, ?)
		 ON CONFLICT(k) DO UPDATE SET v = excluded.v, updated_at_unixms = excluded.updated_at_unixms`,
		key, value, d.clock.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("prefs: put %q: %w", key, err)
	}
	return nil
}

// Load returns the saved board preferences, or ErrNotFound before the first
// Save.
func (d *DB) Load(ctx context.Context) (Prefs, error) {
	raw, err := d.Get(ctx, prefsKey)
	if err != nil {
		return Prefs{}, err
	}
	var p Prefs
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Prefs{}, fmt.Errorf("prefs: decode: %w", err)
	}
	return p, nil
}

func (d *DB) Save(ctx context.Context, p Prefs) error {
	if p.VisibleSources == nil {
		p.VisibleSources = []string{}
	}
	if p.Persons == nil {
		p.Persons = []string{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("prefs: encode: %w", err)
	}
	return d.Put(ctx, prefsKey, string(data))
}
