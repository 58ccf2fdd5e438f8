package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"crisisrelay/internal/model"
	"crisisrelay/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SetPref creates or replaces a preference.
func (s *SQLite) SetPref(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now,
	)
	if err != nil {
		return fmt.Errorf("set pref: %w", err)
	}
	return nil
}

// GetPref returns a single preference, or ErrNotFound.
func (s *SQLite) GetPref(ctx context.Context, key string) (*model.Pref, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, value, updated_at FROM prefs WHERE key = ?`, key,
	)
	var p model.Pref
	var updated string
	if err := row.Scan(&p.Key, &p.Value, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan pref: %w", err)
	}
	p.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &p, nil
}

// ListPrefs returns all preferences ordered by key.
func (s *SQLite) ListPrefs(ctx context.Context) ([]model.Pref, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, updated_at FROM prefs ORDER BY key`,
	)
	if err != nil {
		return nil, fmt.Errorf("query prefs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var prefs []model.Pref
	for rows.Next() {
		var p model.Pref
		var updated string
		if err := rows.Scan(&p.Key, &p.Value, &updated); err != nil {
			return nil, fmt.Errorf("scan pref: %w", err)
		}
		p.UpdatedAt, _ = time.Parse(timeLayout, updated)
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// DeletePref removes a preference. Deleting a missing key is not an error.
func (s *SQLite) DeletePref(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM prefs WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete pref: %w", err)
	}
	return nil
}
