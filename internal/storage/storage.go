// Package storage defines the persistence interface and its implementations.
//
// Only user preferences are persisted: incidents are rebuilt from the
// upstream feed on every fetch and the offline queue lives with its
// owner, the dashboard shell.
package storage

import (
	"context"
	"errors"

	"crisisrelay/internal/model"
)

// ErrNotFound is returned when a preference key does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	SetPref(ctx context.Context, key, value string) error
	GetPref(ctx context.Context, key string) (*model.Pref, error)
	ListPrefs(ctx context.Context) ([]model.Pref, error)
	DeletePref(ctx context.Context, key string) error

	Close() error
}
