// Package storage persists the turns reconstructed by the recording proxy
// so they can be inspected later.
package storage

import (
	"context"
)

// Driver defines the interface for persisting and retrieving turns in a
// storage backend.
type Driver interface {
	// Put stores a turn. Returns true if the turn was newly inserted,
	// false if a turn with the same ID already exists, in which case this
	// is a no-op.
	Put(ctx context.Context, turn *Turn) (bool, error)

	// Get retrieves a turn by its ID.
	Get(ctx context.Context, id string) (*Turn, error)

	// ListTurns returns every turn of a session, oldest first.
	ListTurns(ctx context.Context, sessionID string) ([]*Turn, error)

	// Latest returns the most recent turn of a session.
	Latest(ctx context.Context, sessionID string) (*Turn, error)

	// Sessions summarises every session with at least one turn, most
	// recently active first.
	Sessions(ctx context.Context) ([]SessionSummary, error)

	// Close closes the store and releases any resources.
	Close() error
}
