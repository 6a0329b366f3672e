// Package inmemory provides a map-backed storage driver for tests and for
// running the proxy without a database.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/papercomputeco/streamflow/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of turns
	mu sync.RWMutex

	// turns is the in memory map of turns keyed by turn ID
	turns map[string]*storage.Turn
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		turns: make(map[string]*storage.Turn),
	}
}

// Put stores a turn. Returns true if the turn was newly inserted,
// false if it already existed.
func (d *Driver) Put(_ context.Context, turn *storage.Turn) (bool, error) {
	if err := turn.Validate(); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.turns[turn.ID]; ok {
		return false, nil
	}

	stored := *turn
	stored.Document = turn.Document.Clone()
	stored.Reply = append(stored.Reply[:0:0], turn.Reply...)
	d.turns[turn.ID] = &stored
	return true, nil
}

// Get retrieves a turn by its ID.
func (d *Driver) Get(_ context.Context, id string) (*storage.Turn, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	turn, ok := d.turns[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	out := *turn
	return &out, nil
}

// ListTurns returns the turns of a session ordered by start time.
func (d *Driver) ListTurns(_ context.Context, sessionID string) ([]*storage.Turn, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*storage.Turn
	for _, turn := range d.turns {
		if turn.SessionID == sessionID {
			out := *turn
			result = append(result, &out)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result, nil
}

// Latest returns the most recently started turn of a session.
func (d *Driver) Latest(ctx context.Context, sessionID string) (*storage.Turn, error) {
	turns, err := d.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, storage.NotFoundError{ID: sessionID}
	}
	return turns[len(turns)-1], nil
}

// Sessions summarises every recorded session, most recently active first.
func (d *Driver) Sessions(_ context.Context) ([]storage.SessionSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	byID := make(map[string]*storage.SessionSummary)
	for _, turn := range d.turns {
		s, ok := byID[turn.SessionID]
		if !ok {
			s = &storage.SessionSummary{
				ID:        turn.SessionID,
				FirstSeen: turn.StartedAt,
				LastSeen:  turn.StartedAt,
			}
			byID[turn.SessionID] = s
		}
		s.Turns++
		if turn.StartedAt.Before(s.FirstSeen) {
			s.FirstSeen = turn.StartedAt
		}
		if turn.StartedAt.After(s.LastSeen) {
			s.LastSeen = turn.StartedAt
		}
	}

	result := make([]storage.SessionSummary, 0, len(byID))
	for _, s := range byID {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LastSeen.Equal(result[j].LastSeen) {
			return result[i].ID < result[j].ID
		}
		return result[i].LastSeen.After(result[j].LastSeen)
	})
	return result, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
