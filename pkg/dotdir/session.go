package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/papercomputeco/streamflow/pkg/state"
	"github.com/papercomputeco/streamflow/pkg/transcript"
)

const (
	sessionFile = "session.json"
)

// SessionState is a chat session saved between runs.
type SessionState struct {
	// SessionID is sent as the session header so the producer and any
	// recording proxy see one continuous session.
	SessionID string `json:"sessionId"`

	// Transcript is the visible conversation, oldest first.
	Transcript []transcript.Entry `json:"transcript"`

	// Document is the state document after the last turn.
	Document state.Document `json:"uiState"`

	SavedAt time.Time `json:"savedAt"`
}

// LoadSessionState loads the saved session from a target .streamflow/session.json.
// Returns nil, nil if no session has been saved.
// If overrideDir is non-empty, it is used instead of the default location.
func (m *Manager) LoadSessionState(overrideDir string) (*SessionState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, sessionFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session state: %w", err)
	}

	s := &SessionState{Document: state.Default()}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing session state: %w", err)
	}

	return s, nil
}

// SaveSessionState persists the session to a target .streamflow/session.json.
func (m *Manager) SaveSessionState(s *SessionState, overrideDir string) error {
	if s == nil {
		return errors.New("cannot save nil session state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session state: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, sessionFile), data, 0o600); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}

	return nil
}

// ClearSessionState removes the saved session so the next chat starts fresh.
// Returns nil if nothing was saved.
func (m *Manager) ClearSessionState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, sessionFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing session state: %w", err)
	}

	return nil
}
