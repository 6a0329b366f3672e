package storage

import (
	"errors"
	"time"

	"github.com/papercomputeco/streamflow/pkg/state"
	"github.com/papercomputeco/streamflow/pkg/transcript"
)

// Status is the outcome of a recorded turn.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Turn is one request/response exchange as reconstructed by the recording
// proxy.
type Turn struct {
	ID          string `json:"id"`
	SessionID   string `json:"sessionId"`
	UserMessage string `json:"userMessage"`

	// Reply holds the assistant entries the turn produced.
	Reply []transcript.Entry `json:"reply"`

	// Document is the state document after the turn.
	Document state.Document `json:"uiState"`

	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`

	// Bytes is the size of the response stream.
	Bytes int64 `json:"bytes"`

	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
}

// Duration is the wall time of the turn.
func (t *Turn) Duration() time.Duration {
	return t.CompletedAt.Sub(t.StartedAt)
}

// Validate checks the fields every driver requires.
func (t *Turn) Validate() error {
	if t == nil {
		return errors.New("cannot store nil turn")
	}
	if t.ID == "" {
		return errors.New("turn has no id")
	}
	if t.SessionID == "" {
		return errors.New("turn has no session id")
	}
	return nil
}

// SessionSummary describes one recorded session.
type SessionSummary struct {
	ID        string    `json:"id"`
	Turns     int       `json:"turns"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}
