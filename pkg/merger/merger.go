// Package merger folds node updates and value snapshots into the shared
// state document, and routes the finished messages they carry to the
// transcript.
//
// Patches are shallow: every top-level key present in a patch replaces the
// matching document field wholesale. A patch is applied to a staged copy
// and committed only if every key decodes and validates, so a bad patch
// never leaves the document half updated.
package merger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"

	"github.com/papercomputeco/streamflow/pkg/event"
	"github.com/papercomputeco/streamflow/pkg/logger"
	"github.com/papercomputeco/streamflow/pkg/state"
	"github.com/papercomputeco/streamflow/pkg/transcript"
)

var (
	// ErrInvalidPatch is returned for a patch that is not a JSON object or
	// whose values fail to decode or validate.
	ErrInvalidPatch = errors.New("invalid state patch")

	// ErrUnknownField is returned for a patch naming a field the document
	// does not have.
	ErrUnknownField = state.ErrUnknownField
)

// Change reports what an ingest call modified.
type Change struct {
	State      bool
	Transcript bool
}

// Any reports whether anything changed.
func (c Change) Any() bool {
	return c.State || c.Transcript
}

// Merger exclusively owns the state document of one session. It is not
// safe for concurrent use.
type Merger struct {
	doc        state.Document
	transcript *transcript.Builder
	logger     *slog.Logger
}

// Option configures a Merger.
type Option func(*Merger)

// WithLogger sets the logger used for dropped patches.
func WithLogger(l *slog.Logger) Option {
	return func(m *Merger) {
		m.logger = logger.OrNop(l)
	}
}

// WithDocument seeds the document instead of starting from state.Default.
func WithDocument(doc state.Document) Option {
	return func(m *Merger) {
		m.doc = doc.Clone()
	}
}

// New returns a Merger that forwards finished messages to t.
func New(t *transcript.Builder, opts ...Option) *Merger {
	m := &Merger{
		doc:        state.Default(),
		transcript: t,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IngestNodeUpdates applies updates in order. Each update's patch is
// applied first, then its finished messages go to the transcript, so later
// nodes win on conflicting keys. A rejected patch is logged and skipped.
func (m *Merger) IngestNodeUpdates(updates []event.NodeUpdate) Change {
	var change Change
	for _, u := range updates {
		if u.StatePatch != nil {
			changed, err := m.ApplyPatch(u.StatePatch)
			if err != nil {
				m.logger.Debug("dropping state patch", "node", u.NodeName, "error", err)
			}
			change.State = change.State || changed
		}
		if len(u.FinalMessages) > 0 && m.transcript != nil {
			if m.transcript.IngestFinal(u.FinalMessages) {
				change.Transcript = true
			}
		}
	}
	return change
}

// ApplyPatch shallow-merges raw into the document. It reports whether the
// document changed. On error the document is untouched.
func (m *Merger) ApplyPatch(raw json.RawMessage) (bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false, fmt.Errorf("%w: patch is not an object", ErrInvalidPatch)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	next := m.doc.Clone()
	for _, key := range keys {
		if err := next.SetField(key, fields[key]); err != nil {
			if errors.Is(err, state.ErrUnknownField) {
				return false, err
			}
			return false, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
		}
	}

	if reflect.DeepEqual(next, m.doc) {
		return false, nil
	}
	m.doc = next
	return true, nil
}

// IngestValues applies a full-state snapshot's uiState with the same
// shallow merge as a node patch.
func (m *Merger) IngestValues(snapshot *event.ValuesSnapshot) (bool, error) {
	if snapshot == nil || snapshot.UIState == nil {
		return false, nil
	}
	return m.ApplyPatch(snapshot.UIState)
}

// RemoveNotification drops the notification with id from the document. It
// reports whether one was removed.
func (m *Merger) RemoveNotification(id string) bool {
	before := len(m.doc.Notifications)
	m.doc.Notifications = slices.DeleteFunc(slices.Clone(m.doc.Notifications), func(n state.Notification) bool {
		return n.ID == id
	})
	return len(m.doc.Notifications) != before
}

// AddNotification appends a locally created notification.
func (m *Merger) AddNotification(n state.Notification) {
	m.doc.Notifications = append(slices.Clone(m.doc.Notifications), n)
}

// Document returns a copy of the current document.
func (m *Merger) Document() state.Document {
	return m.doc.Clone()
}
