// Package session ties the stream reconstruction pipeline together for one
// conversation: frames are read from the response body, classified, and
// folded into the transcript and the shared state document, while the
// notification manager expires what the assistant pushed.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/streamflow/pkg/event"
	"github.com/papercomputeco/streamflow/pkg/logger"
	"github.com/papercomputeco/streamflow/pkg/merger"
	"github.com/papercomputeco/streamflow/pkg/notify"
	"github.com/papercomputeco/streamflow/pkg/sse"
	"github.com/papercomputeco/streamflow/pkg/state"
	"github.com/papercomputeco/streamflow/pkg/transcript"
)

// Header carries the session id between the client, the recording proxy
// and the producer.
const Header = "X-Streamflow-Session"

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	SessionID     string               `json:"sessionId"`
	Transcript    []transcript.Entry   `json:"transcript"`
	Document      state.Document       `json:"uiState"`
	Notifications []state.Notification `json:"visibleNotifications"`
	Streaming     bool                 `json:"streaming"`
}

// Listener is called after every change. It may run on a notification
// timer goroutine, never with the session lock held.
type Listener func(Snapshot)

// Session is one conversation. It is safe for concurrent use.
type Session struct {
	id     string
	logger *slog.Logger
	clock  notify.Clock

	mu         sync.Mutex
	transcript *transcript.Builder
	merger     *merger.Merger
	streaming  bool

	notify *notify.Manager

	listenerMu sync.RWMutex
	listeners  []Listener
}

type options struct {
	id           string
	responseNode string
	ttl          time.Duration
	clock        notify.Clock
	logger       *slog.Logger
	document     *state.Document
	entries      []transcript.Entry
	listeners    []Listener
}

// Option configures a Session.
type Option func(*options)

// WithID sets the session id. A random UUID is used otherwise.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

// WithResponseNode sets the graph node whose chunks are shown.
func WithResponseNode(node string) Option {
	return func(o *options) { o.responseNode = node }
}

// WithNotificationTTL sets how long notifications stay visible.
func WithNotificationTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithClock substitutes the clock used for notification expiry and
// synthetic notification timestamps.
func WithClock(c notify.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDocument seeds the state document.
func WithDocument(doc state.Document) Option {
	return func(o *options) { o.document = &doc }
}

// WithTranscript seeds the transcript.
func WithTranscript(entries []transcript.Entry) Option {
	return func(o *options) { o.entries = entries }
}

// WithListener registers a change listener at construction time.
func WithListener(l Listener) Option {
	return func(o *options) { o.listeners = append(o.listeners, l) }
}

// New returns a Session with an empty transcript and the default document
// unless seeded.
func New(opts ...Option) *Session {
	o := &options{
		responseNode: transcript.DefaultResponseNode,
		ttl:          notify.DefaultTTL,
		clock:        notify.RealClock{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}
	log := logger.OrNop(o.logger).With("session", o.id)

	s := &Session{
		id:        o.id,
		logger:    log,
		clock:     o.clock,
		listeners: o.listeners,
	}
	s.transcript = transcript.NewBuilder(
		transcript.WithResponseNode(o.responseNode),
		transcript.WithLogger(log),
		transcript.WithEntries(o.entries),
	)

	mergerOpts := []merger.Option{merger.WithLogger(log)}
	if o.document != nil {
		mergerOpts = append(mergerOpts, merger.WithDocument(*o.document))
	}
	s.merger = merger.New(s.transcript, mergerOpts...)

	s.notify = notify.New(
		notify.WithTTL(o.ttl),
		notify.WithClock(o.clock),
		notify.WithLogger(log),
		notify.WithOnDismiss(s.removeNotification),
	)
	s.notify.Observe(s.merger.Document().Notifications)

	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// OnChange registers a listener.
func (s *Session) OnChange(l Listener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// BeginTurn records the user's message and opens a new turn.
func (s *Session) BeginTurn(userContent string) {
	s.mu.Lock()
	s.transcript.BeginTurn(userContent)
	s.streaming = true
	s.mu.Unlock()

	s.emit()
}

// Consume reads the response stream r until the done sentinel, end of
// input, a producer error record, or ctx is done. Records are applied in
// arrival order on the calling goroutine.
//
// A read failure fails the turn with transcript.FailureMessage and is
// returned wrapped. Cancellation closes the turn and returns ctx.Err().
//
// Consume never closes r. The caller must close it, also after
// cancellation, or the goroutine reading from it stays blocked.
func (s *Session) Consume(ctx context.Context, r io.Reader) error {
	reader := sse.NewReader(r, nil)
	defer reader.Close()
	return s.consume(ctx, reader)
}

// ConsumeTee is Consume that also writes every byte of r to dest,
// including anything after the point where reconstruction stopped. As with
// Consume, the caller closes r.
func (s *Session) ConsumeTee(ctx context.Context, r io.Reader, dest io.Writer) error {
	reader := sse.NewReader(r, dest)
	defer reader.Close()

	if err := s.consume(ctx, reader); err != nil {
		return err
	}
	if err := reader.Drain(ctx); err != nil {
		return fmt.Errorf("draining stream: %w", err)
	}
	return nil
}

func (s *Session) consume(ctx context.Context, reader *sse.Reader) error {
	for {
		frame, err := reader.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.EndTurn()
				return err
			}
			s.Fail(transcript.FailureMessage)
			return fmt.Errorf("reading stream: %w", err)
		}
		if frame == nil {
			s.EndTurn()
			return nil
		}

		rec, err := event.DecodeRecord([]byte(frame.Data))
		if err != nil {
			s.logger.Debug("dropping undecodable record", "error", err)
			continue
		}
		if done := s.Apply(rec); done {
			s.EndTurn()
			return nil
		}
	}
}

// Apply folds one record into the session and reports whether the record
// ends the stream, which only producer error records do.
func (s *Session) Apply(rec event.Record) bool {
	done := false

	s.mu.Lock()
	var change merger.Change
	switch rec.Mode {
	case event.ModeTokenDelta:
		if rec.Chunk != nil {
			change.Transcript = s.transcript.IngestDelta(*rec.Chunk)
		}
	case event.ModeNodeUpdate:
		change = s.merger.IngestNodeUpdates(rec.Updates)
	case event.ModeValues:
		changed, err := s.merger.IngestValues(rec.Values)
		if err != nil {
			s.logger.Debug("dropping values snapshot", "error", err)
		}
		change.State = changed
	case event.ModeError:
		msg := "unknown error"
		if rec.Err != nil {
			msg = rec.Err.Message
		}
		s.logger.Warn("producer reported an error", "message", msg)
		s.merger.AddNotification(s.errorNotification(msg))
		change.State = true
		done = true
	}
	var list []state.Notification
	if change.State {
		// Dismissal is terminal, so ids the producer re-sends after the
		// user dismissed them are dropped from the document again.
		for _, n := range s.merger.Document().Notifications {
			if s.notify.Dismissed(n.ID) {
				s.merger.RemoveNotification(n.ID)
			}
		}
		list = s.merger.Document().Notifications
	}
	s.mu.Unlock()

	if change.State {
		s.notify.Observe(list)
	}
	if change.Any() {
		s.emit()
	}
	return done
}

// Fail ends the turn with one assistant entry carrying message. The state
// document is left untouched.
func (s *Session) Fail(message string) {
	s.mu.Lock()
	s.transcript.Fail(message)
	s.streaming = false
	s.mu.Unlock()

	s.emit()
}

// EndTurn closes the turn, keeping whatever text was streamed.
func (s *Session) EndTurn() {
	s.mu.Lock()
	s.transcript.CloseTurn()
	s.streaming = false
	s.mu.Unlock()

	s.emit()
}

// ClearSearch resets the search results and query.
func (s *Session) ClearSearch() {
	s.mu.Lock()
	changed, err := s.merger.ApplyPatch(json.RawMessage(`{"searchResults":[],"searchQuery":null}`))
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("clearing search", "error", err)
		return
	}
	if changed {
		s.emit()
	}
}

// DismissNotification dismisses a notification by id. It reports whether
// anything was removed.
func (s *Session) DismissNotification(id string) bool {
	if s.notify.Dismiss(id) {
		return true
	}

	// Not visible locally (already expired, or the manager is closed), but
	// it may still be listed in the document.
	s.mu.Lock()
	removed := s.merger.RemoveNotification(id)
	s.mu.Unlock()
	if removed {
		s.emit()
	}
	return removed
}

func (s *Session) removeNotification(id string) {
	s.mu.Lock()
	removed := s.merger.RemoveNotification(id)
	s.mu.Unlock()

	if removed {
		s.emit()
	}
}

func (s *Session) errorNotification(msg string) state.Notification {
	return state.Notification{
		ID:        "error-" + uuid.NewString(),
		Type:      state.NotificationError,
		Message:   msg,
		Timestamp: s.clock.Now().UTC().Format(time.RFC3339),
	}
}

// Transcript returns a copy of the transcript.
func (s *Session) Transcript() []transcript.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Entries()
}

// Document returns a copy of the state document.
func (s *Session) Document() state.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.merger.Document()
}

// Streaming reports whether a turn is in progress.
func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// Snapshot returns a copy of the whole session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		SessionID:  s.id,
		Transcript: s.transcript.Entries(),
		Document:   s.merger.Document(),
		Streaming:  s.streaming,
	}
	s.mu.Unlock()

	snap.Notifications = s.notify.Visible()
	return snap
}

// Reset clears the transcript. The document and notifications are kept.
func (s *Session) Reset() {
	s.mu.Lock()
	s.transcript.Reset()
	s.mu.Unlock()

	s.emit()
}

// Close stops notification timers. The session remains readable.
func (s *Session) Close() {
	s.notify.Close()
}

func (s *Session) emit() {
	s.listenerMu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.listenerMu.RUnlock()

	if len(listeners) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, l := range listeners {
		l(snap)
	}
}
