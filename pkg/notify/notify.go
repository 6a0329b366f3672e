// Package notify runs the lifecycle of dashboard notifications.
//
// Each notification id moves through Pending, Visible and Dismissed. An id
// becomes Visible the first time it is observed in the document and gets
// its own expiry timer. It becomes Dismissed when the timer fires or the
// user dismisses it, at which point the OnDismiss callback runs once so the
// owner can remove it from the document. Dismissed is terminal: a later
// document that still lists the id does not bring it back.
package notify

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/streamflow/pkg/logger"
	"github.com/papercomputeco/streamflow/pkg/state"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 5 * time.Second

// Manager tracks visible notifications and their expiry timers. It is safe
// for concurrent use; timers fire on their own goroutines.
type Manager struct {
	ttl       time.Duration
	clock     Clock
	onDismiss func(id string)
	logger    *slog.Logger

	mu        sync.Mutex
	queue     []state.Notification
	timers    map[string]Timer
	dismissed map[string]struct{}
	closed    bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock substitutes the clock used for expiry timers.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithOnDismiss sets the callback run once per dismissed id. It is called
// without the Manager's lock held.
func WithOnDismiss(fn func(id string)) Option {
	return func(m *Manager) {
		m.onDismiss = fn
	}
}

// WithLogger sets the Manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger.OrNop(l)
	}
}

// New returns an empty Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		ttl:       DefaultTTL,
		clock:     RealClock{},
		logger:    logger.Nop(),
		timers:    make(map[string]Timer),
		dismissed: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Observe reconciles the queue with the document's notification list. Ids
// not yet tracked and never dismissed become visible, in list order, and
// start their timers. Observe returns the newly visible notifications.
//
// Notifications already visible stay visible until their own expiry even
// if list no longer contains them.
func (m *Manager) Observe(list []state.Notification) []state.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	var added []state.Notification
	for _, n := range list {
		if n.ID == "" {
			continue
		}
		if _, ok := m.timers[n.ID]; ok {
			continue
		}
		if _, ok := m.dismissed[n.ID]; ok {
			continue
		}

		id := n.ID
		m.queue = append(m.queue, n)
		m.timers[id] = m.clock.AfterFunc(m.ttl, func() { m.expire(id) })
		added = append(added, n)
		m.logger.Debug("notification visible", "id", id, "type", n.Type)
	}
	return added
}

// Dismiss removes a visible notification before its timer fires. It
// reports whether id was visible.
func (m *Manager) Dismiss(id string) bool {
	return m.remove(id, "dismissed")
}

func (m *Manager) expire(id string) {
	m.remove(id, "expired")
}

func (m *Manager) remove(id, reason string) bool {
	m.mu.Lock()
	timer, ok := m.timers[id]
	if !ok || m.closed {
		m.mu.Unlock()
		return false
	}

	timer.Stop()
	delete(m.timers, id)
	m.dismissed[id] = struct{}{}
	m.queue = slices.DeleteFunc(m.queue, func(n state.Notification) bool {
		return n.ID == id
	})
	onDismiss := m.onDismiss
	m.mu.Unlock()

	m.logger.Debug("notification removed", "id", id, "reason", reason)
	if onDismiss != nil {
		onDismiss(id)
	}
	return true
}

// Visible returns the notifications currently shown, oldest first.
func (m *Manager) Visible() []state.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.queue)
}

// Dismissed reports whether id has reached the terminal state.
func (m *Manager) Dismissed(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.dismissed[id]
	return ok
}

// Pending returns the number of running timers.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Close stops every pending timer without running callbacks. The Manager
// ignores later Observe calls.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	m.queue = nil
	m.closed = true
}
