// Package transcript turns streamed model output into the visible
// conversation.
//
// A Builder accumulates token deltas for the current turn into one rolling
// buffer and mirrors it into a single open assistant entry at the tail of
// the transcript. When the node update carrying the finished message
// arrives, the open entry is overwritten with the final text and closed.
// Output that looks like structured data (a leading '{' or '[') is treated
// as an internal control payload and never shown.
package transcript

import (
	"log/slog"
	"strings"

	"github.com/papercomputeco/streamflow/pkg/event"
	"github.com/papercomputeco/streamflow/pkg/logger"
)

// DefaultResponseNode is the graph node whose chunks form the visible
// reply.
const DefaultResponseNode = "model"

// FailureMessage is shown when a turn fails before the stream completes.
const FailureMessage = "Sorry, something went wrong. Please try again."

// Role is the author of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one visible chat bubble.
type Entry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Synthetic marks bubbles the client wrote itself, such as the failure
	// message. They are shown but never sent back to the producer.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Builder owns the transcript of one session. It is not safe for
// concurrent use; the session serialises access.
type Builder struct {
	responseNode string
	logger       *slog.Logger

	entries []Entry

	buffer     strings.Builder
	open       bool
	suppressed bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithResponseNode sets the node whose chunks are transcript-eligible.
func WithResponseNode(node string) Option {
	return func(b *Builder) {
		if node != "" {
			b.responseNode = node
		}
	}
}

// WithLogger sets the logger used for dropped chunks.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger.OrNop(l)
	}
}

// WithEntries seeds the transcript, for example when resuming a recorded
// session.
func WithEntries(entries []Entry) Option {
	return func(b *Builder) {
		b.entries = append([]Entry(nil), entries...)
	}
}

// NewBuilder returns an empty Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		responseNode: DefaultResponseNode,
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BeginTurn starts a new turn. The rolling buffer, the open flag and
// suppression are reset, and userContent is appended as a user entry when
// it is not blank.
func (b *Builder) BeginTurn(userContent string) {
	b.buffer.Reset()
	b.open = false
	b.suppressed = false

	if strings.TrimSpace(userContent) != "" {
		b.entries = append(b.entries, Entry{Role: RoleUser, Content: userContent})
	}
}

// IngestDelta folds one streamed chunk into the current turn and reports
// whether the visible transcript changed.
func (b *Builder) IngestDelta(chunk event.MessageChunk) bool {
	switch {
	case chunk.OriginNode != b.responseNode:
		b.logger.Debug("dropping chunk from non-response node", "node", chunk.OriginNode)
		return false
	case chunk.MessageKind != event.KindAIMessageChunk:
		b.logger.Debug("dropping non-incremental chunk", "kind", chunk.MessageKind)
		return false
	case chunk.HasToolInvocation:
		return false
	case chunk.ContentDelta == "":
		return false
	}

	b.buffer.WriteString(chunk.ContentDelta)
	trimmed := strings.TrimSpace(b.buffer.String())

	if !b.suppressed && LooksStructured(trimmed) {
		b.suppressed = true
		b.logger.Debug("suppressing structured output for this turn")
	}
	if b.suppressed || trimmed == "" {
		return false
	}

	if !b.open {
		b.entries = append(b.entries, Entry{Role: RoleAssistant, Content: trimmed})
		b.open = true
		return true
	}

	tail := &b.entries[len(b.entries)-1]
	if tail.Content == trimmed {
		return false
	}
	tail.Content = trimmed
	return true
}

// IngestFinal applies the finished messages of a node update. The first
// eligible assistant message replaces and closes the open entry; with no
// open entry, a message is appended only if no existing entry already has
// exactly its content.
func (b *Builder) IngestFinal(msgs []event.FinalMessage) bool {
	changed := false
	for _, msg := range msgs {
		if msg.Role != event.RoleAssistant || msg.HasToolInvocation {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" || LooksStructured(content) {
			continue
		}

		if b.open {
			tail := &b.entries[len(b.entries)-1]
			if tail.Content != content {
				tail.Content = content
				changed = true
			}
			b.open = false
			continue
		}

		if b.contains(content) {
			continue
		}
		b.entries = append(b.entries, Entry{Role: RoleAssistant, Content: content})
		changed = true
	}
	return changed
}

// CloseTurn closes the open entry, if any, without changing its content.
func (b *Builder) CloseTurn() {
	b.open = false
}

// Fail closes any open entry and appends message as an assistant entry.
func (b *Builder) Fail(message string) {
	b.open = false
	if message == "" {
		message = FailureMessage
	}
	b.entries = append(b.entries, Entry{Role: RoleAssistant, Content: message, Synthetic: true})
}

// Entries returns a copy of the transcript.
func (b *Builder) Entries() []Entry {
	return append([]Entry(nil), b.entries...)
}

// Open reports whether an assistant entry is still streaming.
func (b *Builder) Open() bool {
	return b.open
}

// Suppressed reports whether the current turn's output was classified as
// structured data.
func (b *Builder) Suppressed() bool {
	return b.suppressed
}

// Reset clears the transcript and the turn state.
func (b *Builder) Reset() {
	b.entries = nil
	b.buffer.Reset()
	b.open = false
	b.suppressed = false
}

func (b *Builder) contains(content string) bool {
	for _, e := range b.entries {
		if e.Content == content {
			return true
		}
	}
	return false
}

// LooksStructured reports whether trimmed text starts like a JSON object or
// array. This is a cheap prefix check, not validation.
func LooksStructured(trimmed string) bool {
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}
