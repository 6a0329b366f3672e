package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/streamflow/pkg/state"
	"github.com/papercomputeco/streamflow/pkg/storage"
	"github.com/papercomputeco/streamflow/pkg/transcript"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnRecorded is emitted after a recorded turn is stored.
	EventTypeTurnRecorded = "streamflow.turn.recorded"
)

// TurnRecordedEvent is a transport-neutral event payload for a stored turn.
type TurnRecordedEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	Source        EventSource     `json:"source"`
	RequestMeta   TurnRequestMeta `json:"request_meta"`
	Turn          RecordedTurn    `json:"turn"`
}

// EventSource identifies where the turn originated.
type EventSource struct {
	SessionID string `json:"session_id"`
	Upstream  string `json:"upstream,omitempty"`
}

// TurnRequestMeta captures request lifecycle metadata for the event.
type TurnRequestMeta struct {
	Path        string    `json:"path,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Bytes       int64     `json:"bytes"`
	HTTPStatus  int       `json:"http_status"`
}

// RecordedTurn is the reconstructed content of the turn.
type RecordedTurn struct {
	ID          string             `json:"id"`
	Status      storage.Status     `json:"status"`
	Error       string             `json:"error,omitempty"`
	UserMessage string             `json:"user_message"`
	Reply       []transcript.Entry `json:"reply"`
	UIState     state.Document     `json:"ui_state"`
}

// NewTurnRecordedEvent builds the event for a stored turn. Upstream, path and
// status describe the proxied request and may be empty.
func NewTurnRecordedEvent(turn *storage.Turn, upstream, path string, httpStatus int) *TurnRecordedEvent {
	if turn == nil {
		return nil
	}

	reply := turn.Reply
	if reply == nil {
		reply = []transcript.Entry{}
	}

	return &TurnRecordedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnRecorded,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source: EventSource{
			SessionID: turn.SessionID,
			Upstream:  upstream,
		},
		RequestMeta: TurnRequestMeta{
			Path:        path,
			StartedAt:   turn.StartedAt,
			CompletedAt: turn.CompletedAt,
			DurationMs:  turn.Duration().Milliseconds(),
			Bytes:       turn.Bytes,
			HTTPStatus:  httpStatus,
		},
		Turn: RecordedTurn{
			ID:          turn.ID,
			Status:      turn.Status,
			Error:       turn.Error,
			UserMessage: turn.UserMessage,
			Reply:       reply,
			UIState:     turn.Document,
		},
	}
}
