package testutils

import (
	"time"

	"github.com/papercomputeco/streamflow/pkg/state"
	"github.com/papercomputeco/streamflow/pkg/storage"
	"github.com/papercomputeco/streamflow/pkg/transcript"
)

// NewTestTurn creates a completed turn for sessionID whose start time is
// offset from a fixed base, so tests control ordering.
func NewTestTurn(id, sessionID string, offset time.Duration) *storage.Turn {
	started := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC).Add(offset)
	doc := state.Default()
	doc.SearchQuery = state.Ptr("query " + id)

	return &storage.Turn{
		ID:          id,
		SessionID:   sessionID,
		UserMessage: "message " + id,
		Reply: []transcript.Entry{
			{Role: transcript.RoleAssistant, Content: "reply " + id},
		},
		Document:    doc,
		Status:      storage.StatusCompleted,
		Bytes:       128,
		StartedAt:   started,
		CompletedAt: started.Add(1500 * time.Millisecond),
	}
}
