// Package event classifies decoded stream lines into typed records.
//
// The producer multiplexes three stream modes over one SSE connection. Each
// "data:" line carries a two element array, the mode tag followed by the
// mode's payload:
//
//	["messages", [chunk, metadata]]   incremental model output
//	["updates",  {node: update, ...}] per-node state deltas, in node order
//	["values",   {uiState, messages}] full-state snapshot
//	["error",    {message}]           producer application failure
//
// Decode turns one such line into a Record. Anything it does not recognise
// is reported as not ok and the caller moves on; nothing here is fatal.
package event

import (
	"encoding/json"
)

// Mode is the declared stream mode of a Record.
type Mode string

const (
	ModeTokenDelta Mode = "token-delta"
	ModeNodeUpdate Mode = "node-update"
	ModeValues     Mode = "raw-value-snapshot"
	ModeError      Mode = "error"
)

// Wire mode tags.
const (
	TagMessages = "messages"
	TagUpdates  = "updates"
	TagValues   = "values"
	TagError    = "error"
)

// KindAIMessageChunk is the message kind of an incremental assistant chunk.
const KindAIMessageChunk = "AIMessageChunk"

// Record is one classified stream line. Exactly one of the payload fields is
// set, matching Mode.
type Record struct {
	Mode Mode

	Chunk   *MessageChunk
	Updates []NodeUpdate
	Values  *ValuesSnapshot
	Err     *ProducerError
}

// MessageChunk is an incremental piece of model output.
type MessageChunk struct {
	// ID is the producer's message id, when it sends one.
	ID string

	// OriginNode is the graph node that produced the chunk, taken from the
	// langgraph_node metadata key.
	OriginNode string

	// MessageKind is the producer's message class name, for example
	// "AIMessageChunk".
	MessageKind string

	ContentDelta      string
	HasToolInvocation bool
}

// NodeUpdate is the delta emitted by one graph node.
type NodeUpdate struct {
	NodeName string

	// StatePatch is the raw uiState object, nil when the node did not touch
	// the shared document.
	StatePatch json.RawMessage

	FinalMessages []FinalMessage
}

// Role is the normalised author of a finished message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// FinalMessage is a complete message carried by a node update or snapshot.
type FinalMessage struct {
	ID                string
	Role              Role
	Content           string
	HasToolInvocation bool
}

// ValuesSnapshot is a full-state snapshot.
type ValuesSnapshot struct {
	// UIState is the raw shared document, nil when absent.
	UIState  json.RawMessage
	Messages []FinalMessage
}

// ProducerError is an application failure reported inside the stream.
type ProducerError struct {
	Message string
}

func (e *ProducerError) Error() string {
	return "producer error: " + e.Message
}
