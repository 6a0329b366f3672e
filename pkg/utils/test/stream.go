// Package testutils holds fixtures shared by streamflow tests: a manual
// clock, an SSE stream builder, and recording fakes.
package testutils

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Stream builds producer SSE bodies line by line.
type Stream struct {
	b strings.Builder
}

// NewStream returns an empty Stream.
func NewStream() *Stream {
	return &Stream{}
}

// Data writes one raw "data:" line.
func (s *Stream) Data(payload string) *Stream {
	fmt.Fprintf(&s.b, "data: %s\n\n", payload)
	return s
}

// Line writes a raw line, for comments and malformed input.
func (s *Stream) Line(line string) *Stream {
	s.b.WriteString(line)
	s.b.WriteString("\n")
	return s
}

// Token writes a messages-mode AIMessageChunk from node.
func (s *Stream) Token(node, text string) *Stream {
	return s.Data(fmt.Sprintf(`["messages",[{"type":"AIMessageChunk","content":%s,"tool_call_chunks":[]},{"langgraph_node":%s}]]`,
		quote(text), quote(node)))
}

// ToolCallToken writes a messages-mode chunk carrying a tool call.
func (s *Stream) ToolCallToken(node, args string) *Stream {
	return s.Data(fmt.Sprintf(`["messages",[{"type":"AIMessageChunk","content":"","tool_call_chunks":[{"name":"tool","args":%s}]},{"langgraph_node":%s}]]`,
		quote(args), quote(node)))
}

// Patch writes an updates-mode record where node patches uiState.
func (s *Stream) Patch(node, uiState string) *Stream {
	return s.Data(fmt.Sprintf(`["updates",{%s:{"uiState":%s}}]`, quote(node), uiState))
}

// Final writes an updates-mode record where node finishes with an
// assistant message.
func (s *Stream) Final(node, text string) *Stream {
	return s.Data(fmt.Sprintf(`["updates",{%s:{"messages":[{"type":"ai","content":%s,"tool_calls":[]}]}}]`,
		quote(node), quote(text)))
}

// Values writes a values-mode snapshot.
func (s *Stream) Values(uiState string) *Stream {
	return s.Data(fmt.Sprintf(`["values",{"messages":[],"uiState":%s}]`, uiState))
}

// Error writes an error-mode record.
func (s *Stream) Error(message string) *Stream {
	return s.Data(fmt.Sprintf(`["error",{"message":%s}]`, quote(message)))
}

// Done writes the terminal sentinel.
func (s *Stream) Done() *Stream {
	return s.Data("[DONE]")
}

// String returns the body built so far.
func (s *Stream) String() string {
	return s.b.String()
}

func quote(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}
