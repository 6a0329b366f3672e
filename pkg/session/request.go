package session

import (
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/streamflow/pkg/state"
	"github.com/papercomputeco/streamflow/pkg/transcript"
)

// Request is the body posted to the producer for one turn.
type Request struct {
	Input RequestInput `json:"input"`
}

// RequestInput carries the conversation so far and the current document.
type RequestInput struct {
	Messages []transcript.Entry `json:"messages"`
	UIState  state.Document     `json:"uiState"`
}

// Request builds the producer request for the current turn from the
// visible transcript and document. Call it after BeginTurn so the new user
// message is included. Synthetic entries stay local.
func (s *Session) Request() Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := []transcript.Entry{}
	for _, e := range s.transcript.Entries() {
		if !e.Synthetic {
			msgs = append(msgs, e)
		}
	}
	return Request{
		Input: RequestInput{
			Messages: msgs,
			UIState:  s.merger.Document(),
		},
	}
}

// RequestBody is Request encoded as JSON.
func (s *Session) RequestBody() ([]byte, error) {
	body, err := json.Marshal(s.Request())
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return body, nil
}

// ParseRequest decodes a producer request body. Requests that omit the
// document get the default one.
func ParseRequest(body []byte) (Request, error) {
	req := Request{Input: RequestInput{UIState: state.Default()}}
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, fmt.Errorf("decoding request: %w", err)
	}
	return req, nil
}

// LastUserMessage returns the content of the final user message, or "" if
// there is none.
func (r Request) LastUserMessage() string {
	for i := len(r.Input.Messages) - 1; i >= 0; i-- {
		if r.Input.Messages[i].Role == transcript.RoleUser {
			return r.Input.Messages[i].Content
		}
	}
	return ""
}

// History returns the messages before the final user message.
func (r Request) History() []transcript.Entry {
	for i := len(r.Input.Messages) - 1; i >= 0; i-- {
		if r.Input.Messages[i].Role == transcript.RoleUser {
			return append([]transcript.Entry(nil), r.Input.Messages[:i]...)
		}
	}
	return append([]transcript.Entry(nil), r.Input.Messages...)
}
