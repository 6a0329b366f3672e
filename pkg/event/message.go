package event

import (
	"encoding/json"
	"fmt"
	"strings"
)

// wireMessage covers both serialisations a message can take on the wire:
// the plain form {"type": "AIMessageChunk", "content": ...} and the
// LangChain constructor form {"lc": 1, "type": "constructor",
// "id": ["langchain_core", "messages", "AIMessageChunk"], "kwargs": {...}}.
type wireMessage struct {
	LC             int               `json:"lc"`
	Type           string            `json:"type"`
	Role           string            `json:"role"`
	ID             json.RawMessage   `json:"id"`
	Kwargs         *wireMessage      `json:"kwargs"`
	Content        json.RawMessage   `json:"content"`
	ToolCalls      []json.RawMessage `json:"tool_calls"`
	ToolCallChunks []json.RawMessage `json:"tool_call_chunks"`
}

// normalized is a wireMessage reduced to the fields the pipeline reads.
type normalized struct {
	id                string
	kind              string
	content           string
	hasToolInvocation bool
}

func (m *wireMessage) normalize() (normalized, error) {
	if m.Type == "constructor" {
		if m.Kwargs == nil {
			return normalized{}, fmt.Errorf("constructor message without kwargs")
		}
		var path []string
		if err := json.Unmarshal(m.ID, &path); err != nil || len(path) == 0 {
			return normalized{}, fmt.Errorf("constructor message without class path")
		}
		n, err := m.Kwargs.normalize()
		if err != nil {
			return normalized{}, err
		}
		n.kind = path[len(path)-1]
		return n, nil
	}

	kind := m.Type
	if kind == "" {
		kind = m.Role
	}

	var id string
	if len(m.ID) > 0 {
		// Plain messages carry a string id; anything else is not an id.
		_ = json.Unmarshal(m.ID, &id)
	}

	return normalized{
		id:                id,
		kind:              kind,
		content:           ExtractText(m.Content),
		hasToolInvocation: len(m.ToolCalls) > 0 || len(m.ToolCallChunks) > 0,
	}, nil
}

// RoleOf maps a producer message kind onto a Role. ok is false for kinds the
// pipeline does not know.
func RoleOf(kind string) (Role, bool) {
	switch kind {
	case "ai", "AIMessage", KindAIMessageChunk, "assistant":
		return RoleAssistant, true
	case "human", "HumanMessage", "HumanMessageChunk", "user":
		return RoleUser, true
	case "tool", "ToolMessage", "ToolMessageChunk":
		return RoleTool, true
	case "system", "SystemMessage":
		return RoleSystem, true
	}
	return "", false
}

// ExtractText flattens message content into plain text. Content may be a
// string, an array of strings and {"text": ...} blocks, or a single
// {"text": ...} object. Other shapes yield "".
func ExtractText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var blocks []json.RawMessage
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var b strings.Builder
		for _, block := range blocks {
			if err := json.Unmarshal(block, &s); err == nil {
				b.WriteString(s)
				continue
			}
			b.WriteString(textField(block))
		}
		return b.String()
	}

	return textField(raw)
}

func textField(raw json.RawMessage) string {
	var obj struct {
		Text *json.RawMessage `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.Text == nil {
		return ""
	}

	var s string
	if err := json.Unmarshal(*obj.Text, &s); err == nil {
		return s
	}
	// Non-string text values are rendered the way they appear on the wire.
	if string(*obj.Text) == "null" {
		return ""
	}
	return string(*obj.Text)
}

func decodeFinalMessages(raw json.RawMessage) []FinalMessage {
	if len(raw) == 0 {
		return nil
	}

	var wire []wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil
	}

	msgs := make([]FinalMessage, 0, len(wire))
	for i := range wire {
		n, err := wire[i].normalize()
		if err != nil {
			continue
		}
		role, ok := RoleOf(n.kind)
		if !ok {
			continue
		}
		msgs = append(msgs, FinalMessage{
			ID:                n.id,
			Role:              role,
			Content:           n.content,
			HasToolInvocation: n.hasToolInvocation || role == RoleTool,
		})
	}
	return msgs
}
