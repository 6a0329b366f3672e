package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
)

// Decode classifies one "data:" payload. ok is false for payloads that are
// not a recognised record: malformed JSON, an unknown mode tag, or a mode
// payload of the wrong shape.
func Decode(data []byte) (Record, bool) {
	rec, err := DecodeRecord(data)
	if err != nil {
		return Record{}, false
	}
	return rec, true
}

// DecodeRecord is Decode with the reason for rejection, for debug logging.
func DecodeRecord(data []byte) (Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Record{}, errors.New("empty payload")
	}

	switch data[0] {
	case '[':
		return decodeTagged(data)
	case '{':
		return decodeBareError(data)
	default:
		return Record{}, errors.New("payload is not a tagged record")
	}
}

func decodeTagged(data []byte) (Record, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return Record{}, fmt.Errorf("decoding tagged record: %w", err)
	}
	if len(parts) != 2 {
		return Record{}, fmt.Errorf("tagged record has %d elements, want 2", len(parts))
	}

	var tag string
	if err := json.Unmarshal(parts[0], &tag); err != nil {
		return Record{}, fmt.Errorf("decoding mode tag: %w", err)
	}

	switch tag {
	case TagMessages:
		return decodeMessages(parts[1])
	case TagUpdates:
		return decodeUpdates(parts[1])
	case TagValues:
		return decodeValues(parts[1])
	case TagError:
		return decodeErrorPayload(parts[1])
	default:
		return Record{}, fmt.Errorf("unknown mode tag %q", tag)
	}
}

func decodeMessages(payload json.RawMessage) (Record, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal(payload, &pair); err != nil {
		return Record{}, fmt.Errorf("decoding messages payload: %w", err)
	}
	if len(pair) == 0 {
		return Record{}, errors.New("messages payload is empty")
	}

	var wire wireMessage
	if err := json.Unmarshal(pair[0], &wire); err != nil {
		return Record{}, fmt.Errorf("decoding message chunk: %w", err)
	}
	n, err := wire.normalize()
	if err != nil {
		return Record{}, err
	}

	var origin string
	if len(pair) > 1 {
		origin, _ = jsonparser.GetString(pair[1], "langgraph_node")
	}

	return Record{
		Mode: ModeTokenDelta,
		Chunk: &MessageChunk{
			ID:                n.id,
			OriginNode:        origin,
			MessageKind:       n.kind,
			ContentDelta:      n.content,
			HasToolInvocation: n.hasToolInvocation,
		},
	}, nil
}

// decodeUpdates walks the update object in wire order. encoding/json maps
// lose key order, and later nodes must win on conflicting keys.
func decodeUpdates(payload json.RawMessage) (Record, error) {
	var updates []NodeUpdate
	err := jsonparser.ObjectEach(payload, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		node := string(key)
		switch dataType {
		case jsonparser.Object:
			updates = append(updates, decodeNodeUpdate(node, value))
		case jsonparser.Array:
			// A node that returned several commands reports one update each.
			_, err := jsonparser.ArrayEach(value, func(elem []byte, elemType jsonparser.ValueType, _ int, _ error) {
				if elemType == jsonparser.Object {
					updates = append(updates, decodeNodeUpdate(node, elem))
				}
			})
			return err
		default:
			// null or scalar: the node ran without emitting anything.
		}
		return nil
	})
	if err != nil {
		return Record{}, fmt.Errorf("decoding updates payload: %w", err)
	}

	return Record{Mode: ModeNodeUpdate, Updates: updates}, nil
}

func decodeNodeUpdate(node string, value []byte) NodeUpdate {
	u := NodeUpdate{NodeName: node}

	if patch, dataType, _, err := jsonparser.Get(value, "uiState"); err == nil && dataType != jsonparser.Null {
		u.StatePatch = copyRaw(patch, dataType)
	}
	if msgs, dataType, _, err := jsonparser.Get(value, "messages"); err == nil && dataType == jsonparser.Array {
		u.FinalMessages = decodeFinalMessages(msgs)
	}
	return u
}

func decodeValues(payload json.RawMessage) (Record, error) {
	var snapshot struct {
		UIState  json.RawMessage `json:"uiState"`
		Messages json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return Record{}, fmt.Errorf("decoding values payload: %w", err)
	}

	v := &ValuesSnapshot{Messages: decodeFinalMessages(snapshot.Messages)}
	if len(snapshot.UIState) > 0 && string(snapshot.UIState) != "null" {
		v.UIState = snapshot.UIState
	}
	return Record{Mode: ModeValues, Values: v}, nil
}

func decodeErrorPayload(payload json.RawMessage) (Record, error) {
	var msg string
	if err := json.Unmarshal(payload, &msg); err == nil {
		return errorRecord(msg), nil
	}

	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(payload, &obj); err != nil {
		return Record{}, fmt.Errorf("decoding error payload: %w", err)
	}
	if obj.Message == "" {
		obj.Message = obj.Error
	}
	return errorRecord(obj.Message), nil
}

// decodeBareError accepts {"error": "..."}, the shape the producer uses when
// it fails before or instead of streaming.
func decodeBareError(data []byte) (Record, error) {
	msg, err := jsonparser.GetString(data, "error")
	if err != nil {
		return Record{}, errors.New("object payload without an error field")
	}
	return errorRecord(msg), nil
}

func errorRecord(msg string) Record {
	if msg == "" {
		msg = "unknown error"
	}
	return Record{Mode: ModeError, Err: &ProducerError{Message: msg}}
}

// copyRaw detaches a jsonparser value from the input buffer. jsonparser
// returns strings without their quotes (but still escaped), so the quotes
// are restored here.
func copyRaw(value []byte, dataType jsonparser.ValueType) json.RawMessage {
	if dataType == jsonparser.String {
		out := make(json.RawMessage, 0, len(value)+2)
		out = append(out, '"')
		out = append(out, value...)
		return append(out, '"')
	}
	return append(json.RawMessage(nil), value...)
}
