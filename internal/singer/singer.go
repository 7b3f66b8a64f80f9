// package singer implements the subset of the Singer messaging spec a target
// needs: decoding SCHEMA/RECORD/STATE/ACTIVATE_VERSION lines from a tap and
// emitting STATE lines for the runner.
//
// https://github.com/singer-io/getting-started/blob/master/docs/SPEC.md
package singer

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/crmbridge/target-salesforce/internal/shared"
)

// MessageType identifies the kind of a Singer message.
type MessageType string

const (
	TypeSchema          MessageType = "SCHEMA"
	TypeRecord          MessageType = "RECORD"
	TypeState           MessageType = "STATE"
	TypeActivateVersion MessageType = "ACTIVATE_VERSION"
)

// Message is a single decoded line from a Singer stream.
//
// Only the fields relevant to the message type are populated.
type Message struct {
	Type          MessageType     `json:"type"`
	Stream        string          `json:"stream,omitempty"`
	Schema        json.RawMessage `json:"schema,omitempty"`
	Record        map[string]any  `json:"record,omitempty"`
	Value         map[string]any  `json:"value,omitempty"`
	KeyProperties []string        `json:"key_properties,omitempty"`
	Version       *int64          `json:"version,omitempty"`
	TimeExtracted string          `json:"time_extracted,omitempty"`
}

// Decode parses a single Singer message line.
func Decode(line []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedMessage, err)
	}

	switch msg.Type {
	case TypeSchema:
		if msg.Stream == "" || msg.Schema == nil {
			return nil, fmt.Errorf("%w: SCHEMA requires stream and schema", shared.ErrMalformedMessage)
		}
	case TypeRecord:
		if msg.Stream == "" || msg.Record == nil {
			return nil, fmt.Errorf("%w: RECORD requires stream and record", shared.ErrMalformedMessage)
		}
	case TypeState:
		if msg.Value == nil {
			return nil, fmt.Errorf("%w: STATE requires value", shared.ErrMalformedMessage)
		}
	case TypeActivateVersion:
		if msg.Stream == "" {
			return nil, fmt.Errorf("%w: ACTIVATE_VERSION requires stream", shared.ErrMalformedMessage)
		}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", shared.ErrMalformedMessage, msg.Type)
	}

	return &msg, nil
}

// StateWriter emits STATE messages as single JSON lines.
type StateWriter struct {
	w io.Writer
}

// NewStateWriter creates a StateWriter targeting w, conventionally stdout.
func NewStateWriter(w io.Writer) *StateWriter {
	return &StateWriter{w: w}
}

// Write emits a STATE message wrapping the given value.
func (s *StateWriter) Write(value map[string]any) error {
	data, err := json.Marshal(Message{Type: TypeState, Value: value})
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}
