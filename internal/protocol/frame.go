package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Errors
var (
	ErrEmptyType = errors.New("frame has empty type")
)

// Frame is a single decoded wire frame.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// ReceivedAt is the local timestamp when the frame was read off the
	// transport. Zero for outbound frames.
	ReceivedAt time.Time `json:"-"`
}

// Namespace returns the prefix before the first dot, or the full type for
// frames without one.
func (f Frame) Namespace() string {
	if i := strings.IndexByte(f.Type, '.'); i >= 0 {
		return f.Type[:i]
	}
	return f.Type
}

// Unmarshal decodes the frame payload into v.
func (f Frame) Unmarshal(v any) error {
	if len(f.Payload) == 0 {
		return fmt.Errorf("frame %q has no payload", f.Type)
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("decode %q payload: %w", f.Type, err)
	}
	return nil
}

// Encode serializes a frame with the given type and payload.
func Encode(frameType string, payload any) ([]byte, error) {
	if frameType == "" {
		return nil, ErrEmptyType
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %q payload: %w", frameType, err)
		}
		raw = data
	}

	return json.Marshal(Frame{Type: frameType, Payload: raw})
}

// Decode parses a raw inbound frame.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type == "" {
		return Frame{}, ErrEmptyType
	}
	return f, nil
}
