package decode

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Frame is one unit of data read from the transport, before decoding.
type Frame struct {
	Data       []byte    // Raw frame bytes
	ReceivedAt time.Time // Local timestamp when the transport returned the frame
}

// Event is the decoded form of a frame.
type Event struct {
	ID         uuid.UUID       // Assigned at decode time
	ReceivedAt time.Time       // Copied from the frame
	Fields     map[string]any  // Top-level JSON object
	Raw        json.RawMessage // Original frame bytes
}

// String returns the string value stored under key.
func (e Event) String(key string) (string, bool) {
	v, ok := e.Fields[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Float returns the numeric value stored under key.
// Numbers encoded as JSON strings (e.g. "0.52") are accepted as well.
func (e Event) Float(key string) (float64, bool) {
	switch v := e.Fields[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := json.Number(v).Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Symbol returns the instrument symbol of a price update, if present.
func (e Event) Symbol() string {
	s, _ := e.String("symbol")
	return s
}

// Price returns the price of a price update, if present.
func (e Event) Price() (float64, bool) {
	return e.Float("price")
}
