package decode

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Decoder parses frames into events.
type Decoder struct {
	newID func() uuid.UUID
}

// NewDecoder creates a decoder that assigns random event IDs.
func NewDecoder() *Decoder {
	return &Decoder{newID: uuid.New}
}

// Decode parses a frame. On failure the returned error is a *DecodeError.
func (d *Decoder) Decode(f Frame) (Event, error) {
	data := bytes.TrimSpace(f.Data)
	if len(data) == 0 {
		return Event{}, &DecodeError{Frame: f.Data, Err: ErrEmptyFrame}
	}
	if !json.Valid(data) {
		return Event{}, &DecodeError{Frame: f.Data, Err: ErrMalformedFrame}
	}
	if data[0] != '{' {
		return Event{}, &DecodeError{Frame: f.Data, Err: ErrNotObject}
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return Event{}, &DecodeError{Frame: f.Data, Err: fmt.Errorf("%w: %v", ErrMalformedFrame, err)}
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)

	newID := d.newID
	if newID == nil {
		newID = uuid.New
	}

	return Event{
		ID:         newID(),
		ReceivedAt: f.ReceivedAt,
		Fields:     fields,
		Raw:        raw,
	}, nil
}
