package decode

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrEmptyFrame     = errors.New("empty frame")
	ErrMalformedFrame = errors.New("malformed frame")
	ErrNotObject      = errors.New("frame is not a JSON object")
)

// maxQuotedFrame bounds how much of a bad frame ends up in an error string.
const maxQuotedFrame = 256

// DecodeError reports a frame that could not be decoded.
type DecodeError struct {
	Frame []byte // The offending frame, unmodified
	Err   error  // One of the sentinel errors, possibly wrapping the parser error
}

func (e *DecodeError) Error() string {
	quoted := e.Frame
	if len(quoted) > maxQuotedFrame {
		quoted = quoted[:maxQuotedFrame]
	}
	return fmt.Sprintf("decode frame %q: %v", quoted, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
