package protocol

import (
	"errors"
	"fmt"
)

// ErrTruncated indicates a primitive read needed more bytes than the payload
// had left. Always a decode-time error; the connection keeps processing
// subsequent messages.
var ErrTruncated = errors.New("message truncated")

// ReadError wraps a primitive-read failure inside a record decoder. It means
// the payload is malformed or belongs to a different protocol version.
type ReadError struct {
	Code      uint32
	Remaining int
	Err       error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("decode message %d: %v (%d bytes remaining)", e.Code, e.Err, e.Remaining)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// CodeMismatchError means the caller asked to decode a message as one record
// type but the message carries a different code. Unlike ReadError this
// indicates a dispatch bug, not a malformed payload.
type CodeMismatchError struct {
	Want uint32
	Got  uint32
}

func (e *CodeMismatchError) Error() string {
	return fmt.Sprintf("message code %d, expected %d", e.Got, e.Want)
}

// UnknownCodeError reports a message code with no catalog record. Unknown
// codes are surfaced, not silently dropped: swallowing them hides
// protocol-version skew.
type UnknownCodeError struct {
	Code uint32
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("unknown message code %d", e.Code)
}
