package transfer

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a lookup against the tracker missed.
var ErrNotFound = errors.New("transfer not found")

// RejectionError means the remote peer declined the transfer. It is an
// expected, user-facing outcome carrying the remote's reason string.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("transfer rejected: %s", e.Reason)
}
