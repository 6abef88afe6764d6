package bootloader

import (
	"errors"
	"fmt"
)

// AbortReason tells why a session ended without an image
type AbortReason uint8

const (
	// ReasonPeerCancel means the sender transmitted CAN
	ReasonPeerCancel AbortReason = iota + 1

	// ReasonErrorBudget means too many attempts failed
	ReasonErrorBudget
)

func (r AbortReason) String() string {
	switch r {
	case ReasonPeerCancel:
		return "cancelled by sender"
	case ReasonErrorBudget:
		return "error budget exhausted"
	default:
		return fmt.Sprintf("abort reason %d", uint8(r))
	}
}

// AbortError is returned by Run when a session terminates in the aborted state.
type AbortError struct {
	Reason AbortReason

	// Errors is the session error count at the time of the abort
	Errors int

	// BytesWritten is how much of the image had been accepted
	BytesWritten uint32
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("xmodem session aborted: %s (errors=%d, written=%d)",
		e.Reason, e.Errors, e.BytesWritten)
}

// IsAbort returns true if err is, or wraps, an AbortError.
func IsAbort(err error) bool {
	var abort *AbortError
	return errors.As(err, &abort)
}
