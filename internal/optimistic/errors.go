package optimistic

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("entity not found")
	ErrRemoteFailure = errors.New("remote operation failed")
)

// RemoteError is returned by Update after a failed remote call has been
// reverted and reported. It matches both ErrRemoteFailure and its cause.
type RemoteError struct {
	ID    string
	Cause error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("update %s: %v", e.ID, e.Cause)
}

func (e *RemoteError) Unwrap() []error {
	return []error{ErrRemoteFailure, e.Cause}
}

// panicError marks a remote that panicked instead of returning an error.
// Its text is never shown to users.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("remote panicked: %v", e.value)
}
