package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialRequired means no stored token exists; the trigger does
	// not transition the build state and the UI routes to credential setup.
	ErrCredentialRequired = errors.New("github token required")

	ErrRunNotFound      = errors.New("build run not found")
	ErrArtifactNotFound = errors.New("build artifact not found")
	ErrAuthentication   = errors.New("github authentication failed")
)

// PushError reports the first file write that failed during a push;
// remaining writes were aborted.
type PushError struct {
	Path string
	Err  error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("push %s: %v", e.Path, e.Err)
}

func (e *PushError) Unwrap() error { return e.Err }
