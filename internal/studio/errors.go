package studio

import "errors"

var (
	// ErrGenerationInFlight rejects a send while a previous one is still
	// running; the session serializes generations by construction.
	ErrGenerationInFlight = errors.New("a generation is already in flight")
)
