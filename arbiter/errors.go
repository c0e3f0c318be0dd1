package arbiter

import "errors"

var (
	// ErrSessionNotFound indicates the session has no prompt state, either
	// because it never prompted or because it was cleared.
	ErrSessionNotFound = errors.New("session not found")
)
