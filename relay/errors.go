package relay

import "errors"

var (
	// ErrSessionNotFound indicates the session does not exist or has been
	// torn down. Callers should surface it as "session ended", not retry.
	ErrSessionNotFound = errors.New("session not found")
)
