package mux

import "errors"

// Sentinel errors for multiplexer operations.
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrMuxClosed          = errors.New("mux closed")
	ErrSubscriptionClosed = errors.New("subscription closed")
)
