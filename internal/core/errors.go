package core

import "errors"

// Error codes surfaced to clients in protocol error envelopes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnknownType  = "invalid_message"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeUnauthorized = "unauthorized"
)

// ErrHubStopped is returned when the hub's Run loop has exited.
var ErrHubStopped = errors.New("hub stopped")
