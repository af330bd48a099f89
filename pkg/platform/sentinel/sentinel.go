package sentinel

import "errors"

// Infrastructure facts returned (optionally wrapped) by stores and lookups.
// Services translate them into domain errors or, for the travel detector,
// into a fail-open outcome.
var (
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidState = errors.New("invalid state")
)
