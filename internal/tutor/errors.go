package tutor

import "errors"

// Sentinel errors returned by the session registry.
// Use errors.Is to check: errors.Is(err, tutor.ErrNotInitialized)
var (
	ErrNotInitialized  = errors.New("tutor: not initialized")
	ErrSessionNotFound = errors.New("tutor: session not found")
)
