package core

import "errors"

var (
	// ErrSessionNotFound is returned by store lookups when the identity is unknown or expired.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStoreUnavailable signals that the session store cannot be reached.
	ErrStoreUnavailable = errors.New("session store not available")

	// ErrInvalidRole rejects messages whose role is not system, user or assistant.
	ErrInvalidRole = errors.New("invalid role")
)
