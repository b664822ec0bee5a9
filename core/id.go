package core

import "github.com/google/uuid"

// NewID generates a new globally unique identifier for sessions and invocations.
func NewID() string { return uuid.NewString() }
