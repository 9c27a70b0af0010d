// Package util contains small internal helpers shared across packages.
package util

import "github.com/google/uuid"

// NewID generates a new unique identifier for executions.
func NewID() string { return uuid.NewString() }
