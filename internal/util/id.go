package util

import "github.com/google/uuid"

// NewID returns a random entity identifier.
func NewID() string {
	return uuid.NewString()
}
