package util

import "github.com/google/uuid"

// NewID returns a random v4 UUID string, the id form used for books,
// sessions, responses, and generated request ids.
func NewID() string {
	return uuid.NewString()
}
