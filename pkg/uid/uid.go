package uid

import (
	"strings"

	"github.com/google/uuid"
)

// New generates a new unique identifier.
func New() string {
	return uuid.New().String()
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Normalize returns the canonical lower-case form of id, or "" when id is
// not a UUID.
func Normalize(id string) string {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return ""
	}
	return parsed.String()
}
