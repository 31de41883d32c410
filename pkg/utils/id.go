package utils

import "github.com/google/uuid"

// GenerateID returns a random identifier, optionally prefixed ("conn-3f2a...").
func GenerateID(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
