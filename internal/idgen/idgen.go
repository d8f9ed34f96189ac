// Package idgen generates transfer session identifiers.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultPrefix marks generated IDs as transfer session IDs.
const DefaultPrefix = "sess-"

// Alphabet restricts the random portion to URL- and log-safe characters.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the random portion's size. Ten characters over a 62-symbol
// alphabet keeps collisions out of reach for any realistic session volume.
const Length = 10

// Generate returns a new session ID.
func Generate() (string, error) {
	return GenerateWithPrefix(DefaultPrefix)
}

// GenerateWithPrefix returns a new ID under a caller-chosen prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
