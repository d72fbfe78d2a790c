// Package idgen provides short, URL-safe unique ID generation backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// EnvPrefix and RunPrefix identify the two id families warren hands out.
const (
	EnvPrefix = "env-"
	RunPrefix = "run-"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 12

// NewEnvironmentID returns a new unique environment id.
func NewEnvironmentID() (string, error) {
	return generate(EnvPrefix)
}

// NewRunID returns a new unique run id.
func NewRunID() (string, error) {
	return generate(RunPrefix)
}

func generate(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
