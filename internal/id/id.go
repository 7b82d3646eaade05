// Package id generates identifiers for catalog rows and storage revisions.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for catalog entities.
const (
	PrefixCategory = "cat"
	PrefixPage     = "page"
	PrefixTag      = "tag"
)

// revisionAlphabet is lowercase alphanumerics so revisions are safe inside storage keys.
const revisionAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

const revisionLength = 10

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "page-V1StGXR8_Z5jdHi6B-myT").
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Revision returns a short lowercase token that distinguishes successive
// uploads for the same entity, e.g. "k3v9x0a2mq".
func Revision() (string, error) {
	rev, err := gonanoid.Generate(revisionAlphabet, revisionLength)
	if err != nil {
		return "", fmt.Errorf("generate revision: %w", err)
	}
	return rev, nil
}
