// Package id generates identifiers for records that are not keyed by
// an autoincrement integer.
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for nanoid-based identifiers.
const (
	PrefixUser    = "usr"
	PrefixSession = "ses"
	PrefixToken   = "tok"
)

// Generate returns prefix + "-" + a 21-character NanoID,
// e.g. "usr-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	n, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + n, nil
}

// MustGenerate is like Generate but panics if the system has no entropy.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return v
}

// HasPrefix reports whether v was generated with the given prefix.
func HasPrefix(v, prefix string) bool {
	return strings.HasPrefix(v, prefix+"-") && len(v) > len(prefix)+1
}

// NewBatchID returns a random UUID used to label similarity import runs.
func NewBatchID() string {
	return uuid.NewString()
}
