// Package sha256 fingerprints persisted security.txt bodies so runs can be
// compared without re-reading the output directory.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements crawler.Hasher. The zero value is ready to use.
type Hasher struct{}

// New returns a Hasher for the worker's digest step.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the lowercase hex SHA-256 of body, as recorded on
// worker.Outcome.SHA256 and in the "persisted" debug line. It never fails.
func (*Hasher) Hash(body []byte) (string, error) {
	digest := sha256.Sum256(body)
	return hex.EncodeToString(digest[:]), nil
}
