// Package sha256 fingerprints fetched page bodies.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/JakeFAU/imagefinder/internal/crawler"
)

// Hasher implements crawler.Hasher using SHA-256.
type Hasher struct{}

var _ crawler.Hasher = (*Hasher)(nil)

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of a page body. Identical bodies served under
// different URLs share a digest, which shows up in page records.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
