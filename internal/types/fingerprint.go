// ABOUTME: Fingerprint type deriving deterministic cache keys from content
// ABOUTME: SHA256 over content plus analysis-relevant metadata for dedup

package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// FingerprintLength is the length of a fingerprint in hex characters.
const FingerprintLength = 64

// Fingerprint is a deterministic, content-derived cache key.
// Identical content and metadata always produce the identical fingerprint;
// the verdict cache and single-flight deduplication depend on this.
type Fingerprint string

// ComputeFingerprint derives the fingerprint for a piece of content.
// The MIME type participates in the digest because structural analysis is
// format-sensitive; the filename and origin deliberately do not, so a
// renamed or re-hosted copy of the same bytes hits the same cache entry.
func ComputeFingerprint(content []byte, mimeType string) Fingerprint {
	h := sha256.New()

	var sizeBuf [8]byte
	binary.BigEndian.PutUint64(sizeBuf[:], uint64(len(content)))
	h.Write(sizeBuf[:])
	h.Write(content)
	h.Write([]byte(strings.ToLower(strings.TrimSpace(mimeType))))

	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// ParseFingerprint validates and normalizes a fingerprint string.
func ParseFingerprint(s string) (Fingerprint, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if len(s) != FingerprintLength {
		return "", fmt.Errorf("invalid fingerprint length %d: must be %d hex characters", len(s), FingerprintLength)
	}
	for _, c := range s {
		if !isHexChar(c) {
			return "", fmt.Errorf("invalid hex characters in fingerprint")
		}
	}

	return Fingerprint(s), nil
}

// String returns the full hex representation.
func (f Fingerprint) String() string {
	return string(f)
}

// Short returns a truncated form suitable for log fields.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// Key returns the storage key for this fingerprint (e.g., "fp:abc123").
func (f Fingerprint) Key() string {
	return "fp:" + string(f)
}

func isHexChar(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}
