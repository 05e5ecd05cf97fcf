// ABOUTME: ScanRequest type describing an untrusted byte stream to analyze
// ABOUTME: Immutable input with size-derived scheduling priority

package types

import (
	"time"
)

// Priority is a scheduling class for pending analysis work.
// Lower values are serviced first; smaller files get higher priority so
// common-case small downloads stay fast while a large file is mid-analysis.
type Priority int

const (
	// PriorityHigh is assigned to small inputs.
	PriorityHigh Priority = iota
	// PriorityNormal is assigned to medium inputs.
	PriorityNormal
	// PriorityLow is assigned to large inputs.
	PriorityLow

	// PriorityClasses is the number of distinct priority classes.
	PriorityClasses
)

// Size thresholds for priority derivation.
const (
	highPriorityMaxSize   = 256 << 10 // 256 KiB
	normalPriorityMaxSize = 4 << 20   // 4 MiB
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// PriorityForSize derives the scheduling priority from the input size.
func PriorityForSize(size int64) Priority {
	switch {
	case size <= highPriorityMaxSize:
		return PriorityHigh
	case size <= normalPriorityMaxSize:
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// ScanRequest is an immutable analysis input. It is created once by the
// caller at submission and never mutated; the job owns it exclusively until
// completion.
type ScanRequest struct {
	// Raw content bytes. Treated as attacker-controlled everywhere.
	Content []byte `json:"-"`

	// File information as reported by the intake layer.
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Origin   string `json:"origin"`

	// Scheduling priority, derived from content size.
	Priority Priority `json:"priority"`

	// Submission timestamp.
	SubmittedAt time.Time `json:"submitted_at"`
}

// NewScanRequest creates a scan request with a derived priority.
func NewScanRequest(content []byte, filename, mimeType, origin string) *ScanRequest {
	return &ScanRequest{
		Content:     content,
		Filename:    filename,
		MIMEType:    mimeType,
		Origin:      origin,
		Priority:    PriorityForSize(int64(len(content))),
		SubmittedAt: time.Now().UTC(),
	}
}

// Size returns the content length in bytes.
func (r *ScanRequest) Size() int64 {
	return int64(len(r.Content))
}

// Fingerprint computes the deterministic cache key for this request.
func (r *ScanRequest) Fingerprint() Fingerprint {
	return ComputeFingerprint(r.Content, r.MIMEType)
}
