// ABOUTME: Tests for ScanRequest construction and priority derivation
// ABOUTME: Validates smaller-is-higher priority classes

package types

import (
	"testing"
)

func TestPriorityForSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		size int64
		want Priority
	}{
		{"empty", 0, PriorityHigh},
		{"small", 4 << 10, PriorityHigh},
		{"boundary high", 256 << 10, PriorityHigh},
		{"medium", 1 << 20, PriorityNormal},
		{"boundary normal", 4 << 20, PriorityNormal},
		{"large", 64 << 20, PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := PriorityForSize(tt.size); got != tt.want {
				t.Errorf("PriorityForSize(%d) = %v, want %v", tt.size, got, tt.want)
			}
		})
	}
}

func TestNewScanRequest(t *testing.T) {
	t.Parallel()

	content := make([]byte, 8<<20)
	req := NewScanRequest(content, "installer.exe", "application/octet-stream", "https://example.com/dl")

	if req.Priority != PriorityLow {
		t.Errorf("Priority = %v, want %v", req.Priority, PriorityLow)
	}
	if req.Size() != int64(len(content)) {
		t.Errorf("Size() = %d, want %d", req.Size(), len(content))
	}
	if req.SubmittedAt.IsZero() {
		t.Error("SubmittedAt not set")
	}
}

func TestScanRequest_Fingerprint(t *testing.T) {
	t.Parallel()

	a := NewScanRequest([]byte("same bytes"), "a.bin", "application/octet-stream", "https://a.example")
	b := NewScanRequest([]byte("same bytes"), "b.bin", "application/octet-stream", "https://b.example")

	// Filename and origin do not participate in the fingerprint.
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical content produced different fingerprints")
	}
}

func TestPriority_String(t *testing.T) {
	t.Parallel()

	if PriorityHigh.String() != "high" || PriorityLow.String() != "low" {
		t.Error("unexpected priority string representation")
	}
}
