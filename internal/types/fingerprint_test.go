// ABOUTME: Tests for deterministic fingerprint derivation and parsing
// ABOUTME: Validates dedup-critical determinism and metadata sensitivity

package types

import (
	"bytes"
	"testing"
)

func TestComputeFingerprint_Deterministic(t *testing.T) {
	t.Parallel()

	content := []byte("some downloaded payload")

	fp1 := ComputeFingerprint(content, "application/octet-stream")
	fp2 := ComputeFingerprint(content, "application/octet-stream")

	if fp1 != fp2 {
		t.Errorf("fingerprints differ for identical input: %s vs %s", fp1, fp2)
	}
	if len(fp1) != FingerprintLength {
		t.Errorf("fingerprint length = %d, want %d", len(fp1), FingerprintLength)
	}
}

func TestComputeFingerprint_ContentSensitive(t *testing.T) {
	t.Parallel()

	fp1 := ComputeFingerprint([]byte("payload-a"), "text/plain")
	fp2 := ComputeFingerprint([]byte("payload-b"), "text/plain")

	if fp1 == fp2 {
		t.Error("different content produced identical fingerprints")
	}
}

func TestComputeFingerprint_MIMESensitive(t *testing.T) {
	t.Parallel()

	content := []byte("payload")

	fp1 := ComputeFingerprint(content, "text/plain")
	fp2 := ComputeFingerprint(content, "application/pdf")

	if fp1 == fp2 {
		t.Error("different MIME types produced identical fingerprints")
	}
}

func TestComputeFingerprint_MIMENormalized(t *testing.T) {
	t.Parallel()

	content := []byte("payload")

	fp1 := ComputeFingerprint(content, "Text/Plain")
	fp2 := ComputeFingerprint(content, "  text/plain ")

	if fp1 != fp2 {
		t.Error("MIME normalization not applied before hashing")
	}
}

func TestComputeFingerprint_EmptyContent(t *testing.T) {
	t.Parallel()

	fp := ComputeFingerprint(nil, "")
	if len(fp) != FingerprintLength {
		t.Errorf("empty content fingerprint length = %d, want %d", len(fp), FingerprintLength)
	}
	if fp != ComputeFingerprint([]byte{}, "") {
		t.Error("nil and empty content fingerprints differ")
	}
}

func TestParseFingerprint(t *testing.T) {
	t.Parallel()

	fp := ComputeFingerprint([]byte("x"), "")

	parsed, err := ParseFingerprint("  " + string(bytes.ToUpper([]byte(fp))) + " ")
	if err != nil {
		t.Fatalf("ParseFingerprint() error = %v", err)
	}
	if parsed != fp {
		t.Errorf("ParseFingerprint() = %s, want %s", parsed, fp)
	}
}

func TestParseFingerprint_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too short", "abc123"},
		{"bad chars", "zz" + string(ComputeFingerprint([]byte("x"), ""))[2:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseFingerprint(tt.input); err == nil {
				t.Errorf("ParseFingerprint(%q) expected error", tt.input)
			}
		})
	}
}

func TestFingerprint_Short(t *testing.T) {
	t.Parallel()

	fp := ComputeFingerprint([]byte("x"), "")
	if got := fp.Short(); len(got) != 12 {
		t.Errorf("Short() length = %d, want 12", len(got))
	}
}
