// ABOUTME: Tests for Job state machine transitions
// ABOUTME: Validates pending/running/terminal transitions and cancellation

package types

import (
	"testing"
)

func newTestJob() *Job {
	req := NewScanRequest([]byte("test content"), "file.bin", "application/octet-stream", "https://example.com")
	return NewJob(req, req.Fingerprint())
}

func TestNewJob(t *testing.T) {
	t.Parallel()

	job := newTestJob()

	if job.ID == "" {
		t.Error("job ID not set")
	}
	if job.Status != JobStatusPending {
		t.Errorf("Status = %v, want %v", job.Status, JobStatusPending)
	}
	if job.Size != int64(len("test content")) {
		t.Errorf("Size = %d, want %d", job.Size, len("test content"))
	}
}

func TestJob_Lifecycle(t *testing.T) {
	t.Parallel()

	job := newTestJob()

	if err := job.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if job.Status != JobStatusRunning || job.StartedAt == nil {
		t.Error("job not transitioned to running")
	}

	v := NewKnownMaliciousVerdict(job.Fingerprint)
	if err := job.Complete(v); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if job.Status != JobStatusCompleted || job.CompletedAt == nil {
		t.Error("job not transitioned to completed")
	}
	if job.Verdict != v {
		t.Error("verdict not attached to completed job")
	}
}

func TestJob_InvalidTransitions(t *testing.T) {
	t.Parallel()

	job := newTestJob()

	if err := job.Complete(nil); err == nil {
		t.Error("Complete() on pending job expected error")
	}

	if err := job.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := job.Start(); err == nil {
		t.Error("Start() on running job expected error")
	}
	if err := job.Cancel(); err == nil {
		t.Error("Cancel() on running job expected error")
	}
}

func TestJob_Fail(t *testing.T) {
	t.Parallel()

	job := newTestJob()
	if err := job.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := job.Fail("sandbox fault"); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}
	if job.Status != JobStatusFailed || job.Error != "sandbox fault" {
		t.Error("job not transitioned to failed with message")
	}
	if err := job.Fail("again"); err == nil {
		t.Error("Fail() on terminal job expected error")
	}
}

func TestJob_Cancel(t *testing.T) {
	t.Parallel()

	job := newTestJob()
	if err := job.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if job.Status != JobStatusCancelled {
		t.Errorf("Status = %v, want %v", job.Status, JobStatusCancelled)
	}
	if !job.Status.IsTerminal() {
		t.Error("cancelled status not terminal")
	}
}
