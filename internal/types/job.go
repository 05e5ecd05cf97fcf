// ABOUTME: Job type for async analysis submissions with state machine
// ABOUTME: Tracks jobs from creation through completion, failure, or cancellation

package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of an analysis job.
type JobStatus string

const (
	// JobStatusPending indicates the job is queued but not yet started.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being analyzed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job finished with a verdict.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed with an error.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the job was cancelled before analysis.
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal returns true if the status is a final state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job represents an asynchronous analysis submission.
type Job struct {
	// Unique job identifier (UUID).
	ID string `json:"id"`

	// Current job status.
	Status JobStatus `json:"status"`

	// Content identity.
	Fingerprint Fingerprint `json:"fingerprint"`
	Filename    string      `json:"filename"`
	Size        int64       `json:"size"`
	Priority    Priority    `json:"priority"`

	// Verdict (set when completed).
	Verdict *Verdict `json:"verdict,omitempty"`

	// Error message (set when failed).
	Error string `json:"error,omitempty"`

	// Timestamps.
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a new pending analysis job for a request.
func NewJob(req *ScanRequest, fp Fingerprint) *Job {
	return &Job{
		ID:          uuid.New().String(),
		Status:      JobStatusPending,
		Fingerprint: fp,
		Filename:    req.Filename,
		Size:        req.Size(),
		Priority:    req.Priority,
		CreatedAt:   time.Now().UTC(),
	}
}

// Start transitions the job from pending to running.
func (j *Job) Start() error {
	if j.Status != JobStatusPending {
		return fmt.Errorf("cannot start job in %s status", j.Status)
	}
	now := time.Now().UTC()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	return nil
}

// Complete transitions the job from running to completed with a verdict.
func (j *Job) Complete(v *Verdict) error {
	if j.Status != JobStatusRunning {
		return fmt.Errorf("cannot complete job in %s status", j.Status)
	}
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.Verdict = v
	j.CompletedAt = &now
	return nil
}

// Fail transitions the job to failed with an error message.
func (j *Job) Fail(msg string) error {
	if j.Status.IsTerminal() {
		return fmt.Errorf("cannot fail job in %s status", j.Status)
	}
	now := time.Now().UTC()
	j.Status = JobStatusFailed
	j.Error = msg
	j.CompletedAt = &now
	return nil
}

// Cancel transitions a pending job to cancelled. Running jobs are not
// interrupted; the in-flight analysis still completes so the cache benefits.
func (j *Job) Cancel() error {
	if j.Status != JobStatusPending {
		return fmt.Errorf("cannot cancel job in %s status", j.Status)
	}
	now := time.Now().UTC()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	return nil
}
