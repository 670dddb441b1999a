// Package jobs manages asynchronous split execution: submit, progress,
// cancel, retrieve, expire.
package jobs

import (
	"context"
	"time"
)

// Status is the lifecycle state of a split job.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ArtifactInfo describes one output document of a completed job.
type ArtifactInfo struct {
	FileName  string `json:"file_name"`
	PageCount int    `json:"page_count"`
	SizeBytes int64  `json:"size_bytes"`
}

// Job is the tracked record of one asynchronous split operation. Mutated only
// by its executing worker and the cancellation path.
type Job struct {
	ID           string         `json:"operation_id"`
	Status       Status         `json:"status"`
	Progress     int            `json:"progress"`
	Message      string         `json:"message,omitempty"`
	Strategy     string         `json:"strategy,omitempty"`
	OriginalName string         `json:"original_filename,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
	Artifacts    []ArtifactInfo `json:"artifacts,omitempty"`
	ArchivePath  string         `json:"-"`
	Error        string         `json:"error,omitempty"`
}

// Store is the job table: the only shared mutable structure of the split
// subsystem. Implementations must support concurrent submit/query/cancel/
// cleanup.
type Store interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, bool, error)
	// Update applies fn to the stored job under that entry's lock.
	Update(ctx context.Context, id string, fn func(*Job)) error
	Delete(ctx context.Context, id string) error
	Close() error
}
