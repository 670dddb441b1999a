package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfsplitd/internal/metrics"
	"github.com/local/pdfsplitd/internal/split"
)

// Outcome is what a job's pipeline hands back on success.
type Outcome struct {
	Success     bool
	Message     string
	Artifacts   []ArtifactInfo
	ArchivePath string
}

// RunFunc executes one split pipeline. It must observe ctx between
// partitions and report progress through report.
type RunFunc func(ctx context.Context, report split.ProgressFunc) (*Outcome, error)

// Meta carries the submit-time descriptors recorded on the job.
type Meta struct {
	Strategy     string
	OriginalName string
}

// Options tunes the tracker.
type Options struct {
	// MaxConcurrent bounds simultaneously running jobs. Zero means 4.
	MaxConcurrent int
	// MaxDuration is the per-job duration budget. Zero disables it.
	MaxDuration time.Duration
}

// Tracker owns the asynchronous job lifecycle. Each submitted job runs as an
// independent worker goroutine; jobs have no cross-job ordering guarantee.
type Tracker struct {
	store Store
	opts  Options
	gate  chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a Tracker on top of a job store.
func New(store Store, opts Options) *Tracker {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	return &Tracker{
		store:   store,
		opts:    opts,
		gate:    make(chan struct{}, opts.MaxConcurrent),
		cancels: map[string]context.CancelFunc{},
	}
}

// Submit registers a PENDING job and schedules run on its own worker.
// Returns the operation id immediately.
func (t *Tracker) Submit(meta Meta, run RunFunc) (string, error) {
	id := uuid.NewString()
	job := &Job{
		ID:           id,
		Status:       StatusPending,
		Strategy:     meta.Strategy,
		OriginalName: meta.OriginalName,
		CreatedAt:    time.Now(),
	}
	if err := t.store.Create(context.Background(), job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if t.opts.MaxDuration > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), t.opts.MaxDuration)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	t.mu.Lock()
	t.cancels[id] = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.work(ctx, id, run)
	log.Info().Str("operation_id", id).Str("strategy", meta.Strategy).Msg("split job submitted")
	return id, nil
}

func (t *Tracker) work(ctx context.Context, id string, run RunFunc) {
	defer t.wg.Done()
	defer t.release(id)

	select {
	case t.gate <- struct{}{}:
		defer func() { <-t.gate }()
	case <-ctx.Done():
		t.finish(id, nil, mapDone(ctx))
		return
	}

	start := time.Now()
	_ = t.store.Update(context.Background(), id, func(j *Job) {
		j.Status = StatusRunning
		j.StartedAt = &start
		j.Message = "running"
	})
	metrics.JobsActiveInc()
	defer metrics.JobsActiveDec()

	outcome, err := run(ctx, func(done, total int) {
		pct := 0
		if total > 0 {
			pct = done * 100 / total
		}
		_ = t.store.Update(context.Background(), id, func(j *Job) {
			j.Progress = pct
			j.Message = fmt.Sprintf("partition %d/%d done", done, total)
		})
	})
	if err == nil && ctx.Err() != nil {
		err = mapDone(ctx)
	}
	t.finish(id, outcome, err)
}

func (t *Tracker) finish(id string, outcome *Outcome, err error) {
	now := time.Now()
	_ = t.store.Update(context.Background(), id, func(j *Job) {
		j.FinishedAt = &now
		switch {
		case err == nil:
			j.Status = StatusCompleted
			j.Progress = 100
			j.Message = "completed"
			if outcome != nil {
				j.Artifacts = outcome.Artifacts
				j.ArchivePath = outcome.ArchivePath
				if outcome.Message != "" {
					j.Message = outcome.Message
				}
				if !outcome.Success {
					j.Message = "completed with failed partitions"
				}
			}
		case errors.Is(err, split.ErrCancelled):
			j.Status = StatusCancelled
			j.Message = "cancelled"
			// partitions finished before the cancel point stay retrievable
			if outcome != nil {
				j.Artifacts = outcome.Artifacts
				j.ArchivePath = outcome.ArchivePath
				if outcome.Message != "" {
					j.Message = outcome.Message
				}
			}
		case split.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded):
			j.Status = StatusFailed
			j.Error = (&split.TimeoutError{Budget: t.opts.MaxDuration}).Error()
			j.Message = "failed"
		default:
			j.Status = StatusFailed
			j.Error = err.Error()
			j.Message = "failed"
		}
	})
	if err != nil {
		log.Warn().Err(err).Str("operation_id", id).Msg("split job finished with error")
	} else {
		log.Info().Str("operation_id", id).Msg("split job completed")
	}
}

func (t *Tracker) release(id string) {
	t.mu.Lock()
	if cancel, ok := t.cancels[id]; ok {
		cancel()
		delete(t.cancels, id)
	}
	t.mu.Unlock()
}

// Progress returns the current job record, or JobNotFound for unknown or
// expired operation ids.
func (t *Tracker) Progress(ctx context.Context, id string) (*Job, error) {
	job, ok, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &split.JobNotFoundError{OperationID: id}
	}
	return job, nil
}

// Cancel requests cooperative cancellation. Observed between partitions;
// already-terminal jobs are left untouched.
func (t *Tracker) Cancel(ctx context.Context, id string) error {
	job, ok, err := t.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return &split.JobNotFoundError{OperationID: id}
	}
	if job.Status.Terminal() {
		return nil
	}
	t.mu.Lock()
	cancel, exists := t.cancels[id]
	t.mu.Unlock()
	if exists {
		cancel()
	}
	log.Info().Str("operation_id", id).Msg("cancellation requested")
	return nil
}

// Wait blocks until all in-flight workers return. Used by shutdown and tests.
func (t *Tracker) Wait() { t.wg.Wait() }

func mapDone(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &split.TimeoutError{}
	}
	return split.ErrCancelled
}
