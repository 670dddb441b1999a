package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/local/pdfsplitd/internal/split"
)

func newTestTracker(t *testing.T, opts Options) (*Tracker, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(time.Minute, time.Minute)
	t.Cleanup(func() { store.Close() })
	return New(store, opts), store
}

func waitStatus(t *testing.T, tr *Tracker, id string, want Status) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := tr.Progress(context.Background(), id)
		if err != nil {
			t.Fatalf("progress: %v", err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := tr.Progress(context.Background(), id)
	t.Fatalf("job %s never reached %s, last status %s", id, want, job.Status)
	return nil
}

func TestTrackerCompletesJob(t *testing.T) {
	tr, _ := newTestTracker(t, Options{MaxConcurrent: 2})

	started := make(chan struct{})
	release := make(chan struct{})
	id, err := tr.Submit(Meta{Strategy: "page_ranges", OriginalName: "doc.pdf"}, func(ctx context.Context, report split.ProgressFunc) (*Outcome, error) {
		close(started)
		<-release
		report(1, 2)
		report(2, 2)
		return &Outcome{
			Success:     true,
			Artifacts:   []ArtifactInfo{{FileName: "doc_part_1.pdf", PageCount: 3}},
			ArchivePath: "/tmp/x.zip",
		}, nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	<-started
	close(release)
	job := waitStatus(t, tr, id, StatusCompleted)
	if job.Progress != 100 {
		t.Fatalf("progress = %d, want 100", job.Progress)
	}
	if len(job.Artifacts) != 1 || job.Artifacts[0].FileName != "doc_part_1.pdf" {
		t.Fatalf("artifacts not recorded: %+v", job.Artifacts)
	}
	if job.Strategy != "page_ranges" || job.OriginalName != "doc.pdf" {
		t.Fatalf("meta not recorded: %+v", job)
	}
	if job.StartedAt == nil || job.FinishedAt == nil {
		t.Fatal("expected start and finish timestamps")
	}
	tr.Wait()
}

func TestTrackerCancelStopsBetweenPartitions(t *testing.T) {
	tr, _ := newTestTracker(t, Options{MaxConcurrent: 1})

	firstDone := make(chan struct{})
	cancelled := make(chan struct{})
	id, err := tr.Submit(Meta{Strategy: "file_size"}, func(ctx context.Context, report split.ProgressFunc) (*Outcome, error) {
		report(1, 3)
		close(firstDone)
		<-cancelled
		if err := ctx.Err(); err != nil {
			return nil, split.ErrCancelled
		}
		report(3, 3)
		return &Outcome{Success: true}, nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	<-firstDone
	if err := tr.Cancel(context.Background(), id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	close(cancelled)

	job := waitStatus(t, tr, id, StatusCancelled)
	if job.Progress == 100 {
		t.Fatal("cancelled job must not report full progress")
	}
	tr.Wait()

	// cancelling a terminal job is a no-op
	if err := tr.Cancel(context.Background(), id); err != nil {
		t.Fatalf("cancel terminal: %v", err)
	}
}

func TestTrackerFailureRecordsError(t *testing.T) {
	tr, _ := newTestTracker(t, Options{})

	id, err := tr.Submit(Meta{Strategy: "section"}, func(ctx context.Context, report split.ProgressFunc) (*Outcome, error) {
		return nil, &split.NoStructureFoundError{SectionType: "chapters"}
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	job := waitStatus(t, tr, id, StatusFailed)
	if job.Error == "" {
		t.Fatal("expected error message on failed job")
	}
	tr.Wait()
}

func TestTrackerTimeoutFailsJob(t *testing.T) {
	tr, _ := newTestTracker(t, Options{MaxDuration: 20 * time.Millisecond})

	id, err := tr.Submit(Meta{Strategy: "content_aware"}, func(ctx context.Context, report split.ProgressFunc) (*Outcome, error) {
		<-ctx.Done()
		return nil, &split.TimeoutError{}
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	job := waitStatus(t, tr, id, StatusFailed)
	if job.Error == "" {
		t.Fatal("expected timeout recorded as error")
	}
	tr.Wait()
}

func TestTrackerProgressUnknownJob(t *testing.T) {
	tr, _ := newTestTracker(t, Options{})

	_, err := tr.Progress(context.Background(), "no-such-id")
	var nf *split.JobNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want JobNotFoundError", err)
	}
	if err := tr.Cancel(context.Background(), "no-such-id"); !errors.As(err, &nf) {
		t.Fatalf("cancel err = %v, want JobNotFoundError", err)
	}
}

func TestTrackerConcurrencyGate(t *testing.T) {
	tr, _ := newTestTracker(t, Options{MaxConcurrent: 1})

	blocker := make(chan struct{})
	first, err := tr.Submit(Meta{}, func(ctx context.Context, report split.ProgressFunc) (*Outcome, error) {
		<-blocker
		return &Outcome{Success: true}, nil
	})
	if err != nil {
		t.Fatalf("submit first: %v", err)
	}
	waitStatus(t, tr, first, StatusRunning)

	second, err := tr.Submit(Meta{}, func(ctx context.Context, report split.ProgressFunc) (*Outcome, error) {
		return &Outcome{Success: true}, nil
	})
	if err != nil {
		t.Fatalf("submit second: %v", err)
	}

	// the gate holds the second job in PENDING while the first runs
	time.Sleep(30 * time.Millisecond)
	job, err := tr.Progress(context.Background(), second)
	if err != nil {
		t.Fatalf("progress second: %v", err)
	}
	if job.Status != StatusPending {
		t.Fatalf("second job status = %s, want PENDING", job.Status)
	}

	close(blocker)
	waitStatus(t, tr, first, StatusCompleted)
	waitStatus(t, tr, second, StatusCompleted)
	tr.Wait()
}
