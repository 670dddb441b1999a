package jobs

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreCRUD(t *testing.T) {
	s := NewMemoryStore(time.Hour, time.Hour)
	defer s.Close()
	ctx := context.Background()

	job := &Job{ID: "op1", Status: StatusPending, CreatedAt: time.Now()}
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, job); err == nil {
		t.Fatal("duplicate id accepted")
	}

	got, ok, err := s.Get(ctx, "op1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	// Get hands back a copy
	got.Status = StatusFailed
	again, _, _ := s.Get(ctx, "op1")
	if again.Status != StatusPending {
		t.Fatal("stored job mutated through returned copy")
	}

	if err := s.Update(ctx, "op1", func(j *Job) { j.Progress = 40 }); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _, _ = s.Get(ctx, "op1")
	if again.Progress != 40 {
		t.Fatalf("progress = %d", again.Progress)
	}

	if err := s.Delete(ctx, "op1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "op1"); ok {
		t.Fatal("deleted job still visible")
	}
}

func TestMemoryStoreRetention(t *testing.T) {
	s := NewMemoryStore(10*time.Millisecond, time.Hour)
	defer s.Close()
	ctx := context.Background()

	_ = s.Create(ctx, &Job{ID: "done", Status: StatusRunning, CreatedAt: time.Now()})
	_ = s.Update(ctx, "done", func(j *Job) { j.Status = StatusCompleted })

	time.Sleep(25 * time.Millisecond)
	if _, ok, _ := s.Get(ctx, "done"); ok {
		t.Fatal("terminal job visible past retention")
	}

	// non-terminal jobs never expire
	_ = s.Create(ctx, &Job{ID: "live", Status: StatusRunning, CreatedAt: time.Now()})
	time.Sleep(25 * time.Millisecond)
	if _, ok, _ := s.Get(ctx, "live"); !ok {
		t.Fatal("running job expired")
	}

	s.pruneExpired()
	s.mu.RLock()
	_, exists := s.entries["done"]
	s.mu.RUnlock()
	if exists {
		t.Fatal("sweep left expired entry behind")
	}
}
