package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is the in-process job table: one independently locked entry per
// operation id, pruned by TTL once a job reaches a terminal state.
type MemoryStore struct {
	retention time.Duration

	mu      sync.RWMutex
	entries map[string]*memEntry

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type memEntry struct {
	mu        sync.Mutex
	job       Job
	expiresAt time.Time // zero until terminal
}

// NewMemoryStore creates the store and starts its pruning sweep.
func NewMemoryStore(retention, sweepInterval time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = time.Hour
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	s := &MemoryStore{
		retention: retention,
		entries:   map[string]*memEntry{},
		stop:      make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweep(sweepInterval)
	return s
}

func (s *MemoryStore) Create(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.entries[job.ID] = &memEntry{job: *job}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Job, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		return nil, false, nil
	}
	job := e.job
	job.Artifacts = append([]ArtifactInfo(nil), e.job.Artifacts...)
	return &job, true, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*Job)) error {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.job)
	if e.job.Status.Terminal() && e.expiresAt.IsZero() {
		e.expiresAt = time.Now().Add(s.retention)
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) sweep(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.pruneExpired()
		}
	}
}

func (s *MemoryStore) pruneExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		e.mu.Lock()
		expired := !e.expiresAt.IsZero() && now.After(e.expiresAt)
		e.mu.Unlock()
		if expired {
			delete(s.entries, id)
		}
	}
}

func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	return nil
}
