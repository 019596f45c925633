package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"shopify-entity-sync/internal/domain"
)

// SyncJobStore is an in-memory outbox
type SyncJobStore struct {
	mu         sync.Mutex
	jobs       map[string]*domain.SyncJob
	now        func() time.Time
	leaseOwner string
	leaseUntil time.Time
}

// NewSyncJobStore creates an empty outbox
func NewSyncJobStore() *SyncJobStore {
	return &SyncJobStore{jobs: make(map[string]*domain.SyncJob), now: time.Now}
}

// SetClock replaces the time source
func (s *SyncJobStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *SyncJobStore) Enqueue(ctx context.Context, job *domain.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *job
	s.jobs[job.ID] = &c
	return nil
}

func (s *SyncJobStore) ListReady(ctx context.Context, limit int) ([]*domain.SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var ready []*domain.SyncJob
	for _, j := range s.jobs {
		if j.Status == domain.SyncJobPending && !j.NextAttemptAt.After(now) {
			c := *j
			ready = append(ready, &c)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].CreatedAt.Equal(ready[j].CreatedAt) {
			return ready[i].ID < ready[j].ID
		}
		return ready[i].CreatedAt.Before(ready[j].CreatedAt)
	})
	if limit > 0 && len(ready) > limit {
		ready = ready[:limit]
	}
	return ready, nil
}

func (s *SyncJobStore) MarkDone(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = domain.SyncJobDone
	j.UpdatedAt = s.now()
	return nil
}

func (s *SyncJobStore) MarkFailed(ctx context.Context, id string, cause error, dead bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := s.now()
	j.NextAttemptAt = now.Add(domain.SyncBackoff(j.Attempts))
	j.Attempts++
	if cause != nil {
		j.LastError = cause.Error()
	}
	if dead {
		j.Status = domain.SyncJobDead
	}
	j.UpdatedAt = now
	return nil
}

func (s *SyncJobStore) CountByStatus(ctx context.Context, status domain.SyncJobStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, j := range s.jobs {
		if j.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *SyncJobStore) AcquireLease(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.leaseOwner != "" && s.leaseOwner != owner && now.Before(s.leaseUntil) {
		return false, nil
	}
	s.leaseOwner = owner
	s.leaseUntil = now.Add(ttl)
	return true, nil
}

func (s *SyncJobStore) ReleaseLease(ctx context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.leaseOwner == owner {
		s.leaseOwner = ""
		s.leaseUntil = time.Time{}
	}
	return nil
}

// Get returns a copy of one job
func (s *SyncJobStore) Get(id string) (*domain.SyncJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	c := *j
	return &c, true
}
