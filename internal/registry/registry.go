package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"stayscout/internal/domain"
	"stayscout/internal/logger"
)

// ErrNotFound is returned for unknown or evicted job ids.
var ErrNotFound = errString("job not found")

type errString string

func (e errString) Error() string { return string(e) }

// Registry is the in-memory store of jobs, keyed by id. All mutations go
// through Update under the registry lock, so readers never observe a
// half-updated job. Jobs die with the process; terminal jobs older than the
// retention window are evicted by Sweep or lazily on access.
type Registry struct {
	mu        sync.RWMutex
	jobs      map[string]*domain.Job
	retention time.Duration
	log       *logger.Logger
	now       func() time.Time
}

func New(retention time.Duration, log *logger.Logger) *Registry {
	return &Registry{
		jobs:      make(map[string]*domain.Job),
		retention: retention,
		log:       log,
		now:       time.Now,
	}
}

// Create validates nothing; callers reject invalid requests before a job
// exists. It allocates a queued job with a collision-resistant id and one
// pending sub-status per requested platform.
func (r *Registry) Create(req domain.SearchRequest) string {
	platforms := make(map[domain.Platform]*domain.PlatformState, len(req.Platforms))
	for _, p := range req.Platforms {
		platforms[p] = &domain.PlatformState{Status: domain.SubPending}
	}

	job := &domain.Job{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    domain.StatusQueued,
		Platforms: platforms,
		Progress:  "queued",
		CreatedAt: r.now(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
	return job.ID
}

// Get returns a snapshot of the job. The snapshot shares no mutable state
// with the stored job, so callers may read it without holding any lock.
func (r *Registry) Get(id string) (domain.Job, error) {
	r.mu.RLock()
	job, ok := r.jobs[id]
	if ok && r.expired(job) {
		ok = false
	}
	var snap domain.Job
	if ok {
		snap = snapshot(job)
	}
	r.mu.RUnlock()

	if !ok {
		// Lazy eviction of jobs found expired on access.
		r.evictExpired(id)
		return domain.Job{}, ErrNotFound
	}
	return snap, nil
}

// Update applies mutate to the stored job atomically with respect to
// concurrent readers and other updates.
func (r *Registry) Update(id string, mutate func(*domain.Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	mutate(job)
	return nil
}

// Len reports the number of stored jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Sweep evicts expired jobs every interval until ctx is done.
func (r *Registry) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.sweepOnce(); n > 0 {
				r.log.Debug("[registry] evicted %d expired jobs", n)
			}
		}
	}
}

func (r *Registry) sweepOnce() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, job := range r.jobs {
		if r.expired(job) {
			delete(r.jobs, id)
			n++
		}
	}
	return n
}

// expired reports whether the job is past retention. Running and queued jobs
// are never expired, no matter their age.
func (r *Registry) expired(job *domain.Job) bool {
	if !job.Status.Terminal() {
		return false
	}
	ref := job.CreatedAt
	if job.CompletedAt != nil {
		ref = *job.CompletedAt
	}
	return r.now().Sub(ref) > r.retention
}

func (r *Registry) evictExpired(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok && r.expired(job) {
		delete(r.jobs, id)
	}
}

func snapshot(job *domain.Job) domain.Job {
	snap := *job
	snap.Platforms = make(map[domain.Platform]*domain.PlatformState, len(job.Platforms))
	for p, st := range job.Platforms {
		cp := *st
		snap.Platforms[p] = &cp
	}
	snap.Results = append([]domain.ListingRecord(nil), job.Results...)
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		snap.CompletedAt = &t
	}
	return snap
}
