package orchestrator

import (
	"context"
	"fmt"
	"time"

	"stayscout/internal/aggregate"
	"stayscout/internal/domain"
	"stayscout/internal/logger"
	"stayscout/internal/normalize"
	"stayscout/internal/ports"
	"stayscout/internal/registry"
	"stayscout/internal/scrape"
	"stayscout/internal/workers"
)

// Config holds the orchestrator's timing and aggregation knobs.
type Config struct {
	// JobDeadline bounds a whole job; platforms still running when it
	// elapses are marked failed with a Timeout reason and the job proceeds
	// on partial results.
	JobDeadline time.Duration
	Aggregation aggregate.Options
}

// Orchestrator runs search jobs: it fans a request out to every requested
// platform adapter, folds outcomes into the registry as they arrive, and on
// completion aggregates, publishes the report and marks the job terminal.
type Orchestrator struct {
	registry   *registry.Registry
	adapters   map[domain.Platform]*scrape.Adapter
	normalizer *normalize.Normalizer
	sink       ports.ReportSink
	distance   ports.DistanceLookup
	pool       *workers.Pool
	cfg        Config
	log        *logger.Logger
}

func New(
	reg *registry.Registry,
	adapters map[domain.Platform]*scrape.Adapter,
	normalizer *normalize.Normalizer,
	sink ports.ReportSink,
	distance ports.DistanceLookup,
	pool *workers.Pool,
	cfg Config,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry:   reg,
		adapters:   adapters,
		normalizer: normalizer,
		sink:       sink,
		distance:   distance,
		pool:       pool,
		cfg:        cfg,
		log:        log,
	}
}

// Start validates the request, creates the job and launches Run in the
// background. The job id is usable for status polling immediately.
func (o *Orchestrator) Start(ctx context.Context, req domain.SearchRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	id := o.registry.Create(req)
	go o.Run(ctx, id)
	return id, nil
}

type outcome struct {
	platform domain.Platform
	listings []domain.RawListing
	failure  *scrape.Failure
}

// Run executes one job to a terminal state. Platform adapters run
// concurrently and independently; one platform's failure or slowness never
// blocks its siblings.
func (o *Orchestrator) Run(ctx context.Context, jobID string) {
	job, err := o.registry.Get(jobID)
	if err != nil {
		o.log.Error("[orchestrator] job %s vanished before start: %v", jobID, err)
		return
	}
	req := job.Request
	platforms := req.Platforms

	if err := o.registry.Update(jobID, func(j *domain.Job) {
		j.Status = domain.StatusRunning
		j.Progress = fmt.Sprintf("0/%d platforms done", len(platforms))
		for _, st := range j.Platforms {
			st.Status = domain.SubRunning
		}
	}); err != nil {
		o.log.Error("[orchestrator] job %s: %v", jobID, err)
		return
	}
	o.log.Info("[orchestrator] job %s running: %d platforms for %q", jobID, len(platforms), req.Location)

	// Buffered to the platform count so abandoned adapters can deliver
	// late without leaking a goroutine; late outcomes are simply never read.
	results := make(chan outcome, len(platforms))
	for _, p := range platforms {
		platform := p
		adapter, ok := o.adapters[platform]
		if !ok {
			results <- outcome{platform: platform, failure: scrape.NewFailure(scrape.FailUnavailable, fmt.Errorf("no adapter for %s", platform))}
			continue
		}
		o.pool.Submit(func() {
			listings, failure := adapter.Run(ctx, req)
			results <- outcome{platform: platform, listings: listings, failure: failure}
		})
	}

	deadline := time.NewTimer(o.cfg.JobDeadline)
	defer deadline.Stop()

	pending := make(map[domain.Platform]struct{}, len(platforms))
	for _, p := range platforms {
		pending[p] = struct{}{}
	}

	deadlineHit := false
collect:
	for len(pending) > 0 {
		select {
		case res := <-results:
			delete(pending, res.platform)
			o.fold(jobID, len(platforms), len(platforms)-len(pending), res)
		case <-deadline.C:
			deadlineHit = true
			break collect
		case <-ctx.Done():
			deadlineHit = true
			break collect
		}
	}

	if deadlineHit && len(pending) > 0 {
		o.log.Warn("[orchestrator] job %s deadline elapsed with %d platforms unfinished", jobID, len(pending))
		_ = o.registry.Update(jobID, func(j *domain.Job) {
			for p := range pending {
				st := j.Platforms[p]
				if st != nil && !st.Status.Terminal() {
					st.Status = domain.SubFailed
					st.Reason = string(scrape.FailTimeout)
				}
			}
			j.Progress = "deadline elapsed, finishing with partial results"
		})
	}

	o.finish(ctx, jobID, deadlineHit)
}

// fold normalizes one platform's outcome into the job's partial buffer and
// updates the sub-status and progress message. Late outcomes for already
// terminal sub-statuses are discarded.
func (o *Orchestrator) fold(jobID string, total, done int, res outcome) {
	var records []domain.ListingRecord
	if res.failure == nil {
		records = o.normalizer.Batch(res.listings)
	}

	err := o.registry.Update(jobID, func(j *domain.Job) {
		st := j.Platforms[res.platform]
		if st == nil || st.Status.Terminal() {
			return
		}
		now := time.Now()
		st.EndedAt = &now
		if res.failure != nil {
			st.Status = domain.SubFailed
			st.Reason = string(res.failure.Kind)
			o.log.Warn("[orchestrator] job %s: %s failed: %v", jobID, res.platform, res.failure)
		} else {
			st.Status = domain.SubSucceeded
			st.Count = len(records)
			j.Results = append(j.Results, records...)
			o.log.Info("[orchestrator] job %s: %s returned %d listings", jobID, res.platform, len(records))
		}
		j.Progress = fmt.Sprintf("%d/%d platforms done", done, total)
	})
	if err != nil {
		o.log.Error("[orchestrator] job %s fold: %v", jobID, err)
	}
}

// finish decides the terminal status, aggregates, publishes the report and
// makes the job visible as completed only after the sink has written it.
func (o *Orchestrator) finish(ctx context.Context, jobID string, deadlineHit bool) {
	job, err := o.registry.Get(jobID)
	if err != nil {
		o.log.Error("[orchestrator] job %s lost before finish: %v", jobID, err)
		return
	}

	if job.SucceededPlatforms() == 0 {
		status := domain.StatusFailed
		reason := "all platforms failed"
		if deadlineHit {
			status = domain.StatusTimedOut
			reason = "job deadline elapsed before any platform succeeded"
		}
		o.terminate(jobID, status, reason)
		return
	}

	o.fillDistances(ctx, jobID, &job)

	result := aggregate.Aggregate(job.Results, job.Request, o.cfg.Aggregation)
	for p, c := range result.Counts {
		if st, ok := job.Platforms[p]; ok {
			c.Succeeded = st.Status == domain.SubSucceeded
		}
	}

	location, err := o.sink.Publish(ctx, jobID, job.Request, result)
	if err != nil {
		o.log.Error("[orchestrator] job %s report publish failed: %v", jobID, err)
		o.terminate(jobID, domain.StatusFailed, fmt.Sprintf("report sink: %v", err))
		return
	}

	now := time.Now()
	_ = o.registry.Update(jobID, func(j *domain.Job) {
		j.Status = domain.StatusCompleted
		j.Results = result.Listings
		j.ReportLocation = location
		j.CompletedAt = &now
		j.Progress = fmt.Sprintf("completed: %d listings", len(result.Listings))
	})
	o.log.Info("[orchestrator] job %s completed: %d listings, report at %s", jobID, len(result.Listings), location)
}

func (o *Orchestrator) terminate(jobID string, status domain.JobStatus, reason string) {
	now := time.Now()
	_ = o.registry.Update(jobID, func(j *domain.Job) {
		j.Status = status
		j.Error = reason
		j.CompletedAt = &now
		j.Progress = reason
	})
	o.log.Warn("[orchestrator] job %s %s: %s", jobID, status, reason)
}

// fillDistances resolves listing distances best-effort before aggregation.
// Lookup failures leave the distance unknown; they never fail the job.
func (o *Orchestrator) fillDistances(ctx context.Context, jobID string, job *domain.Job) {
	if o.distance == nil {
		return
	}
	var idx []int
	var addrs []string
	for i, rec := range job.Results {
		if rec.DistanceKm == nil && rec.Address != "" {
			idx = append(idx, i)
			addrs = append(addrs, rec.Address)
		}
	}
	if len(addrs) == 0 {
		return
	}

	distances := o.distance.Distances(ctx, job.Request.Location, addrs)
	if len(distances) != len(addrs) {
		o.log.Warn("[orchestrator] job %s: distance lookup returned %d of %d entries", jobID, len(distances), len(addrs))
		return
	}
	for n, i := range idx {
		job.Results[i].DistanceKm = distances[n]
	}
}
