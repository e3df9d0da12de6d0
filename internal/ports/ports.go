package ports

import (
	"context"

	"stayscout/internal/domain"
)

// PlatformSearcher is one site's scraping operation. Implementations are
// long-running and unreliable; the scrape adapter wraps them with a hard
// timeout and failure classification, so a searcher only has to honor ctx
// as best it can and return whatever it found.
type PlatformSearcher interface {
	Platform() domain.Platform
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error)
}

// ReportSink publishes the aggregated result of a job and returns an opaque
// location the job stores for retrieval. Called exactly once per job, and
// only after every platform result has been folded in.
type ReportSink interface {
	Publish(ctx context.Context, jobID string, req domain.SearchRequest, result domain.AggregatedResult) (location string, err error)
}

// DistanceLookup resolves road distances from an origin to listing
// addresses. A nil entry means the distance is unavailable; lookups are
// best-effort and must never fail a job.
type DistanceLookup interface {
	Distances(ctx context.Context, origin string, destinations []string) []*float64
}
