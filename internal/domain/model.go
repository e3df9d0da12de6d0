package domain

import "time"

// Core domain models shared across the engine. API request/response shapes
// live in the httpapi adapter; keep these decoupled where helpful.

// Platform identifies one accommodation site.
type Platform string

const (
	PlatformAirbnb    Platform = "airbnb"
	PlatformBooking   Platform = "booking"
	PlatformHotelsCom Platform = "hotelscom"
	PlatformExpedia   Platform = "expedia"
)

// KnownPlatforms is the fixed set of platforms a request may name.
var KnownPlatforms = []Platform{PlatformAirbnb, PlatformBooking, PlatformHotelsCom, PlatformExpedia}

func (p Platform) Known() bool {
	for _, k := range KnownPlatforms {
		if p == k {
			return true
		}
	}
	return false
}

// JobStatus is the lifecycle state of a search job:
// queued -> running -> completed | failed | timed_out.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusTimedOut  JobStatus = "timed_out"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimedOut
}

// SubStatus is the per-platform progress state within a running job.
type SubStatus string

const (
	SubPending   SubStatus = "pending"
	SubRunning   SubStatus = "running"
	SubSucceeded SubStatus = "succeeded"
	SubFailed    SubStatus = "failed"
)

func (s SubStatus) Terminal() bool { return s == SubSucceeded || s == SubFailed }

// SearchRequest describes one multi-platform accommodation search. It is
// immutable once a Job has been created from it.
type SearchRequest struct {
	Location   string
	CheckIn    time.Time
	CheckOut   time.Time
	Guests     int
	MaxPrice   *float64
	MinRating  *float64
	MinReviews *int
	RadiusKm   *float64
	Platforms  []Platform
}

// Nights returns the stay length in whole nights.
func (r SearchRequest) Nights() int {
	return int(r.CheckOut.Sub(r.CheckIn).Hours() / 24)
}

// PlatformState tracks one platform's progress inside a job.
type PlatformState struct {
	Status  SubStatus
	Reason  string
	Count   int
	EndedAt *time.Time
}

// Job is the unit of orchestration. It is owned by the registry; the
// orchestrator mutates it only through Registry.Update and everything else
// reads snapshots.
type Job struct {
	ID             string
	Request        SearchRequest
	Status         JobStatus
	Platforms      map[Platform]*PlatformState
	Progress       string
	Results        []ListingRecord
	Error          string
	ReportLocation string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// SucceededPlatforms counts platforms in the succeeded sub-status.
func (j *Job) SucceededPlatforms() int {
	n := 0
	for _, st := range j.Platforms {
		if st.Status == SubSucceeded {
			n++
		}
	}
	return n
}

// RawListing holds unprocessed scraped data exactly as a platform searcher
// produced it, before normalization.
type RawListing struct {
	Platform   Platform
	ListingID  string
	Title      string
	RawPrice   string
	Currency   string
	Location   string
	RawRating  string
	RawReviews string
	Latitude   *float64
	Longitude  *float64
	URL        string
	ImageURLs  []string
	ScrapedAt  time.Time
}

// ListingRecord is the canonical listing shape. Optional numeric fields are
// nil when the source did not expose them; they are never coerced to zero.
type ListingRecord struct {
	Platform      Platform
	ListingID     string
	Title         string
	PricePerNight *float64
	Currency      string
	Rating        *float64
	Reviews       *int
	Latitude      *float64
	Longitude     *float64
	Address       string
	ImageURLs     []string
	URL           string
	DistanceKm    *float64

	// Sources lists every platform the record was seen on after
	// deduplication; it always includes Platform itself.
	Sources []Platform
}

// PlatformCount carries the per-platform numbers shown on the report.
type PlatformCount struct {
	Requested   bool
	Succeeded   bool
	Returned    int
	AfterFilter int
}

// AggregatedResult is the ordered, deduplicated, filtered listing set plus
// the per-platform counters.
type AggregatedResult struct {
	Listings []ListingRecord
	Counts   map[Platform]*PlatformCount
}
