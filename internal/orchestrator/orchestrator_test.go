package orchestrator

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"stayscout/internal/aggregate"
	"stayscout/internal/domain"
	"stayscout/internal/logger"
	"stayscout/internal/normalize"
	"stayscout/internal/registry"
	"stayscout/internal/scrape"
	"stayscout/internal/workers"
)

type fakeSearcher struct {
	platform domain.Platform
	search   func(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error)
}

func (f *fakeSearcher) Platform() domain.Platform { return f.platform }
func (f *fakeSearcher) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
	return f.search(ctx, req)
}

type fakeSink struct {
	published int64
	err       error
}

func (f *fakeSink) Publish(ctx context.Context, jobID string, req domain.SearchRequest, result domain.AggregatedResult) (string, error) {
	atomic.AddInt64(&f.published, 1)
	if f.err != nil {
		return "", f.err
	}
	return "results/report_" + jobID + ".html", nil
}

type fixedDistance struct{ km float64 }

func (d fixedDistance) Distances(ctx context.Context, origin string, dests []string) []*float64 {
	out := make([]*float64, len(dests))
	for i := range dests {
		km := d.km
		out[i] = &km
	}
	return out
}

func rawListing(p domain.Platform, id, title, price string) domain.RawListing {
	return domain.RawListing{
		Platform:  p,
		ListingID: id,
		Title:     title,
		RawPrice:  price,
		URL:       "https://example.com/" + id,
		ScrapedAt: time.Now(),
	}
}

type harness struct {
	reg  *registry.Registry
	sink *fakeSink
	orc  *Orchestrator
}

func newHarness(t *testing.T, deadline time.Duration, searchers ...*fakeSearcher) *harness {
	t.Helper()
	log := logger.NewWriter(io.Discard)
	reg := registry.New(time.Hour, log)

	adapters := make(map[domain.Platform]*scrape.Adapter, len(searchers))
	for _, s := range searchers {
		adapters[s.platform] = scrape.NewAdapter(s, deadline*4, log)
	}

	sink := &fakeSink{}
	orc := New(reg, adapters, normalize.New(log), sink, fixedDistance{km: 1.2}, workers.NewPool(8, 0),
		Config{JobDeadline: deadline, Aggregation: aggregate.DefaultOptions()}, log)
	return &harness{reg: reg, sink: sink, orc: orc}
}

func searchRequest(platforms ...domain.Platform) domain.SearchRequest {
	return domain.SearchRequest{
		Location:  "Zermatt",
		CheckIn:   time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		CheckOut:  time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
		Guests:    2,
		Platforms: platforms,
	}
}

func waitTerminal(t *testing.T, reg *registry.Registry, id string, within time.Duration) domain.Job {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		job, err := reg.Get(id)
		if err != nil {
			t.Fatalf("job %s: %v", id, err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state within %v", id, within)
	return domain.Job{}
}

func TestStartRejectsInvalidRequest(t *testing.T) {
	h := newHarness(t, time.Second)
	_, err := h.orc.Start(context.Background(), searchRequest()) // empty platform set
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("Start = %v; want ErrInvalidRequest", err)
	}
	if h.reg.Len() != 0 {
		t.Error("no job may exist after a rejected request")
	}
}

func TestJobCompletesWithPartialFailure(t *testing.T) {
	// Airbnb returns 3 records; booking hangs past its timeout.
	airbnb := &fakeSearcher{platform: domain.PlatformAirbnb, search: func(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
		return []domain.RawListing{
			rawListing(domain.PlatformAirbnb, "1", "Cozy Cabin", "CHF 120"),
			rawListing(domain.PlatformAirbnb, "2", "Chalet Rosa", "CHF 210"),
			rawListing(domain.PlatformAirbnb, "3", "Matterhorn Loft", "CHF 300"),
		}, nil
	}}
	booking := &fakeSearcher{platform: domain.PlatformBooking, search: func(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	h := newHarness(t, 150*time.Millisecond, airbnb, booking)
	id, err := h.orc.Start(context.Background(), searchRequest(domain.PlatformAirbnb, domain.PlatformBooking))
	if err != nil {
		t.Fatal(err)
	}

	job := waitTerminal(t, h.reg, id, 2*time.Second)
	if job.Status != domain.StatusCompleted {
		t.Fatalf("status = %s; want completed", job.Status)
	}
	if st := job.Platforms[domain.PlatformAirbnb]; st.Status != domain.SubSucceeded {
		t.Errorf("airbnb sub-status = %s; want succeeded", st.Status)
	}
	if st := job.Platforms[domain.PlatformBooking]; st.Status != domain.SubFailed || st.Reason != string(scrape.FailTimeout) {
		t.Errorf("booking sub-status = %s (%s); want failed with Timeout", st.Status, st.Reason)
	}
	if len(job.Results) == 0 || len(job.Results) > 3 {
		t.Errorf("results = %d; want 1..3 deduplicated listings", len(job.Results))
	}
	if job.ReportLocation == "" {
		t.Error("completed job must carry a report location")
	}
	if job.CompletedAt == nil {
		t.Error("completed job must carry a completion timestamp")
	}
}

func TestJobFailsWhenAllPlatformsFail(t *testing.T) {
	down := &fakeSearcher{platform: domain.PlatformAirbnb, search: func(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
		return nil, scrape.ErrUnavailable
	}}
	blocked := &fakeSearcher{platform: domain.PlatformBooking, search: func(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
		return nil, scrape.ErrBlocked
	}}

	h := newHarness(t, time.Second, down, blocked)
	id, _ := h.orc.Start(context.Background(), searchRequest(domain.PlatformAirbnb, domain.PlatformBooking))

	job := waitTerminal(t, h.reg, id, 2*time.Second)
	if job.Status != domain.StatusFailed {
		t.Fatalf("status = %s; want failed", job.Status)
	}
	if atomic.LoadInt64(&h.sink.published) != 0 {
		t.Error("sink must not be invoked for a job with no successful platform")
	}
	if st := job.Platforms[domain.PlatformBooking]; st.Reason != string(scrape.FailBlocked) {
		t.Errorf("booking reason = %s; want BlockedOrCaptcha", st.Reason)
	}
}

func TestJobDeadlineCutsOffSlowPlatform(t *testing.T) {
	slow := &fakeSearcher{platform: domain.PlatformBooking, search: func(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
		time.Sleep(3 * time.Second) // ignores cancellation
		return []domain.RawListing{rawListing(domain.PlatformBooking, "late", "Late Hotel", "CHF 90")}, nil
	}}
	fast := &fakeSearcher{platform: domain.PlatformAirbnb, search: func(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
		return []domain.RawListing{rawListing(domain.PlatformAirbnb, "1", "Cozy Cabin", "CHF 120")}, nil
	}}

	h := newHarness(t, 100*time.Millisecond, fast, slow)
	start := time.Now()
	id, _ := h.orc.Start(context.Background(), searchRequest(domain.PlatformAirbnb, domain.PlatformBooking))

	job := waitTerminal(t, h.reg, id, time.Second)
	if elapsed := time.Since(start); elapsed > 800*time.Millisecond {
		t.Errorf("job took %v; must terminate at the deadline, not wait for the slow platform", elapsed)
	}
	if job.Status != domain.StatusCompleted {
		t.Fatalf("status = %s; want completed on partial results", job.Status)
	}
	if st := job.Platforms[domain.PlatformBooking]; st.Status != domain.SubFailed || st.Reason != string(scrape.FailTimeout) {
		t.Errorf("booking = %s (%s); want failed/Timeout", st.Status, st.Reason)
	}
	if len(job.Results) != 1 {
		t.Errorf("results = %d; want only the fast platform's listing", len(job.Results))
	}
}

func TestJobTimesOutWithNoSuccess(t *testing.T) {
	stuck := &fakeSearcher{platform: domain.PlatformAirbnb, search: func(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
		time.Sleep(3 * time.Second)
		return nil, nil
	}}

	h := newHarness(t, 80*time.Millisecond, stuck)
	id, _ := h.orc.Start(context.Background(), searchRequest(domain.PlatformAirbnb))

	job := waitTerminal(t, h.reg, id, time.Second)
	if job.Status != domain.StatusTimedOut {
		t.Fatalf("status = %s; want timed_out when the deadline elapses with no success", job.Status)
	}
}

func TestSinkFailureFailsJob(t *testing.T) {
	ok := &fakeSearcher{platform: domain.PlatformAirbnb, search: func(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
		return []domain.RawListing{rawListing(domain.PlatformAirbnb, "1", "Cozy Cabin", "CHF 120")}, nil
	}}

	h := newHarness(t, time.Second, ok)
	h.sink.err = errors.New("disk full")
	id, _ := h.orc.Start(context.Background(), searchRequest(domain.PlatformAirbnb))

	job := waitTerminal(t, h.reg, id, 2*time.Second)
	if job.Status != domain.StatusFailed {
		t.Fatalf("status = %s; want failed when the report cannot be published", job.Status)
	}
	if job.ReportLocation != "" {
		t.Error("failed job must not advertise a report location")
	}
}

func TestSinkInvokedExactlyOnce(t *testing.T) {
	ok := &fakeSearcher{platform: domain.PlatformAirbnb, search: func(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
		return []domain.RawListing{rawListing(domain.PlatformAirbnb, "1", "Cozy Cabin", "CHF 120")}, nil
	}}

	h := newHarness(t, time.Second, ok)
	id, _ := h.orc.Start(context.Background(), searchRequest(domain.PlatformAirbnb))
	waitTerminal(t, h.reg, id, 2*time.Second)

	if n := atomic.LoadInt64(&h.sink.published); n != 1 {
		t.Errorf("sink published %d times; want exactly 1", n)
	}
}

func TestDistancesFilledBestEffort(t *testing.T) {
	withAddr := &fakeSearcher{platform: domain.PlatformAirbnb, search: func(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
		l := rawListing(domain.PlatformAirbnb, "1", "Cozy Cabin", "CHF 120")
		l.Location = "Dorfstrasse 5, Zermatt"
		return []domain.RawListing{l}, nil
	}}

	h := newHarness(t, time.Second, withAddr)
	id, _ := h.orc.Start(context.Background(), searchRequest(domain.PlatformAirbnb))

	job := waitTerminal(t, h.reg, id, 2*time.Second)
	if len(job.Results) != 1 {
		t.Fatalf("results = %d; want 1", len(job.Results))
	}
	if d := job.Results[0].DistanceKm; d == nil || *d != 1.2 {
		t.Errorf("distance = %v; want 1.2 from the lookup", d)
	}
}

func TestMultipleJobsRunIndependently(t *testing.T) {
	ok := &fakeSearcher{platform: domain.PlatformAirbnb, search: func(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
		return []domain.RawListing{rawListing(domain.PlatformAirbnb, "1", "Cozy Cabin", "CHF 120")}, nil
	}}

	h := newHarness(t, time.Second, ok)
	var ids []string
	for i := 0; i < 5; i++ {
		id, err := h.orc.Start(context.Background(), searchRequest(domain.PlatformAirbnb))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		job := waitTerminal(t, h.reg, id, 3*time.Second)
		if job.Status != domain.StatusCompleted {
			t.Errorf("job %s status = %s; want completed", id, job.Status)
		}
	}
}
