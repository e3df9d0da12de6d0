package report

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stayscout/internal/domain"
	"stayscout/internal/logger"
)

func ptr[T any](v T) *T { return &v }

func testResult() (domain.SearchRequest, domain.AggregatedResult) {
	req := domain.SearchRequest{
		Location:  "Zermatt",
		CheckIn:   time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		CheckOut:  time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC),
		Guests:    2,
		Platforms: []domain.Platform{domain.PlatformAirbnb, domain.PlatformBooking},
	}
	result := domain.AggregatedResult{
		Listings: []domain.ListingRecord{
			{
				Platform:      domain.PlatformAirbnb,
				ListingID:     "123",
				Title:         "Cozy Cabin",
				PricePerNight: ptr(120.0),
				Currency:      "CHF",
				Rating:        ptr(4.8),
				Reviews:       ptr(214),
				Address:       "Zermatt, Switzerland",
				URL:           "https://www.airbnb.com/rooms/123",
				Sources:       []domain.Platform{domain.PlatformAirbnb, domain.PlatformBooking},
			},
			{
				Platform:  domain.PlatformBooking,
				ListingID: "hotel-alp",
				Title:     "Alpine Hotel",
				Currency:  "CHF",
				URL:       "https://www.booking.com/hotel/ch/alp.html",
				Sources:   []domain.Platform{domain.PlatformBooking},
			},
		},
		Counts: map[domain.Platform]*domain.PlatformCount{
			domain.PlatformAirbnb:  {Requested: true, Succeeded: true, Returned: 1, AfterFilter: 1},
			domain.PlatformBooking: {Requested: true, Succeeded: true, Returned: 2, AfterFilter: 1},
		},
	}
	return req, result
}

func newTestSink(t *testing.T) (*FileSink, string) {
	t.Helper()
	dir := t.TempDir()
	sink, err := NewFileSink(dir, logger.NewWriter(io.Discard))
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	return sink, dir
}

func TestPublishWritesReportPair(t *testing.T) {
	sink, dir := newTestSink(t)
	req, result := testResult()

	location, err := sink.Publish(context.Background(), "job-1", req, result)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if location != "search_results_job-1.html" {
		t.Fatalf("location = %q, want search_results_job-1.html", location)
	}

	htmlBody, err := os.ReadFile(filepath.Join(dir, "search_results_job-1.html"))
	if err != nil {
		t.Fatalf("read html: %v", err)
	}
	for _, want := range []string{"Cozy Cabin", "Zermatt", "3 nights", "4.80", "214", "airbnb"} {
		if !strings.Contains(string(htmlBody), want) {
			t.Errorf("html report missing %q", want)
		}
	}

	csvBody, err := os.ReadFile(filepath.Join(dir, "search_results_job-1.csv"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(csvBody)), "\n")
	if len(lines) != 3 {
		t.Fatalf("csv has %d lines, want header + 2 rows", len(lines))
	}
	if !strings.Contains(lines[1], "airbnb+booking") {
		t.Errorf("csv row missing merged sources: %q", lines[1])
	}
}

func TestPublishRefusesDuplicate(t *testing.T) {
	sink, _ := newTestSink(t)
	req, result := testResult()

	if _, err := sink.Publish(context.Background(), "job-1", req, result); err != nil {
		t.Fatalf("first Publish: %v", err)
	}
	if _, err := sink.Publish(context.Background(), "job-1", req, result); err == nil {
		t.Fatal("second Publish for same job succeeded, want error")
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	sink, _ := newTestSink(t)
	req, result := testResult()
	if _, err := sink.Publish(context.Background(), "job-1", req, result); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if _, err := sink.Open("search_results_job-1.html"); err != nil {
		t.Fatalf("Open valid report: %v", err)
	}

	for _, name := range []string{"../secret", "..", "a/b.html", "a\\b.html"} {
		if _, err := sink.Open(name); err == nil {
			t.Errorf("Open(%q) succeeded, want rejection", name)
		}
	}
}

func TestOpenUnknownReport(t *testing.T) {
	sink, _ := newTestSink(t)
	if _, err := sink.Open("search_results_missing.html"); err == nil {
		t.Fatal("Open of missing report succeeded, want error")
	}
}

func TestCleanupOldRemovesStaleReports(t *testing.T) {
	sink, dir := newTestSink(t)
	req, result := testResult()
	if _, err := sink.Publish(context.Background(), "fresh", req, result); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	stale := filepath.Join(dir, "search_results_old.html")
	if err := os.WriteFile(stale, []byte("<html></html>"), 0o644); err != nil {
		t.Fatalf("write stale report: %v", err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, past, past); err != nil {
		t.Fatalf("age stale report: %v", err)
	}

	removed := sink.CleanupOld(24 * time.Hour)
	if removed != 1 {
		t.Fatalf("CleanupOld removed %d files, want 1", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale report still present")
	}
	if _, err := os.Stat(filepath.Join(dir, "search_results_fresh.html")); err != nil {
		t.Errorf("fresh report was removed: %v", err)
	}
}
