package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"stayscout/internal/domain"
	"stayscout/internal/logger"
	"stayscout/internal/ports"
)

// stubSearcher implements ports.PlatformSearcher for adapter tests.
type stubSearcher struct {
	platform domain.Platform
	search   func(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error)
}

func (s *stubSearcher) Platform() domain.Platform { return s.platform }
func (s *stubSearcher) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
	return s.search(ctx, req)
}

var _ ports.PlatformSearcher = (*stubSearcher)(nil)

func newAdapter(t time.Duration, search func(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error)) *Adapter {
	return NewAdapter(&stubSearcher{platform: domain.PlatformAirbnb, search: search}, t, logger.NewWriter(io.Discard))
}

func TestAdapterReturnsListings(t *testing.T) {
	a := newAdapter(time.Second, func(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
		return []domain.RawListing{{Title: "Cozy Cabin"}}, nil
	})

	listings, fail := a.Run(context.Background(), domain.SearchRequest{})
	if fail != nil {
		t.Fatalf("Run failed: %v", fail)
	}
	if len(listings) != 1 || listings[0].Title != "Cozy Cabin" {
		t.Errorf("unexpected listings: %+v", listings)
	}
}

func TestAdapterTimesOutSlowSearcher(t *testing.T) {
	a := newAdapter(30*time.Millisecond, func(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
		// Ignores cancellation entirely, like a stuck browser session.
		time.Sleep(500 * time.Millisecond)
		return []domain.RawListing{{Title: "too late"}}, nil
	})

	start := time.Now()
	_, fail := a.Run(context.Background(), domain.SearchRequest{})
	elapsed := time.Since(start)

	if fail == nil || fail.Kind != FailTimeout {
		t.Fatalf("fail = %v; want Timeout", fail)
	}
	if elapsed > 200*time.Millisecond {
		t.Errorf("adapter blocked %v waiting for an abandoned searcher", elapsed)
	}
}

func TestAdapterRecoversPanic(t *testing.T) {
	a := newAdapter(time.Second, func(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
		panic("selector index out of range")
	})

	_, fail := a.Run(context.Background(), domain.SearchRequest{})
	if fail == nil || fail.Kind != FailUnavailable {
		t.Fatalf("fail = %v; want Unavailable from recovered panic", fail)
	}
}

func TestAdapterClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"pre-classified failure", NewFailure(FailParse, errors.New("bad markup")), FailParse},
		{"blocked sentinel", fmt.Errorf("visit: %w", ErrBlocked), FailBlocked},
		{"parse sentinel", fmt.Errorf("extract: %w", ErrParse), FailParse},
		{"unavailable sentinel", fmt.Errorf("dial: %w", ErrUnavailable), FailUnavailable},
		{"deadline", context.DeadlineExceeded, FailTimeout},
		{"captcha text", errors.New("page shows captcha challenge"), FailBlocked},
		{"status 403", errors.New("request failed: status 403"), FailBlocked},
		{"status 429", errors.New("request failed: status 429"), FailBlocked},
		{"unknown", errors.New("connection reset"), FailUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAdapter(time.Second, func(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
				return nil, tt.err
			})
			_, fail := a.Run(context.Background(), domain.SearchRequest{})
			if fail == nil || fail.Kind != tt.want {
				t.Errorf("classify(%v) = %v; want %s", tt.err, fail, tt.want)
			}
		})
	}
}

func TestFailureErrorString(t *testing.T) {
	f := NewFailure(FailTimeout, context.DeadlineExceeded)
	if f.Error() != "Timeout: context deadline exceeded" {
		t.Errorf("Error() = %q", f.Error())
	}
	if !errors.Is(f, context.DeadlineExceeded) {
		t.Error("Failure should unwrap to its cause")
	}
}
