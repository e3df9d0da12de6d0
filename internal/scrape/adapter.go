package scrape

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"stayscout/internal/domain"
	"stayscout/internal/logger"
	"stayscout/internal/ports"
)

// Adapter wraps one platform's searcher behind a uniform contract: a hard
// wall-clock timeout and failure classification. A searcher that ignores
// cancellation is abandoned, not waited for; its goroutine may keep running
// but the adapter returns at the deadline and any late result is dropped.
type Adapter struct {
	searcher ports.PlatformSearcher
	timeout  time.Duration
	log      *logger.Logger
}

func NewAdapter(searcher ports.PlatformSearcher, timeout time.Duration, log *logger.Logger) *Adapter {
	return &Adapter{searcher: searcher, timeout: timeout, log: log}
}

func (a *Adapter) Platform() domain.Platform { return a.searcher.Platform() }

type searchResult struct {
	listings []domain.RawListing
	err      error
}

// Run executes the wrapped searcher. It returns the raw listings or a
// *Failure; it never panics and never blocks past the configured timeout.
func (a *Adapter) Run(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, *Failure) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// Buffered so an abandoned searcher can still deliver and exit.
	resCh := make(chan searchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				a.log.Error("[%s] searcher panicked: %v", a.Platform(), r)
				resCh <- searchResult{err: NewFailure(FailUnavailable, fmt.Errorf("searcher panic: %v", r))}
			}
		}()
		listings, err := a.searcher.Search(ctx, req)
		resCh <- searchResult{listings: listings, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, NewFailure(FailTimeout, ctx.Err())
	case res := <-resCh:
		if res.err != nil {
			return nil, a.classify(res.err)
		}
		return res.listings, nil
	}
}

func (a *Adapter) classify(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewFailure(FailTimeout, err)
	case errors.Is(err, ErrBlocked):
		return NewFailure(FailBlocked, err)
	case errors.Is(err, ErrParse):
		return NewFailure(FailParse, err)
	case errors.Is(err, ErrUnavailable):
		return NewFailure(FailUnavailable, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewFailure(FailTimeout, err)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "captcha") || strings.Contains(msg, "403") || strings.Contains(msg, "429") {
		return NewFailure(FailBlocked, err)
	}
	return NewFailure(FailUnavailable, err)
}
