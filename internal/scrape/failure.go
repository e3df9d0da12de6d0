package scrape

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a platform scrape did not produce results.
type FailureKind string

const (
	FailTimeout     FailureKind = "Timeout"
	FailBlocked     FailureKind = "BlockedOrCaptcha"
	FailParse       FailureKind = "ParseError"
	FailUnavailable FailureKind = "Unavailable"
)

// Failure is a classified per-platform error. It is recorded on the job's
// sub-status and never aborts the job as a whole.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// NewFailure wraps err with a classification.
func NewFailure(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

// Sentinel errors searcher implementations may return to pre-classify their
// own failures; the adapter maps everything else to a kind itself.
var (
	ErrBlocked     = errors.New("blocked or captcha challenge")
	ErrParse       = errors.New("page structure not parseable")
	ErrUnavailable = errors.New("platform unavailable")
)
