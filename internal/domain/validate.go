package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest marks a request rejected before any job is created.
// Wrap it with a human-readable reason; check with errors.Is.
var ErrInvalidRequest = errors.New("invalid request")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Validate checks the request against the constraints a job may be created
// under. It rejects synchronously; nothing about a job exists yet.
func (r SearchRequest) Validate() error {
	if r.Location == "" {
		return invalid("location is required")
	}
	if r.CheckIn.IsZero() || r.CheckOut.IsZero() {
		return invalid("check-in and check-out dates are required")
	}
	if !r.CheckOut.After(r.CheckIn) {
		return invalid("check-out must be after check-in")
	}
	if r.Guests <= 0 {
		return invalid("guest count must be positive, got %d", r.Guests)
	}
	if r.MaxPrice != nil && *r.MaxPrice < 0 {
		return invalid("max price must not be negative, got %.2f", *r.MaxPrice)
	}
	if r.MinRating != nil && (*r.MinRating < 0 || *r.MinRating > 5) {
		return invalid("min rating must be in [0,5], got %.2f", *r.MinRating)
	}
	if r.MinReviews != nil && *r.MinReviews < 0 {
		return invalid("min reviews must not be negative, got %d", *r.MinReviews)
	}
	if r.RadiusKm != nil && *r.RadiusKm < 0 {
		return invalid("search radius must not be negative, got %.2f", *r.RadiusKm)
	}
	if len(r.Platforms) == 0 {
		return invalid("platform set must not be empty")
	}
	seen := make(map[Platform]struct{}, len(r.Platforms))
	for _, p := range r.Platforms {
		if !p.Known() {
			return invalid("unknown platform %q", p)
		}
		if _, dup := seen[p]; dup {
			return invalid("platform %q listed twice", p)
		}
		seen[p] = struct{}{}
	}
	return nil
}
