package aggregate

import (
	"math"
	"sort"
	"strings"

	"stayscout/internal/domain"
)

// Options are the tuning knobs for deduplication and ranking. The source
// sites disagree on formats and precision, so the tolerances are deliberate
// configuration, not constants.
type Options struct {
	// CoordToleranceDeg is the max per-axis coordinate difference for two
	// records to count as the same place. 0.005 deg is roughly 500 m.
	CoordToleranceDeg float64
	// PriceTolerance is the max relative nightly-price difference for a
	// merge, e.g. 0.05 for 5%.
	PriceTolerance float64
	// RatingWeight and ReviewsWeight compose the ranking score:
	// rating*RatingWeight + ln(1+reviews)*ReviewsWeight, descending.
	RatingWeight  float64
	ReviewsWeight float64
}

// DefaultOptions returns the tolerances and weights used when no tuning
// config is provided.
func DefaultOptions() Options {
	return Options{
		CoordToleranceDeg: 0.005,
		PriceTolerance:    0.05,
		RatingWeight:      1.0,
		ReviewsWeight:     0.1,
	}
}

// Aggregate merges, deduplicates, filters and ranks listings from all
// platforms. It is a pure function of its inputs: identical input sets yield
// identical output orderings regardless of input order.
func Aggregate(records []domain.ListingRecord, req domain.SearchRequest, opts Options) domain.AggregatedResult {
	counts := make(map[domain.Platform]*domain.PlatformCount, len(req.Platforms))
	for _, p := range req.Platforms {
		counts[p] = &domain.PlatformCount{Requested: true}
	}
	for _, rec := range records {
		c, ok := counts[rec.Platform]
		if !ok {
			c = &domain.PlatformCount{}
			counts[rec.Platform] = c
		}
		c.Returned++
	}

	// Presort so deduplication sees records in a canonical order and the
	// whole pipeline is permutation-independent.
	sorted := append([]domain.ListingRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return identityLess(sorted[i], sorted[j]) })

	merged := dedupe(sorted, opts)
	filtered := filter(merged, req)
	rank(filtered, opts)

	for _, rec := range filtered {
		for _, src := range rec.Sources {
			if c, ok := counts[src]; ok {
				c.AfterFilter++
			}
		}
	}

	return domain.AggregatedResult{Listings: filtered, Counts: counts}
}

// dedupe folds records that describe the same listing across platforms. For
// each group the most complete record survives, tagged with every source
// platform.
func dedupe(records []domain.ListingRecord, opts Options) []domain.ListingRecord {
	var out []domain.ListingRecord
	for _, rec := range records {
		idx := -1
		for i := range out {
			if sameListing(out[i], rec, opts) {
				idx = i
				break
			}
		}
		if idx < 0 {
			if len(rec.Sources) == 0 {
				rec.Sources = []domain.Platform{rec.Platform}
			}
			out = append(out, rec)
			continue
		}
		out[idx] = merge(out[idx], rec)
	}
	return out
}

func sameListing(a, b domain.ListingRecord, opts Options) bool {
	if normTitle(a.Title) != normTitle(b.Title) {
		return false
	}
	if !samePlace(a, b, opts.CoordToleranceDeg) {
		return false
	}
	return priceClose(a.PricePerNight, b.PricePerNight, opts.PriceTolerance)
}

// samePlace compares coordinates when both records have them and falls back
// to normalized address equality otherwise.
func samePlace(a, b domain.ListingRecord, tolDeg float64) bool {
	if a.Latitude != nil && a.Longitude != nil && b.Latitude != nil && b.Longitude != nil {
		return math.Abs(*a.Latitude-*b.Latitude) <= tolDeg &&
			math.Abs(*a.Longitude-*b.Longitude) <= tolDeg
	}
	if a.Address != "" && b.Address != "" {
		return normTitle(a.Address) == normTitle(b.Address)
	}
	// One side has coordinates, the other only an address (or nothing):
	// not enough evidence either way; the title match carries it.
	return true
}

// priceClose treats an unknown price on either side as compatible; missing
// data never blocks a merge.
func priceClose(a, b *float64, tolerance float64) bool {
	if a == nil || b == nil {
		return true
	}
	hi := math.Max(*a, *b)
	if hi == 0 {
		return true
	}
	return math.Abs(*a-*b)/hi <= tolerance
}

// merge keeps the record with more complete data and unions the rest.
func merge(a, b domain.ListingRecord) domain.ListingRecord {
	keep, other := a, b
	if completeness(b) > completeness(a) {
		keep, other = b, a
	}

	if keep.PricePerNight == nil {
		keep.PricePerNight = other.PricePerNight
	}
	if keep.Rating == nil {
		keep.Rating = other.Rating
	}
	if keep.Reviews == nil {
		keep.Reviews = other.Reviews
	}
	if keep.DistanceKm == nil {
		keep.DistanceKm = other.DistanceKm
	}
	if keep.Latitude == nil || keep.Longitude == nil {
		keep.Latitude, keep.Longitude = other.Latitude, other.Longitude
	}
	if len(keep.ImageURLs) == 0 {
		keep.ImageURLs = other.ImageURLs
	}

	keep.Sources = unionSources(a.Sources, b.Sources, a.Platform, b.Platform)
	return keep
}

func completeness(r domain.ListingRecord) int {
	n := 0
	for _, known := range []bool{
		r.Rating != nil,
		r.Reviews != nil,
		r.DistanceKm != nil,
		r.PricePerNight != nil,
		r.Latitude != nil && r.Longitude != nil,
	} {
		if known {
			n++
		}
	}
	return n
}

func unionSources(a, b []domain.Platform, pa, pb domain.Platform) []domain.Platform {
	seen := make(map[domain.Platform]struct{})
	var out []domain.Platform
	add := func(p domain.Platform) {
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, p := range a {
		add(p)
	}
	add(pa)
	for _, p := range b {
		add(p)
	}
	add(pb)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// filter drops records with a known violation of the request's limits. An
// unknown value never counts as a violation.
func filter(records []domain.ListingRecord, req domain.SearchRequest) []domain.ListingRecord {
	out := records[:0]
	for _, r := range records {
		if req.MaxPrice != nil && r.PricePerNight != nil && *r.PricePerNight > *req.MaxPrice {
			continue
		}
		if req.MinRating != nil && r.Rating != nil && *r.Rating < *req.MinRating {
			continue
		}
		if req.MinReviews != nil && r.Reviews != nil && *r.Reviews < *req.MinReviews {
			continue
		}
		if req.RadiusKm != nil && r.DistanceKm != nil && *r.DistanceKm > *req.RadiusKm {
			continue
		}
		out = append(out, r)
	}
	return out
}

// rank orders records by composite score descending, then price ascending,
// then platform and listing id for a fully deterministic ordering.
func rank(records []domain.ListingRecord, opts Options) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		sa, sb := score(a, opts), score(b, opts)
		if sa != sb {
			return sa > sb
		}
		if pa, pb := priceKey(a), priceKey(b); pa != pb {
			return pa < pb
		}
		return identityLess(a, b)
	})
}

// score treats unknown rating/reviews as zero for ORDERING only; the record
// itself keeps its unknown markers.
func score(r domain.ListingRecord, opts Options) float64 {
	var rating, reviews float64
	if r.Rating != nil {
		rating = *r.Rating
	}
	if r.Reviews != nil {
		reviews = float64(*r.Reviews)
	}
	return opts.RatingWeight*rating + opts.ReviewsWeight*math.Log1p(reviews)
}

// priceKey sorts unknown prices after every known price.
func priceKey(r domain.ListingRecord) float64 {
	if r.PricePerNight == nil {
		return math.MaxFloat64
	}
	return *r.PricePerNight
}

func identityLess(a, b domain.ListingRecord) bool {
	if a.Platform != b.Platform {
		return a.Platform < b.Platform
	}
	if a.ListingID != b.ListingID {
		return a.ListingID < b.ListingID
	}
	return a.URL < b.URL
}

func normTitle(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
