package normalize

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/publicsuffix"

	"stayscout/internal/domain"
	"stayscout/internal/logger"
)

var (
	priceRegexp    = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)
	nightsRegexp   = regexp.MustCompile(`(\d+)\s*nights?`)
	ratingRegexp   = regexp.MustCompile(`(\d+(?:[.,]\d{1,2})?)`)
	reviewsRegexp  = regexp.MustCompile(`([\d,]+)`)
	currencyRegexp = regexp.MustCompile(`(CHF|USD|EUR|GBP|\$|€|£|฿)`)
)

// tenPointPlatforms rate on a 0-10 scale; their scores are halved to the
// canonical 0-5 scale.
var tenPointPlatforms = map[domain.Platform]bool{
	domain.PlatformBooking:   true,
	domain.PlatformHotelsCom: true,
	domain.PlatformExpedia:   true,
}

// hostPlatforms maps registrable listing-URL domains to platforms, used when
// a searcher forgot to tag its output.
var hostPlatforms = map[string]domain.Platform{
	"airbnb.com":  domain.PlatformAirbnb,
	"booking.com": domain.PlatformBooking,
	"hotels.com":  domain.PlatformHotelsCom,
	"expedia.com": domain.PlatformExpedia,
}

// Normalizer converts platform-specific raw results into the canonical
// listing shape. Fields that cannot be parsed stay nil: unknown, not zero.
type Normalizer struct {
	log *logger.Logger
}

func New(log *logger.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// Record normalizes one raw listing. It returns an error only when the raw
// record is unusable (no URL and no title); callers drop and log such
// records without failing the batch.
func (n *Normalizer) Record(raw domain.RawListing) (domain.ListingRecord, error) {
	platform := raw.Platform
	if platform == "" {
		platform = platformFromURL(raw.URL)
	}
	if platform == "" {
		return domain.ListingRecord{}, fmt.Errorf("raw listing has no platform and no recognizable URL %q", raw.URL)
	}
	title := collapseWhitespace(raw.Title)
	if title == "" && raw.URL == "" {
		return domain.ListingRecord{}, fmt.Errorf("raw listing from %s has neither title nor URL", platform)
	}

	rec := domain.ListingRecord{
		Platform:  platform,
		ListingID: raw.ListingID,
		Title:     title,
		Currency:  raw.Currency,
		Latitude:  raw.Latitude,
		Longitude: raw.Longitude,
		Address:   collapseWhitespace(raw.Location),
		ImageURLs: raw.ImageURLs,
		URL:       raw.URL,
		Sources:   []domain.Platform{platform},
	}
	if rec.ListingID == "" {
		rec.ListingID = listingIDFromURL(raw.URL)
	}
	if rec.Currency == "" {
		rec.Currency = currencyRegexp.FindString(raw.RawPrice)
	}

	rec.PricePerNight = parsePrice(raw.RawPrice)
	rec.Rating = parseRating(raw.RawRating, tenPointPlatforms[platform])
	rec.Reviews = parseReviews(raw.RawReviews)
	return rec, nil
}

// Batch normalizes a slice of raw listings, dropping records Record rejects.
func (n *Normalizer) Batch(raw []domain.RawListing) []domain.ListingRecord {
	out := make([]domain.ListingRecord, 0, len(raw))
	for _, r := range raw {
		rec, err := n.Record(r)
		if err != nil {
			n.log.Warn("[normalize] dropping record: %v", err)
			continue
		}
		out = append(out, rec)
	}
	return out
}

// parsePrice extracts a per-night price. Multi-night totals like
// "$450 for 3 nights" are divided down to the nightly rate.
func parsePrice(raw string) *float64 {
	raw = strings.ToLower(raw)
	cleaned := strings.ReplaceAll(raw, ",", "")
	match := priceRegexp.FindString(cleaned)
	if match == "" {
		return nil
	}
	total, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}

	if m := nightsRegexp.FindStringSubmatch(raw); len(m) >= 2 {
		if nights, err := strconv.Atoi(m[1]); err == nil && nights > 1 {
			perNight := total / float64(nights)
			return &perNight
		}
	}
	return &total
}

// parseRating extracts a rating and converts 10-point scores to the 0-5
// canonical scale. Out-of-range values are treated as unknown.
func parseRating(raw string, tenPoint bool) *float64 {
	m := ratingRegexp.FindStringSubmatch(raw)
	if len(m) < 2 {
		return nil
	}
	val, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return nil
	}
	if tenPoint {
		val /= 2
	}
	if val < 0 || val > 5 {
		return nil
	}
	return &val
}

func parseReviews(raw string) *int {
	m := reviewsRegexp.FindStringSubmatch(strings.ReplaceAll(raw, ",", ""))
	if len(m) < 2 {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func platformFromURL(rawurl string) domain.Platform {
	u, err := url.Parse(rawurl)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(u.Hostname())
	if err != nil {
		registrable = u.Hostname()
	}
	return hostPlatforms[strings.ToLower(registrable)]
}

// listingIDFromURL falls back to the last non-empty path segment, which is
// the listing id on every supported platform.
func listingIDFromURL(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

func collapseWhitespace(s string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(s), unicode.IsSpace)
	return strings.Join(fields, " ")
}
