package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"stayscout/internal/domain"
)

var csvHeader = []string{
	"platform", "sources", "listing_id", "title", "price_per_night", "currency",
	"rating", "reviews", "distance_km", "address", "url",
}

func (s *FileSink) writeCSV(path string, result domain.AggregatedResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create csv %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("report: write csv header: %w", err)
	}

	for _, l := range result.Listings {
		row := []string{
			string(l.Platform),
			joinPlatforms(l.Sources),
			l.ListingID,
			l.Title,
			fmtFloat(l.PricePerNight),
			l.Currency,
			fmtFloat(l.Rating),
			fmtInt(l.Reviews),
			fmtFloat(l.DistanceKm),
			l.Address,
			l.URL,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("report: write csv row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// fmtFloat renders unknown values as an empty cell, never as zero.
func fmtFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func fmtInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func joinPlatforms(ps []domain.Platform) string {
	out := ""
	for i, p := range ps {
		if i > 0 {
			out += "+"
		}
		out += string(p)
	}
	return out
}
