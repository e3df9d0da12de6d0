// Package distance resolves the road distance from the searched location to
// each listing via the Google Distance Matrix API. Lookups are best effort:
// any failure yields unknown distances, never a failed search.
package distance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stayscout/internal/logger"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/distancematrix/json"

// The Distance Matrix API caps origins x destinations per request.
const maxDestinationsPerCall = 25

// GoogleClient implements ports.DistanceLookup against the Distance Matrix API.
type GoogleClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

func NewGoogleClient(apiKey string, log *logger.Logger) *GoogleClient {
	return &GoogleClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

type matrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int `json:"value"`
			} `json:"distance"`
		} `json:"elements"`
	} `json:"rows"`
}

// Distances returns one entry per destination, nil where the distance could
// not be resolved. The slice length always equals len(destinations).
func (g *GoogleClient) Distances(ctx context.Context, origin string, destinations []string) []*float64 {
	out := make([]*float64, len(destinations))
	if g.apiKey == "" || origin == "" || len(destinations) == 0 {
		return out
	}

	for start := 0; start < len(destinations); start += maxDestinationsPerCall {
		end := start + maxDestinationsPerCall
		if end > len(destinations) {
			end = len(destinations)
		}
		g.batch(ctx, origin, destinations[start:end], out[start:end])
	}
	return out
}

func (g *GoogleClient) batch(ctx context.Context, origin string, destinations []string, out []*float64) {
	q := url.Values{}
	q.Set("origins", origin)
	q.Set("destinations", strings.Join(destinations, "|"))
	q.Set("units", "metric")
	q.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		g.log.Warn("[distance] build request: %v", err)
		return
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn("[distance] lookup failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.log.Warn("[distance] lookup returned %s", resp.Status)
		return
	}

	var matrix matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&matrix); err != nil {
		g.log.Warn("[distance] decode response: %v", err)
		return
	}
	if matrix.Status != "OK" || len(matrix.Rows) == 0 {
		g.log.Warn("[distance] api status %q", matrix.Status)
		return
	}

	for i, el := range matrix.Rows[0].Elements {
		if i >= len(out) || el.Status != "OK" {
			continue
		}
		km := float64(el.Distance.Value) / 1000.0
		out[i] = &km
	}
}

// Noop satisfies ports.DistanceLookup when no API key is configured.
type Noop struct{}

func (Noop) Distances(_ context.Context, _ string, destinations []string) []*float64 {
	return make([]*float64, len(destinations))
}
