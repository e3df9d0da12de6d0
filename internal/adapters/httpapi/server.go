// Package httpapi exposes the search engine over HTTP. Handlers are thin:
// they translate JSON to domain types and delegate to the orchestrator,
// registry and favorites service.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"stayscout/internal/domain"
	"stayscout/internal/favorites"
	"stayscout/internal/logger"
	"stayscout/internal/orchestrator"
	"stayscout/internal/registry"
	"stayscout/internal/report"
)

const dateLayout = "2006-01-02"

type Server struct {
	// baseCtx outlives individual requests so background jobs are not
	// cancelled when the enqueueing request returns.
	baseCtx   context.Context
	orch      *orchestrator.Orchestrator
	jobs      *registry.Registry
	sink      *report.FileSink
	favorites *favorites.Service
	log       *logger.Logger
}

// New builds the server. favs may be nil; the favorites routes are then not
// mounted.
func New(baseCtx context.Context, orch *orchestrator.Orchestrator, jobs *registry.Registry, sink *report.FileSink, favs *favorites.Service, log *logger.Logger) *Server {
	return &Server{baseCtx: baseCtx, orch: orch, jobs: jobs, sink: sink, favorites: favs, log: log}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Post("/api/search", s.handleStartSearch)
	r.Get("/api/search/{id}", s.handleSearchStatus)
	r.Get("/results/{filename}", s.handleResultFile)

	if s.favorites != nil {
		r.Route("/api/favorites", func(r chi.Router) {
			r.Post("/", s.handleAddFavorite)
			r.Get("/", s.handleListFavorites)
			r.Get("/lists", s.handleFavoriteLists)
			r.Put("/lists/rename", s.handleRenameList)
			r.Get("/{id}", s.handleGetFavorite)
			r.Delete("/{id}", s.handleDeleteFavorite)
		})
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("[http] %s %s (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type searchRequestBody struct {
	Location   string   `json:"location"`
	CheckIn    string   `json:"check_in"`
	CheckOut   string   `json:"check_out"`
	Guests     int      `json:"guests"`
	MaxPrice   *float64 `json:"max_price"`
	MinRating  *float64 `json:"min_rating"`
	MinReviews *int     `json:"min_reviews"`
	RadiusKm   *float64 `json:"radius_km"`
	Platforms  []string `json:"platforms"`
}

func (b searchRequestBody) toDomain() (domain.SearchRequest, error) {
	req := domain.SearchRequest{
		Location:   strings.TrimSpace(b.Location),
		Guests:     b.Guests,
		MaxPrice:   b.MaxPrice,
		MinRating:  b.MinRating,
		MinReviews: b.MinReviews,
		RadiusKm:   b.RadiusKm,
	}
	var err error
	if req.CheckIn, err = time.Parse(dateLayout, b.CheckIn); err != nil {
		return req, errors.New("check_in must be a YYYY-MM-DD date")
	}
	if req.CheckOut, err = time.Parse(dateLayout, b.CheckOut); err != nil {
		return req, errors.New("check_out must be a YYYY-MM-DD date")
	}
	for _, p := range b.Platforms {
		req.Platforms = append(req.Platforms, domain.Platform(strings.ToLower(strings.TrimSpace(p))))
	}
	return req, nil
}

func (s *Server) handleStartSearch(w http.ResponseWriter, r *http.Request) {
	var body searchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	req, err := body.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Jobs run past the lifetime of this request.
	id, err := s.orch.Start(s.baseCtx, req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "could not start search")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"search_id": id,
		"status":    string(domain.StatusQueued),
		"message":   "search started, poll /api/search/" + id,
	})
}

type platformStateBody struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Count  int    `json:"count"`
}

type listingBody struct {
	Platform      string   `json:"platform"`
	Sources       []string `json:"sources"`
	ListingID     string   `json:"listing_id"`
	Title         string   `json:"title"`
	PricePerNight *float64 `json:"price_per_night"`
	Currency      string   `json:"currency,omitempty"`
	Rating        *float64 `json:"rating"`
	Reviews       *int     `json:"reviews"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	Address       string   `json:"address,omitempty"`
	DistanceKm    *float64 `json:"distance_km"`
	ImageURLs     []string `json:"image_urls,omitempty"`
	URL           string   `json:"url"`
}

type searchStatusBody struct {
	SearchID     string                       `json:"search_id"`
	Status       string                       `json:"status"`
	Progress     string                       `json:"progress"`
	Platforms    map[string]platformStateBody `json:"platforms"`
	ResultsCount int                          `json:"results_count"`
	Results      []listingBody                `json:"results,omitempty"`
	ReportURL    string                       `json:"report_url,omitempty"`
	Error        string                       `json:"error,omitempty"`
	CreatedAt    time.Time                    `json:"created_at"`
	CompletedAt  *time.Time                   `json:"completed_at,omitempty"`
}

func (s *Server) handleSearchStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.jobs.Get(id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown search id")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load search")
		return
	}

	body := searchStatusBody{
		SearchID:     job.ID,
		Status:       string(job.Status),
		Progress:     job.Progress,
		Platforms:    make(map[string]platformStateBody, len(job.Platforms)),
		ResultsCount: len(job.Results),
		Error:        job.Error,
		CreatedAt:    job.CreatedAt,
		CompletedAt:  job.CompletedAt,
	}
	for p, st := range job.Platforms {
		body.Platforms[string(p)] = platformStateBody{Status: string(st.Status), Reason: st.Reason, Count: st.Count}
	}
	if job.Status == domain.StatusCompleted {
		body.ReportURL = "/results/" + job.ReportLocation
		for _, l := range job.Results {
			body.Results = append(body.Results, toListingBody(l))
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func toListingBody(l domain.ListingRecord) listingBody {
	sources := make([]string, len(l.Sources))
	for i, p := range l.Sources {
		sources[i] = string(p)
	}
	return listingBody{
		Platform:      string(l.Platform),
		Sources:       sources,
		ListingID:     l.ListingID,
		Title:         l.Title,
		PricePerNight: l.PricePerNight,
		Currency:      l.Currency,
		Rating:        l.Rating,
		Reviews:       l.Reviews,
		Latitude:      l.Latitude,
		Longitude:     l.Longitude,
		Address:       l.Address,
		DistanceKm:    l.DistanceKm,
		ImageURLs:     l.ImageURLs,
		URL:           l.URL,
	}
}

func (s *Server) handleResultFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	data, err := s.sink.Open(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	switch {
	case strings.HasSuffix(name, ".html"):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case strings.HasSuffix(name, ".csv"):
		w.Header().Set("Content-Type", "text/csv")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	_, _ = w.Write(data)
}

// Favorites handlers.

type favoriteBody struct {
	ListName string         `json:"list_name"`
	Location string         `json:"location"`
	Listing  map[string]any `json:"listing"`
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	var body favoriteBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	id, err := s.favorites.Add(r.Context(), body.ListName, body.Location, body.Listing)
	if err != nil {
		if errors.Is(err, favorites.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "could not save favorite")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	items, err := s.favorites.List(r.Context(), r.URL.Query().Get("list"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list favorites")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": items, "count": len(items)})
}

func (s *Server) handleFavoriteLists(w http.ResponseWriter, r *http.Request) {
	names, err := s.favorites.ListNames(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list favorite lists")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"lists": names})
}

func (s *Server) handleGetFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}
	fav, err := s.favorites.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, favorites.ErrNotFound) {
			writeError(w, http.StatusNotFound, "favorite not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load favorite")
		return
	}
	writeJSON(w, http.StatusOK, fav)
}

func (s *Server) handleRenameList(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OldName string `json:"old_name"`
		NewName string `json:"new_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	ok, err := s.favorites.RenameList(r.Context(), body.OldName, body.NewName)
	if err != nil {
		if errors.Is(err, favorites.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "could not rename list")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"renamed": true})
}

func (s *Server) handleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}
	ok, err := s.favorites.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, favorites.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "could not delete favorite")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "favorite not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
