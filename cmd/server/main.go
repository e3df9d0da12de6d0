package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"stayscout/internal/adapters/httpapi"
	pg "stayscout/internal/adapters/postgres"
	"stayscout/internal/aggregate"
	"stayscout/internal/config"
	"stayscout/internal/distance"
	"stayscout/internal/domain"
	"stayscout/internal/favorites"
	"stayscout/internal/logger"
	"stayscout/internal/normalize"
	"stayscout/internal/orchestrator"
	"stayscout/internal/ports"
	"stayscout/internal/registry"
	"stayscout/internal/report"
	"stayscout/internal/scrape"
	"stayscout/internal/scrape/airbnb"
	"stayscout/internal/scrape/booking"
	"stayscout/internal/scrape/expedia"
	"stayscout/internal/scrape/hotelscom"
	"stayscout/internal/workers"
)

const sweepInterval = 10 * time.Minute

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Error("config: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := registry.New(cfg.JobRetention, log)
	go jobs.Sweep(ctx, sweepInterval)

	sink, err := report.NewFileSink(cfg.ResultsDir, log)
	if err != nil {
		log.Error("results dir: %v", err)
		os.Exit(1)
	}
	if removed := sink.CleanupOld(cfg.JobRetention); removed > 0 {
		log.Info("cleaned up %d stale report files", removed)
	}

	adapters, err := buildAdapters(cfg, log)
	if err != nil {
		log.Error("scrapers: %v", err)
		os.Exit(1)
	}

	var dist ports.DistanceLookup = distance.Noop{}
	if cfg.GoogleMapsAPIKey != "" {
		dist = distance.NewGoogleClient(cfg.GoogleMapsAPIKey, log)
	} else {
		log.Warn("GOOGLE_MAPS_API_KEY not set, distances will be unavailable")
	}

	orch := orchestrator.New(
		jobs,
		adapters,
		normalize.New(log),
		sink,
		dist,
		workers.NewPool(cfg.ScrapeConcurrency, cfg.RateLimit),
		orchestrator.Config{
			JobDeadline: cfg.JobDeadline,
			Aggregation: aggregationOptions(cfg.Tuning),
		},
		log,
	)

	// Favorites need a database; everything else runs without one.
	var favs *favorites.Service
	if cfg.DatabaseURL != "" {
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("db connect: %v", err)
			os.Exit(1)
		}
		defer db.Close()
		favs = favorites.New(db)
		log.Info("favorites store connected")
	} else {
		log.Warn("DATABASE_URL not set, favorites endpoints disabled")
	}

	srv := httpapi.New(ctx, orch, jobs, sink, favs, log)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	log.Info("listening on %s (env %s)", cfg.ListenAddr, cfg.Env)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down on %s", sig)
		cancel()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown: %v", err)
		}
	case err := <-errCh:
		log.Error("%v", fmt.Errorf("server error: %w", err))
		os.Exit(1)
	}
}

func buildAdapters(cfg config.Config, log *logger.Logger) (map[domain.Platform]*scrape.Adapter, error) {
	bookingSearcher, err := booking.New(log, cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	searchers := []ports.PlatformSearcher{
		airbnb.New(log, cfg.MaxRetries),
		bookingSearcher,
		hotelscom.New(log, cfg.MaxRetries),
		expedia.New(log, cfg.MaxRetries),
	}

	adapters := make(map[domain.Platform]*scrape.Adapter, len(searchers))
	for _, s := range searchers {
		adapters[s.Platform()] = scrape.NewAdapter(s, cfg.PlatformTimeout, log)
	}
	return adapters, nil
}

func aggregationOptions(t config.Tuning) aggregate.Options {
	opts := aggregate.DefaultOptions()
	if t.CoordToleranceDeg > 0 {
		opts.CoordToleranceDeg = t.CoordToleranceDeg
	}
	if t.PriceTolerance > 0 {
		opts.PriceTolerance = t.PriceTolerance
	}
	if t.RatingWeight > 0 {
		opts.RatingWeight = t.RatingWeight
	}
	if t.ReviewsWeight > 0 {
		opts.ReviewsWeight = t.ReviewsWeight
	}
	return opts
}
