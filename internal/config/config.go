package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Env        string
	ListenAddr string
	ResultsDir string

	PlatformTimeout   time.Duration
	JobDeadline       time.Duration
	JobRetention      time.Duration
	ScrapeConcurrency int
	RateLimit         time.Duration
	MaxRetries        int

	DatabaseURL      string
	GoogleMapsAPIKey string

	Tuning Tuning
}

// Tuning holds the aggregation knobs loaded from the optional yaml file.
// Zero values mean "use the built-in default".
type Tuning struct {
	CoordToleranceDeg float64 `yaml:"coord_tolerance_deg"`
	PriceTolerance    float64 `yaml:"price_tolerance"`
	RatingWeight      float64 `yaml:"rating_weight"`
	ReviewsWeight     float64 `yaml:"reviews_weight"`
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		_, err := fmt.Sscanf(v, "%d", &out)
		if err == nil {
			return out
		}
	}
	return def
}

func Load() (Config, error) {
	// Missing .env is the normal case in production.
	_ = godotenv.Load()

	cfg := Config{
		Env:               getenv("APP_ENV", "development"),
		ListenAddr:        getenv("LISTEN_ADDR", ":8080"),
		ResultsDir:        getenv("RESULTS_DIR", "./results"),
		PlatformTimeout:   time.Duration(getenvInt("PLATFORM_TIMEOUT_SECONDS", 90)) * time.Second,
		JobDeadline:       time.Duration(getenvInt("JOB_DEADLINE_SECONDS", 300)) * time.Second,
		JobRetention:      time.Duration(getenvInt("JOB_RETENTION_HOURS", 6)) * time.Hour,
		ScrapeConcurrency: getenvInt("SCRAPE_CONCURRENCY", 4),
		RateLimit:         time.Duration(getenvInt("RATE_LIMIT_MS", 2000)) * time.Millisecond,
		MaxRetries:        getenvInt("MAX_RETRIES", 3),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		GoogleMapsAPIKey:  os.Getenv("GOOGLE_MAPS_API_KEY"),
	}
	if cfg.ScrapeConcurrency < 1 {
		return cfg, fmt.Errorf("SCRAPE_CONCURRENCY must be at least 1, got %d", cfg.ScrapeConcurrency)
	}
	if cfg.PlatformTimeout <= 0 || cfg.JobDeadline <= 0 {
		return cfg, fmt.Errorf("timeouts must be positive")
	}

	tuning, err := loadTuning(getenv("CONFIG_FILE", "configs/app.yaml"))
	if err != nil {
		return cfg, err
	}
	cfg.Tuning = tuning
	return cfg, nil
}

// loadTuning reads the optional yaml tuning file. A missing file at the
// default path is fine; an explicit CONFIG_FILE that cannot be read is not.
func loadTuning(path string) (Tuning, error) {
	var t Tuning
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && os.Getenv("CONFIG_FILE") == "" {
			return t, nil
		}
		return t, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return t, nil
}
