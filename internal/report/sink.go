package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"stayscout/internal/domain"
	"stayscout/internal/logger"
)

// FileSink renders the aggregated result to a CSV and an HTML comparison
// report under a results directory. The HTML filename is the job's
// ReportLocation; the CSV sits next to it.
type FileSink struct {
	dir string
	log *logger.Logger

	mu        sync.Mutex
	published map[string]struct{}
}

// NewFileSink creates the results directory if needed.
func NewFileSink(dir string, log *logger.Logger) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create results dir: %w", err)
	}
	return &FileSink{dir: dir, log: log, published: make(map[string]struct{})}, nil
}

// Publish writes both artifacts and returns the HTML filename. It refuses a
// second publish for the same job.
func (s *FileSink) Publish(ctx context.Context, jobID string, req domain.SearchRequest, result domain.AggregatedResult) (string, error) {
	s.mu.Lock()
	if _, dup := s.published[jobID]; dup {
		s.mu.Unlock()
		return "", fmt.Errorf("report: job %s already published", jobID)
	}
	s.published[jobID] = struct{}{}
	s.mu.Unlock()

	csvName := fmt.Sprintf("search_results_%s.csv", jobID)
	if err := s.writeCSV(filepath.Join(s.dir, csvName), result); err != nil {
		return "", err
	}

	htmlName := fmt.Sprintf("search_results_%s.html", jobID)
	if err := s.writeHTML(filepath.Join(s.dir, htmlName), req, result); err != nil {
		return "", err
	}

	s.log.Info("[report] job %s published: %s, %s", jobID, htmlName, csvName)
	return htmlName, nil
}

// Open returns the stored report content for a location handed out by
// Publish. Locations containing path separators are rejected so a client
// can never read outside the results directory.
func (s *FileSink) Open(location string) ([]byte, error) {
	if location == "" || strings.ContainsAny(location, `/\`) || strings.Contains(location, "..") {
		return nil, fmt.Errorf("report: invalid location %q", location)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, location))
	if err != nil {
		return nil, fmt.Errorf("report: open %q: %w", location, err)
	}
	return data, nil
}

// CleanupOld removes report artifacts older than maxAge, mirroring the
// startup cleanup of the results directory.
func (s *FileSink) CleanupOld(maxAge time.Duration) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "search_results_") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(s.dir, e.Name())) == nil {
			removed++
		}
	}
	if removed > 0 {
		s.log.Info("[report] removed %d stale report files", removed)
	}
	return removed
}
