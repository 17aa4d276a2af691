// Package checkpoint implements the durable resume state for the download
// engine: which URLs are downloaded, which pages were visited, and which
// filter values were exercised. The persisted snapshot is write-ahead; a
// URL listed there is only "probably done" and is re-verified against the
// filesystem on resume.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonesrussell/finfetch/internal/domain"
	"github.com/jonesrussell/finfetch/internal/logger"
	"github.com/jonesrussell/finfetch/internal/urlutil"
)

// ErrCorruptState is returned by Load when the checkpoint file exists but
// does not parse as the expected schema.
var ErrCorruptState = errors.New("corrupt checkpoint state")

// Stats are the aggregate checkpoint counters.
type Stats struct {
	TotalDownloaded       int `json:"total_downloaded"`
	TotalVisited          int `json:"total_visited"`
	TotalFilterIterations int `json:"total_filter_iterations"`
}

// persistedState is the on-disk JSON document. The URL collections
// round-trip set-equal; record details ride alongside so the resume
// fast-path can reconstruct results without network I/O.
type persistedState struct {
	DownloadedURLs []string                          `json:"downloadedUrls"`
	VisitedPages   []string                          `json:"visitedPages"`
	UsedFilters    []string                          `json:"usedFilters"`
	LastUpdated    time.Time                         `json:"lastUpdated"`
	Stats          Stats                             `json:"stats"`
	Records        map[string]*domain.DownloadRecord `json:"records,omitempty"`
}

// Store is the resumable state store. All mutation serializes through one
// lock; it is safe for concurrent use by many workers.
type Store struct {
	path string
	log  logger.Interface

	mu         sync.Mutex
	downloaded map[string]*domain.DownloadRecord
	visited    map[string]struct{}
	filters    map[string]struct{}
	pathIndex  map[string]string // relative local path -> normalized URL
	stats      Stats
}

// New creates an empty store persisting to path.
func New(path string, log logger.Interface) *Store {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Store{
		path:       path,
		log:        log.WithComponent("checkpoint"),
		downloaded: make(map[string]*domain.DownloadRecord),
		visited:    make(map[string]struct{}),
		filters:    make(map[string]struct{}),
		pathIndex:  make(map[string]string),
	}
}

// Load reads the persisted state. A missing file is not an error; a file
// that fails to parse returns ErrCorruptState and leaves the store empty
// so the caller can decide to abort or start fresh.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Info("no checkpoint found, starting fresh", "path", s.path)
			return nil
		}
		return fmt.Errorf("read checkpoint %s: %w", s.path, err)
	}

	var state persistedState
	if unmarshalErr := json.Unmarshal(data, &state); unmarshalErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptState, s.path, unmarshalErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, raw := range state.DownloadedURLs {
		key := s.normalize(raw)
		rec := state.Records[key]
		if rec == nil {
			rec = &domain.DownloadRecord{URL: key, Status: domain.StatusSucceeded}
		}
		s.downloaded[key] = rec
		if rec.LocalPath != nil {
			s.pathIndex[*rec.LocalPath] = key
		}
	}
	for _, page := range state.VisitedPages {
		s.visited[s.normalize(page)] = struct{}{}
	}
	for _, f := range state.UsedFilters {
		s.filters[f] = struct{}{}
	}
	s.stats = state.Stats

	s.log.Info("loaded checkpoint",
		"path", s.path,
		"downloaded", len(s.downloaded),
		"visited", len(s.visited),
	)
	return nil
}

// Save writes the state atomically: marshal to a temp file in the same
// directory, then rename over the destination. A reader always sees either
// the old or the new snapshot.
func (s *Store) Save() error {
	s.mu.Lock()
	state := persistedState{
		DownloadedURLs: make([]string, 0, len(s.downloaded)),
		VisitedPages:   make([]string, 0, len(s.visited)),
		UsedFilters:    make([]string, 0, len(s.filters)),
		LastUpdated:    time.Now().UTC(),
		Stats:          s.stats,
		Records:        make(map[string]*domain.DownloadRecord, len(s.downloaded)),
	}
	for url, rec := range s.downloaded {
		state.DownloadedURLs = append(state.DownloadedURLs, url)
		state.Records[url] = rec
	}
	for page := range s.visited {
		state.VisitedPages = append(state.VisitedPages, page)
	}
	for f := range s.filters {
		state.UsedFilters = append(state.UsedFilters, f)
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(&state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return fmt.Errorf("create checkpoint directory: %w", mkErr)
		}
	}

	tmp := s.path + ".tmp"
	if writeErr := os.WriteFile(tmp, data, 0o644); writeErr != nil {
		return fmt.Errorf("write checkpoint %s: %w", tmp, writeErr)
	}
	if renameErr := os.Rename(tmp, s.path); renameErr != nil {
		return fmt.Errorf("replace checkpoint %s: %w", s.path, renameErr)
	}

	s.log.Debug("saved checkpoint", "path", s.path)
	return nil
}

// IsDownloaded reports whether the URL is recorded as downloaded.
func (s *Store) IsDownloaded(url string) bool {
	key := s.normalize(url)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.downloaded[key]
	return ok
}

// VerifyDownloaded returns the stored record for a downloaded URL, but only
// after confirming the recorded file still exists under root. The persisted
// membership is write-ahead, so disk is the final authority.
func (s *Store) VerifyDownloaded(root, url string) (*domain.DownloadRecord, bool) {
	key := s.normalize(url)

	s.mu.Lock()
	rec, ok := s.downloaded[key]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}

	if rec.LocalPath == nil {
		// Legacy entry without a recorded path; trust membership.
		return rec, true
	}
	if _, err := os.Stat(filepath.Join(root, *rec.LocalPath)); err != nil {
		s.log.Warn("checkpointed file missing on disk, will re-download",
			"url", key,
			"local_path", *rec.LocalPath,
		)
		return nil, false
	}
	return rec, true
}

// MarkDownloaded records a completed download.
func (s *Store) MarkDownloaded(url string, rec domain.DownloadRecord) {
	key := s.normalize(url)
	rec.URL = key

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.downloaded[key]; !exists {
		s.stats.TotalDownloaded++
	}
	s.downloaded[key] = &rec
	if rec.LocalPath != nil {
		s.pathIndex[*rec.LocalPath] = key
	}
}

// IsVisited reports whether the page URL has been visited.
func (s *Store) IsVisited(pageURL string) bool {
	key := s.normalize(pageURL)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.visited[key]
	return ok
}

// MarkVisited records a visited page.
func (s *Store) MarkVisited(pageURL string) {
	key := s.normalize(pageURL)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.visited[key]; !exists {
		s.stats.TotalVisited++
	}
	s.visited[key] = struct{}{}
}

// IsFilterUsed reports whether the filter value has been exercised.
func (s *Store) IsFilterUsed(filterValue string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.filters[filterValue]
	return ok
}

// MarkFilterUsed records an exercised filter value.
func (s *Store) MarkFilterUsed(filterValue string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.filters[filterValue]; !exists {
		s.stats.TotalFilterIterations++
	}
	s.filters[filterValue] = struct{}{}
}

// Stats returns the aggregate counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Records returns a copy of all download records.
func (s *Store) Records() []domain.DownloadRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.DownloadRecord, 0, len(s.downloaded))
	for _, rec := range s.downloaded {
		out = append(out, *rec)
	}
	return out
}

// PathOwner resolves the URL that wrote relPath, satisfying the path
// allocator's ownership check.
func (s *Store) PathOwner(relPath string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	url, ok := s.pathIndex[relPath]
	return url, ok
}

// Clear resets the in-memory state and removes the persisted file.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.downloaded = make(map[string]*domain.DownloadRecord)
	s.visited = make(map[string]struct{})
	s.filters = make(map[string]struct{})
	s.pathIndex = make(map[string]string)
	s.stats = Stats{}
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint %s: %w", s.path, err)
	}

	s.log.Info("checkpoint cleared", "path", s.path)
	return nil
}

// normalize canonicalizes a URL key; unparseable input falls back to the
// raw string so membership checks still behave consistently.
func (s *Store) normalize(url string) string {
	norm, err := urlutil.Normalize(url)
	if err != nil {
		return url
	}
	return norm
}
