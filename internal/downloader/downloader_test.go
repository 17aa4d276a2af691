package downloader_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/finfetch/internal/checkpoint"
	"github.com/jonesrussell/finfetch/internal/classify"
	"github.com/jonesrussell/finfetch/internal/domain"
	"github.com/jonesrussell/finfetch/internal/downloader"
	"github.com/jonesrussell/finfetch/internal/fetcher"
	"github.com/jonesrussell/finfetch/internal/metrics"
	"github.com/jonesrussell/finfetch/internal/organize"
	"github.com/jonesrussell/finfetch/internal/retry"
)

// stubFetcher serves canned bodies and records call concurrency.
type stubFetcher struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	calls       map[string]int
	delay       time.Duration
	failWith    func(url string, attempt int) error
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{calls: map[string]int{}}
}

func (s *stubFetcher) Fetch(_ context.Context, url string, dst io.Writer) (*fetcher.Result, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.calls[url]++
	attempt := s.calls[url]
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	if s.failWith != nil {
		if err := s.failWith(url, attempt); err != nil {
			return nil, err
		}
	}

	body := "document body for " + url
	n, _ := io.WriteString(dst, body)
	return &fetcher.Result{StatusCode: 200, ContentType: "application/pdf", SizeBytes: int64(n)}, nil
}

func (s *stubFetcher) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

type harness struct {
	root  string
	store *checkpoint.Store
	fetch *stubFetcher
	stats *metrics.Metrics
	coord *downloader.Coordinator
}

func newHarness(t *testing.T, root string, cfg downloader.Config) *harness {
	t.Helper()

	store := checkpoint.New(filepath.Join(root, "checkpoint.json"), nil)
	require.NoError(t, store.Load())

	org := organize.New(classify.New("Acme", classify.WithMaxYear(2026)), 0)
	alloc := organize.NewAllocator(root, store)
	fetch := newStubFetcher()
	stats := metrics.NewMetrics()

	cfg.Root = root
	if cfg.RateLimitDelay == 0 {
		cfg.RateLimitDelay = time.Millisecond
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	}

	return &harness{
		root:  root,
		store: store,
		fetch: fetch,
		stats: stats,
		coord: downloader.New(store, org, alloc, fetch, stats, nil, cfg),
	}
}

func candidates(n int) []domain.Candidate {
	out := make([]domain.Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Candidate{
			URL:           fmt.Sprintf("https://x.com/filings/2023_Q1_report_%d.pdf", i),
			SourcePageURL: "https://x.com/investors",
		})
	}
	return out
}

func TestRunDownloadsBatch(t *testing.T) {
	h := newHarness(t, t.TempDir(), downloader.Config{WorkerCount: 2})

	records, err := h.coord.Run(context.Background(), candidates(4))
	require.NoError(t, err)
	require.Len(t, records, 4)

	for _, rec := range records {
		assert.Equal(t, domain.StatusSucceeded, rec.Status)
		require.NotNil(t, rec.LocalPath)
		assert.FileExists(t, filepath.Join(h.root, *rec.LocalPath))
		// Classified into company/year/period buckets.
		assert.True(t, strings.HasPrefix(*rec.LocalPath, filepath.Join("Acme", "2023", "Q1")), *rec.LocalPath)
	}
	assert.Equal(t, int64(4), h.stats.GetDownloadedCount())
}

func TestRunBoundsConcurrency(t *testing.T) {
	h := newHarness(t, t.TempDir(), downloader.Config{WorkerCount: 3})
	h.fetch.delay = 20 * time.Millisecond

	records, err := h.coord.Run(context.Background(), candidates(12))
	require.NoError(t, err)
	assert.Len(t, records, 12)
	assert.LessOrEqual(t, h.fetch.maxInFlight, 3)
	assert.Positive(t, h.fetch.maxInFlight)
}

func TestRunIsolatesFailures(t *testing.T) {
	h := newHarness(t, t.TempDir(), downloader.Config{WorkerCount: 2})

	cands := candidates(7)
	for i := 0; i < 3; i++ {
		cands = append(cands, domain.Candidate{
			URL: fmt.Sprintf("https://x.com/bad/2023_Q1_gone_%d.pdf", i),
		})
	}
	h.fetch.failWith = func(url string, _ int) error {
		if strings.Contains(url, "/bad/") {
			return &fetcher.PermanentError{URL: url, StatusCode: 404}
		}
		return nil
	}

	records, err := h.coord.Run(context.Background(), cands)
	require.NoError(t, err)
	require.Len(t, records, 10)

	var ok, failed int
	for _, rec := range records {
		switch rec.Status {
		case domain.StatusSucceeded:
			ok++
		case domain.StatusFailed:
			failed++
			require.NotNil(t, rec.LastError)
			assert.Equal(t, 1, rec.Attempts) // permanent errors are not retried
		}
	}
	assert.Equal(t, 7, ok)
	assert.Equal(t, 3, failed)
	assert.Equal(t, int64(3), h.stats.GetFailedCount())
}

func TestRunRetriesTransientFailures(t *testing.T) {
	h := newHarness(t, t.TempDir(), downloader.Config{WorkerCount: 1})

	h.fetch.failWith = func(url string, attempt int) error {
		if attempt < 3 {
			return &fetcher.TransientError{URL: url, StatusCode: 503}
		}
		return nil
	}

	records, err := h.coord.Run(context.Background(), candidates(1))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.StatusSucceeded, records[0].Status)
	assert.Equal(t, 3, records[0].Attempts)
	assert.Equal(t, int64(2), h.stats.GetRetryCount())
}

func TestRunIdempotentAcrossRuns(t *testing.T) {
	root := t.TempDir()

	first := newHarness(t, root, downloader.Config{WorkerCount: 2})
	records, err := first.coord.Run(context.Background(), candidates(5))
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, 5, first.fetch.totalCalls())

	// A fresh coordinator over the persisted checkpoint re-fetches nothing.
	second := newHarness(t, root, downloader.Config{WorkerCount: 2})
	records2, err2 := second.coord.Run(context.Background(), candidates(5))
	require.NoError(t, err2)
	require.Len(t, records2, 5)
	assert.Zero(t, second.fetch.totalCalls())
	assert.Equal(t, int64(5), second.stats.GetSkippedCount())

	for _, rec := range records2 {
		assert.Equal(t, domain.StatusSucceeded, rec.Status)
	}
}

func TestRunRefetchesWhenFileMissing(t *testing.T) {
	root := t.TempDir()

	first := newHarness(t, root, downloader.Config{WorkerCount: 1})
	records, err := first.coord.Run(context.Background(), candidates(1))
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Delete the saved file behind the checkpoint's back.
	require.NoError(t, os.Remove(filepath.Join(root, *records[0].LocalPath)))

	second := newHarness(t, root, downloader.Config{WorkerCount: 1})
	records2, err2 := second.coord.Run(context.Background(), candidates(1))
	require.NoError(t, err2)
	require.Len(t, records2, 1)
	assert.Equal(t, 1, second.fetch.totalCalls())
	assert.FileExists(t, filepath.Join(root, *records2[0].LocalPath))
}

func TestRunCollapsesDuplicateCandidates(t *testing.T) {
	h := newHarness(t, t.TempDir(), downloader.Config{WorkerCount: 2})

	cands := []domain.Candidate{
		{URL: "https://x.com/2023_Q1_report.pdf"},
		{URL: "https://x.com/2023_Q1_report.pdf/"},
		{URL: "https://x.com:443/2023_Q1_report.pdf"},
	}

	records, err := h.coord.Run(context.Background(), cands)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, h.fetch.totalCalls())
}

func TestRunCancelledContext(t *testing.T) {
	h := newHarness(t, t.TempDir(), downloader.Config{WorkerCount: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := h.coord.Run(ctx, candidates(4))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, records, 4)
	for _, rec := range records {
		assert.Equal(t, domain.StatusPending, rec.Status)
	}
	assert.Zero(t, h.fetch.totalCalls())
}

func TestSubmitStreamsRecords(t *testing.T) {
	h := newHarness(t, t.TempDir(), downloader.Config{WorkerCount: 2})

	var records []domain.DownloadRecord
	for rec := range h.coord.Submit(context.Background(), candidates(4)) {
		records = append(records, rec)
	}

	require.Len(t, records, 4)
	for _, rec := range records {
		assert.Equal(t, domain.StatusSucceeded, rec.Status)
	}

	// The checkpoint is flushed before the channel closes.
	fresh := checkpoint.New(filepath.Join(h.root, "checkpoint.json"), nil)
	require.NoError(t, fresh.Load())
	assert.Equal(t, 4, fresh.Stats().TotalDownloaded)
}

func TestRunReportsProgress(t *testing.T) {
	var mu sync.Mutex
	var seen []int

	cfg := downloader.Config{
		WorkerCount: 1,
		OnProgress: func(completed, total int, _ string) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, completed)
			assert.Equal(t, 3, total)
		},
	}
	h := newHarness(t, t.TempDir(), cfg)

	_, err := h.coord.Run(context.Background(), candidates(3))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, seen)
}
