// Package downloader orchestrates the download pipeline: a bounded pool of
// workers pulls candidates from a batch, dedups against the resumable
// state, rate-limits requests, fetches with retries, and commits files
// through the path allocator.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/finfetch/internal/domain"
	"github.com/jonesrussell/finfetch/internal/fetcher"
	"github.com/jonesrussell/finfetch/internal/logger"
	"github.com/jonesrussell/finfetch/internal/metrics"
	"github.com/jonesrussell/finfetch/internal/organize"
	"github.com/jonesrussell/finfetch/internal/retry"
	"github.com/jonesrussell/finfetch/internal/urlutil"
)

// Defaults applied when a Config field is unset.
const (
	DefaultWorkerCount    = 5
	DefaultRateLimitDelay = time.Second
	DefaultFlushEvery     = 10
)

// StateStore is the slice of the checkpoint store the coordinator needs.
type StateStore interface {
	VerifyDownloaded(root, url string) (*domain.DownloadRecord, bool)
	MarkDownloaded(url string, rec domain.DownloadRecord)
	Save() error
}

// ProgressFunc observes per-candidate completion. completed counts every
// finished candidate regardless of outcome.
type ProgressFunc func(completed, total int, currentItem string)

// Config configures the coordinator.
type Config struct {
	// Root is the download root directory.
	Root string
	// WorkerCount bounds concurrent downloads.
	WorkerCount int
	// RateLimitDelay is the pause each worker takes before a fetch.
	RateLimitDelay time.Duration
	// FlushEvery saves the checkpoint after this many completions. The
	// checkpoint is always saved once the batch drains.
	FlushEvery int
	// Retry is the per-candidate retry policy. A nil IsRetryable defaults
	// to retrying transient fetch failures only.
	Retry retry.Policy
	// OnProgress is invoked after each candidate completes. Optional.
	OnProgress ProgressFunc
}

// Coordinator runs download batches.
type Coordinator struct {
	store     StateStore
	organizer *organize.Organizer
	alloc     *organize.Allocator
	fetch     fetcher.Fetcher
	stats     *metrics.Metrics
	log       logger.Interface

	root        string
	workerCount int
	rateDelay   time.Duration
	flushEvery  int
	policy      retry.Policy
	progress    ProgressFunc
}

// New creates a Coordinator with the given dependencies and configuration.
func New(
	store StateStore,
	organizer *organize.Organizer,
	alloc *organize.Allocator,
	fetch fetcher.Fetcher,
	stats *metrics.Metrics,
	log logger.Interface,
	cfg Config,
) *Coordinator {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.RateLimitDelay <= 0 {
		cfg.RateLimitDelay = DefaultRateLimitDelay
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = DefaultFlushEvery
	}
	if cfg.Retry.IsRetryable == nil {
		cfg.Retry.IsRetryable = fetcher.IsTransient
	}
	if stats == nil {
		stats = metrics.NewMetrics()
	}
	if log == nil {
		log = logger.NewNoOp()
	}

	return &Coordinator{
		store:       store,
		organizer:   organizer,
		alloc:       alloc,
		fetch:       fetch,
		stats:       stats,
		log:         log.WithComponent("downloader"),
		root:        cfg.Root,
		workerCount: cfg.WorkerCount,
		rateDelay:   cfg.RateLimitDelay,
		flushEvery:  cfg.FlushEvery,
		policy:      cfg.Retry,
		progress:    cfg.OnProgress,
	}
}

// Run processes the batch and returns one record per distinct candidate
// URL. Duplicate URLs within the batch collapse to a single attempt. On
// cancellation the remaining candidates come back as pending records; the
// checkpoint is flushed either way.
func (c *Coordinator) Run(ctx context.Context, candidates []domain.Candidate) ([]domain.DownloadRecord, error) {
	batch := dedupe(candidates)
	out := make(chan domain.DownloadRecord, len(batch))

	err := c.run(ctx, batch, out)
	close(out)

	records := make([]domain.DownloadRecord, 0, len(batch))
	for rec := range out {
		records = append(records, rec)
	}
	return records, err
}

// Submit streams one record per distinct candidate URL in completion
// order. The channel closes after the batch drains and the checkpoint is
// flushed; flush failures are logged, use Run to observe them as errors.
func (c *Coordinator) Submit(ctx context.Context, candidates []domain.Candidate) <-chan domain.DownloadRecord {
	batch := dedupe(candidates)
	out := make(chan domain.DownloadRecord, len(batch))

	go func() {
		defer close(out)
		if err := c.run(ctx, batch, out); err != nil {
			c.log.Error("download run finished with error", "error", err.Error())
		}
	}()
	return out
}

// run drives the worker pool over an already-deduped batch, emitting every
// record to out. out must have capacity for the whole batch.
func (c *Coordinator) run(ctx context.Context, batch []domain.Candidate, out chan<- domain.DownloadRecord) error {
	runID := uuid.New().String()
	total := len(batch)
	c.log.Info("starting download run",
		"run_id", runID,
		"candidates", total,
		"workers", c.workerCount,
	)

	jobs := make(chan domain.Candidate)

	var completed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < c.workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.worker(ctx, workerID, jobs, out, &completed, total)
		}(i)
	}

	dispatched := 0
	for _, cand := range batch {
		select {
		case <-ctx.Done():
		case jobs <- cand:
			dispatched++
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()

	// Candidates never dispatched due to cancellation still get a record.
	for _, cand := range batch[dispatched:] {
		out <- pendingRecord(c.normalize(cand.URL), cand.SourcePageURL)
	}

	saveErr := c.store.Save()
	if saveErr != nil {
		c.log.Error("final checkpoint save failed", "run_id", runID, "error", saveErr.Error())
	}

	snap := c.stats.GetSnapshot()
	c.log.Info("download run finished",
		"run_id", runID,
		"downloaded", snap.DownloadedCount,
		"skipped", snap.SkippedCount,
		"failed", snap.FailedCount,
		"bytes", snap.BytesDownloaded,
	)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("download run interrupted: %w", err)
	}
	return saveErr
}

// worker is a single worker goroutine loop.
func (c *Coordinator) worker(
	ctx context.Context,
	workerID int,
	jobs <-chan domain.Candidate,
	results chan<- domain.DownloadRecord,
	completed *atomic.Int64,
	total int,
) {
	for cand := range jobs {
		rec := c.process(ctx, workerID, cand)
		results <- rec

		done := int(completed.Add(1))
		if c.progress != nil {
			c.progress(done, total, rec.URL)
		}
		if done%c.flushEvery == 0 {
			if err := c.store.Save(); err != nil {
				c.log.Error("periodic checkpoint save failed", "error", err.Error())
			}
		}
	}
}

// process runs one candidate through the full pipeline.
func (c *Coordinator) process(ctx context.Context, workerID int, cand domain.Candidate) domain.DownloadRecord {
	norm, normErr := urlutil.Normalize(cand.URL)
	if normErr != nil {
		c.stats.RecordFailed()
		return failedRecord(cand.URL, cand.SourcePageURL, 0, fmt.Sprintf("invalid url: %v", normErr))
	}

	c.stats.SetCurrentURL(norm)

	// Resume fast path: trust the checkpoint only when the file is still
	// on disk.
	if prior, ok := c.store.VerifyDownloaded(c.root, norm); ok {
		c.stats.RecordSkipped()
		c.log.Debug("skipping already downloaded", "worker_id", workerID, "url", norm)
		return *prior
	}

	if cancelled := c.sleepOrCancel(ctx); cancelled {
		return pendingRecord(norm, cand.SourcePageURL)
	}

	filename := c.organizer.FilenameFor(cand)
	relPath := c.organizer.Path(filename, norm)

	res, skip, allocErr := c.alloc.Allocate(relPath, norm)
	if allocErr != nil {
		c.stats.RecordFailed()
		return failedRecord(norm, cand.SourcePageURL, 0, fmt.Sprintf("allocate path: %v", allocErr))
	}
	if skip {
		// The file from a prior pass already belongs to this URL.
		c.stats.RecordSkipped()
		rec := succeededRecord(norm, cand.SourcePageURL, 0, relPath, 0)
		c.store.MarkDownloaded(norm, rec)
		return rec
	}

	attempts := 0
	var result *fetcher.Result

	fetchErr := retry.Do(ctx, c.policy, func() error {
		attempts++
		if attempts > 1 {
			c.stats.RecordRetry()
		}

		var err error
		result, err = c.fetchToTemp(ctx, norm, res.TempPath)
		if err != nil {
			c.noteRateLimit(err)
		}
		return err
	})
	if fetchErr != nil {
		res.Abort()
		if ctx.Err() != nil && errors.Is(fetchErr, retry.ErrCancelled) {
			return pendingRecord(norm, cand.SourcePageURL)
		}
		c.stats.RecordFailed()
		c.log.Error("download failed",
			"worker_id", workerID,
			"url", norm,
			"attempts", attempts,
			"error", fetchErr.Error(),
		)
		return failedRecord(norm, cand.SourcePageURL, attempts, fetchErr.Error())
	}

	if commitErr := res.Commit(); commitErr != nil {
		c.stats.RecordFailed()
		return failedRecord(norm, cand.SourcePageURL, attempts, fmt.Sprintf("finalize file: %v", commitErr))
	}

	rec := succeededRecord(norm, cand.SourcePageURL, attempts, res.RelPath, result.SizeBytes)
	c.store.MarkDownloaded(norm, rec)
	c.stats.RecordDownloaded(result.SizeBytes)
	c.log.Info("downloaded",
		"worker_id", workerID,
		"url", norm,
		"path", res.RelPath,
		"size_bytes", result.SizeBytes,
	)
	return rec
}

// fetchToTemp streams one fetch attempt into the staging path. The staging
// file is truncated per attempt so a retry never appends to a partial body.
func (c *Coordinator) fetchToTemp(ctx context.Context, url, tempPath string) (*fetcher.Result, error) {
	f, createErr := os.Create(tempPath)
	if createErr != nil {
		return nil, &fetcher.PermanentError{URL: url, Reason: "create staging file", Err: createErr}
	}

	result, fetchErr := c.fetch.Fetch(ctx, url, f)
	closeErr := f.Close()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if closeErr != nil {
		return nil, &fetcher.TransientError{URL: url, Err: fmt.Errorf("close staging file: %w", closeErr)}
	}
	return result, nil
}

// noteRateLimit bumps the 429 counter when the failure was a rate limit.
func (c *Coordinator) noteRateLimit(err error) {
	var te *fetcher.TransientError
	if errors.As(err, &te) && te.StatusCode == http.StatusTooManyRequests {
		c.stats.RecordRateLimited()
	}
}

// sleepOrCancel pauses for the rate limit delay. Returns true if the
// context was cancelled first.
func (c *Coordinator) sleepOrCancel(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-time.After(c.rateDelay):
		return false
	}
}

// normalize canonicalizes for batch dedup, falling back to the raw URL.
func (c *Coordinator) normalize(url string) string {
	norm, err := urlutil.Normalize(url)
	if err != nil {
		return url
	}
	return norm
}

// dedupe collapses candidates sharing a normalized URL, keeping the first.
func dedupe(candidates []domain.Candidate) []domain.Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]domain.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		key := cand.URL
		if norm, err := urlutil.Normalize(cand.URL); err == nil {
			key = norm
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, cand)
	}
	return out
}

func pendingRecord(url, source string) domain.DownloadRecord {
	return domain.DownloadRecord{URL: url, SourcePageURL: source, Status: domain.StatusPending}
}

func failedRecord(url, source string, attempts int, lastError string) domain.DownloadRecord {
	return domain.DownloadRecord{
		URL:           url,
		SourcePageURL: source,
		Status:        domain.StatusFailed,
		Attempts:      attempts,
		LastError:     &lastError,
	}
}

func succeededRecord(url, source string, attempts int, relPath string, size int64) domain.DownloadRecord {
	now := time.Now().UTC()
	return domain.DownloadRecord{
		URL:           url,
		SourcePageURL: source,
		Status:        domain.StatusSucceeded,
		Attempts:      attempts,
		LocalPath:     &relPath,
		SizeBytes:     &size,
		CompletedAt:   &now,
	}
}
