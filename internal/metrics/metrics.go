// Package metrics provides run-level counters for the download engine.
package metrics

import (
	"sync"
	"time"
)

// Metrics holds the counters for one engine run.
type Metrics struct {
	// DownloadedCount is the number of documents saved to disk this run.
	DownloadedCount int64
	// SkippedCount is the number of candidates skipped as already downloaded.
	SkippedCount int64
	// FailedCount is the number of candidates that exhausted all attempts.
	FailedCount int64
	// RetryCount is the number of retry attempts across all candidates.
	RetryCount int64
	// BytesDownloaded is the total body bytes written this run.
	BytesDownloaded int64
	// RateLimitedRequests is the number of HTTP 429 responses observed.
	RateLimitedRequests int64
	// LastDownloadTime is the time of the last successful download.
	LastDownloadTime time.Time
	// StartTime is when the run began.
	StartTime time.Time
	// CurrentURL is the URL most recently picked up by a worker.
	CurrentURL string
	// mu protects concurrent access to metrics.
	mu sync.Mutex
}

// NewMetrics creates a new Metrics instance with the start time set.
func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// GetStartTime returns the time when the run began.
func (m *Metrics) GetStartTime() time.Time {
	return m.StartTime
}

// RecordDownloaded records a successful download of size bytes.
func (m *Metrics) RecordDownloaded(size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DownloadedCount++
	m.BytesDownloaded += size
	m.LastDownloadTime = time.Now()
}

// RecordSkipped records a candidate skipped via the resume fast path.
func (m *Metrics) RecordSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SkippedCount++
}

// RecordFailed records a candidate whose attempts are exhausted.
func (m *Metrics) RecordFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailedCount++
}

// RecordRetry records one retry attempt.
func (m *Metrics) RecordRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RetryCount++
}

// RecordRateLimited records an HTTP 429 response.
func (m *Metrics) RecordRateLimited() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RateLimitedRequests++
}

// SetCurrentURL records the URL a worker just picked up.
func (m *Metrics) SetCurrentURL(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CurrentURL = url
}

// GetDownloadedCount returns the number of documents saved this run.
func (m *Metrics) GetDownloadedCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.DownloadedCount
}

// GetSkippedCount returns the number of skipped candidates.
func (m *Metrics) GetSkippedCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SkippedCount
}

// GetFailedCount returns the number of failed candidates.
func (m *Metrics) GetFailedCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FailedCount
}

// GetRetryCount returns the number of retry attempts.
func (m *Metrics) GetRetryCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RetryCount
}

// GetBytesDownloaded returns the total body bytes written this run.
func (m *Metrics) GetBytesDownloaded() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.BytesDownloaded
}

// GetLastDownloadTime returns the time of the last successful download.
func (m *Metrics) GetLastDownloadTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastDownloadTime
}

// Snapshot is a point-in-time copy of the counters without the lock.
type Snapshot struct {
	DownloadedCount     int64
	SkippedCount        int64
	FailedCount         int64
	RetryCount          int64
	BytesDownloaded     int64
	RateLimitedRequests int64
	StartTime           time.Time
	Elapsed             time.Duration
}

// GetSnapshot returns a consistent copy of all counters.
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		DownloadedCount:     m.DownloadedCount,
		SkippedCount:        m.SkippedCount,
		FailedCount:         m.FailedCount,
		RetryCount:          m.RetryCount,
		BytesDownloaded:     m.BytesDownloaded,
		RateLimitedRequests: m.RateLimitedRequests,
		StartTime:           m.StartTime,
		Elapsed:             time.Since(m.StartTime),
	}
}

// Reset clears the counters and restarts the clock.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DownloadedCount = 0
	m.SkippedCount = 0
	m.FailedCount = 0
	m.RetryCount = 0
	m.BytesDownloaded = 0
	m.RateLimitedRequests = 0
	m.LastDownloadTime = time.Time{}
	m.StartTime = time.Now()
	m.CurrentURL = ""
}
