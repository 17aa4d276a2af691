// Package fetcher performs the HTTP retrieval of individual documents. It
// streams response bodies to the caller's writer so large filings never
// buffer fully in memory, and it classifies failures as transient or
// permanent so the retry layer can decide what to do.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonesrussell/finfetch/internal/logger"
)

// Status thresholds used when classifying HTTP responses.
const (
	statusOK           = 200
	statusClientErrLow = 400
	statusTooManyReqs  = 429
	statusServerErrLow = 500
)

// DefaultTimeout bounds a single document request end to end.
const DefaultTimeout = 60 * time.Second

// DefaultMaxBodyBytes limits a single document body. Filings rarely exceed
// a few tens of megabytes.
const DefaultMaxBodyBytes = 200 * 1024 * 1024

// Result describes a completed fetch.
type Result struct {
	StatusCode  int
	ContentType string
	SizeBytes   int64
}

// Fetcher retrieves one document, streaming its body into dst.
type Fetcher interface {
	Fetch(ctx context.Context, url string, dst io.Writer) (*Result, error)
}

// Config configures the HTTP fetcher.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	// AcceptContentType vets the response Content-Type before the body is
	// streamed. When nil, every content type is accepted.
	AcceptContentType func(contentType string) bool
}

// HTTPFetcher is the production Fetcher backed by net/http.
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	acceptCT     func(string) bool
	log          logger.Interface
}

// NewHTTP creates an HTTP fetcher.
func NewHTTP(cfg Config, log logger.Interface) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if log == nil {
		log = logger.NewNoOp()
	}
	return &HTTPFetcher{
		client:       &http.Client{Timeout: cfg.Timeout},
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		acceptCT:     cfg.AcceptContentType,
		log:          log.WithComponent("fetcher"),
	}
}

// Fetch GETs the URL and copies the body into dst. Network errors, 429 and
// 5xx statuses come back as *TransientError; other non-2xx statuses and
// rejected content types come back as *PermanentError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, dst io.Writer) (*Result, error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if reqErr != nil {
		return nil, &PermanentError{URL: url, Reason: "invalid request", Err: reqErr}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, doErr := f.client.Do(req)
	if doErr != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, ctx.Err())
		}
		return nil, &TransientError{URL: url, Err: doErr}
	}
	defer resp.Body.Close()

	if err := f.checkStatus(url, resp.StatusCode); err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if f.acceptCT != nil && !f.acceptCT(contentType) {
		return nil, &PermanentError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("unsupported content type %q", contentType),
		}
	}

	limited := io.LimitReader(resp.Body, f.maxBodyBytes)
	written, copyErr := io.Copy(dst, limited)
	if copyErr != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, ctx.Err())
		}
		return nil, &TransientError{URL: url, Err: fmt.Errorf("read body: %w", copyErr)}
	}

	f.log.Debug("fetched document",
		"url", url,
		"status", resp.StatusCode,
		"content_type", contentType,
		"size_bytes", written,
	)

	return &Result{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		SizeBytes:   written,
	}, nil
}

// checkStatus maps a non-2xx status to the error taxonomy.
func (f *HTTPFetcher) checkStatus(url string, code int) error {
	switch {
	case code >= statusOK && code < statusClientErrLow:
		return nil
	case code == statusTooManyReqs || code >= statusServerErrLow:
		return &TransientError{URL: url, StatusCode: code}
	default:
		return &PermanentError{URL: url, StatusCode: code}
	}
}
