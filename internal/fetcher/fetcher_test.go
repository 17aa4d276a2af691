package fetcher_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/finfetch/internal/fetcher"
)

func newFetcher(accept func(string) bool) *fetcher.HTTPFetcher {
	return fetcher.NewHTTP(fetcher.Config{
		UserAgent:         "finfetch-test/1.0",
		AcceptContentType: accept,
	}, nil)
}

func TestFetchSuccessStreamsBody(t *testing.T) {
	const body = "%PDF-1.4 fake document content"

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	var dst bytes.Buffer
	res, err := newFetcher(nil).Fetch(context.Background(), srv.URL, &dst)

	require.NoError(t, err)
	assert.Equal(t, body, dst.String())
	assert.Equal(t, int64(len(body)), res.SizeBytes)
	assert.Equal(t, "application/pdf", res.ContentType)
	assert.Equal(t, "finfetch-test/1.0", gotUA)
}

func TestFetchTransientStatuses(t *testing.T) {
	for _, code := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(code)
		}))

		var dst bytes.Buffer
		_, err := newFetcher(nil).Fetch(context.Background(), srv.URL, &dst)
		srv.Close()

		require.Error(t, err, "status %d", code)
		assert.True(t, fetcher.IsTransient(err), "status %d should be transient", code)
	}
}

func TestFetchPermanentStatuses(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusGone} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(code)
		}))

		var dst bytes.Buffer
		_, err := newFetcher(nil).Fetch(context.Background(), srv.URL, &dst)
		srv.Close()

		require.Error(t, err, "status %d", code)
		assert.False(t, fetcher.IsTransient(err), "status %d should be permanent", code)
	}
}

func TestFetchNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	var dst bytes.Buffer
	_, err := newFetcher(nil).Fetch(context.Background(), srv.URL, &dst)

	require.Error(t, err)
	assert.True(t, fetcher.IsTransient(err))
}

func TestFetchRejectedContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("not a document"))
	}))
	defer srv.Close()

	accept := func(ct string) bool { return strings.HasPrefix(ct, "application/pdf") }

	var dst bytes.Buffer
	_, err := newFetcher(accept).Fetch(context.Background(), srv.URL, &dst)

	require.Error(t, err)
	assert.False(t, fetcher.IsTransient(err))
	// Nothing must reach the destination when the type is rejected.
	assert.Zero(t, dst.Len())
}

func TestFetchCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var dst bytes.Buffer
	_, err := newFetcher(nil).Fetch(ctx, srv.URL, &dst)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchInvalidURL(t *testing.T) {
	var dst bytes.Buffer
	_, err := newFetcher(nil).Fetch(context.Background(), "://not-a-url", &dst)

	require.Error(t, err)
	assert.False(t, fetcher.IsTransient(err))
}
