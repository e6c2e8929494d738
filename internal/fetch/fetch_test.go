package fetch_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NamanBalaji/bsfetch/internal/errors"
	"github.com/NamanBalaji/bsfetch/internal/fetch"
	"github.com/NamanBalaji/bsfetch/internal/locator"
	httpPkg "github.com/NamanBalaji/bsfetch/pkg/http"
)

var content = bytes.Repeat([]byte("bsfetch-"), 64)

type countingSource struct {
	mu          sync.Mutex
	url         string
	calls       int
	invalidated int
	err         error
}

func (s *countingSource) Current(ctx context.Context) (locator.Locator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return locator.Locator{}, s.err
	}

	return locator.Locator{URL: s.url, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *countingSource) Invalidate(stale locator.Locator) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stale.URL == s.url {
		s.invalidated++
	}
}

// flakyServer fails the first n requests with status, then serves content.
func flakyServer(t *testing.T, n int32, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= n {
			http.Error(w, http.StatusText(status), status)
			return
		}
		http.ServeContent(w, r, "f", time.Time{}, bytes.NewReader(content))
	}))
	t.Cleanup(ts.Close)

	return ts, &hits
}

func newFetcher() *fetch.Fetcher {
	return fetch.New(httpPkg.NewClient(), fetch.WithRetryDelay(time.Millisecond))
}

func TestFetchRangeSuccess(t *testing.T) {
	ts, hits := flakyServer(t, 0, 0)
	src := &countingSource{url: ts.URL}

	data, err := newFetcher().FetchRange(context.Background(), src, 8, 23, 16, 3)
	require.NoError(t, err)
	assert.Equal(t, content[8:24], data)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, src.calls)
}

func TestFetchRangeRetriesTransientFailures(t *testing.T) {
	ts, hits := flakyServer(t, 2, http.StatusServiceUnavailable)
	src := &countingSource{url: ts.URL}

	data, err := newFetcher().FetchRange(context.Background(), src, 0, 9, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, content[:10], data)
	assert.Equal(t, int32(3), hits.Load())
	// The locator is resolved again on every attempt.
	assert.Equal(t, 3, src.calls)
}

func TestFetchRangeExhaustsRetries(t *testing.T) {
	ts, hits := flakyServer(t, 100, http.StatusInternalServerError)
	src := &countingSource{url: ts.URL}

	_, err := newFetcher().FetchRange(context.Background(), src, 0, 9, 10, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, fetch.ErrRetriesExhausted)
	assert.ErrorIs(t, err, httpPkg.ErrServerProblem)
	assert.Equal(t, int32(3), hits.Load())

	code, ok := errors.GetStatusCode(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestFetchRangeZeroRetriesMeansOneAttempt(t *testing.T) {
	ts, hits := flakyServer(t, 100, http.StatusBadGateway)

	_, err := newFetcher().FetchRange(context.Background(), &countingSource{url: ts.URL}, 0, 9, 10, 0)
	assert.ErrorIs(t, err, fetch.ErrRetriesExhausted)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchRangeNonRetryable(t *testing.T) {
	ts, hits := flakyServer(t, 100, http.StatusNotFound)

	_, err := newFetcher().FetchRange(context.Background(), &countingSource{url: ts.URL}, 0, 9, 10, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, httpPkg.ErrResourceNotFound)
	assert.NotErrorIs(t, err, fetch.ErrRetriesExhausted)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchRangeAccessDeniedInvalidatesLocator(t *testing.T) {
	ts, hits := flakyServer(t, 1, http.StatusForbidden)
	src := &countingSource{url: ts.URL}

	data, err := newFetcher().FetchRange(context.Background(), src, 0, 9, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, content[:10], data)
	assert.Equal(t, 1, src.invalidated)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchRangeAccessDeniedBurstRefreshesOnce(t *testing.T) {
	const workers = 8

	var denied atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sig") == "1" {
			// Rejections of the expired URL arrive spread out over time.
			n := denied.Add(1)
			time.Sleep(time.Duration(n-1) * 15 * time.Millisecond)
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		http.ServeContent(w, r, "f", time.Time{}, bytes.NewReader(content))
	}))
	defer ts.Close()

	var refreshes atomic.Int32
	cache := locator.NewCache(locator.RefresherFunc(func(ctx context.Context) (locator.Locator, error) {
		n := refreshes.Add(1)
		return locator.Locator{URL: fmt.Sprintf("%s/f?sig=%d", ts.URL, n), ExpiresAt: time.Now().Add(time.Hour)}, nil
	}))

	_, err := cache.Current(context.Background())
	require.NoError(t, err)

	f := newFetcher()

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.FetchRange(context.Background(), cache, 0, 9, 10, 2)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(workers), denied.Load())
	assert.Equal(t, int32(2), refreshes.Load())
	assert.Equal(t, 2, cache.Refreshes())
}

func TestFetchRangeAccessDeniedCountsAgainstBudget(t *testing.T) {
	ts, hits := flakyServer(t, 100, http.StatusForbidden)
	src := &countingSource{url: ts.URL}

	_, err := newFetcher().FetchRange(context.Background(), src, 0, 9, 10, 2)
	assert.ErrorIs(t, err, fetch.ErrRetriesExhausted)
	assert.ErrorIs(t, err, httpPkg.ErrAccessDenied)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, 3, src.invalidated)
}

func TestFetchRangeLocatorFailureAborts(t *testing.T) {
	ts, hits := flakyServer(t, 0, 0)
	cause := errors.NewConfigurationError(errors.ErrRangeNotSupported, "file-1")
	src := &countingSource{url: ts.URL, err: cause}

	_, err := newFetcher().FetchRange(context.Background(), src, 0, 9, 10, 5)
	assert.ErrorIs(t, err, errors.ErrRangeNotSupported)
	assert.True(t, errors.IsConfigurationError(err))
	assert.Equal(t, int32(0), hits.Load())
	assert.Equal(t, 1, src.calls)
}

func TestFetchRangeServerIgnoresRange(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer ts.Close()

	_, err := newFetcher().FetchRange(context.Background(), &countingSource{url: ts.URL}, 0, 9, 10, 3)
	assert.ErrorIs(t, err, errors.ErrRangeNotSupported)
	assert.True(t, errors.IsConfigurationError(err))
}

func TestFetchRangeCancelledDuringBackoff(t *testing.T) {
	ts, _ := flakyServer(t, 100, http.StatusServiceUnavailable)
	f := fetch.New(httpPkg.NewClient(), fetch.WithRetryDelay(time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.FetchRange(ctx, &countingSource{url: ts.URL}, 0, 9, 10, 5)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestFetchRangeSizeHintMismatch(t *testing.T) {
	_, err := newFetcher().FetchRange(context.Background(), &countingSource{url: "http://unused"}, 0, 9, 7, 0)
	assert.ErrorIs(t, err, httpPkg.ErrInvalidContentRange)
}

func TestFetchRangeWithHeaders(t *testing.T) {
	var seen atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Get("x-access-token"))
		http.ServeContent(w, r, "f", time.Time{}, bytes.NewReader(content))
	}))
	defer ts.Close()

	f := fetch.New(httpPkg.NewClient(), fetch.WithHeaders(map[string]string{"x-access-token": "secret"}))
	_, err := f.FetchRange(context.Background(), &countingSource{url: ts.URL}, 0, 0, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "secret", seen.Load())
}
