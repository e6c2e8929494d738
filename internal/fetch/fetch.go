package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/NamanBalaji/bsfetch/internal/errors"
	"github.com/NamanBalaji/bsfetch/internal/locator"
	"github.com/NamanBalaji/bsfetch/internal/logger"
	httpPkg "github.com/NamanBalaji/bsfetch/pkg/http"
)

const DefaultRetryDelay = 500 * time.Millisecond

var ErrRetriesExhausted = errors.New("range fetch failed after max retries")

type Option func(*Fetcher)

// WithRetryDelay sets the base delay of the exponential backoff.
func WithRetryDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.retryDelay = d
	}
}

// WithHeaders adds headers to every range request.
func WithHeaders(headers map[string]string) Option {
	return func(f *Fetcher) {
		f.headers = headers
	}
}

// Fetcher reads byte ranges over HTTP from whatever URL the locator source
// currently hands out.
type Fetcher struct {
	client     *httpPkg.Client
	retryDelay time.Duration
	headers    map[string]string
}

func New(client *httpPkg.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:     client,
		retryDelay: DefaultRetryDelay,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// FetchRange returns bytes [start, end] of the resource behind src. It makes
// at most 1+maxRetries attempts, resolving the locator again before each one
// so a refreshed URL is picked up mid-transfer.
func (f *Fetcher) FetchRange(ctx context.Context, src locator.Source, start, end, sizeHint int64, maxRetries int) ([]byte, error) {
	resource := fmt.Sprintf("bytes=%d-%d", start, end)

	if sizeHint > 0 && sizeHint != end-start+1 {
		return nil, errors.NewConfigurationError(fmt.Errorf("%w: size hint %d", httpPkg.ErrInvalidContentRange, sizeHint), resource)
	}

	attempts := 1 + max(0, maxRetries)

	var lastErr error

	for attempt := range attempts {
		loc, err := src.Current(ctx)
		if err != nil {
			return nil, err
		}

		data, err := f.client.Range(ctx, loc.URL, start, end, f.headers)
		if err == nil {
			return data, nil
		}

		lastErr = classify(err, resource)

		switch {
		case errors.Is(err, context.Canceled):
			return nil, lastErr
		case errors.Is(err, httpPkg.ErrAccessDenied):
			// Signed content URLs answer 403 once they expire.
			if inv, ok := src.(locator.Invalidator); ok {
				logger.Debugf("Access denied for %s, invalidating locator", resource)
				inv.Invalidate(loc)
			}
		case !httpPkg.IsRetryable(err):
			return nil, lastErr
		}

		if attempt == attempts-1 {
			break
		}

		backoff := calculateBackoff(attempt, f.retryDelay)

		select {
		case <-ctx.Done():
			return nil, errors.NewContextError(ctx.Err(), resource)
		case <-time.After(backoff):
			logger.Debugf("Retrying %s, attempt %d of %d: %v", resource, attempt+2, attempts, err)
		}
	}

	logger.Errorf("Range %s failed after %d attempts: %v", resource, attempts, lastErr)

	return nil, fmt.Errorf("%w (%d attempts): %w", ErrRetriesExhausted, attempts, lastErr)
}

func classify(err error, resource string) error {
	switch {
	case errors.Is(err, context.Canceled):
		return errors.NewContextError(err, resource)
	case errors.Is(err, httpPkg.ErrRangesNotSupported):
		return errors.NewConfigurationError(fmt.Errorf("%w: %w", errors.ErrRangeNotSupported, err), resource)
	}

	if code := httpPkg.StatusCode(err); code != 0 {
		return errors.NewHTTPError(err, resource, code)
	}

	return errors.NewNetworkError(err, resource, httpPkg.IsRetryable(err))
}
