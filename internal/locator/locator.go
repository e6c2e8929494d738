package locator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NamanBalaji/bsfetch/internal/errors"
	"github.com/NamanBalaji/bsfetch/internal/logger"
)

// SafetyMargin is how long before expiry a locator is replaced. Range
// requests already queued must finish before the locator stops working.
const SafetyMargin = 10 * time.Minute

var ErrRefreshFailed = errors.New("failed to refresh locator")

// Locator is a time-limited reference to a range-readable resource.
type Locator struct {
	URL       string
	ExpiresAt time.Time
}

// Stale reports whether l should be replaced at now given margin.
func (l Locator) Stale(now time.Time, margin time.Duration) bool {
	return l.URL == "" || now.After(l.ExpiresAt.Add(-margin))
}

// Refresher obtains a fresh locator from the platform.
type Refresher interface {
	Refresh(ctx context.Context) (Locator, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) (Locator, error)

func (f RefresherFunc) Refresh(ctx context.Context) (Locator, error) {
	return f(ctx)
}

// Source supplies a currently valid locator.
type Source interface {
	Current(ctx context.Context) (Locator, error)
}

// Invalidator is implemented by sources that can drop a locator the remote
// side has rejected. stale is the locator the rejected request used.
type Invalidator interface {
	Invalidate(stale Locator)
}

type Option func(*Cache)

// WithSafetyMargin overrides SafetyMargin.
func WithSafetyMargin(margin time.Duration) Option {
	return func(c *Cache) {
		c.margin = margin
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithResource names the resource in errors and logs.
func WithResource(resource string) Option {
	return func(c *Cache) {
		c.resource = resource
	}
}

// Cache holds the last locator and replaces it when it gets close to expiry.
// It is safe for concurrent use; at most one refresh runs at a time.
type Cache struct {
	mu        sync.Mutex
	refresher Refresher
	current   Locator
	refreshes int

	margin   time.Duration
	now      func() time.Time
	resource string
}

func NewCache(refresher Refresher, opts ...Option) *Cache {
	c := &Cache{
		refresher: refresher,
		margin:    SafetyMargin,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Current returns the cached locator, refreshing it first when it is missing
// or within the safety margin of expiry.
func (c *Cache) Current(ctx context.Context) (Locator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.current.Stale(c.now(), c.margin) {
		return c.current, nil
	}

	logger.Debugf("Refreshing locator for %s (expired at %v)", c.resource, c.current.ExpiresAt)

	c.refreshes++

	l, err := c.refresher.Refresh(ctx)
	if err != nil {
		logger.Errorf("Locator refresh failed for %s: %v", c.resource, err)
		return Locator{}, errors.NewConfigurationError(fmt.Errorf("%w: %w", ErrRefreshFailed, err), c.resource)
	}

	if l.URL == "" {
		logger.Errorf("Locator refresh for %s returned no URL", c.resource)
		return Locator{}, errors.NewConfigurationError(errors.ErrNoLocator, c.resource)
	}

	c.current = l

	logger.Debugf("Locator for %s valid until %v", c.resource, l.ExpiresAt)

	return l, nil
}

// Invalidate drops the cached locator so the next Current refreshes. It is a
// no-op once stale has already been replaced, so a burst of rejections of one
// URL costs a single refresh.
func (c *Cache) Invalidate(stale Locator) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.URL != stale.URL {
		return
	}

	c.current = Locator{}
}

// Refreshes returns how many times the refresher has been called.
func (c *Cache) Refreshes() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.refreshes
}
