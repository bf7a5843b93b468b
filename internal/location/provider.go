// Package location turns GPS coordinates into human-readable place names,
// with a live-location fallback for photos that carry no embedded point.
package location

import (
	"context"
	"sync"
	"time"

	"github.com/wph/expense-manager/internal/capture"
)

// Request parameterizes a live-location query.
type Request struct {
	Timeout      time.Duration
	HighAccuracy bool
	MaximumAge   time.Duration
}

// Provider is the injected live-location capability. Implementations must
// honor the context and the request timeout; permission denial is reported
// the same way as "no fix available".
type Provider interface {
	CurrentLocation(ctx context.Context, req Request) (capture.GeoPoint, bool)
}

// NoneProvider is a Provider that never produces a fix. Non-interactive and
// server deployments plug it in without altering pipeline logic.
type NoneProvider struct{}

// CurrentLocation always reports no fix.
func (NoneProvider) CurrentLocation(ctx context.Context, req Request) (capture.GeoPoint, bool) {
	return capture.GeoPoint{}, false
}

// CachedProvider wraps a Provider and reuses a recent fix for the request's
// MaximumAge, avoiding redundant queries in quick succession.
type CachedProvider struct {
	inner Provider
	now   func() time.Time

	mu      sync.Mutex
	fix     capture.GeoPoint
	fixedAt time.Time
}

// NewCachedProvider wraps a Provider with short-lived fix reuse.
func NewCachedProvider(inner Provider) *CachedProvider {
	return &CachedProvider{inner: inner, now: time.Now}
}

// CurrentLocation returns the cached fix while it is fresher than the
// request's MaximumAge, otherwise queries the wrapped provider.
func (c *CachedProvider) CurrentLocation(ctx context.Context, req Request) (capture.GeoPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fixedAt.IsZero() && req.MaximumAge > 0 && c.now().Sub(c.fixedAt) <= req.MaximumAge {
		return c.fix, true
	}

	fix, ok := c.inner.CurrentLocation(ctx, req)
	if ok {
		c.fix = fix
		c.fixedAt = c.now()
	}
	return fix, ok
}
