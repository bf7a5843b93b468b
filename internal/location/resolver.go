package location

import (
	"context"
	"log/slog"
	"time"

	"github.com/wph/expense-manager/internal/capture"
)

const (
	// DefaultTimeout bounds a whole Resolve call, including a live fix and
	// the geocode round-trip.
	DefaultTimeout = 10 * time.Second

	// DefaultLiveTimeout bounds just the live-location query.
	DefaultLiveTimeout = 5 * time.Second

	// DefaultMaximumAge is how long a live fix may be reused.
	DefaultMaximumAge = time.Minute
)

// Resolver produces a human-readable place string, best-effort. Tier A
// reverse-geocodes an embedded GPS point; tier B falls back to a live
// location query when the photo carried no point. Every failure settles on
// an absent result, never an error, within the configured timeout.
type Resolver struct {
	provider    Provider
	geocoder    Geocoder
	timeout     time.Duration
	liveTimeout time.Duration
	maximumAge  time.Duration
	logger      *slog.Logger
}

// NewResolver creates a Resolver with default timeouts. The provider is
// wrapped with short-lived fix reuse.
func NewResolver(provider Provider, geocoder Geocoder, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		provider:    NewCachedProvider(provider),
		geocoder:    geocoder,
		timeout:     DefaultTimeout,
		liveTimeout: DefaultLiveTimeout,
		maximumAge:  DefaultMaximumAge,
		logger:      logger,
	}
}

// Resolve returns the display name for a capture and the point it was
// resolved from. With an embedded point, only the geocode runs; without one,
// the live-location fallback is queried exactly once. An empty string means
// no location could be determined.
func (r *Resolver) Resolve(ctx context.Context, gps *capture.GeoPoint) (string, *capture.GeoPoint) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	point := gps
	if point == nil {
		fix, ok := r.provider.CurrentLocation(ctx, Request{
			Timeout:      r.liveTimeout,
			HighAccuracy: false,
			MaximumAge:   r.maximumAge,
		})
		if !ok {
			return "", nil
		}
		point = &fix
	}

	name, err := r.geocoder.ReverseGeocode(ctx, point.Latitude, point.Longitude)
	if err != nil {
		r.logger.Warn("reverse geocode failed", "lat", point.Latitude, "lon", point.Longitude, "error", err)
		return "", point
	}
	return name, point
}
