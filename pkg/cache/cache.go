// Package cache provides pluggable byte caching for the data-fetch and
// generation paths.
//
// Three backends are provided:
//   - FileCache: filesystem-backed, for the CLI appliance
//   - RedisCache: Redis-backed, for multi-instance deployments
//   - NullCache: disables caching
//
// Keys are produced by a Keyer so that the cacheable artifacts of this
// application (fetched market series, generated frames) get stable,
// collision-free names regardless of backend.
package cache

import (
	"context"
	"time"
)

// Cache is the storage interface shared by all backends.
type Cache interface {
	// Get retrieves a value. The bool reports whether the key was found
	// and fresh; a miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A TTL of 0 means no
	// expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// SeriesKeyOpts captures the inputs that make a fetched series unique.
type SeriesKeyOpts struct {
	Symbol string `json:"symbol"`
	Range  string `json:"range"`
}

// ArtifactKeyOpts captures the inputs that make a generated image unique.
type ArtifactKeyOpts struct {
	SeriesHash string  `json:"series_hash"`
	Prompt     string  `json:"prompt"`
	Negative   string  `json:"negative"`
	Steps      int     `json:"steps"`
	Guidance   float64 `json:"guidance"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// Keyer generates cache keys for the application's artifact kinds.
type Keyer interface {
	// SeriesKey generates a key for a fetched market series.
	SeriesKey(opts SeriesKeyOpts) string

	// ArtifactKey generates a key for a generated image.
	ArtifactKey(opts ArtifactKeyOpts) string
}

// DefaultKeyer is the standard key generator.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard key generator.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// SeriesKey generates a key for a fetched market series.
func (k *DefaultKeyer) SeriesKey(opts SeriesKeyOpts) string {
	return hashKey("series", opts)
}

// ArtifactKey generates a key for a generated image.
func (k *DefaultKeyer) ArtifactKey(opts ArtifactKeyOpts) string {
	return hashKey("artifact", opts)
}
