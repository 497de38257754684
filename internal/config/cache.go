package config

import "time"

// CacheConfig controls the show lookup cache.  Shows are immutable
// catalog rows, so a short TTL only bounds how long a withdrawn show can
// still be offered.  Seat state is never cached.
type CacheConfig struct {
	Enabled bool          `env:"CACHE_ENABLED" env-default:"true"`
	TTL     time.Duration `env:"SHOW_CACHE_TTL" env-default:"1m"`
	Prefix  string        `env:"CACHE_PREFIX" env-default:"cache"`
	// Backend is "redis" or "memory".  Redis falls back to memory when no
	// client could be created at startup.
	Backend string `env:"CACHE_BACKEND" env-default:"redis"`
}
