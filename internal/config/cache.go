package config

import (
	"strings"
	"time"
)

// CacheConfig configures the Redis response cache.  Only the listed
// methods are cached, and bodies larger than MaxBodyBytes are passed through
// uncached.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
	// AvailabilityTTL bounds how long a cached availability answer may
	// trail a booking.  It never exceeds TTL.
	AvailabilityTTL time.Duration
}

// LoadCacheConfig reads CACHE_* variables.  Availability changes as soon as
// a reservation commits, so the default TTL is short.
func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 5*time.Second),
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),

		AvailabilityTTL: envDur("CACHE_AVAILABILITY_TTL", 2*time.Second),
	}
	if cfg.TTL <= 0 {
		cfg.Enabled = false
	}
	if cfg.AvailabilityTTL > cfg.TTL {
		cfg.AvailabilityTTL = cfg.TTL
	}
	return cfg
}

// ForAvailability is the config for the public availability route: same
// switches, shorter TTL.  A non-positive AvailabilityTTL disables caching
// there.
func (c CacheConfig) ForAvailability() CacheConfig {
	out := c
	out.TTL = c.AvailabilityTTL
	if out.TTL <= 0 {
		out.Enabled = false
	}
	return out
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
