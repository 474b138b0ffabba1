package config

import "time"

// CacheConfig controls the read-through cache in front of the public post
// endpoints.  When Enabled is false or no Redis client is available every
// read goes to the database.  Prefix, when set, namespaces every key as
// "<prefix>:<key>" so several deployments can share one Redis.
type CacheConfig struct {
    Enabled bool
    TTL     time.Duration
    Prefix  string
}

// LoadCacheConfig reads CACHE_ENABLED, CACHE_TTL and CACHE_PREFIX.
func LoadCacheConfig() CacheConfig {
    c := CacheConfig{
        Enabled: envBool("CACHE_ENABLED", true), // on unless explicitly disabled
        TTL:     envDur("CACHE_TTL", time.Hour), // one hour per post or list page
        Prefix:  envStr("CACHE_PREFIX", ""),     // no namespace by default
    }
    // Redis rejects non-positive expirations; fall back to the default.
    if c.TTL <= 0 {
        c.TTL = time.Hour
    }
    return c
}
