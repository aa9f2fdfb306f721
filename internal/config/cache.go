package config

import "time"

// CacheConfig tunes the Redis availability cache that sits in front of
// the public available-tickets listing. The TTL is deliberately short:
// a few seconds of staleness is acceptable for a browse endpoint, and
// every booking decision re-reads the ledger under the row lock
// anyway.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCacheConfig reads the cache settings from the environment.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: envBool("CACHE_ENABLED", true),
		TTL:     envDur("CACHE_TTL", 5*time.Second),
		Prefix:  envStr("CACHE_PREFIX", "avail"),
	}
}
