package config

import (
	"net/http"
	"strings"
	"time"
)

// CacheConfig controls the response cache in front of the station browse
// endpoints.  Availability moves with every reservation and session, so
// entries are short lived and the mutating handlers purge them anyway.
//
//  Methods      – HTTP methods eligible for caching, upper-cased
//  KeyStrategy  – request parts hashed into the key, see middleware.cacheKeyFrom
//  Prefix       – namespace shared by every entry; Purge drops the whole prefix
//  MaxBodyBytes – larger responses are served but not stored
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_*.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      methodSet(envStr("CACHE_METHODS", http.MethodGet)),
		TTL:          envDur("CACHE_TTL", 10*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "gz:cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

// methodSet parses a comma separated method list.  Blank entries are
// ignored.
func methodSet(list string) map[string]bool {
	set := make(map[string]bool)
	for _, m := range strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ' ' }) {
		set[strings.ToUpper(m)] = true
	}
	return set
}
