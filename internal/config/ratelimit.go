package config

import "time"

// RateLimitConfig drives the per-client token bucket in front of the API.
// The default budget is 100 requests per client every 15 minutes: a bucket
// of 100 tokens with one token added back every 9 seconds.
//
// KeyStrategy names the request parts that identify a bucket, joined by
// underscores: "ip", "user", "route" or a combination such as "ip_route".
// Anything else keys on all three.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int           // bucket size, also the burst
	RefillTokens   int           // tokens added back per RefillInterval
	RefillInterval time.Duration
	TTL            time.Duration // idle buckets are forgotten after this
	KeyStrategy    string
	Prefix         string        // Redis key namespace
	Debug          bool          // log limiter decisions
}

// LoadRateLimitConfig reads RATE_LIMIT_*.  RATE_LIMIT_BURST overrides the
// capacity and RATE_LIMIT_REFILL_EVERY sets a one-token-per-interval refill;
// both are shorthand kept for existing deployments.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_BURST", envInt("RATE_LIMIT_CAPACITY", 100)),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", 9*time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 15*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "gz:rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
		cfg.RefillTokens, cfg.RefillInterval = 1, every
	}
	return cfg.normalized()
}

// normalized clamps values into a usable range.  The TTL never drops below
// five refill intervals, so a bucket is not forgotten while it is refilling.
func (c RateLimitConfig) normalized() RateLimitConfig {
	c.Capacity = max(c.Capacity, 1)
	c.RefillTokens = max(c.RefillTokens, 1)
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	c.TTL = max(c.TTL, 5*c.RefillInterval)
	return c
}

// PerToken is the interval at which a single token comes back.
func (c RateLimitConfig) PerToken() time.Duration {
	return c.RefillInterval / time.Duration(max(c.RefillTokens, 1))
}
