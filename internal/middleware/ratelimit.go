package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/iliyamo/gamezone-reservation/internal/config"
)

// verdict is one limiter decision for one request.
type verdict struct {
	allowed   bool
	remaining int64
	retry     time.Duration
}

// bucket takes one token from the bucket under key.  An error lets the
// request through.
type bucket interface {
	take(ctx context.Context, key string, now time.Time) (verdict, error)
}

// NewRateLimiter returns the token bucket limiter.  With a Redis client the
// buckets live in Redis and are shared by every instance; without one each
// process keeps its own buckets in memory.  secret verifies bearer tokens
// for the "user" key part, since the limiter is mounted ahead of JWTAuth.
func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client, secret string) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	var b bucket
	if rdb == nil {
		b = newMemoryBuckets(cfg)
	} else {
		b = redisBuckets{rdb: rdb, cfg: cfg}
	}
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, secret, c)
			v, err := b.take(c.Request().Context(), key, time.Now())
			if err != nil {
				slog.Warn("ratelimit: bucket unavailable", "key", key, "err", err)
				return next(c)
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(v.remaining, 10))
			if !v.allowed {
				if cfg.Debug {
					slog.Info("ratelimit: blocked", "key", key, "retry", v.retry)
				}
				return tooManyRequests(c, v.retry)
			}
			return next(c)
		}
	}
}

func tooManyRequests(c echo.Context, retry time.Duration) error {
	secs := max(int(math.Ceil(retry.Seconds())), 0)
	c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
	return c.JSON(http.StatusTooManyRequests, echo.Map{
		"message":     "Too many requests, please try again later.",
		"retry_after": secs,
	})
}

// memoryBuckets holds one rate.Limiter per key and forgets keys idle for
// longer than the configured TTL.
type memoryBuckets struct {
	mu     sync.Mutex
	byKey  map[string]*memoryEntry
	every  rate.Limit
	burst  int
	ttl    time.Duration
	lastGC time.Time
}

type memoryEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

func newMemoryBuckets(cfg config.RateLimitConfig) *memoryBuckets {
	every := rate.Inf
	if per := cfg.PerToken(); per > 0 {
		every = rate.Every(per)
	}
	return &memoryBuckets{
		byKey:  make(map[string]*memoryEntry),
		every:  every,
		burst:  cfg.Capacity,
		ttl:    cfg.TTL,
		lastGC: time.Now(),
	}
}

func (m *memoryBuckets) limiter(key string, now time.Time) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.Sub(m.lastGC) > m.ttl {
		for k, e := range m.byKey {
			if now.Sub(e.seen) > m.ttl {
				delete(m.byKey, k)
			}
		}
		m.lastGC = now
	}
	e, ok := m.byKey[key]
	if !ok {
		e = &memoryEntry{lim: rate.NewLimiter(m.every, m.burst)}
		m.byKey[key] = e
	}
	e.seen = now
	return e.lim
}

func (m *memoryBuckets) take(_ context.Context, key string, now time.Time) (verdict, error) {
	lim := m.limiter(key, now)
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return verdict{retry: time.Duration(float64(time.Second) / float64(m.every))}, nil
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return verdict{retry: d}, nil
	}
	return verdict{allowed: true, remaining: int64(lim.TokensAt(now))}, nil
}

// bucketScript refills and takes a token atomically.  State is a hash of
// the token count and the time of the last whole refill.  It returns
// {allowed, remaining, retry_ms}.
var bucketScript = redis.NewScript(`
local now      = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill   = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])
local ttl      = tonumber(ARGV[5])

local state  = redis.call('HMGET', KEYS[1], 'tokens', 'refilled_at')
local tokens = tonumber(state[1]) or capacity
local at     = tonumber(state[2]) or now

local steps = math.floor(math.max(0, now - at) / interval)
if steps > 0 then
    tokens = math.min(capacity, tokens + steps * refill)
    at = at + steps * interval
end

local allowed, retry = 0, 0
if tokens > 0 then
    allowed = 1
    tokens = tokens - 1
else
    retry = math.max(0, interval - (now - at))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'refilled_at', at)
redis.call('EXPIRE', KEYS[1], ttl)
return {allowed, tokens, retry}
`)

// redisBuckets keeps bucket state in Redis so every instance shares it.
type redisBuckets struct {
	rdb *redis.Client
	cfg config.RateLimitConfig
}

func (r redisBuckets) take(ctx context.Context, key string, now time.Time) (verdict, error) {
	vals, err := bucketScript.Run(ctx, r.rdb, []string{key},
		now.UnixMilli(),
		r.cfg.Capacity,
		r.cfg.RefillTokens,
		r.cfg.RefillInterval.Milliseconds(),
		int64(r.cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return verdict{}, err
	}
	if len(vals) != 3 {
		return verdict{}, redis.Nil
	}
	return verdict{
		allowed:   vals[0] == 1,
		remaining: vals[1],
		retry:     time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// rateKey builds the bucket key for c from the parts KeyStrategy names.
func rateKey(cfg config.RateLimitConfig, secret string, c echo.Context) string {
	parts := map[string]string{
		"ip":    c.RealIP(),
		"user":  userID(c, secret),
		"route": c.Request().Method + " " + c.Path(),
	}
	if parts["ip"] == "" {
		parts["ip"] = "unknown"
	}

	var names []string
	for _, n := range strings.Split(strings.ToLower(cfg.KeyStrategy), "_") {
		if _, ok := parts[n]; !ok {
			names = []string{"ip", "user", "route"}
			break
		}
		names = append(names, n)
	}

	key := []string{cfg.Prefix}
	for _, n := range names {
		key = append(key, n, parts[n])
	}
	return strings.Join(key, ":")
}
