package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/gamezone-reservation/internal/config"
)

// cacheStore is the backend of a ResponseCache.
type cacheStore interface {
	get(ctx context.Context, key string) ([]byte, bool)
	set(ctx context.Context, key string, val []byte, ttl time.Duration)
	purge(ctx context.Context, prefix string) error
}

type redisStore struct{ rdb *redis.Client }

func (s redisStore) get(ctx context.Context, key string) ([]byte, bool) {
	bs, err := s.rdb.Get(ctx, key).Bytes()
	return bs, err == nil
}

func (s redisStore) set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	_ = s.rdb.Set(ctx, key, val, ttl).Err()
}

// purge unlinks every key under prefix in batches.  SCAN is used instead of
// KEYS so a purge never blocks the server.
func (s redisStore) purge(ctx context.Context, prefix string) error {
	const batchSize = 200
	batch := make([]string, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := s.rdb.Unlink(ctx, batch...).Err()
		batch = batch[:0]
		return err
	}

	iter := s.rdb.Scan(ctx, 0, prefix+":*", batchSize).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return flush()
}

type memoryStore struct{ c *gocache.Cache }

func (s memoryStore) get(_ context.Context, key string) ([]byte, bool) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, false
	}
	bs, ok := v.([]byte)
	return bs, ok
}

func (s memoryStore) set(_ context.Context, key string, val []byte, ttl time.Duration) {
	s.c.Set(key, val, ttl)
}

func (s memoryStore) purge(_ context.Context, prefix string) error {
	for k := range s.c.Items() {
		if strings.HasPrefix(k, prefix+":") {
			s.c.Delete(k)
		}
	}
	return nil
}

// ResponseCache caches successful anonymous responses of the station browse
// endpoints.  Entries live in Redis when a client is configured and in
// process memory otherwise.  Handlers call Purge after any change that can
// alter availability.
type ResponseCache struct {
	cfg   config.CacheConfig
	store cacheStore
}

// NewResponseCache picks the Redis backend when rdb is non-nil.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client) *ResponseCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	rc := &ResponseCache{cfg: cfg}
	if rdb != nil {
		rc.store = redisStore{rdb: rdb}
	} else {
		rc.store = memoryStore{c: gocache.New(cfg.TTL, 2*cfg.TTL)}
	}
	return rc
}

// Purge removes every cached response.  A nil or disabled cache is a no-op.
func (rc *ResponseCache) Purge(ctx context.Context) error {
	if rc == nil || !rc.cfg.Enabled {
		return nil
	}
	return rc.store.purge(ctx, rc.cfg.Prefix)
}

// cacheKeyFrom hashes the request parts named by KeyStrategy ("route",
// "method_route", "method_route_query"; default "route_query") under the
// configured prefix.  The resolved path is always included so
// /stations/1 and /stations/2 never share an entry.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	strategy := strings.ToLower(cfg.KeyStrategy)
	if strategy == "" {
		strategy = "route_query"
	}
	var b strings.Builder
	for _, part := range strings.Split(strategy, "_") {
		switch part {
		case "method":
			b.WriteString("m=" + r.Method + "\n")
		case "route":
			b.WriteString("r=" + c.Path() + "\n")
		case "query":
			b.WriteString("q=" + r.URL.RawQuery + "\n")
		}
	}
	b.WriteString("p=" + r.URL.Path)
	sum := sha256.Sum256([]byte(b.String()))
	return cfg.Prefix + ":" + hex.EncodeToString(sum[:16])
}

// cachedResponse is the stored form of one response.
type cachedResponse struct {
	Status int         `json:"s"`
	Header http.Header `json:"h"`
	Body   []byte      `json:"b"`
}

func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	return json.Marshal(cachedResponse{Status: status, Header: header, Body: body})
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	var cr cachedResponse
	if err := json.Unmarshal(bs, &cr); err != nil || cr.Status == 0 {
		return 0, nil, nil, false
	}
	if cr.Header == nil {
		cr.Header = http.Header{}
	}
	return cr.Status, cr.Header, cr.Body, true
}

// recorder tees the response to the client and keeps up to limit bytes of
// the body.  A limit of zero keeps everything.
type recorder struct {
	http.ResponseWriter
	status   int
	body     bytes.Buffer
	limit    int
	overflow bool
}

func (w *recorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *recorder) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.limit > 0 && w.body.Len()+len(b) > w.limit {
			w.overflow = true
			w.body.Reset()
		} else {
			w.body.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// replay writes a cached response.  X-Cache is set by the caller and
// Content-Length is recomputed by net/http.
func replay(c echo.Context, status int, hdr http.Header, body []byte) error {
	out := c.Response().Header()
	for k, vals := range hdr {
		if k == echo.HeaderContentLength || k == "X-Cache" {
			continue
		}
		out[k] = append(out[k], vals...)
	}
	out.Set("X-Cache", "HIT")
	c.Response().WriteHeader(status)
	_, err := c.Response().Write(body)
	return err
}

// Middleware serves hits from the store and records 200 responses on a
// miss.  Requests carrying an Authorization header bypass the cache because
// their responses depend on the caller.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
	if rc == nil || !rc.cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	cfg := rc.cfg

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !cfg.Methods[strings.ToUpper(req.Method)] || req.Header.Get(echo.HeaderAuthorization) != "" {
				return next(c)
			}
			key := cacheKeyFrom(cfg, c)

			if bs, ok := rc.store.get(req.Context(), key); ok {
				if status, hdr, body, ok := decodePayload(bs); ok {
					return replay(c, status, hdr, body)
				}
			}

			rec := &recorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflow {
				return nil
			}
			payload, err := encodePayload(rec.status, c.Response().Header().Clone(), rec.body.Bytes())
			if err == nil {
				// The request context may already be done once the body is sent.
				rc.store.set(context.Background(), key, payload, cfg.TTL)
			}
			return nil
		}
	}
}
