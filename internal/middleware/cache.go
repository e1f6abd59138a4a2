package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/slotswap/internal/config"
	"github.com/iliyamo/slotswap/internal/lib/logger/sl"
)

// captureWriter copies the response body, up to limit bytes, while
// forwarding it to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	switch remain := cw.limit - cw.size; {
	case cw.limit <= 0:
		cw.buf.Write(b)
	case remain >= int64(len(b)):
		cw.buf.Write(b)
	case remain > 0:
		cw.buf.Write(b[:remain])
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// truncated reports whether the body outgrew the capture limit.
func (cw *captureWriter) truncated() bool { return cw.limit > 0 && cw.size > cw.limit }

// cacheKeyFrom builds prefix:sha1(parts).  Every strategy except the
// anonymous "route_query" includes the user, since cached listings are
// per-user.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	route := c.Path()
	query := r.URL.RawQuery
	uid := currentUserID(c)

	var parts []string
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route_query":
		parts = []string{"route", route, "q", query}
	case "user_route":
		parts = []string{"user", uid, "route", route}
	case "method_user_route_query":
		parts = []string{"method", r.Method, "user", uid, "route", route, "q", query}
	default: // "user_route_query"
		parts = []string{"user", uid, "route", route, "q", query}
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}

// storeIfCurrent writes a cached response only if no write has bumped the
// generation since the response was computed.
var storeIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[1]) or '0'
if gen ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// generationKey lives outside the prefix:* namespace purged on writes.
func generationKey(prefix string) string { return prefix + "#gen" }

// perRequestHeaders are recomputed for every request and never replayed.
var perRequestHeaders = []string{"X-Cache", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Key", "Retry-After"}

func currentGeneration(ctx context.Context, rdb *redis.Client, prefix string) (string, error) {
	gen, err := rdb.Get(ctx, generationKey(prefix)).Result()
	if err == redis.Nil {
		return "0", nil
	}
	return gen, err
}

// NewRedisCache replays cached 200 responses for the configured methods.
// Body and headers, minus per-request ones, are stored so a hit matches the
// original response.
func NewRedisCache(log *slog.Logger, cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	log = log.With(slog.String("component", "cache"))
	maxBody := int64(cfg.MaxBodyBytes)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKeyFrom(cfg, c)

			if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) || isPerRequest(k) {
							continue
						}
						c.Response().Header()[k] = vals
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, _ = c.Response().Write(body)
					return nil
				}
			} else if err != redis.Nil {
				log.Warn("cache read failed", slog.String("key", key), sl.Err(err))
			}

			gen, err := currentGeneration(ctx, rdb, cfg.Prefix)
			if err != nil {
				log.Warn("cache generation read failed", sl.Err(err))
				return next(c)
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.truncated() {
				return nil
			}
			hdr := c.Response().Header().Clone()
			for _, h := range perRequestHeaders {
				hdr.Del(h)
			}
			payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
			if err != nil {
				return nil
			}
			keys := []string{generationKey(cfg.Prefix), key}
			stored, err := storeIfCurrent.Run(context.WithoutCancel(ctx), rdb, keys, gen, payload, cfg.TTL.Milliseconds()).Int()
			switch {
			case err != nil:
				log.Warn("cache write failed", slog.String("key", key), sl.Err(err))
			case stored == 0:
				log.Debug("cache write skipped, data changed", slog.String("key", key))
			}
			return nil
		}
	}
}

// InvalidateCache drops every cached response after a successful write.
// A swap changes listings of both parties and the swappable feed of every
// other user, so invalidation is prefix-wide rather than per user.  The
// generation is bumped before the purge so a read that started before the
// write cannot store its result afterwards.
func InvalidateCache(log *slog.Logger, cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	log = log.With(slog.String("component", "cache"))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if cfg.Methods[strings.ToUpper(c.Request().Method)] || !isSuccess(c.Response().Status) {
				return err
			}
			ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 2*time.Second)
			defer cancel()
			if derr := rdb.Incr(ctx, generationKey(cfg.Prefix)).Err(); derr != nil {
				log.Warn("cache generation bump failed", sl.Err(derr))
			}
			if n, derr := purgePrefix(ctx, rdb, cfg.Prefix); derr != nil {
				log.Warn("cache invalidation failed", sl.Err(derr))
			} else if n > 0 {
				log.Debug("cache invalidated", slog.Int("keys", n))
			}
			return err
		}
	}
}

func isPerRequest(header string) bool {
	for _, h := range perRequestHeaders {
		if strings.EqualFold(header, h) {
			return true
		}
	}
	return false
}

func isSuccess(status int) bool { return status >= 200 && status < 300 }

func purgePrefix(ctx context.Context, rdb *redis.Client, prefix string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := rdb.Scan(ctx, cursor, prefix+":*", 100).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			if err := rdb.Del(ctx, keys...).Err(); err != nil {
				return deleted, err
			}
			deleted += len(keys)
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}
