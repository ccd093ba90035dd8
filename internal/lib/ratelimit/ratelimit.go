package ratelimit

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linemk/rewards-wallet/internal/lib/logger/sl"
)

//go:embed lua/fixed_window.lua
var luaFixedWindow string

// Decision - результат проверки лимита для одного ключа
type Decision struct {
	Allowed   bool
	Remaining int
	RetryIn   time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RedisLimiter - счетчик фиксированного окна в Redis, INCR и PEXPIRE выполняются атомарно скриптом
type RedisLimiter struct {
	rdb    redis.Scripter
	script *redis.Script
	prefix string
	limit  int
	window time.Duration
}

func NewRedisLimiter(rdb redis.Scripter, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		script: redis.NewScript(luaFixedWindow),
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	const op = "ratelimit.RedisLimiter.Allow"

	raw, err := l.script.Run(ctx, l.rdb, []string{l.prefix + ":" + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(raw) != 2 {
		return Decision{}, fmt.Errorf("%s: unexpected script reply %v", op, raw)
	}
	return decide(raw[0], raw[1], l.limit), nil
}

func decide(count, ttlMillis int64, limit int) Decision {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{Allowed: count <= int64(limit), Remaining: remaining}
	if !d.Allowed && ttlMillis > 0 {
		d.RetryIn = time.Duration(ttlMillis) * time.Millisecond
	}
	return d
}

// Middleware ограничивает число запросов с одного IP.
// При недоступности Redis запрос пропускается.
func Middleware(log *slog.Logger, limiter Limiter, limit int) func(http.Handler) http.Handler {
	log = log.With(slog.String("component", "middleware/ratelimit"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + ClientIP(r)

			d, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.Warn("rate limiter unavailable", slog.String("key", key), sl.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(d.RetryIn.Seconds())+1))
				log.Info("rate limit exceeded", slog.String("key", key))
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP - RemoteAddr без порта. Заголовки прокси сюда не попадают:
// за доверенным прокси RemoteAddr заранее переписывает middleware.RealIP.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
