// ratelimit.go provides Gin middleware that enforces per-client rate limits,
// returning 429 responses when a client exhausts its budget. Buckets live either
// in process (memory backend) or in redis so several replicas share one budget.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/projecthub/projecthub/internal/api/respond"
	"github.com/projecthub/projecthub/internal/config"
	"github.com/projecthub/projecthub/internal/telemetry"
)

// Limiter tiers, used as the metric label and the redis key prefix.
const (
	TierAuth    = "auth"
	TierGeneral = "general"
)

// RateLimitConfig holds configuration for one limiter tier
type RateLimitConfig struct {
	// Tier names the limiter in metrics and redis keys
	Tier string
	// RequestsPerMinute is the sustained rate allowed per client
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
	// IdleTimeout is how long an unused in-memory bucket is kept
	IdleTimeout time.Duration
}

// GeneralRateLimitConfig returns the limits for authenticated API traffic.
func GeneralRateLimitConfig(cfg config.RateLimitingConfig) RateLimitConfig {
	return RateLimitConfig{
		Tier:              TierGeneral,
		RequestsPerMinute: cfg.RequestsPerMinute,
		BurstSize:         cfg.Burst,
		IdleTimeout:       10 * time.Minute,
	}
}

// AuthRateLimitConfig returns the stricter limits for login and registration.
func AuthRateLimitConfig(cfg config.RateLimitingConfig) RateLimitConfig {
	return RateLimitConfig{
		Tier:              TierAuth,
		RequestsPerMinute: cfg.AuthRequestsPerMinute,
		BurstSize:         cfg.AuthBurst,
		IdleTimeout:       10 * time.Minute,
	}
}

func (c RateLimitConfig) burst() int {
	if c.BurstSize < 1 {
		return 1
	}
	return c.BurstSize
}

// Limiter decides whether the client identified by key may make another request.
// When it may not, retryAfter says how long until it can.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// ---------------------------------------------------------------------------
// Memory backend
// ---------------------------------------------------------------------------

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per client in process memory.
type MemoryLimiter struct {
	config  RateLimitConfig
	limit   rate.Limit
	mu      sync.Mutex
	clients map[string]*clientLimiter
	stopCh  chan struct{}
	once    sync.Once
}

// NewMemoryLimiter creates a limiter and starts its idle-bucket cleanup.
func NewMemoryLimiter(cfg RateLimitConfig) *MemoryLimiter {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 10 * time.Minute
	}
	l := &MemoryLimiter{
		config:  cfg,
		limit:   rate.Limit(float64(cfg.RequestsPerMinute) / 60.0),
		clients: make(map[string]*clientLimiter),
		stopCh:  make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow takes a token from key's bucket if one is available.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := time.Now()
	lim := l.get(key, now)

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute, nil
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d, nil
	}
	return true, 0, nil
}

func (l *MemoryLimiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.clients[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}
	lim := rate.NewLimiter(l.limit, l.config.burst())
	l.clients[key] = &clientLimiter{limiter: lim, lastSeen: now}
	return lim
}

// cleanup periodically drops buckets that have not been used for IdleTimeout
func (l *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(l.config.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			l.evictIdle(now)
		case <-l.stopCh:
			return
		}
	}
}

func (l *MemoryLimiter) evictIdle(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entry := range l.clients {
		if now.Sub(entry.lastSeen) > l.config.IdleTimeout {
			delete(l.clients, key)
		}
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *MemoryLimiter) Stop() {
	l.once.Do(func() { close(l.stopCh) })
}

// ---------------------------------------------------------------------------
// Redis backend
// ---------------------------------------------------------------------------

// RedisLimiter runs a GCRA limiter in redis, shared by every replica.
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

// NewRedisLimiter creates a limiter backed by the given redis client.
func NewRedisLimiter(rdb *redis.Client, cfg RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit: redis_rate.Limit{
			Rate:   cfg.RequestsPerMinute,
			Burst:  cfg.burst(),
			Period: time.Minute,
		},
		prefix: "ratelimit:" + cfg.Tier + ":",
	}
}

// Allow consumes one request from key's budget.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	res, err := l.limiter.Allow(ctx, l.prefix+key, l.limit)
	if err != nil {
		return false, 0, fmt.Errorf("redis rate limiter: %w", err)
	}
	if res.Allowed > 0 {
		return true, 0, nil
	}
	return false, res.RetryAfter, nil
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// RateLimitMiddleware rejects requests over the limit with 429. A limiter
// error lets the request through: an unreachable redis must not take the API down.
func RateLimitMiddleware(limiter Limiter, cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := getRateLimitKey(c)

		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			slog.WarnContext(c.Request.Context(), "rate limiter unavailable, allowing request",
				"tier", cfg.Tier, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerMinute))
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			telemetry.RateLimitRejectionsTotal.WithLabelValues(cfg.Tier).Inc()
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(seconds))
			respond.Abort(c, http.StatusTooManyRequests, "Too many requests")
			return
		}

		c.Next()
	}
}

// getRateLimitKey determines the key to use for rate limiting
// Priority: authenticated user > client IP
func getRateLimitKey(c *gin.Context) string {
	if id, ok := GetIdentity(c); ok && id.UserID != "" {
		return "user:" + id.UserID
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
