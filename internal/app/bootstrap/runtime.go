// Package bootstrap builds the runtime collaborators selected by config.
package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/clinic-appointments/internal/config"
	httpmiddleware "github.com/wolfman30/clinic-appointments/internal/http/middleware"
	"github.com/wolfman30/clinic-appointments/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if !verify {
		return client
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not available", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildLimiter returns the /api rate limiter and a stop func, or a nil
// limiter when RATE_LIMIT_RPS is not positive. The Redis backend falls back
// to the in-process bucket when no client is available.
func BuildLimiter(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (httpmiddleware.Limiter, func()) {
	if cfg == nil || cfg.RateLimitRPS <= 0 {
		return nil, func() {}
	}
	if logger == nil {
		logger = logging.Default()
	}
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}

	if cfg.RateLimitBackend == "redis" {
		if redisClient != nil {
			window := time.Duration(float64(burst) / cfg.RateLimitRPS * float64(time.Second))
			logger.Info("rate limiter: redis", "limit", burst, "window", window.String())
			return httpmiddleware.NewRedisLimiter(redisClient, burst, window), func() {}
		}
		logger.Warn("rate limiter: redis unavailable, using in-memory buckets")
	}
	rl := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, burst)
	return rl, rl.Stop
}
