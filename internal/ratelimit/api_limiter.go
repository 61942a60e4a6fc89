// Package ratelimit throttles the public payment endpoints with a
// redis-backed token bucket. One bucket per client IP for order creation,
// one shared bucket for the webhook endpoint. Disabled limiters allow
// everything, so the feature is safe to leave off.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/omnikart/omnikart/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyOrdersByIP = "payments:orders:ip:%s"
	keyWebhook    = "payments:webhook"
	keySweepLock  = "payments:sweep:lock"
)

type APILimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	orderRate    float64
	orderBurst   int
	webhookRate  float64
	webhookBurst int
	lockTTL      time.Duration
}

func NewAPILimiter(cfg config.Config) (*APILimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.OrderRate <= 0 || limitCfg.OrderBurst <= 0 {
		return nil, errors.New("order rate limit must be positive")
	}
	if limitCfg.WebhookRate <= 0 || limitCfg.WebhookBurst <= 0 {
		return nil, errors.New("webhook rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &APILimiter{
		enabled:      true,
		bucket:       NewTokenBucket(client),
		locker:       NewLocker(client),
		orderRate:    limitCfg.OrderRate,
		orderBurst:   limitCfg.OrderBurst,
		webhookRate:  limitCfg.WebhookRate,
		webhookBurst: limitCfg.WebhookBurst,
		lockTTL:      time.Duration(limitCfg.LockTTLSeconds) * time.Second,
	}, nil
}

func (l *APILimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *APILimiter) AllowOrder(ctx context.Context, clientIP string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	key := fmt.Sprintf(keyOrdersByIP, strings.TrimSpace(clientIP))
	return l.bucket.Allow(ctx, key, l.orderRate, l.orderBurst)
}

func (l *APILimiter) AllowWebhook(ctx context.Context) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, keyWebhook, l.webhookRate, l.webhookBurst)
}

// AcquireSweep grabs the cross-replica sweep lock. When the limiter is
// disabled there is no shared lock and the sweep proceeds locally.
func (l *APILimiter) AcquireSweep(ctx context.Context) (release func(), ok bool) {
	if !l.Enabled() {
		return func() {}, true
	}
	token, locked, err := l.locker.TryLock(ctx, keySweepLock, l.lockTTL)
	if err != nil || !locked {
		return nil, false
	}
	return func() {
		_ = l.locker.Unlock(context.Background(), keySweepLock, token)
	}, true
}
