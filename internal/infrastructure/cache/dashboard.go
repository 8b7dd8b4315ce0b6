// Package cache provides the stock dashboard caches: a Redis-backed one
// shared between instances and an in-process fallback.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pharmadesk/internal/domain/registers/stock"
	"pharmadesk/pkg/logger"
)

// DashboardKey is the Redis key holding the serialized dashboard.
const DashboardKey = "pharmadesk:stock:dashboard"

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.MaxRetries = 3

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisDashboard stores the dashboard in Redis with a TTL. Cache failures
// are logged and treated as misses.
type RedisDashboard struct {
	client *redis.Client
	ttl    time.Duration
}

var _ stock.DashboardCache = (*RedisDashboard)(nil)

// NewRedisDashboard creates a Redis dashboard cache.
func NewRedisDashboard(client *redis.Client, ttl time.Duration) *RedisDashboard {
	return &RedisDashboard{client: client, ttl: ttl}
}

// Get implements stock.DashboardCache.
func (c *RedisDashboard) Get(ctx context.Context) (*stock.Dashboard, bool) {
	raw, err := c.client.Get(ctx, DashboardKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn(ctx, "dashboard cache read failed", "error", err)
		}
		return nil, false
	}

	var d stock.Dashboard
	if err := json.Unmarshal(raw, &d); err != nil {
		logger.Warn(ctx, "dashboard cache entry is corrupt", "error", err)
		return nil, false
	}
	return &d, true
}

// Set implements stock.DashboardCache.
func (c *RedisDashboard) Set(ctx context.Context, d *stock.Dashboard) {
	raw, err := json.Marshal(d)
	if err != nil {
		logger.Warn(ctx, "dashboard cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, DashboardKey, raw, c.ttl).Err(); err != nil {
		logger.Warn(ctx, "dashboard cache write failed", "error", err)
	}
}

// Invalidate implements stock.DashboardCache.
func (c *RedisDashboard) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, DashboardKey).Err(); err != nil {
		logger.Warn(ctx, "dashboard cache invalidate failed", "error", err)
	}
}

// LocalDashboard keeps the dashboard in process memory.
type LocalDashboard struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.RWMutex
	dashboard *stock.Dashboard
	expiresAt time.Time
}

var _ stock.DashboardCache = (*LocalDashboard)(nil)

// NewLocalDashboard creates an in-process dashboard cache.
func NewLocalDashboard(ttl time.Duration) *LocalDashboard {
	return &LocalDashboard{ttl: ttl, now: time.Now}
}

// Get implements stock.DashboardCache.
func (c *LocalDashboard) Get(context.Context) (*stock.Dashboard, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.dashboard == nil || !c.now().Before(c.expiresAt) {
		return nil, false
	}
	return c.dashboard, true
}

// Set implements stock.DashboardCache.
func (c *LocalDashboard) Set(_ context.Context, d *stock.Dashboard) {
	c.mu.Lock()
	c.dashboard = d
	c.expiresAt = c.now().Add(c.ttl)
	c.mu.Unlock()
}

// Invalidate implements stock.DashboardCache.
func (c *LocalDashboard) Invalidate(context.Context) {
	c.mu.Lock()
	c.dashboard = nil
	c.mu.Unlock()
}
