package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmadesk/internal/domain/registers/stock"
)

func TestLocalDashboard_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	c := NewLocalDashboard(30 * time.Second)
	c.now = func() time.Time { return now }

	_, ok := c.Get(ctx)
	assert.False(t, ok)

	d := &stock.Dashboard{GeneratedAt: now}
	c.Set(ctx, d)
	got, ok := c.Get(ctx)
	require.True(t, ok)
	assert.Same(t, d, got)

	now = now.Add(30 * time.Second)
	_, ok = c.Get(ctx)
	assert.False(t, ok, "entry expires after the ttl")
}

func TestLocalDashboard_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := NewLocalDashboard(time.Minute)
	c.Set(ctx, &stock.Dashboard{})
	c.Invalidate(ctx)

	_, ok := c.Get(ctx)
	assert.False(t, ok)
}

func TestRedisDashboard_RoundTrip(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	c := NewRedisDashboard(client, time.Minute)
	c.Invalidate(ctx)

	d := &stock.Dashboard{
		GeneratedAt: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		LowStock:    []stock.ProductLevel{{Code: "AMX", Name: "Amoxicillin"}},
	}
	c.Set(ctx, d)

	got, ok := c.Get(ctx)
	require.True(t, ok)
	assert.True(t, d.GeneratedAt.Equal(got.GeneratedAt))
	require.Len(t, got.LowStock, 1)
	assert.Equal(t, "AMX", got.LowStock[0].Code)

	c.Invalidate(ctx)
	_, ok = c.Get(ctx)
	assert.False(t, ok)
}
