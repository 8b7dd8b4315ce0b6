package numerator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "pharmadesk/internal/core/numerator"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if ptr, ok := dest[0].(*int64); ok {
		*ptr = m.val
	}
	return nil
}

// mockQuerier simulates sys_sequences by recognising the two statement
// shapes the service issues.
type mockQuerier struct {
	mu       sync.Mutex
	counters map[string]int64
	calls    int
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{counters: map[string]int64{}}
}

func (m *mockQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	key := args[0].(string)
	if strings.Contains(sql, "GREATEST") {
		if v := args[1].(int64); v > m.counters[key] {
			m.counters[key] = v
		}
	} else {
		m.counters[key]++
	}
	return &mockRow{val: m.counters[key]}
}

var period = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newService(q Querier) *Service {
	return &Service{querier: func(context.Context) Querier { return q }}
}

func TestGetNextNumber_Strict(t *testing.T) {
	q := newMockQuerier()
	svc := newService(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("FAC")

	num, err := svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-00001", num)

	num, err = svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-00002", num)

	num, err = svc.GetNextNumber(ctx, cfg, period.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "FAC-2027-00001", num, "the counter resets every year")
}

func TestEnsureAtLeast_OnlyRaises(t *testing.T) {
	q := newMockQuerier()
	svc := newService(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("FAC")

	require.NoError(t, svc.EnsureAtLeast(ctx, cfg, period, 7))
	require.NoError(t, svc.EnsureAtLeast(ctx, cfg, period, 3))

	num, err := svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-00008", num)
	assert.Equal(t, 3, q.calls)
}
