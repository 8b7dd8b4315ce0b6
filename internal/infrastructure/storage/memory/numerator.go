package memory

import (
	"context"
	"time"

	"pharmadesk/internal/core/numerator"
)

// Numerator implements numerator.Generator on the store's counters. The
// counters live in the store state, so a rolled back transaction also rolls
// back the numbers it allocated.
type Numerator struct{ s *Store }

var _ numerator.Generator = (*Numerator)(nil)

func (n *Numerator) GetNextNumber(ctx context.Context, cfg numerator.Config, period time.Time) (string, error) {
	var next int64
	err := n.s.do(ctx, OpNumeratorNext, func(st *state) error {
		key := cfg.Key(period)
		st.sequences[key]++
		next = st.sequences[key]
		return nil
	})
	if err != nil {
		return "", err
	}
	return cfg.Format(period, next), nil
}

func (n *Numerator) EnsureAtLeast(ctx context.Context, cfg numerator.Config, period time.Time, value int64) error {
	return n.s.do(ctx, "", func(st *state) error {
		key := cfg.Key(period)
		if st.sequences[key] < value {
			st.sequences[key] = value
		}
		return nil
	})
}

// Current returns the counter value for cfg in period.
func (n *Numerator) Current(cfg numerator.Config, period time.Time) int64 {
	var v int64
	_ = n.s.do(context.Background(), "", func(st *state) error {
		v = st.sequences[cfg.Key(period)]
		return nil
	})
	return v
}
