// Package stock provides the stock movement ledger, the projection that
// derives quantity on hand from it, and the service that mutates it.
package stock

import (
	"time"

	"pharmadesk/internal/core/id"
)

// MovementType is the kind of ledger entry.
type MovementType string

const (
	MovementIn         MovementType = "in"
	MovementOut        MovementType = "out"
	MovementAdjustment MovementType = "adjustment"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjustment:
		return true
	}
	return false
}

// Movement is an immutable ledger entry. Quantity is positive for in and out
// entries and carries its sign for adjustments.
type Movement struct {
	ID        id.ID        `db:"id" json:"id"`
	ProductID id.ID        `db:"product_id" json:"product_id"`
	Type      MovementType `db:"type" json:"type"`
	Quantity  int64        `db:"quantity" json:"quantity"`
	Reason    string       `db:"reason" json:"reason"`
	Reference *string      `db:"reference" json:"reference,omitempty"`
	UserID    *id.ID       `db:"user_id" json:"user_id,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// Totals are the per-type sums of a product's movements.
type Totals struct {
	In         int64 `db:"total_in" json:"in"`
	Out        int64 `db:"total_out" json:"out"`
	Adjustment int64 `db:"total_adjustment" json:"adjustment"`
}

// Add folds m into t.
func (t *Totals) Add(m Movement) {
	switch m.Type {
	case MovementIn:
		t.In += m.Quantity
	case MovementOut:
		t.Out += m.Quantity
	case MovementAdjustment:
		t.Adjustment += m.Quantity
	}
}

// Net is Σin − Σout + Σadjustment.
func (t Totals) Net() int64 {
	return t.In - t.Out + t.Adjustment
}

// Summarize sums a movement list per type.
func Summarize(movements []Movement) Totals {
	var t Totals
	for _, m := range movements {
		t.Add(m)
	}
	return t
}
