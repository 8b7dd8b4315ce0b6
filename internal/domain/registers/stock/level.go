package stock

import (
	"time"

	"github.com/shopspring/decimal"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain/catalogs/product"
)

// ExpiryWarningDays is the horizon within which a product counts as expiring soon.
const ExpiryWarningDays = 30

// Level is the stock state of one product derived from its ledger.
type Level struct {
	ProductID       id.ID           `json:"product_id"`
	CurrentStock    int64           `json:"current_stock"`
	IsLowStock      bool            `json:"is_low_stock"`
	IsOutOfStock    bool            `json:"is_out_of_stock"`
	IsExpiringSoon  bool            `json:"is_expiring_soon"`
	IsExpired       bool            `json:"is_expired"`
	DaysUntilExpiry *int            `json:"days_until_expiry,omitempty"`
	StockValue      decimal.Decimal `json:"stock_value"`
	RetailValue     decimal.Decimal `json:"retail_value"`
}

// Compute derives the level of p from its movements as of today.
// It has no side effects: equal inputs always give equal outputs.
func Compute(p *product.Product, movements []Movement, today time.Time) Level {
	return FromTotals(p, Summarize(movements), today)
}

// FromTotals derives the level of p from pre-aggregated movement sums.
// Negative stock is reported as is.
func FromTotals(p *product.Product, totals Totals, today time.Time) Level {
	current := p.InitialStock + totals.Net()

	lvl := Level{
		ProductID:    p.ID,
		CurrentStock: current,
		IsLowStock:   current > 0 && current <= p.LowStockThreshold,
		IsOutOfStock: current <= 0,
		StockValue:   decimal.Zero,
		RetailValue:  decimal.Zero,
	}

	if p.ExpiryDate != nil {
		days := DaysUntil(*p.ExpiryDate, today)
		lvl.DaysUntilExpiry = &days
		lvl.IsExpiringSoon = days > 0 && days <= ExpiryWarningDays
		lvl.IsExpired = days < 0
	}

	if current > 0 {
		units := decimal.NewFromInt(current)
		lvl.StockValue = units.Mul(p.PurchasePrice)
		lvl.RetailValue = units.Mul(p.SellingPrice)
	}

	return lvl
}

// DaysUntil counts calendar days from today to expiry. expiry is taken as a
// calendar date, today is read in its own location.
func DaysUntil(expiry, today time.Time) int {
	ey, em, ed := expiry.Date()
	ty, tm, td := today.Date()
	e := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	t := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(e.Sub(t).Hours() / 24)
}

// Valuation aggregates levels for the dashboard.
type Valuation struct {
	ProductCount int             `json:"product_count"`
	UnitsOnHand  int64           `json:"units_on_hand"`
	StockValue   decimal.Decimal `json:"stock_value"`
	RetailValue  decimal.Decimal `json:"retail_value"`
}

// Value sums the positive stock of levels.
func Value(levels []Level) Valuation {
	v := Valuation{
		ProductCount: len(levels),
		StockValue:   decimal.Zero,
		RetailValue:  decimal.Zero,
	}
	for _, l := range levels {
		if l.CurrentStock > 0 {
			v.UnitsOnHand += l.CurrentStock
		}
		v.StockValue = v.StockValue.Add(l.StockValue)
		v.RetailValue = v.RetailValue.Add(l.RetailValue)
	}
	return v
}
