package stock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain/catalogs/product"
	"pharmadesk/pkg/logger"
)

// DashboardCache stores the last computed dashboard.
type DashboardCache interface {
	Get(ctx context.Context) (*Dashboard, bool)
	Set(ctx context.Context, d *Dashboard)
	Invalidate(ctx context.Context)
}

type noCache struct{}

func (noCache) Get(context.Context) (*Dashboard, bool) { return nil, false }
func (noCache) Set(context.Context, *Dashboard)        {}
func (noCache) Invalidate(context.Context)             {}

// ProductLevel is a product summary with its level.
type ProductLevel struct {
	Code              string     `json:"code"`
	Name              string     `json:"name"`
	Category          string     `json:"category"`
	ExpiryDate        *time.Time `json:"expiry_date,omitempty"`
	LowStockThreshold int64      `json:"low_stock_threshold"`
	Level
}

// Dashboard summarizes the stock of the pharmacy.
type Dashboard struct {
	GeneratedAt   time.Time      `json:"generated_at"`
	Valuation     Valuation      `json:"valuation"`
	LowStock      []ProductLevel `json:"low_stock"`
	OutOfStock    []ProductLevel `json:"out_of_stock"`
	NegativeStock []ProductLevel `json:"negative_stock"`
	ExpiringSoon  []ProductLevel `json:"expiring_soon"`
	Expired       []ProductLevel `json:"expired"`
}

// Dashboard returns the stock summary, from cache when available.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	if d, ok := s.cache.Get(ctx); ok {
		return d, nil
	}

	products, err := s.products.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	totals, err := s.repo.TotalsByProduct(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sum movements: %w", err)
	}

	d := BuildDashboard(products, totals, s.Today())
	d.GeneratedAt = s.now().UTC()
	s.cache.Set(ctx, d)
	return d, nil
}

// BuildDashboard classifies products by their level.
func BuildDashboard(products []*product.Product, totals map[id.ID]Totals, today time.Time) *Dashboard {
	d := &Dashboard{
		LowStock:      []ProductLevel{},
		OutOfStock:    []ProductLevel{},
		NegativeStock: []ProductLevel{},
		ExpiringSoon:  []ProductLevel{},
		Expired:       []ProductLevel{},
	}
	levels := make([]Level, 0, len(products))

	for _, p := range products {
		lvl := FromTotals(p, totals[p.ID], today)
		levels = append(levels, lvl)
		pl := ProductLevel{
			Code:              p.Code,
			Name:              p.Name,
			Category:          p.Category,
			ExpiryDate:        p.ExpiryDate,
			LowStockThreshold: p.LowStockThreshold,
			Level:             lvl,
		}
		if lvl.IsLowStock {
			d.LowStock = append(d.LowStock, pl)
		}
		if lvl.IsOutOfStock {
			d.OutOfStock = append(d.OutOfStock, pl)
		}
		if lvl.CurrentStock < 0 {
			d.NegativeStock = append(d.NegativeStock, pl)
		}
		if lvl.IsExpiringSoon {
			d.ExpiringSoon = append(d.ExpiringSoon, pl)
		}
		if lvl.IsExpired {
			d.Expired = append(d.Expired, pl)
		}
	}

	sort.SliceStable(d.LowStock, func(i, j int) bool { return d.LowStock[i].CurrentStock < d.LowStock[j].CurrentStock })
	sort.SliceStable(d.ExpiringSoon, func(i, j int) bool {
		return *d.ExpiringSoon[i].DaysUntilExpiry < *d.ExpiringSoon[j].DaysUntilExpiry
	})

	d.Valuation = Value(levels)
	return d
}

// Drift is a product whose cached stock column disagreed with the ledger.
type Drift struct {
	ProductID id.ID  `json:"product_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Cached    int64  `json:"cached"`
	Actual    int64  `json:"actual"`
}

// Reconcile recomputes every active product from the ledger and rewrites
// drifted cached values. Each product is checked under its own row lock.
func (s *Service) Reconcile(ctx context.Context) ([]Drift, error) {
	products, err := s.products.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	drifts := []Drift{}
	for _, listed := range products {
		productID := listed.ID
		err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			p, err := s.products.GetForUpdate(ctx, productID)
			if err != nil {
				return err
			}
			totals, err := s.repo.Totals(ctx, productID)
			if err != nil {
				return err
			}
			actual := p.InitialStock + totals.Net()
			if actual == p.CachedStock {
				return nil
			}
			if err := s.products.SetCachedStock(ctx, productID, actual); err != nil {
				return err
			}
			drifts = append(drifts, Drift{
				ProductID: productID,
				Code:      p.Code,
				Name:      p.Name,
				Cached:    p.CachedStock,
				Actual:    actual,
			})
			logger.Warn(ctx, "cached stock drift corrected",
				"product_id", productID,
				"cached", p.CachedStock,
				"actual", actual,
			)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("reconcile product %s: %w", productID, err)
		}
	}

	if len(drifts) > 0 {
		s.cache.Invalidate(ctx)
	}
	logger.Info(ctx, "stock reconciliation finished", "products", len(products), "drifts", len(drifts))
	return drifts, nil
}
