package stock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pharmadesk/internal/core/apperror"
	appctx "pharmadesk/internal/core/context"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/tx"
	"pharmadesk/internal/domain"
	"pharmadesk/internal/domain/catalogs/product"
	"pharmadesk/internal/domain/events"
	"pharmadesk/pkg/logger"
)

const maxReasonLength = 255

// Change is a single requested stock mutation.
type Change struct {
	ProductID id.ID
	Quantity  int64
	Reason    string
	Reference string
}

// Result is the outcome of a successful mutation.
type Result struct {
	Movement Movement `json:"movement"`
	Level    Level    `json:"level"`
}

// Recorder receives counters about ledger activity.
type Recorder interface {
	MovementRecorded(t MovementType, quantity int64)
	MutationRejected(code string)
}

type nopRecorder struct{}

func (nopRecorder) MovementRecorded(MovementType, int64) {}
func (nopRecorder) MutationRejected(string)              {}

// ServiceConfig configures the stock service.
type ServiceConfig struct {
	Repo      Repository
	Products  product.Repository
	TxManager tx.Manager

	// Optional collaborators
	Publisher events.Publisher
	Cache     DashboardCache
	Recorder  Recorder

	// Now and Location define "today" for expiry flags.
	Now      func() time.Time
	Location *time.Location
}

// Service validates and appends ledger entries.
type Service struct {
	repo      Repository
	products  product.Repository
	txManager tx.Manager
	publisher events.Publisher
	cache     DashboardCache
	recorder  Recorder
	now       func() time.Time
	loc       *time.Location
}

// NewService creates a new stock service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:      cfg.Repo,
		products:  cfg.Products,
		txManager: cfg.TxManager,
		publisher: cfg.Publisher,
		cache:     cfg.Cache,
		recorder:  cfg.Recorder,
		now:       cfg.Now,
		loc:       cfg.Location,
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	if s.cache == nil {
		s.cache = noCache{}
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	return s
}

// Today returns the current time in the pharmacy's timezone.
func (s *Service) Today() time.Time {
	return s.now().In(s.loc)
}

// AddStock appends an "in" movement.
func (s *Service) AddStock(ctx context.Context, c Change) (*Result, error) {
	return s.apply(ctx, MovementIn, c)
}

// RemoveStock appends an "out" movement after checking, under a row lock,
// that current stock covers the quantity.
func (s *Service) RemoveStock(ctx context.Context, c Change) (*Result, error) {
	return s.apply(ctx, MovementOut, c)
}

// AdjustStock appends a signed "adjustment" movement. A negative adjustment
// may not take current stock below zero.
func (s *Service) AdjustStock(ctx context.Context, c Change) (*Result, error) {
	return s.apply(ctx, MovementAdjustment, c)
}

// Apply dispatches on the movement type.
func (s *Service) Apply(ctx context.Context, t MovementType, c Change) (*Result, error) {
	if !t.Valid() {
		return nil, apperror.NewFieldValidation("type", "type must be one of in, out, adjustment")
	}
	return s.apply(ctx, t, c)
}

func (s *Service) apply(ctx context.Context, t MovementType, c Change) (*Result, error) {
	if err := validateChange(t, &c); err != nil {
		s.rejected(ctx, err, c)
		return nil, err
	}

	joined := s.txManager.InTransaction(ctx)

	var res *Result
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		r, err := s.applyLocked(ctx, t, c)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		s.rejected(ctx, err, c)
		return nil, err
	}

	// A caller that owns the transaction reports after its own commit.
	if !joined {
		s.Committed(ctx, res)
	}
	return res, nil
}

// Committed reports movements whose transaction has committed to the
// recorder and the log, then drops the cached dashboard.
func (s *Service) Committed(ctx context.Context, results ...*Result) {
	if len(results) == 0 {
		return
	}
	for _, r := range results {
		m := r.Movement
		s.recorder.MovementRecorded(m.Type, m.Quantity)
		logger.Info(ctx, "stock movement recorded",
			"product_id", m.ProductID,
			"type", m.Type,
			"quantity", m.Quantity,
			"reference", m.Reference,
			"current_stock", r.Level.CurrentStock,
		)
	}
	s.cache.Invalidate(ctx)
}

// applyLocked runs inside a transaction.
func (s *Service) applyLocked(ctx context.Context, t MovementType, c Change) (*Result, error) {
	p, err := s.lockProduct(ctx, c.ProductID)
	if err != nil {
		return nil, err
	}

	totals, err := s.repo.Totals(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("sum movements: %w", err)
	}
	today := s.Today()
	before := FromTotals(p, totals, today)

	switch t {
	case MovementOut:
		if before.CurrentStock < c.Quantity {
			return nil, apperror.NewInsufficientStock(p.ID.String(), p.Name, c.Quantity, before.CurrentStock)
		}
	case MovementAdjustment:
		if c.Quantity < 0 && before.CurrentStock+c.Quantity < 0 {
			return nil, apperror.NewNegativeResultingStock(p.ID.String(), before.CurrentStock, c.Quantity)
		}
	}

	m := Movement{
		ID:        id.New(),
		ProductID: p.ID,
		Type:      t,
		Quantity:  c.Quantity,
		Reason:    c.Reason,
		UserID:    actorID(ctx),
		CreatedAt: s.now().UTC(),
	}
	if c.Reference != "" {
		ref := c.Reference
		m.Reference = &ref
	}

	if err := s.repo.Append(ctx, &m); err != nil {
		return nil, fmt.Errorf("append movement: %w", err)
	}

	totals.Add(m)
	after := FromTotals(p, totals, today)

	if err := s.products.SetCachedStock(ctx, p.ID, after.CurrentStock); err != nil {
		return nil, fmt.Errorf("refresh cached stock: %w", err)
	}

	if alertLevel(after) > alertLevel(before) {
		err := s.publisher.Publish(ctx, events.Event{
			AggregateType: events.AggregateProduct,
			AggregateID:   p.ID,
			Type:          events.TypeStockLow,
			Payload: map[string]any{
				"product_id":    p.ID,
				"code":          p.Code,
				"name":          p.Name,
				"current_stock": after.CurrentStock,
				"threshold":     p.LowStockThreshold,
				"out_of_stock":  after.IsOutOfStock,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("publish stock alert: %w", err)
		}
	}

	return &Result{Movement: m, Level: after}, nil
}

// lockProduct loads an active product with a row lock.
func (s *Service) lockProduct(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, err := s.products.GetForUpdate(ctx, productID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("product", productID.String())
		}
		return nil, fmt.Errorf("lock product: %w", err)
	}
	if p.DeletionMark {
		return nil, apperror.NewNotFound("product", productID.String())
	}
	return p, nil
}

// LockLevel locks an active product row and returns its current level.
// It must be called inside a transaction; the lock is held until commit.
func (s *Service) LockLevel(ctx context.Context, productID id.ID) (*product.Product, Level, error) {
	p, err := s.lockProduct(ctx, productID)
	if err != nil {
		return nil, Level{}, err
	}
	totals, err := s.repo.Totals(ctx, productID)
	if err != nil {
		return nil, Level{}, fmt.Errorf("sum movements: %w", err)
	}
	return p, FromTotals(p, totals, s.Today()), nil
}

// LevelOf returns an active product together with its current level.
func (s *Service) LevelOf(ctx context.Context, productID id.ID) (*product.Product, Level, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, Level{}, apperror.NewNotFound("product", productID.String())
		}
		return nil, Level{}, err
	}
	if p.DeletionMark {
		return nil, Level{}, apperror.NewNotFound("product", productID.String())
	}
	totals, err := s.repo.Totals(ctx, productID)
	if err != nil {
		return nil, Level{}, fmt.Errorf("sum movements: %w", err)
	}
	return p, FromTotals(p, totals, s.Today()), nil
}

// Levels computes the level of every given product.
func (s *Service) Levels(ctx context.Context, products []*product.Product) (map[id.ID]Level, error) {
	levels := make(map[id.ID]Level, len(products))
	if len(products) == 0 {
		return levels, nil
	}
	ids := make([]id.ID, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	totals, err := s.repo.TotalsByProduct(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("sum movements: %w", err)
	}
	today := s.Today()
	for _, p := range products {
		levels[p.ID] = FromTotals(p, totals[p.ID], today)
	}
	return levels, nil
}

// Movements returns ledger history.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) (domain.ListResult[Movement], error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) rejected(ctx context.Context, err error, c Change) {
	appErr, ok := apperror.AsAppError(err)
	if !ok || !apperror.IsClientError(err) {
		return
	}
	s.recorder.MutationRejected(appErr.Code)
	logger.Warn(ctx, "stock mutation rejected",
		"product_id", c.ProductID,
		"quantity", c.Quantity,
		"code", appErr.Code,
	)
}

func validateChange(t MovementType, c *Change) error {
	if id.IsNil(c.ProductID) {
		return apperror.NewFieldValidation("product_id", "product_id is required")
	}

	switch t {
	case MovementIn, MovementOut:
		if c.Quantity <= 0 {
			return apperror.NewInvalidQuantity("quantity must be greater than zero", c.Quantity)
		}
	case MovementAdjustment:
		if c.Quantity == 0 {
			return apperror.NewInvalidQuantity("adjustment quantity must not be zero", c.Quantity)
		}
	}

	c.Reason = strings.TrimSpace(c.Reason)
	c.Reference = strings.TrimSpace(c.Reference)
	if c.Reason == "" {
		if t == MovementAdjustment {
			return apperror.NewFieldValidation("reason", "reason is required for adjustments")
		}
		c.Reason = defaultReason(t)
	}
	if len(c.Reason) > maxReasonLength {
		return apperror.NewFieldValidation("reason", "reason must be at most 255 characters")
	}
	if len(c.Reference) > 100 {
		return apperror.NewFieldValidation("reference", "reference must be at most 100 characters")
	}
	return nil
}

func defaultReason(t MovementType) string {
	if t == MovementIn {
		return "receipt"
	}
	return "manual"
}

// alertLevel ranks a level: 0 normal, 1 low, 2 out of stock.
func alertLevel(l Level) int {
	switch {
	case l.IsOutOfStock:
		return 2
	case l.IsLowStock:
		return 1
	}
	return 0
}

func actorID(ctx context.Context) *id.ID {
	uid, err := id.Parse(appctx.GetUserID(ctx))
	if err != nil {
		return nil
	}
	return &uid
}
