package product

import (
	"context"
	"fmt"
	"time"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/numerator"
	"pharmadesk/internal/core/tx"
	"pharmadesk/internal/domain"
	"pharmadesk/pkg/logger"
)

// codeConfig numbers products created without an explicit code.
var codeConfig = numerator.Config{Prefix: "PRD", PadWidth: 6, ResetPeriod: "never"}

// Service provides business logic for the Product catalog.
type Service struct {
	repo      Repository
	txManager tx.Manager
	numerator numerator.Generator
}

// NewService creates a new Product service.
func NewService(repo Repository, txManager tx.Manager, gen numerator.Generator) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		numerator: gen,
	}
}

// Create validates and stores a new product. An empty code is generated.
func (s *Service) Create(ctx context.Context, p *Product) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if p.Code == "" {
			code, err := s.numerator.GetNextNumber(ctx, codeConfig, time.Now())
			if err != nil {
				return fmt.Errorf("generate code: %w", err)
			}
			p.Code = code
		}
		p.CachedStock = p.InitialStock
		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "product created", "id", p.ID, "code", p.Code, "initial_stock", p.InitialStock)
	return nil
}

// GetByID returns a product that is not soft-deleted.
func (s *Service) GetByID(ctx context.Context, productID id.ID) (*Product, error) {
	p, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, normalizeGetErr(err, productID.String())
	}
	if p.DeletionMark {
		return nil, apperror.NewNotFound("product", productID.String())
	}
	return p, nil
}

// GetByCode returns a product that is not soft-deleted.
func (s *Service) GetByCode(ctx context.Context, code string) (*Product, error) {
	p, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, normalizeGetErr(err, code)
	}
	return p, nil
}

// Update stores descriptive changes. p.Version must be the version the
// caller read.
func (s *Service) Update(ctx context.Context, p *Product) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "product updated", "id", p.ID, "version", p.Version)
	return nil
}

// Delete soft-deletes the product. Its movements and invoice lines stay.
func (s *Service) Delete(ctx context.Context, productID id.ID) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetForUpdate(ctx, productID)
		if err != nil {
			return normalizeGetErr(err, productID.String())
		}
		if p.DeletionMark {
			return apperror.NewNotFound("product", productID.String())
		}
		return s.repo.SetDeletionMark(ctx, productID, true)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "product deleted", "id", productID)
	return nil
}

// List retrieves products with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Product], error) {
	return s.repo.List(ctx, filter)
}

func normalizeGetErr(err error, idOrCode string) error {
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound("product", idOrCode)
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewInternal(err).WithDetail("entity", "product").WithDetail("id", idOrCode)
}
