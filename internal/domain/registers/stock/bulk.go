package stock

import (
	"context"
	"fmt"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/pkg/logger"
)

// MaxBulkItems bounds a single bulk request.
const MaxBulkItems = 1000

// BulkMode selects how a bulk update treats failing lines.
type BulkMode string

const (
	// BulkAllOrNothing rolls back every line when one fails.
	BulkAllOrNothing BulkMode = "all_or_nothing"
	// BulkBestEffort keeps successful lines and reports failed ones.
	BulkBestEffort BulkMode = "best_effort"
)

// Valid reports whether m is a known mode.
func (m BulkMode) Valid() bool {
	return m == BulkAllOrNothing || m == BulkBestEffort
}

// BulkItem is one line of a bulk update.
type BulkItem struct {
	ProductID id.ID
	Type      MovementType
	Quantity  int64
	Reason    string
	Reference string
}

func (it BulkItem) change() Change {
	return Change{ProductID: it.ProductID, Quantity: it.Quantity, Reason: it.Reason, Reference: it.Reference}
}

// LineStatus is the per-line outcome.
type LineStatus string

const (
	LineApplied LineStatus = "applied"
	LineFailed  LineStatus = "failed"
)

// BulkLine reports one line. Line numbers start at 1.
type BulkLine struct {
	Line      int                `json:"line"`
	ProductID id.ID              `json:"product_id"`
	Type      MovementType       `json:"type"`
	Quantity  int64              `json:"quantity"`
	Status    LineStatus         `json:"status"`
	Movement  *Movement          `json:"movement,omitempty"`
	Level     *Level             `json:"level,omitempty"`
	Error     *apperror.AppError `json:"error,omitempty"`
}

// BulkReport is the outcome of a bulk update.
type BulkReport struct {
	Mode    BulkMode   `json:"mode"`
	Applied int        `json:"applied"`
	Failed  int        `json:"failed"`
	Lines   []BulkLine `json:"lines"`
}

// Bulk dispatches to the operation named by mode.
func (s *Service) Bulk(ctx context.Context, mode BulkMode, items []BulkItem) (*BulkReport, error) {
	switch mode {
	case BulkAllOrNothing:
		return s.ApplyAllOrNothing(ctx, items)
	case BulkBestEffort:
		return s.ApplyBestEffort(ctx, items)
	}
	return nil, apperror.NewFieldValidation("mode", "mode must be all_or_nothing or best_effort")
}

// ApplyAllOrNothing applies every line in one transaction. The first failing
// line rolls back the whole batch and its error carries the line number.
func (s *Service) ApplyAllOrNothing(ctx context.Context, items []BulkItem) (*BulkReport, error) {
	if err := validateBulk(items); err != nil {
		return nil, err
	}

	report := &BulkReport{Mode: BulkAllOrNothing}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		report.Lines = report.Lines[:0]
		for i, it := range items {
			res, err := s.Apply(ctx, it.Type, it.change())
			if err != nil {
				return lineError(i+1, err)
			}
			report.Lines = append(report.Lines, appliedLine(i+1, it, res))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.Applied = len(report.Lines)
	s.Committed(ctx, appliedResults(report)...)
	logger.Info(ctx, "bulk stock update applied", "mode", BulkAllOrNothing, "lines", report.Applied)
	return report, nil
}

// ApplyBestEffort applies each line inside its own savepoint of one outer
// transaction. Lines rejected by a business rule are rolled back to their
// savepoint and reported; the others commit. Unexpected errors abort the
// whole batch.
func (s *Service) ApplyBestEffort(ctx context.Context, items []BulkItem) (*BulkReport, error) {
	if err := validateBulk(items); err != nil {
		return nil, err
	}

	report := &BulkReport{Mode: BulkBestEffort}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		report.Lines = report.Lines[:0]
		for i, it := range items {
			var res *Result
			err := s.txManager.RunInSavepoint(ctx, func(ctx context.Context) error {
				r, err := s.Apply(ctx, it.Type, it.change())
				res = r
				return err
			})
			if err == nil {
				report.Lines = append(report.Lines, appliedLine(i+1, it, res))
				continue
			}
			appErr, ok := apperror.AsAppError(err)
			if !ok || !apperror.IsClientError(err) {
				return lineError(i+1, err)
			}
			report.Lines = append(report.Lines, BulkLine{
				Line:      i + 1,
				ProductID: it.ProductID,
				Type:      it.Type,
				Quantity:  it.Quantity,
				Status:    LineFailed,
				Error:     appErr,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, l := range report.Lines {
		if l.Status == LineApplied {
			report.Applied++
		} else {
			report.Failed++
		}
	}
	s.Committed(ctx, appliedResults(report)...)
	logger.Info(ctx, "bulk stock update applied",
		"mode", BulkBestEffort,
		"applied", report.Applied,
		"failed", report.Failed,
	)
	return report, nil
}

func validateBulk(items []BulkItem) error {
	if len(items) == 0 {
		return apperror.NewFieldValidation("items", "at least one item is required")
	}
	if len(items) > MaxBulkItems {
		return apperror.NewFieldValidation("items", fmt.Sprintf("at most %d items per request", MaxBulkItems))
	}
	return nil
}

func appliedLine(line int, it BulkItem, res *Result) BulkLine {
	m, lvl := res.Movement, res.Level
	return BulkLine{
		Line:      line,
		ProductID: it.ProductID,
		Type:      it.Type,
		Quantity:  it.Quantity,
		Status:    LineApplied,
		Movement:  &m,
		Level:     &lvl,
	}
}

func appliedResults(report *BulkReport) []*Result {
	out := make([]*Result, 0, len(report.Lines))
	for _, l := range report.Lines {
		if l.Status == LineApplied {
			out = append(out, &Result{Movement: *l.Movement, Level: *l.Level})
		}
	}
	return out
}

// lineError annotates err with the failing line number.
func lineError(line int, err error) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.WithDetail("line", line)
	}
	return apperror.NewTransactionFailure(err).WithDetail("line", line)
}
