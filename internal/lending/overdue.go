package lending

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/shelfwise/circulation/internal/entities"
)

// SweepOverdue promotes every borrowed loan whose due date has passed asOf to
// the overdue status and returns the loans it transitioned. A zero asOf means
// now.
//
// The update predicate matches status = borrowed only, never "any non-returned
// loan": a loan that was returned between the select and the update is simply
// skipped, so a concurrent Return can never be bounced back to overdue. Status
// moves forward only (borrowed -> overdue -> returned); running the sweep
// twice with the same or a later asOf is a no-op for already-overdue loans.
//
// The sweep never touches availability counters: an overdue copy is still out.
func (s *Service) SweepOverdue(ctx context.Context, asOf time.Time) ([]entities.Loan, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}

	var swept []entities.Loan
	err := s.withRetry(ctx, "overdue sweep", func() error {
		swept = nil
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var stale []entities.Loan
			if err := tx.
				Where("status = ? AND due_date < ?", entities.LoanStatusBorrowed, asOf).
				Find(&stale).Error; err != nil {
				return err
			}
			if len(stale) == 0 {
				return nil
			}

			ids := make([]uint, 0, len(stale))
			for _, l := range stale {
				ids = append(ids, l.ID)
			}

			res := tx.Model(&entities.Loan{}).
				Where("id IN ? AND status = ?", ids, entities.LoanStatusBorrowed).
				Update("status", entities.LoanStatusOverdue)
			if res.Error != nil {
				return res.Error
			}

			for i := range stale {
				stale[i].Status = entities.LoanStatusOverdue
			}
			swept = stale
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return swept, nil
}

// MarkOverdue runs the overdue sweep and reports how many loans transitioned.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	swept, err := s.SweepOverdue(ctx, asOf)
	if err != nil {
		return 0, err
	}
	return int64(len(swept)), nil
}

// GetLoan fetches a single loan with its book and patron. The overdue check
// runs first so the status cannot be stale at the moment it is read.
func (s *Service) GetLoan(ctx context.Context, id uint) (*entities.Loan, error) {
	if _, err := s.MarkOverdue(ctx, time.Time{}); err != nil {
		return nil, err
	}

	var loan entities.Loan
	err := s.db.WithContext(ctx).Preload("Book").Preload("Patron").First(&loan, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, &StorageError{Op: "get loan", Err: err}
	}
	return &loan, nil
}

// ListLoansForPatron returns a patron's loans, newest first, optionally
// filtered by status. The overdue check runs before the read.
func (s *Service) ListLoansForPatron(ctx context.Context, patronID uint, status entities.LoanStatus) ([]entities.Loan, error) {
	if _, err := s.MarkOverdue(ctx, time.Time{}); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Preload("Book").
		Where("patron_id = ?", patronID).
		Order("borrowed_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var loans []entities.Loan
	if err := query.Find(&loans).Error; err != nil {
		return nil, &StorageError{Op: "list loans for patron", Err: err}
	}
	return loans, nil
}

// ListOverdueLoans returns all loans currently overdue, oldest due date
// first. The sweep runs before the read, so loans that crossed their due date
// since the last sweep are included.
func (s *Service) ListOverdueLoans(ctx context.Context) ([]entities.Loan, error) {
	if _, err := s.MarkOverdue(ctx, time.Time{}); err != nil {
		return nil, err
	}

	var loans []entities.Loan
	err := s.db.WithContext(ctx).Preload("Book").Preload("Patron").
		Where("status = ?", entities.LoanStatusOverdue).
		Order("due_date ASC").
		Find(&loans).Error
	if err != nil {
		return nil, &StorageError{Op: "list overdue loans", Err: err}
	}
	return loans, nil
}

// CountActiveLoans returns how many loans currently hold a copy of the book.
func (s *Service) CountActiveLoans(ctx context.Context, bookID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&entities.Loan{}).
		Where("book_id = ? AND status <> ?", bookID, entities.LoanStatusReturned).
		Count(&count).Error
	if err != nil {
		return 0, &StorageError{Op: "count active loans", Err: err}
	}
	return count, nil
}
