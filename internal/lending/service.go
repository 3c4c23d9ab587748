// Package lending implements the circulation ledger: the only code permitted
// to create or close loans and to adjust a book's available-copy count.
//
// The consistency contract it maintains for every book:
//
//	available_copies == total_copies - count(loans with status != returned)
//
// Both Borrow and Return execute as a single database transaction so that the
// counter and the loan set change together or not at all.
package lending

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/shelfwise/circulation/internal/entities"
)

// DefaultLoanPeriod is applied when a borrow request carries no due date.
const DefaultLoanPeriod = 14 * 24 * time.Hour

const defaultMaxRetries = 3

// Config tunes the lending service. Zero values fall back to defaults.
type Config struct {
	// LoanPeriod is the default borrow duration when no due date is given.
	LoanPeriod time.Duration

	// MaxRetries bounds the retry loop for transient transaction conflicts.
	MaxRetries int
}

// Service is the loan lifecycle manager. All mutations of loans and of book
// availability counters go through it.
type Service struct {
	db         *gorm.DB
	loanPeriod time.Duration
	maxRetries int
}

// NewService creates a lending service on top of an open database handle.
func NewService(db *gorm.DB, cfg Config) *Service {
	if cfg.LoanPeriod <= 0 {
		cfg.LoanPeriod = DefaultLoanPeriod
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &Service{
		db:         db,
		loanPeriod: cfg.LoanPeriod,
		maxRetries: cfg.MaxRetries,
	}
}

// Borrow checks out one copy of a book to a patron. The availability check,
// the counter decrement and the loan insert happen inside one transaction;
// two concurrent borrows against a single remaining copy resolve to exactly
// one success and one ErrUnavailable.
//
// A zero dueDate defaults to the configured loan period from now.
func (s *Service) Borrow(ctx context.Context, patronID, bookID uint, dueDate time.Time) (*entities.Loan, error) {
	borrowedAt := time.Now()
	if dueDate.IsZero() {
		dueDate = borrowedAt.Add(s.loanPeriod)
	}
	if !dueDate.After(borrowedAt) {
		return nil, ErrInvalidDueDate
	}

	var loan *entities.Loan
	err := s.withRetry(ctx, "borrow", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var patron entities.Patron
			if err := tx.First(&patron, patronID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrPatronNotFound
				}
				return err
			}

			// Re-read availability inside the transaction so a concurrent
			// borrower committed since the caller's last read is observed.
			var book entities.Book
			if err := tx.First(&book, bookID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrBookNotFound
				}
				return err
			}
			if book.AvailableCopies <= 0 {
				return ErrUnavailable
			}

			// The guarded decrement is the last word on availability: the
			// predicate makes the lost-update race impossible even if the
			// read above went stale.
			res := tx.Model(&entities.Book{}).
				Where("id = ? AND available_copies > 0", bookID).
				UpdateColumn("available_copies", gorm.Expr("available_copies - 1"))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrUnavailable
			}

			created := &entities.Loan{
				Reference:  uuid.NewString(),
				PatronID:   patronID,
				BookID:     bookID,
				Status:     entities.LoanStatusBorrowed,
				BorrowedAt: borrowedAt,
				DueDate:    dueDate,
			}
			if err := tx.Create(created).Error; err != nil {
				return err
			}

			loan = created
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Return closes a loan: sets it to the terminal returned status and gives the
// copy back to the book's availability counter, atomically. A second Return
// on the same loan fails with ErrAlreadyReturned and leaves the counter alone.
func (s *Service) Return(ctx context.Context, loanID uint) (*entities.Loan, error) {
	var loan *entities.Loan
	err := s.withRetry(ctx, "return", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var l entities.Loan
			if err := tx.First(&l, loanID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrLoanNotFound
				}
				return err
			}
			if l.Status == entities.LoanStatusReturned {
				return ErrAlreadyReturned
			}

			returnedAt := time.Now()

			// The status predicate guards against a concurrent Return that
			// committed between the read above and this update.
			res := tx.Model(&entities.Loan{}).
				Where("id = ? AND status <> ?", loanID, entities.LoanStatusReturned).
				Updates(map[string]any{
					"status":      entities.LoanStatusReturned,
					"returned_at": returnedAt,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrAlreadyReturned
			}

			if err := tx.Model(&entities.Book{}).
				Where("id = ?", l.BookID).
				UpdateColumn("available_copies", gorm.Expr("available_copies + 1")).Error; err != nil {
				return err
			}

			l.Status = entities.LoanStatusReturned
			l.ReturnedAt = &returnedAt
			loan = &l
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// withRetry runs fn, retrying a bounded number of times on transient SQLite
// lock contention. Domain errors pass through untouched; a conflict that
// survives all attempts is surfaced as a StorageError.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &StorageError{Op: op, Err: ctx.Err()}
			case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
			}
		}

		err = fn()
		if err == nil || IsDomainError(err) {
			return err
		}
		if !isBusy(err) {
			return &StorageError{Op: op, Err: err}
		}
	}
	return &StorageError{Op: op, Err: err}
}

// isBusy reports whether err is SQLite lock contention worth retrying.
func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	// The gorm sqlite driver sometimes flattens the error to a string.
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}
