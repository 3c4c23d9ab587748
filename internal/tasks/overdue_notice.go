package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/shelfwise/circulation/internal/audit"
	"github.com/shelfwise/circulation/internal/entities"
	"github.com/shelfwise/circulation/internal/lending"
)

// LoanReader provides the loan lookup the notice processor needs.
type LoanReader interface {
	GetLoan(ctx context.Context, id uint) (*entities.Loan, error)
}

// NoticeRecorder persists a record of each notice that went out.
type NoticeRecorder interface {
	RecordLoan(action string, loan *entities.Loan, detail string) (string, error)
}

// OverdueNoticeTask notifies a patron that a loan has gone overdue.
// Enqueued by the sweep for every loan it transitions.
type OverdueNoticeTask struct {
	LoanID uint `json:"loan_id"`
}

// Config returns the queue configuration for overdue notice tasks.
func (t OverdueNoticeTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "overdue_notice",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// OverdueNoticeProcessor creates a processor function for OverdueNoticeTask.
// The loan is re-read at processing time: a loan returned between the sweep
// and the notice run is skipped rather than notified.
func OverdueNoticeProcessor(loans LoanReader, recorder NoticeRecorder) backlite.QueueProcessor[OverdueNoticeTask] {
	return func(ctx context.Context, task OverdueNoticeTask) error {
		if loans == nil {
			return fmt.Errorf("loan reader not configured")
		}

		loan, err := loans.GetLoan(ctx, task.LoanID)
		if err != nil {
			if errors.Is(err, lending.ErrNotFound) {
				log.Printf("[TASK] Overdue notice for loan %d skipped: loan no longer exists", task.LoanID)
				return nil
			}
			return fmt.Errorf("overdue notice for loan %d: %w", task.LoanID, err)
		}

		if loan.Status != entities.LoanStatusOverdue {
			log.Printf("[TASK] Overdue notice for loan %d skipped: status is %s", loan.ID, loan.Status)
			return nil
		}

		log.Printf("[TASK] Overdue notice: loan %d (%s) held by patron %d, due %s",
			loan.ID, loan.Book.Title, loan.PatronID, loan.DueDate.Format("2006-01-02"))

		if recorder != nil {
			if _, err := recorder.RecordLoan(audit.ActionOverdueNotice, loan, "overdue notice issued"); err != nil {
				log.Printf("[TASK] Failed to record overdue notice for loan %d: %v", loan.ID, err)
			}
		}
		return nil
	}
}

// NewOverdueNoticeQueue creates a backlite queue for overdue notice tasks.
func NewOverdueNoticeQueue(loans LoanReader, recorder NoticeRecorder) backlite.Queue {
	return backlite.NewQueue(OverdueNoticeProcessor(loans, recorder))
}
