package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/shelfwise/circulation/internal/entities"
)

// Actions recorded on the circulation audit trail.
const (
	ActionBorrow        = "borrow"
	ActionReturn        = "return"
	ActionOverdueSweep  = "overdue_sweep"
	ActionOverdueNotice = "overdue_notice"
)

// Event is one circulation event, written as a standalone JSON file.
type Event struct {
	ID       string    `json:"id"`
	Action   string    `json:"action"`
	LoanID   uint      `json:"loan_id,omitempty"`
	PatronID uint      `json:"patron_id,omitempty"`
	BookID   uint      `json:"book_id,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

type Auditor struct {
	AuditDir string
}

func NewAuditor(auditDir string) *Auditor {
	return &Auditor{
		AuditDir: auditDir,
	}
}

// RecordLoan writes an audit event for a loan operation. Audit failures are
// returned but never block the operation that triggered them; callers log
// and move on.
func (a *Auditor) RecordLoan(action string, loan *entities.Loan, detail string) (string, error) {
	event := Event{
		Action: action,
		Detail: detail,
		At:     time.Now(),
	}
	if loan != nil {
		event.LoanID = loan.ID
		event.PatronID = loan.PatronID
		event.BookID = loan.BookID
	}
	return a.save(event)
}

// RecordSweep writes an audit event for a completed overdue sweep.
func (a *Auditor) RecordSweep(transitioned int) (string, error) {
	return a.save(Event{
		Action: ActionOverdueSweep,
		Detail: fmt.Sprintf("%d loans marked overdue", transitioned),
		At:     time.Now(),
	})
}

func (a *Auditor) save(event Event) (string, error) {
	if err := a.ensureAuditDir(); err != nil {
		return "", fmt.Errorf("failed to ensure audit directory: %w", err)
	}

	event.ID = uuid.New().String()
	filename := fmt.Sprintf("%s.json", event.ID)
	path := filepath.Join(a.AuditDir, filename)

	jsonData, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal event to JSON: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write audit file: %w", err)
	}

	return filename, nil
}

// ensureAuditDir creates the audit directory if it doesn't exist
func (a *Auditor) ensureAuditDir() error {
	if _, err := os.Stat(a.AuditDir); os.IsNotExist(err) {
		if err := os.MkdirAll(a.AuditDir, 0755); err != nil {
			return fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	return nil
}
