package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shelfwise/circulation/internal/audit"
	"github.com/shelfwise/circulation/internal/entities"
)

// LoanService captures the circulation operations the loans controller needs.
type LoanService interface {
	Borrow(ctx context.Context, patronID, bookID uint, dueDate time.Time) (*entities.Loan, error)
	Return(ctx context.Context, loanID uint) (*entities.Loan, error)
	GetLoan(ctx context.Context, id uint) (*entities.Loan, error)
	ListLoansForPatron(ctx context.Context, patronID uint, status entities.LoanStatus) ([]entities.Loan, error)
	ListOverdueLoans(ctx context.Context) ([]entities.Loan, error)
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// AuditRecorder persists circulation events; nil disables auditing.
type AuditRecorder interface {
	RecordLoan(action string, loan *entities.Loan, detail string) (string, error)
}

type LoansController struct {
	service LoanService
	auditor AuditRecorder
}

func NewLoansController(service LoanService, auditor AuditRecorder) *LoansController {
	return &LoansController{
		service: service,
		auditor: auditor,
	}
}

func (controller *LoansController) recordAudit(action string, loan *entities.Loan, detail string) {
	if controller.auditor == nil {
		return
	}
	if _, err := controller.auditor.RecordLoan(action, loan, detail); err != nil {
		log.Printf("Failed to record %s audit event: %v", action, err)
	}
}

type borrowRequest struct {
	PatronID uint       `json:"patron_id" binding:"required"`
	BookID   uint       `json:"book_id" binding:"required"`
	DueDate  *time.Time `json:"due_date"` // optional, defaults to the configured loan period
}

// Borrow checks out a copy of a book to a patron.
func (controller *LoansController) Borrow(c *gin.Context) {
	var req borrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "patron_id and book_id are required")
		return
	}

	var dueDate time.Time
	if req.DueDate != nil {
		dueDate = *req.DueDate
	}

	loan, err := controller.service.Borrow(c.Request.Context(), req.PatronID, req.BookID, dueDate)
	if err != nil {
		respondDomainError(c, err, "borrow")
		return
	}

	controller.recordAudit(audit.ActionBorrow, loan, "copy checked out")
	respondCreated(c, loan)
}

// Return closes out a loan and releases the copy back to the shelf.
func (controller *LoansController) Return(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	loan, err := controller.service.Return(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err, "return")
		return
	}

	controller.recordAudit(audit.ActionReturn, loan, "copy returned")
	c.IndentedJSON(http.StatusOK, loan)
}

// GetLoan returns a single loan with its patron and book preloaded.
func (controller *LoansController) GetLoan(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	loan, err := controller.service.GetLoan(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err, "get loan")
		return
	}

	c.IndentedJSON(http.StatusOK, loan)
}

// ListForPatron returns a patron's loans, optionally filtered by status.
func (controller *LoansController) ListForPatron(c *gin.Context) {
	patronID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	status := entities.LoanStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		respondBadRequest(c, "invalid status filter")
		return
	}

	loans, err := controller.service.ListLoansForPatron(c.Request.Context(), patronID, status)
	if err != nil {
		respondDomainError(c, err, "list patron loans")
		return
	}

	c.IndentedJSON(http.StatusOK, gin.H{"loans": loans, "count": len(loans)})
}

// ListOverdue returns all overdue loans ordered by due date.
func (controller *LoansController) ListOverdue(c *gin.Context) {
	loans, err := controller.service.ListOverdueLoans(c.Request.Context())
	if err != nil {
		respondDomainError(c, err, "list overdue loans")
		return
	}

	c.IndentedJSON(http.StatusOK, gin.H{"loans": loans, "count": len(loans)})
}

// MarkOverdue runs the batch overdue transition immediately.
func (controller *LoansController) MarkOverdue(c *gin.Context) {
	count, err := controller.service.MarkOverdue(c.Request.Context(), time.Now())
	if err != nil {
		respondDomainError(c, err, "mark overdue")
		return
	}

	c.IndentedJSON(http.StatusOK, gin.H{"transitioned": count})
}
