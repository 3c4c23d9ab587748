package lending

import (
	"errors"
	"fmt"
)

// Domain error taxonomy. Every operation either commits fully or returns one
// of these; no partial mutation survives a failed call. The HTTP layer is
// responsible for translating them to transport status codes.
var (
	// ErrNotFound is the base error wrapped by the entity-specific variants
	// below, so callers can match either the broad or the narrow condition.
	ErrNotFound = errors.New("not found")

	ErrBookNotFound   = fmt.Errorf("book: %w", ErrNotFound)
	ErrPatronNotFound = fmt.Errorf("patron: %w", ErrNotFound)
	ErrLoanNotFound   = fmt.Errorf("loan: %w", ErrNotFound)

	// ErrUnavailable means the book has no copies left at the moment of the
	// atomic availability check.
	ErrUnavailable = errors.New("no copies available")

	// ErrInvalidDueDate means the requested due date is not after the borrow time.
	ErrInvalidDueDate = errors.New("due date must be after the borrow time")

	// ErrAlreadyReturned means the loan has already reached its terminal state.
	// Return is deliberately not idempotent; callers that want idempotency
	// must check the loan status first.
	ErrAlreadyReturned = errors.New("loan already returned")
)

// StorageError wraps a backing-store failure that survived the bounded retry
// loop (persistent lock contention, I/O failure). It is the only error kind
// that indicates a system fault rather than a domain outcome.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsDomainError reports whether err is one of the typed domain outcomes,
// as opposed to a storage fault.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrInvalidDueDate) ||
		errors.Is(err, ErrAlreadyReturned)
}
