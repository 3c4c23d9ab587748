package lending

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shelfwise/circulation/internal/entities"
)

func setupTestDB(t *testing.T) (*gorm.DB, *Service, func()) {
	t.Helper()

	dbPath := "./test_lending_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath+"?_journal=WAL&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&entities.Category{},
		&entities.Author{},
		&entities.Book{},
		&entities.Patron{},
		&entities.Loan{},
	)
	require.NoError(t, err)

	svc := NewService(db, Config{})

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
		os.Remove(dbPath + "-wal")
		os.Remove(dbPath + "-shm")
	}

	return db, svc, cleanup
}

func createTestPatron(t *testing.T, db *gorm.DB, email string) *entities.Patron {
	t.Helper()
	patron := &entities.Patron{
		Name:  "Test Patron",
		Email: email,
	}
	err := db.Create(patron).Error
	require.NoError(t, err)
	return patron
}

func createTestBook(t *testing.T, db *gorm.DB, title string, copies int) *entities.Book {
	t.Helper()
	book := &entities.Book{
		Title:           title,
		TotalCopies:     copies,
		AvailableCopies: copies,
	}
	err := db.Create(book).Error
	require.NoError(t, err)
	return book
}

func reloadBook(t *testing.T, db *gorm.DB, id uint) *entities.Book {
	t.Helper()
	var book entities.Book
	require.NoError(t, db.First(&book, id).Error)
	return &book
}

// assertInvariant checks that available_copies agrees with the active loan set.
func assertInvariant(t *testing.T, db *gorm.DB, bookID uint) {
	t.Helper()
	book := reloadBook(t, db, bookID)
	var active int64
	require.NoError(t, db.Model(&entities.Loan{}).
		Where("book_id = ? AND status <> ?", bookID, entities.LoanStatusReturned).
		Count(&active).Error)
	assert.Equal(t, int64(book.TotalCopies), int64(book.AvailableCopies)+active,
		"available_copies + active loans must equal total_copies")
}

func TestService_Borrow(t *testing.T) {
	db, svc, cleanup := setupTestDB(t)
	defer cleanup()

	patron := createTestPatron(t, db, "borrow@example.com")
	book := createTestBook(t, db, "The Go Programming Language", 3)

	dueDate := time.Now().Add(7 * 24 * time.Hour)
	loan, err := svc.Borrow(context.Background(), patron.ID, book.ID, dueDate)

	require.NoError(t, err)
	assert.Equal(t, entities.LoanStatusBorrowed, loan.Status)
	assert.Equal(t, patron.ID, loan.PatronID)
	assert.Equal(t, book.ID, loan.BookID)
	assert.NotEmpty(t, loan.Reference)
	assert.Nil(t, loan.ReturnedAt)
	assert.WithinDuration(t, dueDate, loan.DueDate, time.Second)

	assert.Equal(t, 2, reloadBook(t, db, book.ID).AvailableCopies)
	assertInvariant(t, db, book.ID)
}

func TestService_Borrow_DefaultDueDate(t *testing.T) {
	db, svc, cleanup := setupTestDB(t)
	defer cleanup()

	patron := createTestPatron(t, db, "default-due@example.com")
	book := createTestBook(t, db, "Moby Dick", 1)

	loan, err := svc.Borrow(context.Background(), patron.ID, book.ID, time.Time{})

	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(DefaultLoanPeriod), loan.DueDate, time.Minute)
}

func TestService_Borrow_InvalidDueDate(t *testing.T) {
	db, svc, cleanup := setupTestDB(t)
	defer cleanup()

	patron := createTestPatron(t, db, "past-due@example.com")
	book := createTestBook(t, db, "Dracula", 1)

	_, err := svc.Borrow(context.Background(), patron.ID, book.ID, time.Now().Add(-time.Hour))

	require.ErrorIs(t, err, ErrInvalidDueDate)
	assert.Equal(t, 1, reloadBook(t, db, book.ID).AvailableCopies)
}

func TestService_Borrow_PatronNotFound(t *testing.T) {
	db, svc, cleanup := setupTestDB(t)
	defer cleanup()

	book := createTestBook(t, db, "Frankenstein", 1)

	_, err := svc.Borrow(context.Background(), 9999, book.ID, time.Time{})

	require.ErrorIs(t, err, ErrPatronNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, reloadBook(t, db, book.ID).AvailableCopies)
}

func TestService_Borrow_BookNotFound(t *testing.T) {
	db, svc, cleanup := setupTestDB(t)
	defer cleanup()

	patron := createTestPatron(t, db, "no-book@example.com")

	_, err := svc.Borrow(context.Background(), patron.ID, 9999, time.Time{})

	require.ErrorIs(t, err, ErrBookNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_Borrow_Unavailable(t *testing.T) {
	db, svc, cleanup := setupTestDB(t)
	defer cleanup()

	patron := createTestPatron(t, db, "unavailable@example.com")
	book := createTestBook(t, db, "Rare Book", 0)
	book.TotalCopies = 1
	require.NoError(t, db.Save(book).Error)

	_, err := svc.Borrow(context.Background(), patron.ID, book.ID, time.Time{})

	require.ErrorIs(t, err, ErrUnavailable)

	// No partial mutation: no loan created, counter unchanged.
	var loanCount int64
	db.Model(&entities.Loan{}).Where("book_id = ?", book.ID).Count(&loanCount)
	assert.Equal(t, int64(0), loanCount)
	assert.Equal(t, 0, reloadBook(t, db, book.ID).AvailableCopies)
}

func TestService_Return(t *testing.T) {
	db, svc, cleanup := setupTestDB(t)
	defer cleanup()

	patron := createTestPatron(t, db, "return@example.com")
	book := createTestBook(t, db, "Walden", 2)

	loan, err := svc.Borrow(context.Background(), patron.ID, book.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, reloadBook(t, db, book.ID).AvailableCopies)

	returned, err := svc.Return(context.Background(), loan.ID)

	require.NoError(t, err)
	assert.Equal(t, entities.LoanStatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)
	assert.WithinDuration(t, time.Now(), *returned.ReturnedAt, time.Minute)

	assert.Equal(t, 2, reloadBook(t, db, book.ID).AvailableCopies)
	assertInvariant(t, db, book.ID)
}

func TestService_Return_Twice(t *testing.T) {
	db, svc, cleanup := setupTestDB(t)
	defer cleanup()

	patron := createTestPatron(t, db, "double-return@example.com")
	book := createTestBook(t, db, "Emma", 1)

	loan, err := svc.Borrow(context.Background(), patron.ID, book.ID, time.Time{})
	require.NoError(t, err)

	_, err = svc.Return(context.Background(), loan.ID)
	require.NoError(t, err)

	_, err = svc.Return(context.Background(), loan.ID)
	require.ErrorIs(t, err, ErrAlreadyReturned)

	// The counter was incremented exactly once.
	assert.Equal(t, 1, reloadBook(t, db, book.ID).AvailableCopies)
}

func TestService_Return_NotFound(t *testing.T) {
	_, svc, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := svc.Return(context.Background(), 12345)

	require.ErrorIs(t, err, ErrLoanNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestService_Lifecycle walks the full two-copy scenario: two successful
// borrows, a third rejected, one loan going overdue, a return of the overdue
// loan, and a rejected double return.
func TestService_Lifecycle(t *testing.T) {
	db, svc, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	p1 := createTestPatron(t, db, "p1@example.com")
	p2 := createTestPatron(t, db, "p2@example.com")
	p3 := createTestPatron(t, db, "p3@example.com")
	book := createTestBook(t, db, "Middlemarch", 2)

	l1, err := svc.Borrow(ctx, p1.ID, book.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, reloadBook(t, db, book.ID).AvailableCopies)

	l2, err := svc.Borrow(ctx, p2.ID, book.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0, reloadBook(t, db, book.ID).AvailableCopies)

	_, err = svc.Borrow(ctx, p3.ID, book.ID, time.Time{})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 0, reloadBook(t, db, book.ID).AvailableCopies)

	// Backdate the first loan so only it crosses the due date.
	require.NoError(t, db.Model(&entities.Loan{}).Where("id = ?", l1.ID).
		Update("due_date", time.Now().Add(-24*time.Hour)).Error)

	count, err := svc.MarkOverdue(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	var first entities.Loan
	require.NoError(t, db.First(&first, l1.ID).Error)
	assert.Equal(t, entities.LoanStatusOverdue, first.Status)
	var second entities.Loan
	require.NoError(t, db.First(&second, l2.ID).Error)
	assert.Equal(t, entities.LoanStatusBorrowed, second.Status)

	// Overdue never touches availability.
	assert.Equal(t, 0, reloadBook(t, db, book.ID).AvailableCopies)
	assertInvariant(t, db, book.ID)

	returned, err := svc.Return(ctx, l1.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.LoanStatusReturned, returned.Status)
	assert.Equal(t, 1, reloadBook(t, db, book.ID).AvailableCopies)

	_, err = svc.Return(ctx, l1.ID)
	require.ErrorIs(t, err, ErrAlreadyReturned)
	assert.Equal(t, 1, reloadBook(t, db, book.ID).AvailableCopies)
	assertInvariant(t, db, book.ID)
}

func TestService_ConcurrentBorrow_SingleCopy(t *testing.T) {
	db, svc, cleanup := setupTestDB(t)
	defer cleanup()

	p1 := createTestPatron(t, db, "race1@example.com")
	p2 := createTestPatron(t, db, "race2@example.com")
	book := createTestBook(t, db, "Single Copy", 1)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, patronID := range []uint{p1.ID, p2.ID} {
		wg.Add(1)
		go func(pid uint) {
			defer wg.Done()
			_, err := svc.Borrow(context.Background(), pid, book.ID, time.Time{})
			results <- err
		}(patronID)
	}
	wg.Wait()
	close(results)

	var successes, unavailable int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrUnavailable):
			unavailable++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes, "exactly one borrow must win")
	assert.Equal(t, 1, unavailable, "the loser must see ErrUnavailable")
	assert.Equal(t, 0, reloadBook(t, db, book.ID).AvailableCopies)

	var loanCount int64
	db.Model(&entities.Loan{}).Where("book_id = ?", book.ID).Count(&loanCount)
	assert.Equal(t, int64(1), loanCount)
	assertInvariant(t, db, book.ID)
}
