package catalog

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shelfwise/circulation/internal/entities"
)

func setupTestDB(t *testing.T) (*gorm.DB, *Repository, func()) {
	t.Helper()

	dbPath := "./test_catalog_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
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

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return db, repo, cleanup
}

func TestRepository_CreateBook(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	author, err := repo.GetOrCreateAuthor("Mary Shelley")
	require.NoError(t, err)

	book := &entities.Book{
		Title:       "Frankenstein",
		TotalCopies: 4,
		Authors:     []entities.Author{*author},
	}
	err = repo.CreateBook(book)

	require.NoError(t, err)
	assert.NotZero(t, book.ID)
	assert.Equal(t, 4, book.AvailableCopies, "a new book starts with all copies available")

	got, err := repo.GetBookByID(book.ID)
	require.NoError(t, err)
	require.Len(t, got.Authors, 1)
	assert.Equal(t, "Mary Shelley", got.Authors[0].Name)
}

func TestRepository_SearchBooks(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	author, err := repo.GetOrCreateAuthor("Charles Dickens")
	require.NoError(t, err)

	require.NoError(t, repo.CreateBook(&entities.Book{
		Title: "Great Expectations", TotalCopies: 1, Authors: []entities.Author{*author},
	}))
	require.NoError(t, repo.CreateBook(&entities.Book{
		Title: "Bleak House", TotalCopies: 1, Authors: []entities.Author{*author},
	}))
	require.NoError(t, repo.CreateBook(&entities.Book{Title: "Emma", TotalCopies: 1}))

	byTitle, err := repo.SearchBooks("expectations")
	require.NoError(t, err)
	assert.Len(t, byTitle, 1)

	byAuthor, err := repo.SearchBooks("dickens")
	require.NoError(t, err)
	assert.Len(t, byAuthor, 2)
}

func TestRepository_SetTotalCopies_Grow(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	book := &entities.Book{Title: "Dubliners", TotalCopies: 2}
	require.NoError(t, repo.CreateBook(book))

	updated, err := repo.SetTotalCopies(book.ID, 5)

	require.NoError(t, err)
	assert.Equal(t, 5, updated.TotalCopies)
	assert.Equal(t, 5, updated.AvailableCopies)
}

func TestRepository_SetTotalCopies_ShrinkGuard(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	book := &entities.Book{Title: "Scarce", TotalCopies: 2}
	require.NoError(t, repo.CreateBook(book))

	// Two copies out on loan.
	require.NoError(t, db.Model(&entities.Book{}).Where("id = ?", book.ID).
		Update("available_copies", 0).Error)
	for i := 0; i < 2; i++ {
		require.NoError(t, db.Create(&entities.Loan{
			Reference:  "ref-" + string(rune('a'+i)),
			PatronID:   1,
			BookID:     book.ID,
			Status:     entities.LoanStatusBorrowed,
			BorrowedAt: time.Now(),
			DueDate:    time.Now().Add(24 * time.Hour),
		}).Error)
	}

	// Shrinking to 1 would need a copy back that is still out.
	_, err := repo.SetTotalCopies(book.ID, 1)
	require.ErrorIs(t, err, ErrCopiesUnavailable)

	got, err := repo.GetBookByID(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalCopies)
	assert.Equal(t, 0, got.AvailableCopies)

	// Shrinking to exactly the number out is allowed.
	updated, err := repo.SetTotalCopies(book.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.AvailableCopies)
}

func TestRepository_SetTotalCopies_Negative(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	book := &entities.Book{Title: "Any", TotalCopies: 1}
	require.NoError(t, repo.CreateBook(book))

	_, err := repo.SetTotalCopies(book.ID, -1)
	require.Error(t, err)
}

func TestRepository_DeleteBook_WithActiveLoan(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	book := &entities.Book{Title: "Held", TotalCopies: 1}
	require.NoError(t, repo.CreateBook(book))
	require.NoError(t, db.Create(&entities.Loan{
		Reference:  "ref-held",
		PatronID:   1,
		BookID:     book.ID,
		Status:     entities.LoanStatusBorrowed,
		BorrowedAt: time.Now(),
		DueDate:    time.Now().Add(24 * time.Hour),
	}).Error)

	err := repo.DeleteBook(book.ID)
	require.ErrorIs(t, err, ErrCopiesUnavailable)

	_, err = repo.GetBookByID(book.ID)
	require.NoError(t, err)
}

func TestRepository_GetOrCreateAuthor(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	first, err := repo.GetOrCreateAuthor("George Eliot")
	require.NoError(t, err)

	second, err := repo.GetOrCreateAuthor("George Eliot")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}
