// Package catalog provides database operations for book, author and category
// management. Inventory counters on books are only ever changed here through
// SetTotalCopies; per-loan decrements and increments belong to the lending
// service.
package catalog

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/shelfwise/circulation/internal/entities"
)

// ErrCopiesUnavailable is returned when a total-copies change would require
// taking back copies that are currently out on loan.
var ErrCopiesUnavailable = errors.New("cannot reduce total copies below the number currently on loan")

// Repository handles all catalog database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new catalog repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateBook inserts a book with its author associations. AvailableCopies
// starts equal to TotalCopies.
func (r *Repository) CreateBook(book *entities.Book) error {
	book.AvailableCopies = book.TotalCopies
	return r.db.Create(book).Error
}

// GetBookByID retrieves a book with its authors and category.
func (r *Repository) GetBookByID(id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Preload("Authors").Preload("Category").First(&book, id).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// GetAllBooks retrieves all books with authors and categories.
func (r *Repository) GetAllBooks() ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Preload("Authors").Preload("Category").Order("title ASC").Find(&books).Error
	return books, err
}

// SearchBooks searches books by title or author name (case-insensitive partial match).
func (r *Repository) SearchBooks(query string) ([]entities.Book, error) {
	var books []entities.Book
	searchPattern := "%" + query + "%"
	err := r.db.Preload("Authors").Preload("Category").
		Joins("LEFT JOIN book_authors ON book_authors.book_id = books.id").
		Joins("LEFT JOIN authors ON authors.id = book_authors.author_id").
		Where("LOWER(books.title) LIKE LOWER(?) OR LOWER(authors.name) LIKE LOWER(?)", searchPattern, searchPattern).
		Distinct("books.*").
		Find(&books).Error
	return books, err
}

// UpdateBookMetadata updates specific metadata fields. The inventory counters
// are not updatable through this path.
func (r *Repository) UpdateBookMetadata(id uint, fields map[string]any) error {
	delete(fields, "total_copies")
	delete(fields, "available_copies")
	return r.db.Model(&entities.Book{}).Where("id = ?", id).Updates(fields).Error
}

// SetTotalCopies changes a book's total copy count, adjusting availability by
// the same delta inside one transaction. Shrinking the stock below the number
// of copies currently out fails with ErrCopiesUnavailable, so the counter can
// never go negative from the administrative side.
func (r *Repository) SetTotalCopies(id uint, total int) (*entities.Book, error) {
	if total < 0 {
		return nil, fmt.Errorf("total copies must not be negative, got %d", total)
	}

	var book entities.Book
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&book, id).Error; err != nil {
			return err
		}

		delta := total - book.TotalCopies
		if book.AvailableCopies+delta < 0 {
			return ErrCopiesUnavailable
		}

		res := tx.Model(&entities.Book{}).
			Where("id = ? AND available_copies + ? >= 0", id, delta).
			Updates(map[string]any{
				"total_copies":     total,
				"available_copies": gorm.Expr("available_copies + ?", delta),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCopiesUnavailable
		}

		book.TotalCopies = total
		book.AvailableCopies += delta
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// DeleteBook soft deletes a book that has no copies out on loan.
func (r *Repository) DeleteBook(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var active int64
		if err := tx.Model(&entities.Loan{}).
			Where("book_id = ? AND status <> ?", id, entities.LoanStatusReturned).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrCopiesUnavailable
		}
		return tx.Delete(&entities.Book{}, id).Error
	})
}

// GetOrCreateAuthor finds an author by name, creating it when missing.
func (r *Repository) GetOrCreateAuthor(name string) (*entities.Author, error) {
	var author entities.Author
	err := r.db.Where("name = ?", name).First(&author).Error
	if err == gorm.ErrRecordNotFound {
		author = entities.Author{Name: name}
		if err := r.db.Create(&author).Error; err != nil {
			return nil, err
		}
		return &author, nil
	}
	if err != nil {
		return nil, err
	}
	return &author, nil
}

// GetAllAuthors retrieves all authors.
func (r *Repository) GetAllAuthors() ([]entities.Author, error) {
	var authors []entities.Author
	err := r.db.Order("name ASC").Find(&authors).Error
	return authors, err
}

// GetAllCategories retrieves all categories.
func (r *Repository) GetAllCategories() ([]entities.Category, error) {
	var categories []entities.Category
	err := r.db.Order("name ASC").Find(&categories).Error
	return categories, err
}

// GetCategoryByName finds a category by its unique name.
func (r *Repository) GetCategoryByName(name string) (*entities.Category, error) {
	var category entities.Category
	err := r.db.Where("name = ?", name).First(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// GetStats returns total book and active loan counts.
func (r *Repository) GetStats() (totalBooks int64, activeLoans int64, err error) {
	err = r.db.Model(&entities.Book{}).Count(&totalBooks).Error
	if err != nil {
		return
	}
	err = r.db.Model(&entities.Loan{}).
		Where("status <> ?", entities.LoanStatusReturned).
		Count(&activeLoans).Error
	return
}
