package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/shelfwise/circulation/internal/database/catalog"
	"github.com/shelfwise/circulation/internal/entities"
)

// CatalogStore captures the catalog operations the books controller needs.
type CatalogStore interface {
	CreateBook(book *entities.Book) error
	GetBookByID(id uint) (*entities.Book, error)
	GetAllBooks() ([]entities.Book, error)
	SearchBooks(query string) ([]entities.Book, error)
	UpdateBookMetadata(id uint, fields map[string]any) error
	SetTotalCopies(id uint, total int) (*entities.Book, error)
	DeleteBook(id uint) error
	GetOrCreateAuthor(name string) (*entities.Author, error)
	GetAllAuthors() ([]entities.Author, error)
	GetAllCategories() ([]entities.Category, error)
	GetCategoryByName(name string) (*entities.Category, error)
	GetStats() (totalBooks int64, activeLoans int64, err error)
}

type BooksController struct {
	store CatalogStore
}

func NewBooksController(store CatalogStore) *BooksController {
	return &BooksController{
		store: store,
	}
}

type createBookRequest struct {
	Title       string   `json:"title" binding:"required"`
	Authors     []string `json:"authors"`
	Category    string   `json:"category"`
	ISBN        string   `json:"isbn"`
	TotalCopies int      `json:"total_copies"`
}

func (controller *BooksController) CreateBook(c *gin.Context) {
	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "title is required")
		return
	}
	if req.TotalCopies < 0 {
		respondBadRequest(c, "total_copies must not be negative")
		return
	}

	book := entities.Book{
		Title:       req.Title,
		ISBN:        req.ISBN,
		TotalCopies: req.TotalCopies,
	}

	for _, name := range req.Authors {
		author, err := controller.store.GetOrCreateAuthor(name)
		if err != nil {
			respondInternalError(c, err, "create author")
			return
		}
		book.Authors = append(book.Authors, *author)
	}

	if req.Category != "" {
		category, err := controller.store.GetCategoryByName(req.Category)
		if err != nil {
			respondBadRequest(c, "unknown category: "+req.Category)
			return
		}
		book.CategoryID = &category.ID
	}

	if err := controller.store.CreateBook(&book); err != nil {
		respondInternalError(c, err, "create book")
		return
	}

	respondCreated(c, book)
}

func (controller *BooksController) GetAllBooks(c *gin.Context) {
	if query := c.Query("q"); query != "" {
		books, err := controller.store.SearchBooks(query)
		if err != nil {
			respondInternalError(c, err, "search books")
			return
		}
		c.IndentedJSON(http.StatusOK, gin.H{"books": books, "count": len(books)})
		return
	}

	books, err := controller.store.GetAllBooks()
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"books": books, "count": len(books)})
}

func (controller *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := controller.store.GetBookByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "get book")
		return
	}

	c.IndentedJSON(http.StatusOK, book)
}

type updateBookRequest struct {
	Title *string `json:"title"`
	ISBN  *string `json:"isbn"`
}

func (controller *BooksController) UpdateBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	if _, err := controller.store.GetBookByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "get book")
		return
	}

	fields := map[string]any{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.ISBN != nil {
		fields["isbn"] = *req.ISBN
	}
	if len(fields) == 0 {
		respondBadRequest(c, "no fields to update")
		return
	}

	if err := controller.store.UpdateBookMetadata(id, fields); err != nil {
		respondInternalError(c, err, "update book")
		return
	}

	book, err := controller.store.GetBookByID(id)
	if err != nil {
		respondInternalError(c, err, "get book")
		return
	}
	c.IndentedJSON(http.StatusOK, book)
}

type setCopiesRequest struct {
	TotalCopies int `json:"total_copies"`
}

// SetCopies adjusts a book's total copy count. Shrinking below the number of
// copies currently on loan is rejected.
func (controller *BooksController) SetCopies(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req setCopiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "total_copies is required")
		return
	}
	if req.TotalCopies < 0 {
		respondBadRequest(c, "total_copies must not be negative")
		return
	}

	book, err := controller.store.SetTotalCopies(id, req.TotalCopies)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "book")
			return
		}
		if errors.Is(err, catalog.ErrCopiesUnavailable) {
			respondConflict(c, err.Error(), "copies_on_loan")
			return
		}
		respondInternalError(c, err, "set copies")
		return
	}

	c.IndentedJSON(http.StatusOK, book)
}

func (controller *BooksController) DeleteBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := controller.store.DeleteBook(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "book")
			return
		}
		if errors.Is(err, catalog.ErrCopiesUnavailable) {
			respondConflict(c, err.Error(), "copies_on_loan")
			return
		}
		respondInternalError(c, err, "delete book")
		return
	}

	respondSuccess(c, "book deleted")
}

func (controller *BooksController) GetAllAuthors(c *gin.Context) {
	authors, err := controller.store.GetAllAuthors()
	if err != nil {
		respondInternalError(c, err, "list authors")
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"authors": authors, "count": len(authors)})
}

func (controller *BooksController) GetAllCategories(c *gin.Context) {
	categories, err := controller.store.GetAllCategories()
	if err != nil {
		respondInternalError(c, err, "list categories")
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"categories": categories, "count": len(categories)})
}

func (controller *BooksController) GetStats(c *gin.Context) {
	totalBooks, activeLoans, err := controller.store.GetStats()
	if err != nil {
		respondInternalError(c, err, "catalog stats")
		return
	}

	c.IndentedJSON(http.StatusOK, gin.H{
		"total_books":  totalBooks,
		"active_loans": activeLoans,
	})
}
