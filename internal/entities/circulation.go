package entities

import (
	"time"

	"gorm.io/gorm"
)

type LoanStatus string

const (
	LoanStatusBorrowed LoanStatus = "borrowed"
	LoanStatusOverdue  LoanStatus = "overdue"
	LoanStatusReturned LoanStatus = "returned"
)

// IsActive reports whether a loan in this status still holds a copy out.
func (s LoanStatus) IsActive() bool {
	return s == LoanStatusBorrowed || s == LoanStatusOverdue
}

// Valid reports whether the status is one of the known lifecycle states.
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusBorrowed, LoanStatusOverdue, LoanStatusReturned:
		return true
	}
	return false
}

type PatronRole string

const (
	PatronRoleMember PatronRole = "member"
	PatronRoleStaff  PatronRole = "staff"
)

type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:100" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Author struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:256" json:"name"`
	Books     []Book    `gorm:"many2many:book_authors;" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type Book struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Title           string         `gorm:"index;size:512" json:"title"`
	ISBN            string         `gorm:"index;size:20" json:"isbn,omitempty"`
	Publisher       string         `gorm:"size:256" json:"publisher,omitempty"`
	PublicationYear int            `json:"publication_year,omitempty"`
	CategoryID      *uint          `gorm:"index" json:"category_id,omitempty"`
	Category        Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Authors         []Author       `gorm:"many2many:book_authors;" json:"authors,omitempty"`

	// Inventory counters. The invariant, maintained by the lending service:
	// 0 <= available_copies <= total_copies, and
	// available_copies == total_copies - count(loans with active status).
	TotalCopies     int `gorm:"not null;default:0" json:"total_copies"`
	AvailableCopies int `gorm:"not null;default:0" json:"available_copies"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type Patron struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"size:256" json:"name"`
	Email        string         `gorm:"uniqueIndex;size:255" json:"email"`
	Role         PatronRole     `gorm:"size:20;default:'member'" json:"role"`
	PasswordHash string         `gorm:"size:128" json:"-"`
	TokenHash    string         `gorm:"index;size:64" json:"-"` // sha256 of the API token
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// Loan records one copy of a book being held by a patron for a bounded period.
// Rows are created by the lending service only, and never deleted: the lifecycle
// ends at status "returned", which is terminal.
type Loan struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Reference  string     `gorm:"uniqueIndex;size:36" json:"reference"` // external UUID
	PatronID   uint       `gorm:"index;not null" json:"patron_id"`
	BookID     uint       `gorm:"index;not null" json:"book_id"`
	Status     LoanStatus `gorm:"index;size:20;default:'borrowed'" json:"status"`
	BorrowedAt time.Time  `gorm:"not null" json:"borrowed_at"`
	DueDate    time.Time  `gorm:"index;not null" json:"due_date"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`

	Patron Patron `gorm:"foreignKey:PatronID" json:"patron,omitempty"`
	Book   Book   `gorm:"foreignKey:BookID" json:"book,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Category) TableName() string {
	return "categories"
}

func (Author) TableName() string {
	return "authors"
}

func (Book) TableName() string {
	return "books"
}

func (Patron) TableName() string {
	return "patrons"
}

func (Loan) TableName() string {
	return "loans"
}
