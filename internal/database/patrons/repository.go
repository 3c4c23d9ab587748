// Package patrons provides database operations for patron management.
//
// # Usage
//
//	repo := patrons.NewRepository(db)
//	patron, err := repo.GetPatronByID(123)
package patrons

import (
	"gorm.io/gorm"

	"github.com/shelfwise/circulation/internal/entities"
)

// Repository handles all patron database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new patrons repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreatePatron inserts a new patron. Email uniqueness is enforced by the schema.
func (r *Repository) CreatePatron(patron *entities.Patron) error {
	if patron.Role == "" {
		patron.Role = entities.PatronRoleMember
	}
	return r.db.Create(patron).Error
}

// GetPatronByID retrieves a patron by ID.
func (r *Repository) GetPatronByID(id uint) (*entities.Patron, error) {
	var patron entities.Patron
	err := r.db.First(&patron, id).Error
	if err != nil {
		return nil, err
	}
	return &patron, nil
}

// GetPatronByEmail retrieves a patron by email.
func (r *Repository) GetPatronByEmail(email string) (*entities.Patron, error) {
	var patron entities.Patron
	err := r.db.Where("email = ?", email).First(&patron).Error
	if err != nil {
		return nil, err
	}
	return &patron, nil
}

// GetPatronByTokenHash retrieves a patron by the hash of their API token.
func (r *Repository) GetPatronByTokenHash(hash string) (*entities.Patron, error) {
	var patron entities.Patron
	err := r.db.Where("token_hash = ?", hash).First(&patron).Error
	if err != nil {
		return nil, err
	}
	return &patron, nil
}

// GetAllPatrons retrieves all patrons.
func (r *Repository) GetAllPatrons() ([]entities.Patron, error) {
	var patrons []entities.Patron
	err := r.db.Order("name ASC").Find(&patrons).Error
	return patrons, err
}

// UpdatePatron saves patron changes.
func (r *Repository) UpdatePatron(patron *entities.Patron) error {
	return r.db.Save(patron).Error
}

// DeletePatron soft deletes a patron.
func (r *Repository) DeletePatron(id uint) error {
	return r.db.Delete(&entities.Patron{}, id).Error
}

// HasStaff reports whether at least one staff patron exists.
func (r *Repository) HasStaff() (bool, error) {
	var count int64
	err := r.db.Model(&entities.Patron{}).
		Where("role = ?", entities.PatronRoleStaff).
		Count(&count).Error
	return count > 0, err
}
