package auth

import (
	"errors"
	"regexp"

	"gorm.io/gorm"

	"github.com/shelfwise/circulation/internal/config"
	"github.com/shelfwise/circulation/internal/entities"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var (
	ErrPatronNotFound   = errors.New("patron not found")
	ErrPatronExists     = errors.New("patron already exists")
	ErrInvalidToken     = errors.New("invalid token")
	ErrAuthRequired     = errors.New("authentication required")
	ErrStaffOnly        = errors.New("staff role required")
	ErrNameRequired     = errors.New("name is required")
	ErrEmailRequired    = errors.New("email is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrEmailInvalid     = errors.New("invalid email format")
)

// Service handles authentication and patron account management.
type Service struct {
	db     *gorm.DB
	config config.Auth
}

// NewService creates a new authentication service.
func NewService(db *gorm.DB, cfg config.Auth) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// RegisterPatron creates a patron account with password authentication and an
// API token. The plaintext token is returned exactly once.
func (s *Service) RegisterPatron(name, email, password string, role entities.PatronRole) (*entities.Patron, string, error) {
	if name == "" {
		return nil, "", ErrNameRequired
	}
	if email == "" {
		return nil, "", ErrEmailRequired
	}
	if password == "" {
		return nil, "", ErrPasswordRequired
	}
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return nil, "", ErrEmailInvalid
	}

	var existing entities.Patron
	err := s.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, "", ErrPatronExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", err
	}

	passwordHash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, "", err
	}

	token, tokenHash, err := GenerateAPIToken()
	if err != nil {
		return nil, "", err
	}

	patron := &entities.Patron{
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: passwordHash,
		TokenHash:    tokenHash,
	}
	if err := s.db.Create(patron).Error; err != nil {
		return nil, "", err
	}

	return patron, token, nil
}

// Authenticate verifies an email/password pair and returns the patron.
func (s *Service) Authenticate(email, password string) (*entities.Patron, error) {
	var patron entities.Patron
	err := s.db.Where("email = ?", email).First(&patron).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Burn time anyway so missing accounts are not distinguishable.
			_ = CheckPassword(password, "$2a$12$000000000000000000000uGJDeFvCGphHZcdesmCEcY4mcKJbC065")
			return nil, ErrInvalidPassword
		}
		return nil, err
	}

	if err := CheckPassword(password, patron.PasswordHash); err != nil {
		return nil, ErrInvalidPassword
	}
	return &patron, nil
}

// ValidateToken resolves a plaintext API token to the owning patron.
func (s *Service) ValidateToken(token string) (*entities.Patron, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	var patron entities.Patron
	err := s.db.Where("token_hash = ?", HashToken(token)).First(&patron).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return &patron, nil
}

// GetPatronByID fetches a patron by ID.
func (s *Service) GetPatronByID(id uint) (*entities.Patron, error) {
	var patron entities.Patron
	err := s.db.First(&patron, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPatronNotFound
		}
		return nil, err
	}
	return &patron, nil
}

// HasStaff reports whether any staff account exists yet.
func (s *Service) HasStaff() (bool, error) {
	var count int64
	err := s.db.Model(&entities.Patron{}).
		Where("role = ?", entities.PatronRoleStaff).
		Count(&count).Error
	return count > 0, err
}
