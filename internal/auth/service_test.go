package auth

import (
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shelfwise/circulation/internal/config"
	"github.com/shelfwise/circulation/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&entities.Patron{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestService_RegisterPatron(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, config.Auth{BcryptCost: 4})

	tests := []struct {
		name     string
		patron   string
		email    string
		password string
		role     entities.PatronRole
		wantErr  error
	}{
		{
			name:     "valid staff patron",
			patron:   "Head Librarian",
			email:    "staff@example.com",
			password: "password12345",
			role:     entities.PatronRoleStaff,
			wantErr:  nil,
		},
		{
			name:     "missing name",
			patron:   "",
			email:    "test@example.com",
			password: "password12345",
			role:     entities.PatronRoleMember,
			wantErr:  ErrNameRequired,
		},
		{
			name:     "missing email",
			patron:   "Test Patron",
			email:    "",
			password: "password12345",
			role:     entities.PatronRoleMember,
			wantErr:  ErrEmailRequired,
		},
		{
			name:     "invalid email",
			patron:   "Test Patron",
			email:    "not-an-email",
			password: "password12345",
			role:     entities.PatronRoleMember,
			wantErr:  ErrEmailInvalid,
		},
		{
			name:     "missing password",
			patron:   "Test Patron",
			email:    "test@example.com",
			password: "",
			role:     entities.PatronRoleMember,
			wantErr:  ErrPasswordRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patron, token, err := svc.RegisterPatron(tt.patron, tt.email, tt.password, tt.role)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if patron.PasswordHash == tt.password {
				t.Error("password stored in plain text")
			}
			if token == "" {
				t.Error("expected an API token")
			}
			if patron.TokenHash == token {
				t.Error("token stored in plain text")
			}
		})
	}
}

func TestService_RegisterPatron_Duplicate(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, config.Auth{BcryptCost: 4})

	_, _, err := svc.RegisterPatron("First", "dup@example.com", "password12345", entities.PatronRoleMember)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, err = svc.RegisterPatron("Second", "dup@example.com", "password12345", entities.PatronRoleMember)
	if !errors.Is(err, ErrPatronExists) {
		t.Errorf("expected ErrPatronExists, got %v", err)
	}
}

func TestService_Authenticate(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, config.Auth{BcryptCost: 4})

	_, _, err := svc.RegisterPatron("Ada", "ada@example.com", "password12345", entities.PatronRoleStaff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	patron, err := svc.Authenticate("ada@example.com", "password12345")
	if err != nil {
		t.Fatalf("expected successful login, got %v", err)
	}
	if patron.Email != "ada@example.com" {
		t.Errorf("unexpected patron: %s", patron.Email)
	}

	if _, err := svc.Authenticate("ada@example.com", "wrong-password"); err == nil {
		t.Error("expected failure for wrong password")
	}
	if _, err := svc.Authenticate("nobody@example.com", "password12345"); err == nil {
		t.Error("expected failure for unknown email")
	}
}

func TestService_ValidateToken(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, config.Auth{BcryptCost: 4})

	_, token, err := svc.RegisterPatron("Ada", "ada@example.com", "password12345", entities.PatronRoleStaff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	patron, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if patron.Email != "ada@example.com" {
		t.Errorf("unexpected patron: %s", patron.Email)
	}

	if _, err := svc.ValidateToken("bogus"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestService_HasStaff(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, config.Auth{BcryptCost: 4})

	hasStaff, err := svc.HasStaff()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasStaff {
		t.Error("expected no staff in a fresh database")
	}

	if _, _, err := svc.RegisterPatron("Ada", "ada@example.com", "password12345", entities.PatronRoleStaff); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hasStaff, err = svc.HasStaff()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasStaff {
		t.Error("expected staff after registration")
	}
}
