package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shelfwise/circulation/internal/config"
	"github.com/shelfwise/circulation/internal/entities"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupMiddleware(t *testing.T, authMode config.AuthMode) (*Middleware, *Service) {
	t.Helper()

	db := setupTestDB(t)

	cfg := config.Auth{
		Mode:            authMode,
		SessionLifetime: 24 * time.Hour,
		SecureCookies:   false,
		BcryptCost:      4, // Low cost for faster tests
	}

	service := NewService(db, cfg)
	middleware := NewMiddleware(service, nil, cfg)

	return middleware, service
}

func requestThrough(m *Middleware, req *http.Request) *httptest.ResponseRecorder {
	router := gin.New()
	router.Use(m.Handler())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"patron_id": GetPatronID(c)})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMiddleware_NoAuthMode(t *testing.T) {
	middleware, _ := setupMiddleware(t, config.AuthModeNone)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := requestThrough(middleware, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestMiddleware_LocalMode_Unauthenticated(t *testing.T) {
	middleware, _ := setupMiddleware(t, config.AuthModeLocal)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := requestThrough(middleware, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_LocalMode_PublicPath(t *testing.T) {
	middleware, _ := setupMiddleware(t, config.AuthModeLocal)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := requestThrough(middleware, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for public path, got %d", w.Code)
	}
}

func TestMiddleware_LocalMode_BearerToken(t *testing.T) {
	middleware, service := setupMiddleware(t, config.AuthModeLocal)

	_, token, err := service.RegisterPatron("Ada", "ada@example.com", "password12345", entities.PatronRoleStaff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := requestThrough(middleware, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with valid token, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer bogus-token")
	w = requestThrough(middleware, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with invalid token, got %d", w.Code)
	}
}

func TestMiddleware_RequireStaff(t *testing.T) {
	middleware, service := setupMiddleware(t, config.AuthModeLocal)

	_, staffToken, err := service.RegisterPatron("Ada", "ada@example.com", "password12345", entities.PatronRoleStaff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, memberToken, err := service.RegisterPatron("Grace", "grace@example.com", "password12345", entities.PatronRoleMember)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	router := gin.New()
	router.Use(middleware.Handler())
	admin := router.Group("/admin", middleware.RequireStaff())
	admin.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/test", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for staff, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/test", nil)
	req.Header.Set("Authorization", "Bearer "+memberToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for member, got %d", w.Code)
	}
}
