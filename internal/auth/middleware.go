package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shelfwise/circulation/internal/config"
	"github.com/shelfwise/circulation/internal/entities"
)

// Context keys for patron data
const (
	ContextKeyPatronID = "auth_patron_id"
	ContextKeyEmail    = "auth_email"
	ContextKeyRole     = "auth_role"
	ContextKeyAuthType = "auth_type" // "session", "bearer", or "none"
)

// AuthType indicates how the patron was authenticated
type AuthType string

const (
	AuthTypeNone    AuthType = "none"
	AuthTypeSession AuthType = "session"
	AuthTypeBearer  AuthType = "bearer"
)

// DefaultPatronID is used when authentication is disabled
const DefaultPatronID = uint(0)

// Middleware handles authentication for HTTP requests.
type Middleware struct {
	service        *Service
	sessionManager *SessionManager
	config         config.Auth
	publicPaths    map[string]bool
}

// NewMiddleware creates a new authentication middleware.
func NewMiddleware(service *Service, sessionManager *SessionManager, cfg config.Auth) *Middleware {
	publicPaths := map[string]bool{
		"/health":    true,
		"/ping":      true,
		"/api/login": true,
		"/api/setup": true,
	}

	return &Middleware{
		service:        service,
		sessionManager: sessionManager,
		config:         cfg,
		publicPaths:    publicPaths,
	}
}

// Handler returns a Gin middleware handler that authenticates requests.
func (m *Middleware) Handler() gin.HandlerFunc {
	if m.config.Mode == config.AuthModeNone {
		return m.noAuthHandler()
	}
	return m.authHandler()
}

// noAuthHandler injects DefaultPatronID for all requests when auth is disabled.
func (m *Middleware) noAuthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextKeyPatronID, DefaultPatronID)
		c.Set(ContextKeyAuthType, AuthTypeNone)
		c.Next()
	}
}

// authHandler handles authentication when auth is enabled.
func (m *Middleware) authHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.publicPaths[c.Request.URL.Path] {
			c.Set(ContextKeyPatronID, DefaultPatronID)
			c.Set(ContextKeyAuthType, AuthTypeNone)
			c.Next()
			return
		}

		// Try Bearer token first (for API clients)
		if patron := m.tryBearerAuth(c); patron != nil {
			m.setPatronContext(c, patron, AuthTypeBearer)
			c.Next()
			return
		}

		// Then session auth (for the staff login flow)
		if patron := m.trySessionAuth(c); patron != nil {
			m.setPatronContext(c, patron, AuthTypeSession)
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "authentication required",
		})
	}
}

// RequireStaff returns a middleware that rejects non-staff requests. Must run
// after Handler().
func (m *Middleware) RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.config.Mode == config.AuthModeNone {
			c.Next()
			return
		}
		role, _ := c.Get(ContextKeyRole)
		if role != entities.PatronRoleStaff {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "staff role required",
			})
			return
		}
		c.Next()
	}
}

// tryBearerAuth attempts to authenticate using a Bearer token.
func (m *Middleware) tryBearerAuth(c *gin.Context) *entities.Patron {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil
	}

	patron, err := m.service.ValidateToken(parts[1])
	if err != nil {
		return nil
	}
	return patron
}

// trySessionAuth attempts to authenticate using the session cookie.
func (m *Middleware) trySessionAuth(c *gin.Context) *entities.Patron {
	if m.sessionManager == nil {
		return nil
	}

	patronID := m.sessionManager.GetPatronID(c.Request)
	if patronID == 0 {
		return nil
	}

	patron, err := m.service.GetPatronByID(patronID)
	if err != nil {
		return nil
	}
	return patron
}

// setPatronContext stores patron information in the Gin context.
func (m *Middleware) setPatronContext(c *gin.Context, patron *entities.Patron, authType AuthType) {
	c.Set(ContextKeyPatronID, patron.ID)
	c.Set(ContextKeyEmail, patron.Email)
	c.Set(ContextKeyRole, patron.Role)
	c.Set(ContextKeyAuthType, authType)
}

// GetPatronID extracts the authenticated patron's ID from the Gin context.
func GetPatronID(c *gin.Context) uint {
	if id, ok := c.Get(ContextKeyPatronID); ok {
		if patronID, ok := id.(uint); ok {
			return patronID
		}
	}
	return DefaultPatronID
}
