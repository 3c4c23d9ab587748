package http

import (
	"github.com/shelfwise/circulation/internal/auth"
	"github.com/shelfwise/circulation/internal/config"
	"github.com/shelfwise/circulation/internal/database"
	"github.com/shelfwise/circulation/internal/scheduler"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router. This replaces a long parameter list
// in NewRouter for better maintainability.
type RouterConfig struct {
	// Core dependencies
	Database    *database.Database
	LoanService LoanService
	Catalog     CatalogStore
	Patrons     PatronStore
	Auditor     AuditRecorder

	// Background sweep (optional, exposed for the admin endpoints)
	Sweeper *scheduler.OverdueSweeper

	// Authentication (all nil/empty when auth is disabled)
	AuthService    *auth.Service
	SessionManager *auth.SessionManager
	AuthMiddleware *auth.Middleware
	AuthConfig     config.Auth
	CSRFSecret     []byte
	SecureCookies  bool

	// Application info
	Version string
}
