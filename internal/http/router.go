package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shelfwise/circulation/internal/auth"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies, cfg.AuthService))
	}

	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	if cfg.AuthMiddleware != nil {
		router.Use(cfg.AuthMiddleware.Handler())
	} else {
		// No auth - inject default patron ID
		router.Use(func(c *gin.Context) {
			c.Set(auth.ContextKeyPatronID, auth.DefaultPatronID)
			c.Set(auth.ContextKeyAuthType, auth.AuthTypeNone)
			c.Next()
		})
	}

	health := NewHealthController(cfg.Database, cfg.Version)
	loans := NewLoansController(cfg.LoanService, cfg.Auditor)
	books := NewBooksController(cfg.Catalog)
	patrons := NewPatronsController(cfg.Patrons)

	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	if cfg.AuthService != nil {
		authController := NewAuthController(cfg.AuthService, cfg.SessionManager)
		router.POST("/api/login", authController.Login)
		router.POST("/api/logout", authController.Logout)
		router.POST("/api/setup", authController.Setup)
		router.GET("/api/me", authController.Me)
	}

	api := router.Group("/api")
	{
		api.POST("/loans", loans.Borrow)
		api.POST("/loans/:id/return", loans.Return)
		api.GET("/loans/:id", loans.GetLoan)
		api.GET("/loans/overdue", loans.ListOverdue)
		api.GET("/patrons/:id/loans", loans.ListForPatron)

		api.GET("/books", books.GetAllBooks)
		api.POST("/books", books.CreateBook)
		api.GET("/books/:id", books.GetBook)
		api.PATCH("/books/:id", books.UpdateBook)
		api.PUT("/books/:id/copies", books.SetCopies)
		api.DELETE("/books/:id", books.DeleteBook)
		api.GET("/books/stats", books.GetStats)
		api.GET("/authors", books.GetAllAuthors)
		api.GET("/categories", books.GetAllCategories)

		api.GET("/patrons", patrons.GetAllPatrons)
		api.POST("/patrons", patrons.CreatePatron)
		api.GET("/patrons/:id", patrons.GetPatron)
		api.PATCH("/patrons/:id", patrons.UpdatePatron)
		api.DELETE("/patrons/:id", patrons.DeletePatron)
	}

	// Admin operations; require the staff role when auth is enabled
	admin := router.Group("/api/admin")
	if cfg.AuthMiddleware != nil {
		admin.Use(cfg.AuthMiddleware.RequireStaff())
	}
	{
		admin.POST("/loans/mark-overdue", loans.MarkOverdue)
		admin.GET("/sweep/status", func(c *gin.Context) {
			status := gin.H{"running": false}
			if cfg.Sweeper != nil {
				status["running"] = cfg.Sweeper.IsRunning()
				if next := cfg.Sweeper.GetNextRunTime(); next != nil {
					status["next_run"] = next
				}
			}
			c.IndentedJSON(http.StatusOK, status)
		})
	}

	return router
}
