package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shelfwise/circulation/internal/auth"
	"github.com/shelfwise/circulation/internal/entities"
)

// AuthController exposes login, logout and first-run setup endpoints.
// Only mounted when authentication is enabled.
type AuthController struct {
	service        *auth.Service
	sessionManager *auth.SessionManager
}

func NewAuthController(service *auth.Service, sessionManager *auth.SessionManager) *AuthController {
	return &AuthController{
		service:        service,
		sessionManager: sessionManager,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates a patron and starts a session.
func (controller *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "email and password are required")
		return
	}

	patron, err := controller.service.Authenticate(req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		return
	}

	if controller.sessionManager != nil {
		if err := controller.sessionManager.CreateSession(c.Request, patron); err != nil {
			respondInternalError(c, err, "create session")
			return
		}
	}

	c.IndentedJSON(http.StatusOK, gin.H{
		"patron": patron,
	})
}

// Logout destroys the current session.
func (controller *AuthController) Logout(c *gin.Context) {
	if controller.sessionManager != nil {
		if err := controller.sessionManager.DestroySession(c.Request); err != nil {
			respondInternalError(c, err, "destroy session")
			return
		}
	}
	respondSuccess(c, "logged out")
}

type setupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Setup bootstraps the first staff account. Only available while no staff
// account exists; afterwards staff must be created by other staff.
func (controller *AuthController) Setup(c *gin.Context) {
	hasStaff, err := controller.service.HasStaff()
	if err != nil {
		respondInternalError(c, err, "setup check")
		return
	}
	if hasStaff {
		respondConflict(c, "setup already completed", "setup_done")
		return
	}

	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "name, email and password are required")
		return
	}

	patron, token, err := controller.service.RegisterPatron(req.Name, req.Email, req.Password, entities.PatronRoleStaff)
	if err != nil {
		if errors.Is(err, auth.ErrPatronExists) {
			respondConflict(c, "a patron with this email already exists", "duplicate_email")
			return
		}
		respondBadRequest(c, err.Error())
		return
	}

	// The API token is shown exactly once; only its hash is stored.
	respondCreated(c, gin.H{
		"patron":    patron,
		"api_token": token,
	})
}

// Me returns the authenticated patron.
func (controller *AuthController) Me(c *gin.Context) {
	patronID := GetPatronID(c)
	if patronID == auth.DefaultPatronID {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "not authenticated"})
		return
	}

	patron, err := controller.service.GetPatronByID(patronID)
	if err != nil {
		respondNotFound(c, "patron")
		return
	}

	c.IndentedJSON(http.StatusOK, patron)
}
