package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/shelfwise/circulation/internal/entities"
)

// PatronStore captures the patron operations the patrons controller needs.
type PatronStore interface {
	CreatePatron(patron *entities.Patron) error
	GetPatronByID(id uint) (*entities.Patron, error)
	GetAllPatrons() ([]entities.Patron, error)
	UpdatePatron(patron *entities.Patron) error
	DeletePatron(id uint) error
}

type PatronsController struct {
	store PatronStore
}

func NewPatronsController(store PatronStore) *PatronsController {
	return &PatronsController{
		store: store,
	}
}

type createPatronRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
	Role  string `json:"role"`
}

func (controller *PatronsController) CreatePatron(c *gin.Context) {
	var req createPatronRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "name and email are required")
		return
	}

	patron := entities.Patron{
		Name:  req.Name,
		Email: req.Email,
		Role:  entities.PatronRole(req.Role),
	}

	if err := controller.store.CreatePatron(&patron); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respondConflict(c, "a patron with this email already exists", "duplicate_email")
			return
		}
		respondInternalError(c, err, "create patron")
		return
	}

	respondCreated(c, patron)
}

func (controller *PatronsController) GetAllPatrons(c *gin.Context) {
	patrons, err := controller.store.GetAllPatrons()
	if err != nil {
		respondInternalError(c, err, "list patrons")
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"patrons": patrons, "count": len(patrons)})
}

func (controller *PatronsController) GetPatron(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	patron, err := controller.store.GetPatronByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "patron")
			return
		}
		respondInternalError(c, err, "get patron")
		return
	}

	c.IndentedJSON(http.StatusOK, patron)
}

type updatePatronRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func (controller *PatronsController) UpdatePatron(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	patron, err := controller.store.GetPatronByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "patron")
			return
		}
		respondInternalError(c, err, "get patron")
		return
	}

	var req updatePatronRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if req.Name != nil {
		patron.Name = *req.Name
	}
	if req.Email != nil {
		patron.Email = *req.Email
	}

	if err := controller.store.UpdatePatron(patron); err != nil {
		respondInternalError(c, err, "update patron")
		return
	}

	c.IndentedJSON(http.StatusOK, patron)
}

func (controller *PatronsController) DeletePatron(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := controller.store.DeletePatron(id); err != nil {
		respondInternalError(c, err, "delete patron")
		return
	}

	respondSuccess(c, "patron deleted")
}
