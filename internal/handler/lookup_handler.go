package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/phonebook-api/internal/models"
	"github.com/noah-isme/phonebook-api/pkg/response"
)

type lookupService interface {
	Roles(ctx context.Context) ([]models.Role, error)
	Departments(ctx context.Context) ([]models.Department, error)
}

// LookupHandler serves role and department lists.
type LookupHandler struct {
	lookups lookupService
}

// NewLookupHandler constructs LookupHandler.
func NewLookupHandler(lookups lookupService) *LookupHandler {
	return &LookupHandler{lookups: lookups}
}

// Roles godoc
// @Summary List roles
// @Tags Lookups
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.Role}
// @Router /roles [get]
func (h *LookupHandler) Roles(c *gin.Context) {
	roles, err := h.lookups.Roles(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roles, nil)
}

// Departments godoc
// @Summary List departments
// @Tags Lookups
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.Department}
// @Router /departments [get]
func (h *LookupHandler) Departments(c *gin.Context) {
	departments, err := h.lookups.Departments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, departments, nil)
}
