package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/phonebook-api/internal/models"
	"github.com/noah-isme/phonebook-api/internal/service"
	"github.com/noah-isme/phonebook-api/pkg/response"
)

type changeLogService interface {
	Latest(ctx context.Context, personID string) (*models.ChangeLog, error)
	History(ctx context.Context, personID string) ([]models.ChangeLog, error)
	Export(ctx context.Context, personID, format string) (*service.ExportResult, error)
}

// ChangeLogHandler exposes the change history of people.
type ChangeLogHandler struct {
	changes changeLogService
}

// NewChangeLogHandler constructs ChangeLogHandler.
func NewChangeLogHandler(changes changeLogService) *ChangeLogHandler {
	return &ChangeLogHandler{changes: changes}
}

// Latest godoc
// @Summary Latest change of a person
// @Tags Changes
// @Produce json
// @Param id path string true "Person ID"
// @Success 200 {object} response.Envelope{data=models.ChangeLog}
// @Failure 404 {object} response.Envelope
// @Router /people/{id}/changes/latest [get]
func (h *ChangeLogHandler) Latest(c *gin.Context) {
	entry, err := h.changes.Latest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// History godoc
// @Summary Full change history of a person
// @Tags Changes
// @Produce json
// @Param id path string true "Person ID"
// @Success 200 {object} response.Envelope{data=[]models.ChangeLog}
// @Failure 404 {object} response.Envelope
// @Router /people/{id}/changes [get]
func (h *ChangeLogHandler) History(c *gin.Context) {
	entries, err := h.changes.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil, map[string]interface{}{"count": len(entries)})
}

// Export godoc
// @Summary Download change history
// @Tags Changes
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Person ID"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /people/{id}/changes/export [get]
func (h *ChangeLogHandler) Export(c *gin.Context) {
	result, err := h.changes.Export(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.FileName, result.ContentType, result.Body)
}
