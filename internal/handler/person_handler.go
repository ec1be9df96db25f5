package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/phonebook-api/internal/models"
	"github.com/noah-isme/phonebook-api/internal/service"
	appErrors "github.com/noah-isme/phonebook-api/pkg/errors"
	"github.com/noah-isme/phonebook-api/pkg/response"
)

const photoField = "photo"

type personService interface {
	List(ctx context.Context, filter models.PersonFilter) ([]models.Person, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Person, error)
	Create(ctx context.Context, req service.PersonRequest, photo []byte, actor string) (*models.Person, error)
	Update(ctx context.Context, id string, req service.PersonRequest, photo service.PhotoChange, actor string) (*models.Person, []string, error)
	Delete(ctx context.Context, id string, req service.DeleteRequest, actor string) error
	Restore(ctx context.Context, id string, actor string) (*models.Person, error)
}

// PersonUpdateResponse carries the stored record and the descriptions recorded for the edit.
type PersonUpdateResponse struct {
	Person  *models.Person `json:"person"`
	Changes []string       `json:"changes"`
}

// PersonHandler exposes directory endpoints.
type PersonHandler struct {
	people        personService
	maxPhotoBytes int64
}

// NewPersonHandler constructs PersonHandler. Uploads larger than maxPhotoBytes
// are truncated to maxPhotoBytes+1 so the service can reject them.
func NewPersonHandler(people personService, maxPhotoBytes int64) *PersonHandler {
	if maxPhotoBytes <= 0 {
		maxPhotoBytes = 5 << 20
	}
	return &PersonHandler{people: people, maxPhotoBytes: maxPhotoBytes}
}

// List godoc
// @Summary List people
// @Tags People
// @Produce json
// @Param search query string false "Whitespace separated terms matched against names, email, role, department and subject"
// @Param deleted query bool false "List soft deleted people instead of active ones"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /people [get]
func (h *PersonHandler) List(c *gin.Context) {
	filter := models.PersonFilter{Search: strings.TrimSpace(c.Query("search"))}
	if deleted, err := strconv.ParseBool(c.DefaultQuery("deleted", "false")); err == nil {
		filter.Deleted = deleted
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	people, pagination, err := h.people.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, people, pagination)
}

// Get godoc
// @Summary Get person detail
// @Tags People
// @Produce json
// @Param id path string true "Person ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /people/{id} [get]
func (h *PersonHandler) Get(c *gin.Context) {
	person, err := h.people.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, person, nil)
}

// Create godoc
// @Summary Create person
// @Tags People
// @Accept mpfd
// @Produce json
// @Param first_name formData string true "First name"
// @Param middle_name formData string false "Middle name"
// @Param last_name formData string true "Last name"
// @Param email formData string true "Email in the organisation domain"
// @Param personal_phone formData string true "Personal phone"
// @Param business_phone formData string false "Business phone"
// @Param birthdate formData string false "Birthdate dd.MM."
// @Param hire_date formData string true "Hire date dd.MM.yyyy."
// @Param role formData string true "Role name"
// @Param department formData string true "Department name"
// @Param subject_group formData string false "Subject group, required for teachers"
// @Param subject formData string false "Subject, required for teachers"
// @Param photo formData file false "Photo"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /people [post]
func (h *PersonHandler) Create(c *gin.Context) {
	var req service.PersonRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	photo, err := h.readPhoto(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	person, err := h.people.Create(c.Request.Context(), req, photo, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, person)
}

// Update godoc
// @Summary Edit person
// @Description Applies the edit and records one change log entry describing every modified field.
// @Tags People
// @Accept mpfd
// @Produce json
// @Param id path string true "Person ID"
// @Param first_name formData string true "First name"
// @Param middle_name formData string false "Middle name"
// @Param last_name formData string true "Last name"
// @Param email formData string true "Email in the organisation domain"
// @Param personal_phone formData string true "Personal phone"
// @Param business_phone formData string false "Business phone"
// @Param birthdate formData string false "Birthdate dd.MM."
// @Param hire_date formData string true "Hire date dd.MM.yyyy."
// @Param role formData string true "Role name"
// @Param department formData string true "Department name"
// @Param subject_group formData string false "Subject group"
// @Param subject formData string false "Subject"
// @Param photo formData file false "Replacement photo"
// @Param remove_photo formData bool false "Remove the stored photo"
// @Success 200 {object} response.Envelope{data=PersonUpdateResponse}
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /people/{id} [put]
func (h *PersonHandler) Update(c *gin.Context) {
	var req service.PersonRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	data, err := h.readPhoto(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	change := service.PhotoChange{Data: data}
	if raw := c.PostForm("remove_photo"); raw != "" {
		remove, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "remove_photo must be a boolean"))
			return
		}
		change.Remove = remove
	}

	person, changes, err := h.people.Update(c.Request.Context(), c.Param("id"), req, change, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, PersonUpdateResponse{Person: person, Changes: changes}, nil)
}

// Delete godoc
// @Summary Soft delete person
// @Tags People
// @Accept json
// @Produce json
// @Param id path string true "Person ID"
// @Param payload body service.DeleteRequest true "Leave date and comment"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /people/{id} [delete]
func (h *PersonHandler) Delete(c *gin.Context) {
	var req service.DeleteRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.people.Delete(c.Request.Context(), c.Param("id"), req, actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Restore godoc
// @Summary Restore soft deleted person
// @Tags People
// @Produce json
// @Param id path string true "Person ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /people/{id}/restore [post]
func (h *PersonHandler) Restore(c *gin.Context) {
	person, err := h.people.Restore(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, person, nil)
}

// readPhoto returns the uploaded photo or nil when none was sent.
func (h *PersonHandler) readPhoto(c *gin.Context) ([]byte, error) {
	header, err := c.FormFile(photoField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid photo upload")
	}
	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid photo upload")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxPhotoBytes+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "photo could not be read")
	}
	return data, nil
}
