package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/section-swap-api/internal/dto"
	"github.com/noah-isme/section-swap-api/internal/models"
	appErrors "github.com/noah-isme/section-swap-api/pkg/errors"
	"github.com/noah-isme/section-swap-api/pkg/response"
)

type studentService interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Student, error)
	UpdatePreferences(ctx context.Context, id string, req dto.UpdatePreferencesRequest, actor *models.JWTClaims) (*models.Student, error)
}

type matchFlagReader interface {
	CheckAllMatches(ctx context.Context, batch string) (dto.MatchFlags, error)
}

// StudentHandler exposes student listing and preference endpoints.
type StudentHandler struct {
	students studentService
	flags    matchFlagReader
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService, flags matchFlagReader) *StudentHandler {
	return &StudentHandler{students: students, flags: flags}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Search by name or NIS"
// @Param batch query string false "Filter by batch"
// @Param section query string false "Filter by current section"
// @Param active query bool false "Filter by active state"
// @Param withMatches query bool false "Annotate rows with the batch match flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	var filter models.StudentFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Batch = c.Query("batch")
	filter.Section = c.Query("section")
	if active := c.Query("active"); active != "" {
		if active == "true" {
			v := true
			filter.Active = &v
		} else if active == "false" {
			v := false
			filter.Active = &v
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	if c.Query("withMatches") != "true" || h.flags == nil {
		response.JSON(c, http.StatusOK, students, pagination)
		return
	}

	flags, err := h.flags.CheckAllMatches(c.Request.Context(), filter.Batch)
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]dto.StudentItem, 0, len(students))
	for _, student := range students {
		has := flags[student.ID]
		items = append(items, dto.StudentItem{Student: student, HasMatch: &has})
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// UpdatePreferences godoc
// @Summary Replace a student's desired sections
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.UpdatePreferencesRequest true "Preferences payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/preferences [put]
func (h *StudentHandler) UpdatePreferences(c *gin.Context) {
	var req dto.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.students.UpdatePreferences(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}
