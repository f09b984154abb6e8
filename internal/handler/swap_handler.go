package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/section-swap-api/internal/dto"
	"github.com/noah-isme/section-swap-api/internal/models"
	"github.com/noah-isme/section-swap-api/internal/service"
	appErrors "github.com/noah-isme/section-swap-api/pkg/errors"
	"github.com/noah-isme/section-swap-api/pkg/response"
)

type swapService interface {
	FindSwap(ctx context.Context, requesterID string, targets []string) (*models.SwapPlan, error)
	CheckAllMatches(ctx context.Context, batch string) (dto.MatchFlags, error)
	CommitSwap(ctx context.Context, req dto.CommitSwapRequest, actor *models.JWTClaims) (*models.SwapRecord, error)
	History(ctx context.Context, filter models.SwapRecordFilter) ([]models.SwapRecord, error)
}

type matchExporter interface {
	Render(ctx context.Context, batch, format string) (*service.MatchExport, error)
}

// SwapHandler exposes the swap search, commit, and reporting endpoints.
type SwapHandler struct {
	swaps    swapService
	exporter matchExporter
}

// NewSwapHandler constructs SwapHandler.
func NewSwapHandler(swaps swapService, exporter matchExporter) *SwapHandler {
	return &SwapHandler{swaps: swaps, exporter: exporter}
}

// Search godoc
// @Summary Search for a swap plan
// @Tags Swaps
// @Accept json
// @Produce json
// @Param payload body dto.FindSwapRequest true "Search payload"
// @Success 200 {object} response.Envelope
// @Router /swaps/search [post]
func (h *SwapHandler) Search(c *gin.Context) {
	var req dto.FindSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requesterID := req.RequesterID
	if claims.Role == models.RoleStudent {
		if requesterID != "" && requesterID != claims.StudentID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students may only search for themselves"))
			return
		}
		requesterID = claims.StudentID
	}
	if requesterID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "requester_id is required"))
		return
	}

	plan, err := h.swaps.FindSwap(c.Request.Context(), requesterID, req.TargetSections)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Matches godoc
// @Summary Batch match availability
// @Tags Swaps
// @Produce json
// @Param batch query string false "Batch / cohort tag"
// @Success 200 {object} response.Envelope
// @Router /swaps/matches [get]
func (h *SwapHandler) Matches(c *gin.Context) {
	flags, err := h.swaps.CheckAllMatches(c.Request.Context(), c.Query("batch"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, flags, nil)
}

// ExportMatches godoc
// @Summary Export the annotated match listing
// @Tags Swaps
// @Produce text/csv,application/pdf
// @Param batch query string false "Batch / cohort tag"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200
// @Router /swaps/matches/export [get]
func (h *SwapHandler) ExportMatches(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export is not configured"))
		return
	}
	export, err := h.exporter.Render(c.Request.Context(), c.Query("batch"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, export.ContentType, export.Content)
}

// Commit godoc
// @Summary Commit a swap plan
// @Tags Swaps
// @Accept json
// @Produce json
// @Param payload body dto.CommitSwapRequest true "Commit payload"
// @Success 201 {object} response.Envelope
// @Router /swaps/commit [post]
func (h *SwapHandler) Commit(c *gin.Context) {
	var req dto.CommitSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.swaps.CommitSwap(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// History godoc
// @Summary List committed swaps
// @Tags Swaps
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /swaps/history [get]
func (h *SwapHandler) History(c *gin.Context) {
	var filter models.SwapRecordFilter
	filter.StudentID = c.Query("studentId")

	claims := claimsFromContext(c)
	if claims != nil && claims.Role == models.RoleStudent {
		// students only see their own history
		filter.StudentID = claims.StudentID
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		filter.Offset = offset
	}

	records, err := h.swaps.History(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
