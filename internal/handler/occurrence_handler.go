package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-occurrences-api/internal/middleware"
	"github.com/noah-isme/sma-occurrences-api/internal/models"
	"github.com/noah-isme/sma-occurrences-api/internal/service"
	appErrors "github.com/noah-isme/sma-occurrences-api/pkg/errors"
	"github.com/noah-isme/sma-occurrences-api/pkg/response"
)

type occurrenceService interface {
	List(ctx context.Context, req service.ListOccurrencesRequest) (*service.OccurrenceList, error)
	Get(ctx context.Context, id int64) (*models.OccurrenceView, error)
	Filters(ctx context.Context) (*service.FilterOptions, []string)
	Create(ctx context.Context, req service.CreateOccurrenceRequest) (*models.OccurrenceView, error)
	FollowUp(ctx context.Context, id int64, role models.FollowUpRole, req service.FollowUpRequest) (*models.OccurrenceView, error)
}

// OccurrenceHandler wires occurrence workflows to HTTP routes.
type OccurrenceHandler struct {
	service occurrenceService
}

// NewOccurrenceHandler constructs an OccurrenceHandler.
func NewOccurrenceHandler(svc occurrenceService) *OccurrenceHandler {
	return &OccurrenceHandler{service: svc}
}

// List godoc
// @Summary List occurrences
// @Tags Occurrences
// @Produce json
// @Param tutor query string false "Filter by tutor"
// @Param room query string false "Filter by room"
// @Param status query string false "Filter by display status"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /occurrences [get]
func (h *OccurrenceHandler) List(c *gin.Context) {
	req := service.ListOccurrencesRequest{
		Tutor:  strings.TrimSpace(c.Query("tutor")),
		Room:   strings.TrimSpace(c.Query("room")),
		Status: strings.TrimSpace(c.Query("status")),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		req.PageSize = size
	}

	list, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, list.Items, list.Pagination, list.Notices)
}

// Filters godoc
// @Summary List filter choices
// @Tags Occurrences
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /occurrences/filters [get]
func (h *OccurrenceHandler) Filters(c *gin.Context) {
	filters, notices := h.service.Filters(c.Request.Context())
	response.List(c, filters, nil, notices)
}

// Get godoc
// @Summary Get occurrence detail
// @Tags Occurrences
// @Produce json
// @Param id path int true "Occurrence ID"
// @Success 200 {object} response.Envelope
// @Router /occurrences/{id} [get]
func (h *OccurrenceHandler) Get(c *gin.Context) {
	id, ok := occurrenceID(c)
	if !ok {
		return
	}
	view, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Create godoc
// @Summary Record occurrence
// @Tags Occurrences
// @Accept json
// @Produce json
// @Param payload body service.CreateOccurrenceRequest true "Occurrence payload"
// @Success 201 {object} response.Envelope
// @Router /occurrences [post]
func (h *OccurrenceHandler) Create(c *gin.Context) {
	var req service.CreateOccurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid occurrence payload"))
		return
	}
	view, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// FollowUp godoc
// @Summary Record follow-up remarks
// @Description Slots left out of the payload are unchanged. An empty remark reopens the slot.
// @Tags Occurrences
// @Accept json
// @Produce json
// @Param id path int true "Occurrence ID"
// @Param X-Follow-Up-Role header string false "view, tutor, coordination, management or edit_all"
// @Param payload body service.FollowUpRequest true "Follow-up payload"
// @Success 200 {object} response.Envelope
// @Router /occurrences/{id}/follow-up [patch]
func (h *OccurrenceHandler) FollowUp(c *gin.Context) {
	id, ok := occurrenceID(c)
	if !ok {
		return
	}
	var req service.FollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid follow-up payload"))
		return
	}
	view, err := h.service.FollowUp(c.Request.Context(), id, middleware.RoleFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

func occurrenceID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "occurrence id must be a positive integer"))
		return 0, false
	}
	return id, true
}
