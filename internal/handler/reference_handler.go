package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-occurrences-api/internal/models"
	"github.com/noah-isme/sma-occurrences-api/pkg/response"
)

type referenceService interface {
	Teachers(ctx context.Context) ([]models.Teacher, []string)
	Rooms(ctx context.Context) ([]models.Room, []string)
	Students(ctx context.Context) ([]models.Student, []string)
}

// ReferenceHandler serves the read-only reference tables.
type ReferenceHandler struct {
	service referenceService
}

// NewReferenceHandler constructs a ReferenceHandler.
func NewReferenceHandler(svc referenceService) *ReferenceHandler {
	return &ReferenceHandler{service: svc}
}

// Teachers godoc
// @Summary List teachers
// @Tags References
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /references/teachers [get]
func (h *ReferenceHandler) Teachers(c *gin.Context) {
	teachers, notices := h.service.Teachers(c.Request.Context())
	response.List(c, teachers, nil, notices)
}

// Rooms godoc
// @Summary List rooms
// @Tags References
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /references/rooms [get]
func (h *ReferenceHandler) Rooms(c *gin.Context) {
	rooms, notices := h.service.Rooms(c.Request.Context())
	response.List(c, rooms, nil, notices)
}

// Students godoc
// @Summary List students with their tutors
// @Tags References
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /references/students [get]
func (h *ReferenceHandler) Students(c *gin.Context) {
	students, notices := h.service.Students(c.Request.Context())
	response.List(c, students, nil, notices)
}
