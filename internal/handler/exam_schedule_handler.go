package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-venue-api/internal/dto"
	"github.com/noah-isme/exam-venue-api/internal/models"
	appErrors "github.com/noah-isme/exam-venue-api/pkg/errors"
	"github.com/noah-isme/exam-venue-api/pkg/response"
)

type examScheduler interface {
	ValidateDate(ctx context.Context, examinationID string, req dto.DateCheckRequest) (*dto.DateCheckResponse, error)
	PreviewAllocation(ctx context.Context, examinationID string, req dto.BookingRequest) (*dto.AllocationPreview, []models.Warning, error)
	BookExamination(ctx context.Context, examinationID string, req dto.BookingRequest) (*dto.ExaminationSchedule, []models.Warning, error)
	ReplaceBookings(ctx context.Context, examinationID string, req dto.BookingRequest) (*dto.ExaminationSchedule, []models.Warning, error)
	GetSchedule(ctx context.Context, examinationID string) (*dto.ExaminationSchedule, error)
	CancelExamination(ctx context.Context, examinationID string) (*dto.CancelResult, error)
}

// ExamScheduleHandler exposes per-examination scheduling endpoints.
type ExamScheduleHandler struct {
	service examScheduler
}

// NewExamScheduleHandler constructs the handler.
func NewExamScheduleHandler(svc examScheduler) *ExamScheduleHandler {
	return &ExamScheduleHandler{service: svc}
}

// DateCheck godoc
// @Summary Check a proposed exam date against the examination's period
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param id path string true "Examination ID"
// @Param payload body dto.DateCheckRequest true "Date check payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /examinations/{id}/date-check [post]
func (h *ExamScheduleHandler) DateCheck(c *gin.Context) {
	var req dto.DateCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid date check payload"))
		return
	}
	result, err := h.service.ValidateDate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Preview godoc
// @Summary Preview venue allocation without booking
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param id path string true "Examination ID"
// @Param payload body dto.BookingRequest true "Allocation request"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /examinations/{id}/allocation-preview [post]
func (h *ExamScheduleHandler) Preview(c *gin.Context) {
	req, ok := bindBookingRequest(c)
	if !ok {
		return
	}
	preview, warnings, err := h.service.PreviewAllocation(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusOK, preview, warnings)
}

// Book godoc
// @Summary Allocate venues and book an examination
// @Description Partial coverage succeeds with an INSUFFICIENT_CAPACITY warning under meta.warnings.
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param id path string true "Examination ID"
// @Param payload body dto.BookingRequest true "Booking request"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /examinations/{id}/bookings [post]
func (h *ExamScheduleHandler) Book(c *gin.Context) {
	req, ok := bindBookingRequest(c)
	if !ok {
		return
	}
	schedule, warnings, err := h.service.BookExamination(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusCreated, schedule, warnings)
}

// Replace godoc
// @Summary Replace every booking of an examination
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param id path string true "Examination ID"
// @Param payload body dto.BookingRequest true "Booking request"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /examinations/{id}/bookings [put]
func (h *ExamScheduleHandler) Replace(c *gin.Context) {
	req, ok := bindBookingRequest(c)
	if !ok {
		return
	}
	schedule, warnings, err := h.service.ReplaceBookings(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusOK, schedule, warnings)
}

// List godoc
// @Summary List an examination's bookings with schedule status
// @Tags Scheduling
// @Produce json
// @Param id path string true "Examination ID"
// @Success 200 {object} response.Envelope
// @Router /examinations/{id}/bookings [get]
func (h *ExamScheduleHandler) List(c *gin.Context) {
	schedule, err := h.service.GetSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule)
}

// Cancel godoc
// @Summary Cancel an examination's schedule
// @Tags Scheduling
// @Produce json
// @Param id path string true "Examination ID"
// @Success 200 {object} response.Envelope
// @Router /examinations/{id}/bookings [delete]
func (h *ExamScheduleHandler) Cancel(c *gin.Context) {
	result, err := h.service.CancelExamination(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

func bindBookingRequest(c *gin.Context) (dto.BookingRequest, bool) {
	var req dto.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return req, false
	}
	return req, true
}
