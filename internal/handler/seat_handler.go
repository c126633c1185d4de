package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-venue-api/internal/dto"
	"github.com/noah-isme/exam-venue-api/internal/models"
	"github.com/noah-isme/exam-venue-api/internal/service"
	"github.com/noah-isme/exam-venue-api/pkg/response"
)

type seatService interface {
	AssignSeats(ctx context.Context, examinationID string) (*dto.SeatMap, []models.Warning, error)
	GetSeatMap(ctx context.Context, examinationID string) (*dto.SeatMap, []models.Warning, error)
}

type rosterExporter interface {
	ExportSeatRoster(ctx context.Context, examinationID string, format service.ExportFormat) (*service.ExportFile, error)
}

// SeatHandler exposes seat assignment and roster export.
type SeatHandler struct {
	seats    seatService
	exporter rosterExporter
}

// NewSeatHandler constructs the handler.
func NewSeatHandler(seats seatService, exporter rosterExporter) *SeatHandler {
	return &SeatHandler{seats: seats, exporter: exporter}
}

// Assign godoc
// @Summary Assign registered students to booked seats
// @Description Re-running replaces the previous assignment.
// @Tags Seats
// @Produce json
// @Param id path string true "Examination ID"
// @Success 200 {object} response.Envelope
// @Router /examinations/{id}/seats [post]
func (h *SeatHandler) Assign(c *gin.Context) {
	seatMap, warnings, err := h.seats.AssignSeats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusOK, seatMap, warnings)
}

// Get godoc
// @Summary Get the persisted seat map of an examination
// @Tags Seats
// @Produce json
// @Param id path string true "Examination ID"
// @Success 200 {object} response.Envelope
// @Router /examinations/{id}/seats [get]
func (h *SeatHandler) Get(c *gin.Context) {
	seatMap, warnings, err := h.seats.GetSeatMap(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusOK, seatMap, warnings)
}

// Export godoc
// @Summary Download the seat roster
// @Tags Seats
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Examination ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /examinations/{id}/seats/export [get]
func (h *SeatHandler) Export(c *gin.Context) {
	file, err := h.exporter.ExportSeatRoster(c.Request.Context(), c.Param("id"), service.ExportFormat(c.DefaultQuery("format", string(service.ExportFormatCSV))))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
