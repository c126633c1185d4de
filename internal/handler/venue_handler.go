package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-venue-api/internal/dto"
	appErrors "github.com/noah-isme/exam-venue-api/pkg/errors"
	"github.com/noah-isme/exam-venue-api/pkg/response"
)

type venueConflictLister interface {
	VenueConflicts(ctx context.Context, venueID string, query dto.ConflictQuery) (*dto.VenueConflicts, error)
}

// VenueHandler exposes venue occupancy lookups.
type VenueHandler struct {
	service venueConflictLister
}

// NewVenueHandler constructs the handler.
func NewVenueHandler(svc venueConflictLister) *VenueHandler {
	return &VenueHandler{service: svc}
}

// Conflicts godoc
// @Summary List bookings of a venue overlapping a time range
// @Tags Venues
// @Produce json
// @Param id path string true "Venue ID"
// @Param date query string true "Exam date (YYYY-MM-DD)"
// @Param start_time query string true "Start time (HH:MM)"
// @Param end_time query string true "End time (HH:MM)"
// @Param exclude_booking_id query string false "Booking to ignore"
// @Success 200 {object} response.Envelope
// @Router /venues/{id}/conflicts [get]
func (h *VenueHandler) Conflicts(c *gin.Context) {
	var query dto.ConflictQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid conflict query"))
		return
	}
	result, err := h.service.VenueConflicts(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
