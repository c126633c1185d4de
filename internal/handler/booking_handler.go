package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-venue-api/internal/dto"
	appErrors "github.com/noah-isme/exam-venue-api/pkg/errors"
	"github.com/noah-isme/exam-venue-api/pkg/response"
)

type bookingEditor interface {
	UpdateBooking(ctx context.Context, bookingID string, req dto.UpdateBookingRequest) (*dto.BookingView, error)
	DeleteBooking(ctx context.Context, bookingID string) error
}

// BookingHandler edits individual bookings.
type BookingHandler struct {
	service bookingEditor
}

// NewBookingHandler constructs the handler.
func NewBookingHandler(svc bookingEditor) *BookingHandler {
	return &BookingHandler{service: svc}
}

// Update godoc
// @Summary Move a booking to another venue, date or time
// @Description capacity 0 recomputes the venue's full capacity.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.UpdateBookingRequest true "Booking change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id} [put]
func (h *BookingHandler) Update(c *gin.Context) {
	var req dto.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking update payload"))
		return
	}
	view, err := h.service.UpdateBooking(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Delete godoc
// @Summary Delete a booking
// @Tags Bookings
// @Param id path string true "Booking ID"
// @Success 204
// @Router /bookings/{id} [delete]
func (h *BookingHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteBooking(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
