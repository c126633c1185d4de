package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-venue-api/internal/models"
	appErrors "github.com/noah-isme/exam-venue-api/pkg/errors"
)

type bookingConflictReader interface {
	FindConflicts(ctx context.Context, exec sqlx.ExtContext, venueID string, date time.Time, start, end models.ClockTime, excludeBookingID string) ([]models.BookingDetail, error)
	BusyVenueIDs(ctx context.Context, venueIDs []string, date time.Time, start, end models.ClockTime, ignoreExaminationID string) ([]string, error)
}

// ConflictDetector reports bookings colliding with a venue time range. It never locks.
type ConflictDetector struct {
	bookings bookingConflictReader
	logger   *zap.Logger
}

// NewConflictDetector constructs the detector.
func NewConflictDetector(bookings bookingConflictReader, logger *zap.Logger) *ConflictDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictDetector{bookings: bookings, logger: logger}
}

// FindConflicts lists bookings of venueID on date overlapping [start, end).
func (d *ConflictDetector) FindConflicts(ctx context.Context, venueID string, date time.Time, start, end models.ClockTime, excludeBookingID string) ([]models.BookingConflict, error) {
	if venueID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "venue is required")
	}
	if start >= end {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}
	details, err := d.bookings.FindConflicts(ctx, nil, venueID, models.NormalizeDate(date), start, end, excludeBookingID)
	if err != nil {
		return nil, storageError(err, "failed to check venue conflicts")
	}
	conflicts := make([]models.BookingConflict, 0, len(details))
	for _, detail := range details {
		conflicts = append(conflicts, models.ConflictFromDetail(detail))
	}
	if len(conflicts) > 0 {
		d.logger.Info("venue conflict detected",
			zap.String("venue_id", venueID),
			zap.String("exam_date", date.Format(models.DateLayout)),
			zap.Int("conflicts", len(conflicts)),
		)
	}
	return conflicts, nil
}

// BusyVenues returns the subset of venueIDs holding an overlapping booking on date.
func (d *ConflictDetector) BusyVenues(ctx context.Context, date time.Time, start, end models.ClockTime, venueIDs []string, ignoreExaminationID string) (map[string]struct{}, error) {
	busy := make(map[string]struct{})
	if len(venueIDs) == 0 {
		return busy, nil
	}
	ids, err := d.bookings.BusyVenueIDs(ctx, venueIDs, models.NormalizeDate(date), start, end, ignoreExaminationID)
	if err != nil {
		return nil, storageError(err, "failed to check venue availability")
	}
	for _, id := range ids {
		busy[id] = struct{}{}
	}
	return busy, nil
}
