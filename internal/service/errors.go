package service

import (
	"database/sql"
	"errors"
	"time"

	"github.com/noah-isme/exam-venue-api/internal/models"
	"github.com/noah-isme/exam-venue-api/pkg/database"
	appErrors "github.com/noah-isme/exam-venue-api/pkg/errors"
)

// storageError classifies a persistence failure. Typed domain errors pass through untouched.
func storageError(err error, message string) error {
	if err == nil {
		return nil
	}
	var domain *appErrors.Error
	if errors.As(err, &domain) {
		return err
	}
	if database.IsTransient(err) {
		return appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, appErrors.ErrTransient.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
	}
	return storageError(err, "failed to load "+what)
}

func newConflictError(venueID string, date time.Time, start, end models.ClockTime, conflicts []models.BookingConflict) error {
	payload := &models.BookingConflictError{
		VenueID:   venueID,
		ExamDate:  date.Format(models.DateLayout),
		StartTime: start,
		EndTime:   end,
		Conflicts: conflicts,
	}
	return appErrors.WithDetails(appErrors.ErrConflict, payload.Error(), payload)
}
