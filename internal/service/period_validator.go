package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-venue-api/internal/models"
	appErrors "github.com/noah-isme/exam-venue-api/pkg/errors"
)

type examPeriodReader interface {
	GetPeriodForExamination(ctx context.Context, examinationID string) (*models.ExamPeriod, error)
}

// PeriodValidator checks exam dates against the examination's exam period.
type PeriodValidator struct {
	periods examPeriodReader
	logger  *zap.Logger
}

// NewPeriodValidator constructs the validator.
func NewPeriodValidator(periods examPeriodReader, logger *zap.Logger) *PeriodValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodValidator{periods: periods, logger: logger}
}

// ValidateDate returns the resolved period when date lies within it.
func (v *PeriodValidator) ValidateDate(ctx context.Context, examinationID string, date time.Time) (*models.ExamPeriod, error) {
	period, err := v.periods.GetPeriodForExamination(ctx, examinationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			v.logger.Error("exam period missing for examination", zap.String("examination_id", examinationID))
			return nil, appErrors.Clone(appErrors.ErrPeriodNotFound, "exam period could not be resolved for examination")
		}
		return nil, storageError(err, "failed to load exam period")
	}
	if period.Contains(date) {
		return period, nil
	}

	payload := &models.OutOfPeriodError{
		PeriodID:   period.ID,
		PeriodName: period.Name,
		StartDate:  period.StartDate.Format(models.DateLayout),
		EndDate:    period.EndDate.Format(models.DateLayout),
		Requested:  date.Format(models.DateLayout),
	}
	return nil, appErrors.WithDetails(appErrors.ErrOutOfPeriod, payload.Error(), payload)
}
