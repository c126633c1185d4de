package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-venue-api/internal/models"
)

// ExamPeriodRepository resolves exam periods.
type ExamPeriodRepository struct {
	db *sqlx.DB
}

// NewExamPeriodRepository constructs repository.
func NewExamPeriodRepository(db *sqlx.DB) *ExamPeriodRepository {
	return &ExamPeriodRepository{db: db}
}

// GetPeriodForExamination returns the period an examination belongs to.
func (r *ExamPeriodRepository) GetPeriodForExamination(ctx context.Context, examinationID string) (*models.ExamPeriod, error) {
	const query = `SELECT p.id, p.name, p.academic_session, p.start_date, p.end_date, p.registration_deadline, p.is_active
FROM exam_periods p JOIN examinations e ON e.exam_period_id = p.id WHERE e.id = $1`
	var period models.ExamPeriod
	if err := r.db.GetContext(ctx, &period, query, examinationID); err != nil {
		return nil, err
	}
	return &period, nil
}
