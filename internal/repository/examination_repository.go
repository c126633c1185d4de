package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-venue-api/internal/models"
)

// ExaminationRepository reads examinations maintained by the records UI.
type ExaminationRepository struct {
	db *sqlx.DB
}

// NewExaminationRepository constructs repository.
func NewExaminationRepository(db *sqlx.DB) *ExaminationRepository {
	return &ExaminationRepository{db: db}
}

// FindByID loads an examination with its course code.
func (r *ExaminationRepository) FindByID(ctx context.Context, id string) (*models.Examination, error) {
	const query = `SELECT e.id, e.course_id, COALESCE(c.code, '') AS course_code, e.exam_period_id, e.exam_type, e.duration_minutes, e.total_marks, e.created_at, e.updated_at
FROM examinations e LEFT JOIN courses c ON c.id = e.course_id WHERE e.id = $1`
	var exam models.Examination
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}
