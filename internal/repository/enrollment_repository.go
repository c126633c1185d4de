package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-venue-api/internal/models"
)

// EnrollmentRepository reads course registrations owned by the enrollment subsystem.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an enrollment repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// CountRegistered returns the number of registered students for a course in an exam period.
func (r *EnrollmentRepository) CountRegistered(ctx context.Context, courseID, examPeriodID string) (int, error) {
	const query = `SELECT COUNT(*) FROM course_registrations WHERE course_id = $1 AND exam_period_id = $2 AND status = $3`
	var total int
	if err := r.db.GetContext(ctx, &total, query, courseID, examPeriodID, models.RegistrationStatusRegistered); err != nil {
		return 0, fmt.Errorf("count registered students: %w", err)
	}
	return total, nil
}

// ListRegisteredStudents returns registered student ids ordered by id.
func (r *EnrollmentRepository) ListRegisteredStudents(ctx context.Context, courseID, examPeriodID string) ([]string, error) {
	const query = `SELECT student_id FROM course_registrations WHERE course_id = $1 AND exam_period_id = $2 AND status = $3 ORDER BY student_id ASC`
	var students []string
	if err := r.db.SelectContext(ctx, &students, query, courseID, examPeriodID, models.RegistrationStatusRegistered); err != nil {
		return nil, fmt.Errorf("list registered students: %w", err)
	}
	return students, nil
}
