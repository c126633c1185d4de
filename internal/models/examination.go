package models

import "time"

// ExamType classifies an examination sitting.
type ExamType string

const (
	ExamTypeContinuousAssessment ExamType = "CONTINUOUS_ASSESSMENT"
	ExamTypeFinal                ExamType = "FINAL"
	ExamTypeMakeup               ExamType = "MAKEUP"
)

// Examination identifies a course sitting within an exam period.
type Examination struct {
	ID              string    `db:"id" json:"id"`
	CourseID        string    `db:"course_id" json:"course_id"`
	CourseCode      string    `db:"course_code" json:"course_code"`
	ExamPeriodID    string    `db:"exam_period_id" json:"exam_period_id"`
	ExamType        ExamType  `db:"exam_type" json:"exam_type"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	TotalMarks      int       `db:"total_marks" json:"total_marks"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
