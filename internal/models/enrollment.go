package models

// RegistrationStatus is the state of a student's course registration for a period.
type RegistrationStatus string

const (
	RegistrationStatusRegistered RegistrationStatus = "REGISTERED"
	RegistrationStatusWithdrawn  RegistrationStatus = "WITHDRAWN"
)

// Registration links a student to a course within an exam period.
type Registration struct {
	StudentID    string             `db:"student_id" json:"student_id"`
	CourseID     string             `db:"course_id" json:"course_id"`
	ExamPeriodID string             `db:"exam_period_id" json:"exam_period_id"`
	Status       RegistrationStatus `db:"status" json:"status"`
}
