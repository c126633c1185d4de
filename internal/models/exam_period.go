package models

import "time"

// ExamPeriod is a named date window within an academic session.
type ExamPeriod struct {
	ID                   string    `db:"id" json:"id"`
	Name                 string    `db:"name" json:"name"`
	AcademicSession      string    `db:"academic_session" json:"academic_session"`
	StartDate            time.Time `db:"start_date" json:"start_date"`
	EndDate              time.Time `db:"end_date" json:"end_date"`
	RegistrationDeadline time.Time `db:"registration_deadline" json:"registration_deadline"`
	IsActive             bool      `db:"is_active" json:"is_active"`
}

// Contains reports whether date falls inside the period, bounds inclusive, compared by calendar day.
func (p ExamPeriod) Contains(date time.Time) bool {
	day := NormalizeDate(date)
	return !day.Before(NormalizeDate(p.StartDate)) && !day.After(NormalizeDate(p.EndDate))
}

// OutOfPeriodError reports a requested exam date outside its period.
type OutOfPeriodError struct {
	PeriodID   string `json:"period_id"`
	PeriodName string `json:"period_name"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Requested  string `json:"requested_date"`
}

// Error implements the error interface.
func (e *OutOfPeriodError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return "date " + e.Requested + " is outside " + e.PeriodName + " (" + e.StartDate + " to " + e.EndDate + ")"
}
