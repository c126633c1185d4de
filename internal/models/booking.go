package models

import (
	"fmt"
	"time"
)

// CapacityMode decides how many seats each booked venue contributes.
type CapacityMode string

const (
	CapacityModeAutomatic CapacityMode = "AUTOMATIC"
	CapacityModeManual    CapacityMode = "MANUAL"
)

// ScheduleStatus is the read-only projection of an examination's booking set.
type ScheduleStatus string

const (
	ScheduleStatusUnscheduled ScheduleStatus = "UNSCHEDULED"
	ScheduleStatusPartial     ScheduleStatus = "SCHEDULED_PARTIAL"
	ScheduleStatusFull        ScheduleStatus = "SCHEDULED_FULL"
	ScheduleStatusCancelled   ScheduleStatus = "CANCELLED"
)

// Booking is one (examination, venue, date, time range, capacity) schedule row.
type Booking struct {
	ID                string    `db:"id" json:"id"`
	ExaminationID     string    `db:"examination_id" json:"examination_id"`
	VenueID           string    `db:"venue_id" json:"venue_id"`
	ExamDate          time.Time `db:"exam_date" json:"exam_date"`
	StartTime         ClockTime `db:"start_time" json:"start_time"`
	EndTime           ClockTime `db:"end_time" json:"end_time"`
	AllocatedCapacity int       `db:"allocated_capacity" json:"allocated_capacity"`
	AssignedCount     int       `db:"assigned_count" json:"assigned_count"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// BookingDetail enriches Booking with display fields for conflict reporting.
type BookingDetail struct {
	Booking
	CourseCode string `db:"course_code" json:"course_code"`
	VenueCode  string `db:"venue_code" json:"venue_code"`
}

// ProposedBooking is a booking row prior to persistence.
type ProposedBooking struct {
	VenueID           string    `json:"venue_id"`
	ExamDate          time.Time `json:"exam_date"`
	StartTime         ClockTime `json:"start_time"`
	EndTime           ClockTime `json:"end_time"`
	AllocatedCapacity int       `json:"allocated_capacity"`
}

// BookingConflict describes an existing booking that collides with a request.
type BookingConflict struct {
	BookingID     string    `json:"booking_id"`
	ExaminationID string    `json:"examination_id"`
	CourseCode    string    `json:"course_code"`
	VenueID       string    `json:"venue_id"`
	VenueCode     string    `json:"venue_code"`
	ExamDate      string    `json:"exam_date"`
	StartTime     ClockTime `json:"start_time"`
	EndTime       ClockTime `json:"end_time"`
}

// ConflictFromDetail converts a stored booking into its conflict description.
func ConflictFromDetail(d BookingDetail) BookingConflict {
	return BookingConflict{
		BookingID:     d.ID,
		ExaminationID: d.ExaminationID,
		CourseCode:    d.CourseCode,
		VenueID:       d.VenueID,
		VenueCode:     d.VenueCode,
		ExamDate:      d.ExamDate.Format(DateLayout),
		StartTime:     d.StartTime,
		EndTime:       d.EndTime,
	}
}

// BookingConflictError is returned when a requested slot collides with existing bookings.
type BookingConflictError struct {
	VenueID   string            `json:"venue_id"`
	ExamDate  string            `json:"exam_date"`
	StartTime ClockTime         `json:"start_time"`
	EndTime   ClockTime         `json:"end_time"`
	Conflicts []BookingConflict `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *BookingConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if len(e.Conflicts) == 0 {
		return fmt.Sprintf("venue %s is already booked on %s %s-%s", e.VenueID, e.ExamDate, e.StartTime, e.EndTime)
	}
	first := e.Conflicts[0]
	return fmt.Sprintf("venue %s is booked on %s %s-%s by %s (%d conflicting booking(s))",
		first.VenueCode, first.ExamDate, first.StartTime, first.EndTime, first.CourseCode, len(e.Conflicts))
}
