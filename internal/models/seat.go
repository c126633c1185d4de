package models

import "time"

// SeatAssignment places one registered student in one booking of an examination.
type SeatAssignment struct {
	ID            string    `db:"id" json:"id"`
	ExaminationID string    `db:"examination_id" json:"examination_id"`
	BookingID     string    `db:"booking_id" json:"booking_id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	SeatNumber    int       `db:"seat_number" json:"seat_number"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// SeatRosterEntry is a seat assignment joined with venue details for exports.
type SeatRosterEntry struct {
	SeatAssignment
	VenueCode string    `db:"venue_code" json:"venue_code"`
	VenueName string    `db:"venue_name" json:"venue_name"`
	ExamDate  time.Time `db:"exam_date" json:"exam_date"`
	StartTime ClockTime `db:"start_time" json:"start_time"`
	EndTime   ClockTime `db:"end_time" json:"end_time"`
}
