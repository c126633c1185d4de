package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-venue-api/internal/models"
)

// SeatRepository persists seat assignments derived from bookings.
type SeatRepository struct {
	db *sqlx.DB
}

// NewSeatRepository constructs repository.
func NewSeatRepository(db *sqlx.DB) *SeatRepository {
	return &SeatRepository{db: db}
}

func (r *SeatRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// DeleteByExamination clears every seat of an examination.
func (r *SeatRepository) DeleteByExamination(ctx context.Context, exec sqlx.ExtContext, examinationID string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM seat_assignments WHERE examination_id = $1`, examinationID); err != nil {
		return fmt.Errorf("delete examination seats: %w", err)
	}
	return nil
}

// DeleteByBooking clears the seats of a single booking.
func (r *SeatRepository) DeleteByBooking(ctx context.Context, exec sqlx.ExtContext, bookingID string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM seat_assignments WHERE booking_id = $1`, bookingID); err != nil {
		return fmt.Errorf("delete booking seats: %w", err)
	}
	return nil
}

// InsertBatch stores seat assignments.
func (r *SeatRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, seats []models.SeatAssignment) error {
	if len(seats) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `INSERT INTO seat_assignments (id, examination_id, booking_id, student_id, seat_number, created_at)
VALUES (:id, :examination_id, :booking_id, :student_id, :seat_number, :created_at)`

	for i := range seats {
		seat := &seats[i]
		if seat.ID == "" {
			seat.ID = uuid.NewString()
		}
		if seat.CreatedAt.IsZero() {
			seat.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, seat); err != nil {
			return fmt.Errorf("insert seat assignment: %w", err)
		}
	}
	return nil
}

// ListByExamination returns seats ordered by booking then seat number.
func (r *SeatRepository) ListByExamination(ctx context.Context, examinationID string) ([]models.SeatAssignment, error) {
	const query = `SELECT id, examination_id, booking_id, student_id, seat_number, created_at
FROM seat_assignments WHERE examination_id = $1 ORDER BY booking_id ASC, seat_number ASC`
	var seats []models.SeatAssignment
	if err := r.db.SelectContext(ctx, &seats, query, examinationID); err != nil {
		return nil, fmt.Errorf("list examination seats: %w", err)
	}
	return seats, nil
}

// ListRoster returns seats joined with their venue and sitting for exports.
func (r *SeatRepository) ListRoster(ctx context.Context, examinationID string) ([]models.SeatRosterEntry, error) {
	const query = `SELECT s.id, s.examination_id, s.booking_id, s.student_id, s.seat_number, s.created_at,
v.code AS venue_code, v.name AS venue_name, b.exam_date, b.start_time, b.end_time
FROM seat_assignments s
JOIN exam_bookings b ON b.id = s.booking_id
JOIN venues v ON v.id = b.venue_id
WHERE s.examination_id = $1
ORDER BY v.code ASC, s.seat_number ASC`
	var roster []models.SeatRosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, examinationID); err != nil {
		return nil, fmt.Errorf("list seat roster: %w", err)
	}
	return roster, nil
}
