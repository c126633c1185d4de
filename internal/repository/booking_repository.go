package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/exam-venue-api/internal/models"
	"github.com/noah-isme/exam-venue-api/pkg/database"
)

const bookingColumns = `b.id, b.examination_id, b.venue_id, b.exam_date, b.start_time, b.end_time, b.allocated_capacity, b.assigned_count, b.created_at, b.updated_at`

const bookingDetailFrom = `FROM exam_bookings b
JOIN venues v ON v.id = b.venue_id
JOIN examinations e ON e.id = b.examination_id
LEFT JOIN courses c ON c.id = e.course_id`

// BookingRepository persists exam bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// BeginTxx starts a transaction on the underlying pool.
func (r *BookingRepository) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, opts)
}

// FindByID loads a booking by id.
func (r *BookingRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM exam_bookings b WHERE b.id = $1`
	var booking models.Booking
	if err := sqlx.GetContext(ctx, r.exec(exec), &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindConflicts returns bookings of venueID on date whose [start, end) overlaps the requested range.
func (r *BookingRepository) FindConflicts(ctx context.Context, exec sqlx.ExtContext, venueID string, date time.Time, start, end models.ClockTime, excludeBookingID string) ([]models.BookingDetail, error) {
	const where = ` WHERE b.venue_id = $1 AND b.exam_date = $2::date AND b.start_time < $4 AND $3 < b.end_time`
	base := `SELECT ` + bookingColumns + `, COALESCE(c.code, '') AS course_code, v.code AS venue_code ` + bookingDetailFrom + where

	day := date.Format(models.DateLayout)
	var conflicts []models.BookingDetail
	var err error
	if excludeBookingID == "" {
		err = sqlx.SelectContext(ctx, r.exec(exec), &conflicts, base+` ORDER BY b.start_time ASC, b.id ASC`, venueID, day, start, end)
	} else {
		err = sqlx.SelectContext(ctx, r.exec(exec), &conflicts, base+` AND b.id <> $5 ORDER BY b.start_time ASC, b.id ASC`, venueID, day, start, end, excludeBookingID)
	}
	if err != nil {
		return nil, fmt.Errorf("find booking conflicts: %w", err)
	}
	return conflicts, nil
}

// BusyVenueIDs returns which of venueIDs hold a booking overlapping the range on date.
// Bookings of ignoreExaminationID are disregarded so a reschedule does not collide with itself.
func (r *BookingRepository) BusyVenueIDs(ctx context.Context, venueIDs []string, date time.Time, start, end models.ClockTime, ignoreExaminationID string) ([]string, error) {
	if len(venueIDs) == 0 {
		return nil, nil
	}
	const base = `SELECT DISTINCT b.venue_id FROM exam_bookings b WHERE b.venue_id = ANY($1) AND b.exam_date = $2::date AND b.start_time < $4 AND $3 < b.end_time`

	day := date.Format(models.DateLayout)
	var busy []string
	var err error
	if ignoreExaminationID == "" {
		err = r.db.SelectContext(ctx, &busy, base+` ORDER BY b.venue_id`, pq.Array(venueIDs), day, start, end)
	} else {
		err = r.db.SelectContext(ctx, &busy, base+` AND b.examination_id <> $5 ORDER BY b.venue_id`, pq.Array(venueIDs), day, start, end, ignoreExaminationID)
	}
	if err != nil {
		return nil, fmt.Errorf("list busy venues: %w", err)
	}
	return busy, nil
}

// ListByExamination returns bookings of an examination ordered by venue.
func (r *BookingRepository) ListByExamination(ctx context.Context, exec sqlx.ExtContext, examinationID string) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM exam_bookings b WHERE b.examination_id = $1 ORDER BY b.venue_id ASC, b.id ASC`
	var bookings []models.Booking
	if err := sqlx.SelectContext(ctx, r.exec(exec), &bookings, query, examinationID); err != nil {
		return nil, fmt.Errorf("list bookings by examination: %w", err)
	}
	return bookings, nil
}

// Insert stores a new booking row.
func (r *BookingRepository) Insert(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	const query = `INSERT INTO exam_bookings (id, examination_id, venue_id, exam_date, start_time, end_time, allocated_capacity, assigned_count, created_at, updated_at)
VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10)`
	if _, err := r.exec(exec).ExecContext(ctx, query,
		booking.ID,
		booking.ExaminationID,
		booking.VenueID,
		booking.ExamDate.Format(models.DateLayout),
		booking.StartTime,
		booking.EndTime,
		booking.AllocatedCapacity,
		booking.AssignedCount,
		booking.CreatedAt,
		booking.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// Update modifies the schedule fields of a booking.
func (r *BookingRepository) Update(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	booking.UpdatedAt = time.Now().UTC()
	const query = `UPDATE exam_bookings SET venue_id = $2, exam_date = $3::date, start_time = $4, end_time = $5, allocated_capacity = $6, assigned_count = $7, updated_at = $8 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query,
		booking.ID,
		booking.VenueID,
		booking.ExamDate.Format(models.DateLayout),
		booking.StartTime,
		booking.EndTime,
		booking.AllocatedCapacity,
		booking.AssignedCount,
		booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	return requireAffected(res)
}

// UpdateAssignedCount records how many seats were filled in a booking.
func (r *BookingRepository) UpdateAssignedCount(ctx context.Context, exec sqlx.ExtContext, id string, count int) error {
	const query = `UPDATE exam_bookings SET assigned_count = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, count, time.Now().UTC()); err != nil {
		return fmt.Errorf("update booking assigned count: %w", err)
	}
	return nil
}

// Delete removes a booking by id.
func (r *BookingRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM exam_bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return requireAffected(res)
}

// DeleteByExamination removes every booking of an examination and reports how many were removed.
func (r *BookingRepository) DeleteByExamination(ctx context.Context, exec sqlx.ExtContext, examinationID string) (int64, error) {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM exam_bookings WHERE examination_id = $1`, examinationID)
	if err != nil {
		return 0, fmt.Errorf("delete examination bookings: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete examination bookings: %w", err)
	}
	return affected, nil
}

// LockVenueDay serialises check-and-write on a (venue, date) pair for the life of the transaction.
func (r *BookingRepository) LockVenueDay(ctx context.Context, exec sqlx.ExtContext, venueID string, date time.Time) error {
	return database.AdvisoryXactLock(ctx, r.exec(exec), VenueDayLockKey(venueID, date))
}

// LockExamination serialises writes touching one examination's bookings or seats.
func (r *BookingRepository) LockExamination(ctx context.Context, exec sqlx.ExtContext, examinationID string) error {
	return database.AdvisoryXactLock(ctx, r.exec(exec), ExaminationLockKey(examinationID))
}

// VenueDayLockKey names the advisory lock guarding a venue on a date.
func VenueDayLockKey(venueID string, date time.Time) string {
	return "venue:" + venueID + ":" + date.Format(models.DateLayout)
}

// ExaminationLockKey names the advisory lock guarding an examination.
func ExaminationLockKey(examinationID string) string {
	return "exam:" + examinationID
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
