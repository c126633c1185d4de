package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-venue-api/internal/models"
	"github.com/noah-isme/exam-venue-api/pkg/database"
	appErrors "github.com/noah-isme/exam-venue-api/pkg/errors"
)

type bookingStoreRepository interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error)
	FindConflicts(ctx context.Context, exec sqlx.ExtContext, venueID string, date time.Time, start, end models.ClockTime, excludeBookingID string) ([]models.BookingDetail, error)
	ListByExamination(ctx context.Context, exec sqlx.ExtContext, examinationID string) ([]models.Booking, error)
	Insert(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error
	Update(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	DeleteByExamination(ctx context.Context, exec sqlx.ExtContext, examinationID string) (int64, error)
	LockVenueDay(ctx context.Context, exec sqlx.ExtContext, venueID string, date time.Time) error
	LockExamination(ctx context.Context, exec sqlx.ExtContext, examinationID string) error
}

type seatCleaner interface {
	DeleteByExamination(ctx context.Context, exec sqlx.ExtContext, examinationID string) error
	DeleteByBooking(ctx context.Context, exec sqlx.ExtContext, bookingID string) error
}

type dateValidator interface {
	ValidateDate(ctx context.Context, examinationID string, date time.Time) (*models.ExamPeriod, error)
}

type singleVenueReader interface {
	GetVenue(ctx context.Context, id string) (*models.Venue, error)
}

// BookingChange is the single-venue update applied by UpdateBooking.
// Capacity 0 means the venue's full capacity.
type BookingChange struct {
	VenueID   string
	ExamDate  time.Time
	StartTime models.ClockTime
	EndTime   models.ClockTime
	Capacity  int
}

// ScheduleStore persists bookings. Check and write happen in one transaction under advisory locks.
type ScheduleStore struct {
	bookings bookingStoreRepository
	seats    seatCleaner
	periods  dateValidator
	venues   singleVenueReader
	logger   *zap.Logger
}

// NewScheduleStore wires the store.
func NewScheduleStore(bookings bookingStoreRepository, seats seatCleaner, periods dateValidator, venues singleVenueReader, logger *zap.Logger) *ScheduleStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleStore{bookings: bookings, seats: seats, periods: periods, venues: venues, logger: logger}
}

// ListBookings returns the bookings of an examination ordered by venue.
func (s *ScheduleStore) ListBookings(ctx context.Context, examinationID string) ([]models.Booking, error) {
	bookings, err := s.bookings.ListByExamination(ctx, nil, examinationID)
	if err != nil {
		return nil, storageError(err, "failed to list bookings")
	}
	return bookings, nil
}

// CreateBookings inserts rows for an examination atomically.
func (s *ScheduleStore) CreateBookings(ctx context.Context, examinationID string, rows []models.ProposedBooking) ([]models.Booking, error) {
	if err := validateProposedRows(rows); err != nil {
		return nil, err
	}
	var created []models.Booking
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.bookings.LockExamination(ctx, tx, examinationID); err != nil {
			return storageError(err, "failed to lock examination")
		}
		if err := s.lockVenueDays(ctx, tx, venueDaysOf(rows, nil)); err != nil {
			return err
		}
		var err error
		created, err = s.insertChecked(ctx, tx, examinationID, rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("bookings created", zap.String("examination_id", examinationID), zap.Int("count", len(created)))
	return created, nil
}

// ReplaceExaminationBookings swaps the whole booking set of an examination atomically.
// Existing seats are dropped because they reference the old bookings.
func (s *ScheduleStore) ReplaceExaminationBookings(ctx context.Context, examinationID string, rows []models.ProposedBooking) ([]models.Booking, error) {
	if err := validateProposedRows(rows); err != nil {
		return nil, err
	}
	var created []models.Booking
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.bookings.LockExamination(ctx, tx, examinationID); err != nil {
			return storageError(err, "failed to lock examination")
		}
		existing, err := s.bookings.ListByExamination(ctx, tx, examinationID)
		if err != nil {
			return storageError(err, "failed to list bookings")
		}
		if err := s.lockVenueDays(ctx, tx, venueDaysOf(rows, existing)); err != nil {
			return err
		}
		if err := s.seats.DeleteByExamination(ctx, tx, examinationID); err != nil {
			return storageError(err, "failed to clear seat assignments")
		}
		if _, err := s.bookings.DeleteByExamination(ctx, tx, examinationID); err != nil {
			return storageError(err, "failed to clear bookings")
		}
		created, err = s.insertChecked(ctx, tx, examinationID, rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("bookings replaced", zap.String("examination_id", examinationID), zap.Int("count", len(created)))
	return created, nil
}

// UpdateBooking moves a single booking after re-checking its period, venue and conflicts.
func (s *ScheduleStore) UpdateBooking(ctx context.Context, bookingID string, change BookingChange) (*models.Booking, error) {
	if change.VenueID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "venue is required")
	}
	if change.StartTime >= change.EndTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}
	if change.Capacity < 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidCapacity, "capacity must not be negative")
	}
	date := models.NormalizeDate(change.ExamDate)

	var updated *models.Booking
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		found, err := s.bookings.FindByID(ctx, tx, bookingID)
		if err != nil {
			return notFoundOr(err, "booking")
		}
		if err := s.bookings.LockExamination(ctx, tx, found.ExaminationID); err != nil {
			return storageError(err, "failed to lock examination")
		}
		// Re-read under the examination lock; a concurrent writer may have moved the row.
		current, err := s.bookings.FindByID(ctx, tx, bookingID)
		if err != nil {
			return notFoundOr(err, "booking")
		}
		keys := []venueDay{{venueID: current.VenueID, date: models.NormalizeDate(current.ExamDate)}, {venueID: change.VenueID, date: date}}
		if err := s.lockVenueDays(ctx, tx, keys); err != nil {
			return err
		}

		if _, err := s.periods.ValidateDate(ctx, current.ExaminationID, date); err != nil {
			return err
		}
		venue, err := s.venues.GetVenue(ctx, change.VenueID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.logger.Error("venue missing on booking update", zap.String("venue_id", change.VenueID))
				return appErrors.Clone(appErrors.ErrVenueNotFound, fmt.Sprintf("venue %s could not be resolved", change.VenueID))
			}
			return storageError(err, "failed to load venue")
		}
		if !venue.IsAvailable {
			return appErrors.Clone(appErrors.ErrVenueUnavailable, fmt.Sprintf("venue %s is not available", venue.Code))
		}

		details, err := s.bookings.FindConflicts(ctx, tx, venue.ID, date, change.StartTime, change.EndTime, bookingID)
		if err != nil {
			return storageError(err, "failed to check venue conflicts")
		}
		if len(details) > 0 {
			return newConflictError(venue.ID, date, change.StartTime, change.EndTime, conflictsFromDetails(details))
		}

		mode := models.CapacityModeManual
		if change.Capacity == 0 {
			mode = models.CapacityModeAutomatic
		}
		allocated, err := CapSeats(*venue, mode, change.Capacity)
		if err != nil {
			return err
		}

		next := *current
		next.VenueID = venue.ID
		next.ExamDate = date
		next.StartTime = change.StartTime
		next.EndTime = change.EndTime
		next.AllocatedCapacity = allocated
		if next.VenueID != current.VenueID || next.AllocatedCapacity < current.AssignedCount {
			if err := s.seats.DeleteByBooking(ctx, tx, bookingID); err != nil {
				return storageError(err, "failed to clear seat assignments")
			}
			next.AssignedCount = 0
		}

		if err := s.bookings.Update(ctx, tx, &next); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
			}
			if database.IsOverlapViolation(err) {
				return newConflictError(venue.ID, date, change.StartTime, change.EndTime, nil)
			}
			return storageError(err, "failed to update booking")
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteBooking removes a booking and its seats without further checks.
func (s *ScheduleStore) DeleteBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	var removed *models.Booking
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		booking, err := s.bookings.FindByID(ctx, tx, bookingID)
		if err != nil {
			return notFoundOr(err, "booking")
		}
		if err := s.bookings.LockExamination(ctx, tx, booking.ExaminationID); err != nil {
			return storageError(err, "failed to lock examination")
		}
		if err := s.seats.DeleteByBooking(ctx, tx, bookingID); err != nil {
			return storageError(err, "failed to clear seat assignments")
		}
		if err := s.bookings.Delete(ctx, tx, bookingID); err != nil {
			return notFoundOr(err, "booking")
		}
		removed = booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// DeleteExaminationBookings cancels an examination's schedule and reports how many bookings were removed.
func (s *ScheduleStore) DeleteExaminationBookings(ctx context.Context, examinationID string) (int64, error) {
	var removed int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.bookings.LockExamination(ctx, tx, examinationID); err != nil {
			return storageError(err, "failed to lock examination")
		}
		if err := s.seats.DeleteByExamination(ctx, tx, examinationID); err != nil {
			return storageError(err, "failed to clear seat assignments")
		}
		var err error
		removed, err = s.bookings.DeleteByExamination(ctx, tx, examinationID)
		if err != nil {
			return storageError(err, "failed to delete bookings")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *ScheduleStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.bookings.BeginTxx(ctx, nil)
	if err != nil {
		return storageError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return storageError(err, "failed to commit booking transaction")
	}
	return nil
}

// insertChecked validates each row against stored bookings and earlier rows of the batch before inserting it.
func (s *ScheduleStore) insertChecked(ctx context.Context, tx *sqlx.Tx, examinationID string, rows []models.ProposedBooking) ([]models.Booking, error) {
	created := make([]models.Booking, 0, len(rows))
	for _, row := range rows {
		date := models.NormalizeDate(row.ExamDate)

		details, err := s.bookings.FindConflicts(ctx, tx, row.VenueID, date, row.StartTime, row.EndTime, "")
		if err != nil {
			return nil, storageError(err, "failed to check venue conflicts")
		}
		if len(details) > 0 {
			return nil, newConflictError(row.VenueID, date, row.StartTime, row.EndTime, conflictsFromDetails(details))
		}
		for _, prior := range created {
			if prior.VenueID == row.VenueID && prior.ExamDate.Equal(date) && models.Overlaps(prior.StartTime, prior.EndTime, row.StartTime, row.EndTime) {
				return nil, newConflictError(row.VenueID, date, row.StartTime, row.EndTime, []models.BookingConflict{{
					BookingID:     prior.ID,
					ExaminationID: prior.ExaminationID,
					VenueID:       prior.VenueID,
					ExamDate:      date.Format(models.DateLayout),
					StartTime:     prior.StartTime,
					EndTime:       prior.EndTime,
				}})
			}
		}

		booking := models.Booking{
			ExaminationID:     examinationID,
			VenueID:           row.VenueID,
			ExamDate:          date,
			StartTime:         row.StartTime,
			EndTime:           row.EndTime,
			AllocatedCapacity: row.AllocatedCapacity,
		}
		if err := s.bookings.Insert(ctx, tx, &booking); err != nil {
			if database.IsOverlapViolation(err) {
				return nil, newConflictError(row.VenueID, date, row.StartTime, row.EndTime, nil)
			}
			return nil, storageError(err, "failed to insert booking")
		}
		created = append(created, booking)
	}
	return created, nil
}

type venueDay struct {
	venueID string
	date    time.Time
}

// lockVenueDays takes the advisory locks in a stable order so concurrent writers cannot deadlock.
func (s *ScheduleStore) lockVenueDays(ctx context.Context, tx *sqlx.Tx, keys []venueDay) error {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].venueID != keys[j].venueID {
			return keys[i].venueID < keys[j].venueID
		}
		return keys[i].date.Before(keys[j].date)
	})
	var last *venueDay
	for i := range keys {
		if last != nil && last.venueID == keys[i].venueID && last.date.Equal(keys[i].date) {
			continue
		}
		if err := s.bookings.LockVenueDay(ctx, tx, keys[i].venueID, keys[i].date); err != nil {
			return storageError(err, "failed to lock venue")
		}
		last = &keys[i]
	}
	return nil
}

func venueDaysOf(rows []models.ProposedBooking, existing []models.Booking) []venueDay {
	keys := make([]venueDay, 0, len(rows)+len(existing))
	for _, r := range rows {
		keys = append(keys, venueDay{venueID: r.VenueID, date: models.NormalizeDate(r.ExamDate)})
	}
	for _, b := range existing {
		keys = append(keys, venueDay{venueID: b.VenueID, date: models.NormalizeDate(b.ExamDate)})
	}
	return keys
}

func validateProposedRows(rows []models.ProposedBooking) error {
	if len(rows) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "at least one booking is required")
	}
	for _, row := range rows {
		if row.VenueID == "" {
			return appErrors.Clone(appErrors.ErrValidation, "venue is required for every booking")
		}
		if row.StartTime >= row.EndTime {
			return appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
		}
		if row.AllocatedCapacity < 1 {
			return appErrors.Clone(appErrors.ErrInvalidCapacity, "allocated capacity must be at least 1")
		}
	}
	return nil
}

func conflictsFromDetails(details []models.BookingDetail) []models.BookingConflict {
	out := make([]models.BookingConflict, 0, len(details))
	for _, d := range details {
		out = append(out, models.ConflictFromDetail(d))
	}
	return out
}
