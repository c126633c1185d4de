package service

import (
	"context"
	"database/sql"
	"sort"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-venue-api/internal/dto"
	"github.com/noah-isme/exam-venue-api/internal/models"
)

type seatBookingRepository interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	ListByExamination(ctx context.Context, exec sqlx.ExtContext, examinationID string) ([]models.Booking, error)
	UpdateAssignedCount(ctx context.Context, exec sqlx.ExtContext, id string, count int) error
	LockExamination(ctx context.Context, exec sqlx.ExtContext, examinationID string) error
}

type seatRepository interface {
	DeleteByExamination(ctx context.Context, exec sqlx.ExtContext, examinationID string) error
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, seats []models.SeatAssignment) error
	ListByExamination(ctx context.Context, examinationID string) ([]models.SeatAssignment, error)
}

type examinationReader interface {
	FindByID(ctx context.Context, id string) (*models.Examination, error)
}

type registeredStudentLister interface {
	ListRegisteredStudents(ctx context.Context, courseID, examPeriodID string) ([]string, error)
}

// SeatPlan is the outcome of distributing students over bookings.
type SeatPlan struct {
	Seats      []models.SeatAssignment
	Counts     map[string]int
	Unassigned []string
}

// DistributeSeats fills bookings in venue id order up to their allocated capacity.
// Students are taken in id order; seat numbers start at 1 within each booking.
func DistributeSeats(examinationID string, bookings []models.Booking, students []string) SeatPlan {
	ordered := append([]models.Booking(nil), bookings...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].VenueID != ordered[j].VenueID {
			return ordered[i].VenueID < ordered[j].VenueID
		}
		return ordered[i].ID < ordered[j].ID
	})
	queue := append([]string(nil), students...)
	sort.Strings(queue)

	plan := SeatPlan{Counts: make(map[string]int, len(ordered))}
	next := 0
	for _, booking := range ordered {
		plan.Counts[booking.ID] = 0
		for seat := 1; seat <= booking.AllocatedCapacity && next < len(queue); seat++ {
			plan.Seats = append(plan.Seats, models.SeatAssignment{
				ExaminationID: examinationID,
				BookingID:     booking.ID,
				StudentID:     queue[next],
				SeatNumber:    seat,
			})
			plan.Counts[booking.ID]++
			next++
		}
	}
	if next < len(queue) {
		plan.Unassigned = queue[next:]
	}
	return plan
}

// SeatAssigner persists the seat distribution of an examination.
type SeatAssigner struct {
	exams    examinationReader
	students registeredStudentLister
	bookings seatBookingRepository
	seats    seatRepository
	logger   *zap.Logger
}

// NewSeatAssigner wires the assigner.
func NewSeatAssigner(exams examinationReader, students registeredStudentLister, bookings seatBookingRepository, seats seatRepository, logger *zap.Logger) *SeatAssigner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeatAssigner{exams: exams, students: students, bookings: bookings, seats: seats, logger: logger}
}

// AssignSeats recomputes every seat of the examination. Running it twice yields the same rows.
func (s *SeatAssigner) AssignSeats(ctx context.Context, examinationID string) (*dto.SeatMap, error) {
	exam, err := s.exams.FindByID(ctx, examinationID)
	if err != nil {
		return nil, notFoundOr(err, "examination")
	}
	students, err := s.students.ListRegisteredStudents(ctx, exam.CourseID, exam.ExamPeriodID)
	if err != nil {
		return nil, storageError(err, "failed to list registered students")
	}

	tx, err := s.bookings.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.bookings.LockExamination(ctx, tx, examinationID); err != nil {
		err = storageError(err, "failed to lock examination")
		return nil, err
	}
	bookings, err := s.bookings.ListByExamination(ctx, tx, examinationID)
	if err != nil {
		err = storageError(err, "failed to list bookings")
		return nil, err
	}

	plan := DistributeSeats(examinationID, bookings, students)
	if err = s.seats.DeleteByExamination(ctx, tx, examinationID); err != nil {
		err = storageError(err, "failed to clear seat assignments")
		return nil, err
	}
	if err = s.seats.InsertBatch(ctx, tx, plan.Seats); err != nil {
		err = storageError(err, "failed to store seat assignments")
		return nil, err
	}
	for _, booking := range bookings {
		if err = s.bookings.UpdateAssignedCount(ctx, tx, booking.ID, plan.Counts[booking.ID]); err != nil {
			err = storageError(err, "failed to update assigned count")
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		err = storageError(err, "failed to commit seat assignment")
		return nil, err
	}

	if len(plan.Unassigned) > 0 {
		s.logger.Warn("students left without a seat",
			zap.String("examination_id", examinationID),
			zap.Int("unassigned", len(plan.Unassigned)),
		)
	}
	return buildSeatMap(examinationID, bookings, plan.Seats, plan.Unassigned), nil
}

// GetSeatMap reads the persisted seat distribution.
func (s *SeatAssigner) GetSeatMap(ctx context.Context, examinationID string) (*dto.SeatMap, error) {
	exam, err := s.exams.FindByID(ctx, examinationID)
	if err != nil {
		return nil, notFoundOr(err, "examination")
	}
	bookings, err := s.bookings.ListByExamination(ctx, nil, examinationID)
	if err != nil {
		return nil, storageError(err, "failed to list bookings")
	}
	seats, err := s.seats.ListByExamination(ctx, examinationID)
	if err != nil {
		return nil, storageError(err, "failed to list seat assignments")
	}
	students, err := s.students.ListRegisteredStudents(ctx, exam.CourseID, exam.ExamPeriodID)
	if err != nil {
		return nil, storageError(err, "failed to list registered students")
	}

	seated := make(map[string]struct{}, len(seats))
	for _, seat := range seats {
		seated[seat.StudentID] = struct{}{}
	}
	unassigned := make([]string, 0)
	for _, id := range students {
		if _, ok := seated[id]; !ok {
			unassigned = append(unassigned, id)
		}
	}
	sort.Strings(unassigned)
	return buildSeatMap(examinationID, bookings, seats, unassigned), nil
}

func buildSeatMap(examinationID string, bookings []models.Booking, seats []models.SeatAssignment, unassigned []string) *dto.SeatMap {
	ordered := append([]models.SeatAssignment(nil), seats...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].BookingID != ordered[j].BookingID {
			return ordered[i].BookingID < ordered[j].BookingID
		}
		return ordered[i].SeatNumber < ordered[j].SeatNumber
	})

	byBooking := make(map[string][]string, len(bookings))
	for _, b := range bookings {
		byBooking[b.ID] = []string{}
	}
	for _, seat := range ordered {
		byBooking[seat.BookingID] = append(byBooking[seat.BookingID], seat.StudentID)
	}

	sortedBookings := append([]models.Booking(nil), bookings...)
	sort.SliceStable(sortedBookings, func(i, j int) bool {
		if sortedBookings[i].VenueID != sortedBookings[j].VenueID {
			return sortedBookings[i].VenueID < sortedBookings[j].VenueID
		}
		return sortedBookings[i].ID < sortedBookings[j].ID
	})
	rows := make([]dto.BookingSeats, 0, len(sortedBookings))
	for _, b := range sortedBookings {
		rows = append(rows, dto.BookingSeats{
			BookingID:         b.ID,
			VenueID:           b.VenueID,
			AllocatedCapacity: b.AllocatedCapacity,
			StudentIDs:        byBooking[b.ID],
		})
	}

	if unassigned == nil {
		unassigned = []string{}
	}
	return &dto.SeatMap{
		ExaminationID:   examinationID,
		Assignments:     byBooking,
		Bookings:        rows,
		AssignedCount:   len(seats),
		UnassignedCount: len(unassigned),
		Unassigned:      unassigned,
	}
}
