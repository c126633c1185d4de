package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-venue-api/internal/models"
)

func day(raw string) time.Time {
	d, err := models.ParseDate(raw)
	if err != nil {
		panic(err)
	}
	return d
}

func clock(raw string) models.ClockTime {
	return models.MustClockTime(raw)
}

func venue(id string, capacity int) models.Venue {
	return models.Venue{ID: id, Code: "V-" + id, Name: "Venue " + id, Capacity: capacity, IsAvailable: true}
}

func newSQLMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

// memoryBookingRepo keeps bookings in memory; BeginTxx delegates to sqlmock so commit and rollback are observable.
type memoryBookingRepo struct {
	db        *sqlx.DB
	bookings  []models.Booking
	locks     []string
	insertErr error
	nextID    int
}

func (r *memoryBookingRepo) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, opts)
}

func (r *memoryBookingRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error) {
	for _, b := range r.bookings {
		if b.ID == id {
			found := b
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memoryBookingRepo) FindConflicts(ctx context.Context, exec sqlx.ExtContext, venueID string, date time.Time, start, end models.ClockTime, excludeBookingID string) ([]models.BookingDetail, error) {
	var out []models.BookingDetail
	for _, b := range r.bookings {
		if b.VenueID != venueID || !b.ExamDate.Equal(date) || b.ID == excludeBookingID {
			continue
		}
		if models.Overlaps(b.StartTime, b.EndTime, start, end) {
			out = append(out, models.BookingDetail{Booking: b, CourseCode: "C-" + b.ExaminationID, VenueCode: "V-" + b.VenueID})
		}
	}
	return out, nil
}

func (r *memoryBookingRepo) BusyVenueIDs(ctx context.Context, venueIDs []string, date time.Time, start, end models.ClockTime, ignoreExaminationID string) ([]string, error) {
	wanted := make(map[string]struct{}, len(venueIDs))
	for _, id := range venueIDs {
		wanted[id] = struct{}{}
	}
	seen := map[string]struct{}{}
	var out []string
	for _, b := range r.bookings {
		if _, ok := wanted[b.VenueID]; !ok || b.ExaminationID == ignoreExaminationID || !b.ExamDate.Equal(date) {
			continue
		}
		if _, dup := seen[b.VenueID]; dup {
			continue
		}
		if models.Overlaps(b.StartTime, b.EndTime, start, end) {
			seen[b.VenueID] = struct{}{}
			out = append(out, b.VenueID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *memoryBookingRepo) ListByExamination(ctx context.Context, exec sqlx.ExtContext, examinationID string) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range r.bookings {
		if b.ExaminationID == examinationID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VenueID != out[j].VenueID {
			return out[i].VenueID < out[j].VenueID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryBookingRepo) Insert(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.nextID++
	booking.ID = fmt.Sprintf("bk-%d", r.nextID)
	r.bookings = append(r.bookings, *booking)
	return nil
}

func (r *memoryBookingRepo) Update(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	for i := range r.bookings {
		if r.bookings[i].ID == booking.ID {
			r.bookings[i] = *booking
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *memoryBookingRepo) UpdateAssignedCount(ctx context.Context, exec sqlx.ExtContext, id string, count int) error {
	for i := range r.bookings {
		if r.bookings[i].ID == id {
			r.bookings[i].AssignedCount = count
		}
	}
	return nil
}

func (r *memoryBookingRepo) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	for i := range r.bookings {
		if r.bookings[i].ID == id {
			r.bookings = append(r.bookings[:i], r.bookings[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *memoryBookingRepo) DeleteByExamination(ctx context.Context, exec sqlx.ExtContext, examinationID string) (int64, error) {
	kept := r.bookings[:0]
	var removed int64
	for _, b := range r.bookings {
		if b.ExaminationID == examinationID {
			removed++
			continue
		}
		kept = append(kept, b)
	}
	r.bookings = kept
	return removed, nil
}

func (r *memoryBookingRepo) LockVenueDay(ctx context.Context, exec sqlx.ExtContext, venueID string, date time.Time) error {
	r.locks = append(r.locks, "venue:"+venueID+":"+date.Format(models.DateLayout))
	return nil
}

func (r *memoryBookingRepo) LockExamination(ctx context.Context, exec sqlx.ExtContext, examinationID string) error {
	r.locks = append(r.locks, "exam:"+examinationID)
	return nil
}

type memorySeatRepo struct {
	seats []models.SeatAssignment
}

func (r *memorySeatRepo) DeleteByExamination(ctx context.Context, exec sqlx.ExtContext, examinationID string) error {
	kept := r.seats[:0]
	for _, s := range r.seats {
		if s.ExaminationID != examinationID {
			kept = append(kept, s)
		}
	}
	r.seats = kept
	return nil
}

func (r *memorySeatRepo) DeleteByBooking(ctx context.Context, exec sqlx.ExtContext, bookingID string) error {
	kept := r.seats[:0]
	for _, s := range r.seats {
		if s.BookingID != bookingID {
			kept = append(kept, s)
		}
	}
	r.seats = kept
	return nil
}

func (r *memorySeatRepo) InsertBatch(ctx context.Context, exec sqlx.ExtContext, seats []models.SeatAssignment) error {
	r.seats = append(r.seats, seats...)
	return nil
}

func (r *memorySeatRepo) ListByExamination(ctx context.Context, examinationID string) ([]models.SeatAssignment, error) {
	var out []models.SeatAssignment
	for _, s := range r.seats {
		if s.ExaminationID == examinationID {
			out = append(out, s)
		}
	}
	return out, nil
}

type venueRepoStub struct {
	venues    map[string]models.Venue
	available []models.Venue
	listed    bool
}

func newVenueRepoStub(venues ...models.Venue) *venueRepoStub {
	stub := &venueRepoStub{venues: make(map[string]models.Venue)}
	for _, v := range venues {
		stub.venues[v.ID] = v
		if v.IsAvailable {
			stub.available = append(stub.available, v)
		}
	}
	return stub
}

func (s *venueRepoStub) GetVenue(ctx context.Context, id string) (*models.Venue, error) {
	v, ok := s.venues[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &v, nil
}

func (s *venueRepoStub) GetVenues(ctx context.Context, ids []string) ([]models.Venue, error) {
	var out []models.Venue
	for _, id := range ids {
		if v, ok := s.venues[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *venueRepoStub) ListAvailableVenues(ctx context.Context, limit int) ([]models.Venue, error) {
	s.listed = true
	return s.available, nil
}

type periodRepoStub struct {
	period *models.ExamPeriod
	err    error
}

func (s periodRepoStub) GetPeriodForExamination(ctx context.Context, examinationID string) (*models.ExamPeriod, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.period, nil
}

func februaryPeriod() *models.ExamPeriod {
	return &models.ExamPeriod{
		ID:        "period-1",
		Name:      "Harmattan 2024/2025",
		StartDate: day("2025-02-01"),
		EndDate:   day("2025-02-20"),
		IsActive:  true,
	}
}

type examRepoStub struct {
	exams map[string]models.Examination
}

func (s examRepoStub) FindByID(ctx context.Context, id string) (*models.Examination, error) {
	exam, ok := s.exams[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &exam, nil
}

func singleExam() examRepoStub {
	return examRepoStub{exams: map[string]models.Examination{
		"exam-1": {ID: "exam-1", CourseID: "course-1", CourseCode: "CSC201", ExamPeriodID: "period-1", ExamType: models.ExamTypeFinal},
	}}
}

type enrollmentStub struct {
	students []string
}

func (s enrollmentStub) CountRegistered(ctx context.Context, courseID, examPeriodID string) (int, error) {
	return len(s.students), nil
}

func (s enrollmentStub) ListRegisteredStudents(ctx context.Context, courseID, examPeriodID string) ([]string, error) {
	return s.students, nil
}

func studentIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("stu-%03d", i+1)
	}
	return ids
}
