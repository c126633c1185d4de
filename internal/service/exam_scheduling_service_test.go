package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-venue-api/internal/dto"
	"github.com/noah-isme/exam-venue-api/internal/models"
	appErrors "github.com/noah-isme/exam-venue-api/pkg/errors"
)

type schedulingFixture struct {
	svc      *ExamSchedulingService
	bookings *memoryBookingRepo
	seats    *memorySeatRepo
	metrics  *MetricsService
	expect   func(commit bool)
}

func newSchedulingFixture(t *testing.T, demand int, venues []models.Venue, existing ...models.Booking) schedulingFixture {
	db, mock := newSQLMock(t)
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })

	bookings := &memoryBookingRepo{db: db, bookings: existing}
	seats := &memorySeatRepo{}
	venueRepo := newVenueRepoStub(venues...)
	exams := singleExam()
	enrollment := enrollmentStub{students: studentIDs(demand)}
	periods := NewPeriodValidator(periodRepoStub{period: februaryPeriod()}, nil)
	detector := NewConflictDetector(bookings, nil)
	metrics := NewMetricsService()

	svc := NewExamSchedulingService(
		exams,
		enrollment,
		periods,
		detector,
		NewVenueAllocator(venueRepo, detector, nil, 50),
		NewScheduleStore(bookings, seats, periods, venueRepo, nil),
		NewSeatAssigner(exams, enrollment, bookings, seats, nil),
		nil,
		metrics,
		nil,
		nil,
		SchedulingConfig{TxTimeout: time.Second},
	)
	expect := func(commit bool) {
		mock.ExpectBegin()
		if commit {
			mock.ExpectCommit()
		} else {
			mock.ExpectRollback()
		}
	}
	return schedulingFixture{svc: svc, bookings: bookings, seats: seats, metrics: metrics, expect: expect}
}

func bookingRequest(primary string, candidates ...string) dto.BookingRequest {
	return dto.BookingRequest{
		ExamDate:          "2025-02-10",
		StartTime:         "10:00",
		EndTime:           "12:00",
		PrimaryVenueID:    primary,
		CandidateVenueIDs: candidates,
	}
}

func TestExamSchedulingValidateDate(t *testing.T) {
	f := newSchedulingFixture(t, 10, nil)

	resp, err := f.svc.ValidateDate(context.Background(), "exam-1", dto.DateCheckRequest{ExamDate: "2025-02-10"})
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.Equal(t, "2025-02-01", resp.Period.StartDate)

	_, err = f.svc.ValidateDate(context.Background(), "exam-1", dto.DateCheckRequest{ExamDate: "2025-01-05"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrOutOfPeriod.Code))

	_, err = f.svc.ValidateDate(context.Background(), "exam-1", dto.DateCheckRequest{ExamDate: "10/02/2025"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}

func TestExamSchedulingPreviewManualMode(t *testing.T) {
	f := newSchedulingFixture(t, 70, []models.Venue{venue("primary", 50), venue("candidate", 30)})

	req := bookingRequest("primary", "candidate")
	req.CapacityMode = "MANUAL"
	req.ManualCapacity = 20
	preview, warnings, err := f.svc.PreviewAllocation(context.Background(), "exam-1", req)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, preview.Venues, 2)
	assert.Equal(t, 50, preview.Venues[0].AllocatedCapacity)
	assert.Equal(t, 20, preview.Venues[1].AllocatedCapacity)
	assert.Equal(t, 70, preview.TotalAllocated)
	assert.Zero(t, preview.Shortfall)
	assert.Empty(t, f.bookings.bookings)
}

func TestExamSchedulingBookWithShortfall(t *testing.T) {
	f := newSchedulingFixture(t, 100, []models.Venue{venue("primary", 40)})
	f.expect(true)

	schedule, warnings, err := f.svc.BookExamination(context.Background(), "exam-1", bookingRequest("primary"))
	require.NoError(t, err)
	require.Len(t, schedule.Bookings, 1)
	assert.Equal(t, models.ScheduleStatusPartial, schedule.Status)
	assert.Equal(t, 60, schedule.Shortfall)
	assert.Equal(t, "2025-02-10", schedule.Bookings[0].ExamDate)
	require.Len(t, warnings, 1)
	assert.Equal(t, models.WarningInsufficientCapacity, warnings[0].Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.bookingsCreated))
	assert.Equal(t, 60.0, testutil.ToFloat64(f.metrics.shortfallSeats))
}

func TestExamSchedulingBookConflict(t *testing.T) {
	f := newSchedulingFixture(t, 30, []models.Venue{venue("a", 50)}, models.Booking{
		ID: "bk-1", ExaminationID: "exam-2", VenueID: "a", ExamDate: day("2025-02-10"),
		StartTime: clock("10:00"), EndTime: clock("12:00"), AllocatedCapacity: 50,
	})

	req := bookingRequest("a")
	req.StartTime, req.EndTime = "11:00", "13:00"
	_, _, err := f.svc.BookExamination(context.Background(), "exam-1", req)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConflict.Code))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.conflicts.WithLabelValues("allocate")))
}

func TestExamSchedulingRejectsBadCapacityBeforeStorage(t *testing.T) {
	f := newSchedulingFixture(t, 30, []models.Venue{venue("a", 50)})

	req := bookingRequest("a")
	req.CapacityMode = "MANUAL"
	_, _, err := f.svc.BookExamination(context.Background(), "exam-1", req)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidCapacity.Code))

	req.CapacityMode = "ELASTIC"
	_, _, err = f.svc.PreviewAllocation(context.Background(), "exam-1", req)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidCapacity.Code))
}

func TestExamSchedulingReplaceRunsFullPipeline(t *testing.T) {
	f := newSchedulingFixture(t, 70, []models.Venue{venue("a", 50), venue("b", 30)},
		models.Booking{ID: "bk-1", ExaminationID: "exam-1", VenueID: "a", ExamDate: day("2025-02-10"), StartTime: clock("10:00"), EndTime: clock("12:00"), AllocatedCapacity: 50},
	)
	f.expect(true)

	schedule, warnings, err := f.svc.ReplaceBookings(context.Background(), "exam-1", bookingRequest("a", "b"))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, models.ScheduleStatusFull, schedule.Status)
	assert.Equal(t, 80, schedule.TotalAllocated)
	require.Len(t, schedule.Bookings, 2)
}

func TestExamSchedulingGetScheduleAndCancel(t *testing.T) {
	f := newSchedulingFixture(t, 10, []models.Venue{venue("a", 50)})

	schedule, err := f.svc.GetSchedule(context.Background(), "exam-1")
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusUnscheduled, schedule.Status)
	assert.Empty(t, schedule.Bookings)

	f.expect(true)
	_, _, err = f.svc.BookExamination(context.Background(), "exam-1", bookingRequest("a"))
	require.NoError(t, err)

	f.expect(true)
	result, err := f.svc.CancelExamination(context.Background(), "exam-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Removed)
	assert.Equal(t, models.ScheduleStatusCancelled, result.Status)

	_, err = f.svc.GetSchedule(context.Background(), "exam-404")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
}

func TestExamSchedulingUpdateAndDeleteBooking(t *testing.T) {
	f := newSchedulingFixture(t, 10, []models.Venue{venue("a", 50), venue("b", 30)},
		models.Booking{ID: "bk-1", ExaminationID: "exam-1", VenueID: "a", ExamDate: day("2025-02-10"), StartTime: clock("10:00"), EndTime: clock("12:00"), AllocatedCapacity: 50},
	)

	f.expect(true)
	view, err := f.svc.UpdateBooking(context.Background(), "bk-1", dto.UpdateBookingRequest{
		VenueID: "b", ExamDate: "2025-02-12", StartTime: "09:00", EndTime: "11:00", Capacity: 25,
	})
	require.NoError(t, err)
	assert.Equal(t, "b", view.VenueID)
	assert.Equal(t, "2025-02-12", view.ExamDate)
	assert.Equal(t, 25, view.AllocatedCapacity)

	_, err = f.svc.UpdateBooking(context.Background(), "bk-1", dto.UpdateBookingRequest{VenueID: "b"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))

	f.expect(true)
	require.NoError(t, f.svc.DeleteBooking(context.Background(), "bk-1"))
	assert.Empty(t, f.bookings.bookings)
}

func TestExamSchedulingVenueConflicts(t *testing.T) {
	f := newSchedulingFixture(t, 10, nil, models.Booking{
		ID: "bk-1", ExaminationID: "exam-2", VenueID: "a", ExamDate: day("2025-02-10"),
		StartTime: clock("10:00"), EndTime: clock("12:00"), AllocatedCapacity: 50,
	})

	result, err := f.svc.VenueConflicts(context.Background(), "a", dto.ConflictQuery{Date: "2025-02-10", StartTime: "11:00", EndTime: "13:00"})
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "bk-1", result.Conflicts[0].BookingID)

	_, err = f.svc.VenueConflicts(context.Background(), "a", dto.ConflictQuery{Date: "2025-02-10", StartTime: "13:00", EndTime: "11:00"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}

func TestExamSchedulingAssignSeatsWarnsUnseated(t *testing.T) {
	f := newSchedulingFixture(t, 60, []models.Venue{venue("a", 50)},
		models.Booking{ID: "bk-1", ExaminationID: "exam-1", VenueID: "a", ExamDate: day("2025-02-10"), StartTime: clock("10:00"), EndTime: clock("12:00"), AllocatedCapacity: 50},
	)
	f.expect(true)

	seatMap, warnings, err := f.svc.AssignSeats(context.Background(), "exam-1")
	require.NoError(t, err)
	assert.Equal(t, 50, seatMap.AssignedCount)
	assert.Equal(t, 10, seatMap.UnassignedCount)
	require.Len(t, warnings, 1)
	assert.Equal(t, models.WarningUnseatedStudents, warnings[0].Code)
	assert.Equal(t, 50.0, testutil.ToFloat64(f.metrics.seatsAssigned))

	stored, _, err := f.svc.GetSeatMap(context.Background(), "exam-1")
	require.NoError(t, err)
	assert.Equal(t, 50, stored.AssignedCount)
}

func TestProjectStatus(t *testing.T) {
	assert.Equal(t, models.ScheduleStatusUnscheduled, ProjectStatus(nil, 10))
	assert.Equal(t, models.ScheduleStatusPartial, ProjectStatus([]models.Booking{{AllocatedCapacity: 5}}, 10))
	assert.Equal(t, models.ScheduleStatusFull, ProjectStatus([]models.Booking{{AllocatedCapacity: 5}, {AllocatedCapacity: 5}}, 10))
}
