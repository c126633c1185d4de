package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-venue-api/internal/models"
)

var bookingRowColumns = []string{"id", "examination_id", "venue_id", "exam_date", "start_time", "end_time", "allocated_capacity", "assigned_count", "created_at", "updated_at"}

func newBookingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func examDay() time.Time {
	return time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
}

func TestBookingRepositoryFindConflicts(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	rows := sqlmock.NewRows(append(append([]string{}, bookingRowColumns...), "course_code", "venue_code")).
		AddRow("bk-1", "exam-1", "venue-a", examDay(), "10:00:00", "12:00:00", 50, 0, time.Now(), time.Now(), "CSC201", "LT-A")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.venue_id = $1 AND b.exam_date = $2::date AND b.start_time < $4 AND $3 < b.end_time ORDER BY b.start_time ASC")).
		WithArgs("venue-a", "2025-02-10", models.MustClockTime("11:00"), models.MustClockTime("13:00")).
		WillReturnRows(rows)

	conflicts, err := repo.FindConflicts(context.Background(), nil, "venue-a", examDay(), models.MustClockTime("11:00"), models.MustClockTime("13:00"), "")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "CSC201", conflicts[0].CourseCode)
	assert.Equal(t, "LT-A", conflicts[0].VenueCode)
	assert.Equal(t, "10:00", conflicts[0].StartTime.String())
	assert.Equal(t, "12:00", conflicts[0].EndTime.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryFindConflictsExcludesOwnRow(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AND b.id <> $5 ORDER BY b.start_time ASC")).
		WithArgs("venue-a", "2025-02-10", models.MustClockTime("10:00"), models.MustClockTime("12:00"), "bk-1").
		WillReturnRows(sqlmock.NewRows(bookingRowColumns))

	conflicts, err := repo.FindConflicts(context.Background(), nil, "venue-a", examDay(), models.MustClockTime("10:00"), models.MustClockTime("12:00"), "bk-1")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryBusyVenueIDs(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT b.venue_id FROM exam_bookings b WHERE b.venue_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg(), "2025-02-10", models.MustClockTime("09:00"), models.MustClockTime("11:00"), "exam-9").
		WillReturnRows(sqlmock.NewRows([]string{"venue_id"}).AddRow("venue-b"))

	busy, err := repo.BusyVenueIDs(context.Background(), []string{"venue-a", "venue-b"}, examDay(), models.MustClockTime("09:00"), models.MustClockTime("11:00"), "exam-9")
	require.NoError(t, err)
	assert.Equal(t, []string{"venue-b"}, busy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryBusyVenueIDsEmptyInput(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	busy, err := repo.BusyVenueIDs(context.Background(), nil, examDay(), models.MustClockTime("09:00"), models.MustClockTime("11:00"), "")
	require.NoError(t, err)
	assert.Nil(t, busy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryInsertWithinTransaction(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("venue:venue-a:2025-02-10").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO exam_bookings")).
		WithArgs(sqlmock.AnyArg(), "exam-1", "venue-a", "2025-02-10", models.MustClockTime("10:00"), models.MustClockTime("12:00"), 50, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := repo.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.LockVenueDay(context.Background(), tx, "venue-a", examDay()))

	booking := &models.Booking{
		ExaminationID:     "exam-1",
		VenueID:           "venue-a",
		ExamDate:          examDay(),
		StartTime:         models.MustClockTime("10:00"),
		EndTime:           models.MustClockTime("12:00"),
		AllocatedCapacity: 50,
	}
	require.NoError(t, repo.Insert(context.Background(), tx, booking))
	require.NoError(t, tx.Commit())
	assert.NotEmpty(t, booking.ID)
	assert.False(t, booking.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM exam_bookings WHERE id = $1")).
		WithArgs("bk-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), nil, "bk-404")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryDeleteByExamination(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM exam_bookings WHERE examination_id = $1")).
		WithArgs("exam-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := repo.DeleteByExamination(context.Background(), nil, "exam-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryListByExamination(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	rows := sqlmock.NewRows(bookingRowColumns).
		AddRow("bk-1", "exam-1", "venue-a", examDay(), "10:00:00", "12:00:00", 50, 50, time.Now(), time.Now()).
		AddRow("bk-2", "exam-1", "venue-b", examDay(), "10:00:00", "12:00:00", 20, 18, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM exam_bookings b WHERE b.examination_id = $1 ORDER BY b.venue_id ASC, b.id ASC")).
		WithArgs("exam-1").
		WillReturnRows(rows)

	bookings, err := repo.ListByExamination(context.Background(), nil, "exam-1")
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, 18, bookings[1].AssignedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockKeys(t *testing.T) {
	assert.Equal(t, "venue:v-1:2025-02-10", VenueDayLockKey("v-1", examDay()))
	assert.Equal(t, "exam:exam-1", ExaminationLockKey("exam-1"))
}
