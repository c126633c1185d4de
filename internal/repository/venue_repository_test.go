package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var venueRowColumns = []string{"id", "code", "name", "capacity", "is_available"}

func newVenueRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestVenueRepositoryGetVenue(t *testing.T) {
	db, mock, cleanup := newVenueRepoMock(t)
	defer cleanup()
	repo := NewVenueRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, code, name, capacity, is_available FROM venues WHERE id = $1")).
		WithArgs("venue-a").
		WillReturnRows(sqlmock.NewRows(venueRowColumns).AddRow("venue-a", "LT-A", "Lecture Theatre A", 50, true))

	venue, err := repo.GetVenue(context.Background(), "venue-a")
	require.NoError(t, err)
	assert.Equal(t, 50, venue.Capacity)
	assert.True(t, venue.IsAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVenueRepositoryGetVenueMissing(t *testing.T) {
	db, mock, cleanup := newVenueRepoMock(t)
	defer cleanup()
	repo := NewVenueRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM venues WHERE id = $1")).
		WithArgs("venue-x").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetVenue(context.Background(), "venue-x")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestVenueRepositoryGetVenues(t *testing.T) {
	db, mock, cleanup := newVenueRepoMock(t)
	defer cleanup()
	repo := NewVenueRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM venues WHERE id = ANY($1) ORDER BY id ASC")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(venueRowColumns).
			AddRow("venue-a", "LT-A", "Lecture Theatre A", 50, true).
			AddRow("venue-b", "LT-B", "Lecture Theatre B", 30, false))

	venues, err := repo.GetVenues(context.Background(), []string{"venue-a", "venue-b"})
	require.NoError(t, err)
	require.Len(t, venues, 2)
	assert.False(t, venues[1].IsAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVenueRepositoryListAvailableVenuesDefaultsLimit(t *testing.T) {
	db, mock, cleanup := newVenueRepoMock(t)
	defer cleanup()
	repo := NewVenueRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE is_available = TRUE ORDER BY capacity DESC, id ASC LIMIT $1")).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows(venueRowColumns).AddRow("venue-a", "LT-A", "Lecture Theatre A", 120, true))

	venues, err := repo.ListAvailableVenues(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, venues, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
