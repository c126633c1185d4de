package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-venue-api/internal/models"
	appErrors "github.com/noah-isme/exam-venue-api/pkg/errors"
)

func TestSelectVenuesPrimaryCoversDemand(t *testing.T) {
	primary := venue("a", 50)

	got := SelectVenues(50, primary, []models.Venue{venue("b", 30)}, nil)
	assert.Equal(t, []string{"a"}, got.VenueIDs())
	assert.Zero(t, got.Shortfall)
}

func TestSelectVenuesAddsCandidate(t *testing.T) {
	got := SelectVenues(70, venue("a", 50), []models.Venue{venue("b", 30)}, nil)
	assert.Equal(t, []string{"a", "b"}, got.VenueIDs())
	assert.Zero(t, got.Shortfall)
}

func TestSelectVenuesReportsShortfall(t *testing.T) {
	got := SelectVenues(100, venue("a", 40), nil, nil)
	assert.Equal(t, []string{"a"}, got.VenueIDs())
	assert.Equal(t, 60, got.Shortfall)
}

func TestSelectVenuesLargestFirstTiesById(t *testing.T) {
	candidates := []models.Venue{venue("d", 20), venue("c", 40), venue("b", 40), venue("e", 10)}

	got := SelectVenues(110, venue("a", 30), candidates, nil)
	assert.Equal(t, []string{"a", "b", "c"}, got.VenueIDs())
	assert.Zero(t, got.Shortfall)
}

func TestSelectVenuesSkipsBusyUnavailableAndDuplicates(t *testing.T) {
	closed := venue("c", 100)
	closed.IsAvailable = false
	candidates := []models.Venue{venue("a", 500), venue("b", 100), closed, venue("d", 25), venue("d", 25)}
	busy := map[string]struct{}{"b": {}}

	got := SelectVenues(120, venue("a", 50), candidates, busy)
	assert.Equal(t, []string{"a", "d"}, got.VenueIDs())
	assert.Equal(t, 45, got.Shortfall)
}

func TestSelectVenuesIsDeterministic(t *testing.T) {
	candidates := []models.Venue{venue("x", 30), venue("w", 30), venue("y", 60), venue("z", 10)}
	reversed := []models.Venue{candidates[3], candidates[2], candidates[1], candidates[0]}

	first := SelectVenues(150, venue("p", 20), candidates, nil)
	second := SelectVenues(150, venue("p", 20), reversed, nil)
	assert.Equal(t, first.VenueIDs(), second.VenueIDs())
	assert.Equal(t, first.Shortfall, second.Shortfall)
}

func newAllocatorFixture(t *testing.T, venues *venueRepoStub, existing ...models.Booking) *VenueAllocator {
	db, _ := newSQLMock(t)
	repo := &memoryBookingRepo{db: db, bookings: existing}
	return NewVenueAllocator(venues, NewConflictDetector(repo, nil), nil, 10)
}

func TestVenueAllocatorUsesAvailableVenuesWhenNoCandidates(t *testing.T) {
	venues := newVenueRepoStub(venue("a", 50), venue("b", 30), venue("c", 10))
	allocator := newAllocatorFixture(t, venues, models.Booking{
		ID: "bk-x", ExaminationID: "exam-9", VenueID: "b", ExamDate: day("2025-02-10"),
		StartTime: clock("09:00"), EndTime: clock("11:00"), AllocatedCapacity: 30,
	})

	got, err := allocator.Allocate(context.Background(), AllocationInput{
		Demand: 70, PrimaryVenueID: "a", Date: day("2025-02-10"), Start: clock("10:00"), End: clock("12:00"),
	})
	require.NoError(t, err)
	assert.True(t, venues.listed)
	assert.Equal(t, []string{"a", "c"}, got.VenueIDs())
	assert.Equal(t, 10, got.Shortfall)
}

func TestVenueAllocatorRejectsConflictingPrimary(t *testing.T) {
	venues := newVenueRepoStub(venue("a", 50))
	allocator := newAllocatorFixture(t, venues, models.Booking{
		ID: "bk-1", ExaminationID: "exam-2", VenueID: "a", ExamDate: day("2025-02-10"),
		StartTime: clock("10:00"), EndTime: clock("12:00"), AllocatedCapacity: 50,
	})

	_, err := allocator.Allocate(context.Background(), AllocationInput{
		Demand: 10, PrimaryVenueID: "a", Date: day("2025-02-10"), Start: clock("11:00"), End: clock("13:00"),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	payload, ok := appErr.Details.(*models.BookingConflictError)
	require.True(t, ok)
	require.Len(t, payload.Conflicts, 1)
	assert.Equal(t, "bk-1", payload.Conflicts[0].BookingID)
}

func TestVenueAllocatorIgnoresOwnBookingsOnReplace(t *testing.T) {
	venues := newVenueRepoStub(venue("a", 50))
	allocator := newAllocatorFixture(t, venues, models.Booking{
		ID: "bk-1", ExaminationID: "exam-1", VenueID: "a", ExamDate: day("2025-02-10"),
		StartTime: clock("10:00"), EndTime: clock("12:00"), AllocatedCapacity: 50,
	})

	got, err := allocator.Allocate(context.Background(), AllocationInput{
		Demand: 10, PrimaryVenueID: "a", Date: day("2025-02-10"), Start: clock("10:00"), End: clock("12:00"),
		IgnoreExaminationID: "exam-1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.VenueIDs())
}

func TestVenueAllocatorRejectsUnavailablePrimary(t *testing.T) {
	closed := venue("a", 50)
	closed.IsAvailable = false
	allocator := newAllocatorFixture(t, newVenueRepoStub(closed))

	_, err := allocator.Allocate(context.Background(), AllocationInput{
		Demand: 10, PrimaryVenueID: "a", Date: day("2025-02-10"), Start: clock("10:00"), End: clock("12:00"),
	})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrVenueUnavailable.Code))
}

func TestVenueAllocatorUnknownVenues(t *testing.T) {
	allocator := newAllocatorFixture(t, newVenueRepoStub(venue("a", 50)))

	_, err := allocator.Allocate(context.Background(), AllocationInput{
		Demand: 10, PrimaryVenueID: "missing", Date: day("2025-02-10"), Start: clock("10:00"), End: clock("12:00"),
	})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrVenueNotFound.Code))

	_, err = allocator.Allocate(context.Background(), AllocationInput{
		Demand: 80, PrimaryVenueID: "a", CandidateVenueIDs: []string{"ghost"},
		Date: day("2025-02-10"), Start: clock("10:00"), End: clock("12:00"),
	})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrVenueNotFound.Code))
}

func TestVenueAllocatorRejectsInvertedRange(t *testing.T) {
	allocator := newAllocatorFixture(t, newVenueRepoStub(venue("a", 50)))

	_, err := allocator.Allocate(context.Background(), AllocationInput{
		Demand: 10, PrimaryVenueID: "a", Date: day("2025-02-10"), Start: clock("12:00"), End: clock("12:00"),
	})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}
