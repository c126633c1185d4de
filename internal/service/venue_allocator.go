package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-venue-api/internal/models"
	appErrors "github.com/noah-isme/exam-venue-api/pkg/errors"
)

type venueReader interface {
	GetVenue(ctx context.Context, id string) (*models.Venue, error)
	GetVenues(ctx context.Context, ids []string) ([]models.Venue, error)
	ListAvailableVenues(ctx context.Context, limit int) ([]models.Venue, error)
}

type venueConflictChecker interface {
	FindConflicts(ctx context.Context, venueID string, date time.Time, start, end models.ClockTime, excludeBookingID string) ([]models.BookingConflict, error)
	BusyVenues(ctx context.Context, date time.Time, start, end models.ClockTime, venueIDs []string, ignoreExaminationID string) (map[string]struct{}, error)
}

// AllocationInput describes a venue selection request.
type AllocationInput struct {
	Demand              int
	PrimaryVenueID      string
	CandidateVenueIDs   []string
	Date                time.Time
	Start               models.ClockTime
	End                 models.ClockTime
	IgnoreExaminationID string
}

// Allocation is the ordered venue selection for a demand. Venues[0] is the primary venue.
type Allocation struct {
	Venues    []models.Venue
	Demand    int
	Shortfall int
}

// VenueIDs lists the selected venue ids in allocation order.
func (a Allocation) VenueIDs() []string {
	ids := make([]string, len(a.Venues))
	for i, v := range a.Venues {
		ids[i] = v.ID
	}
	return ids
}

// VenueAllocator resolves venues and conflict state, then delegates the selection to SelectVenues.
type VenueAllocator struct {
	venues        venueReader
	conflicts     venueConflictChecker
	logger        *zap.Logger
	maxCandidates int
}

// NewVenueAllocator constructs the allocator.
func NewVenueAllocator(venues venueReader, conflicts venueConflictChecker, logger *zap.Logger, maxCandidates int) *VenueAllocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxCandidates <= 0 {
		maxCandidates = 50
	}
	return &VenueAllocator{venues: venues, conflicts: conflicts, logger: logger, maxCandidates: maxCandidates}
}

// Allocate picks the primary venue plus as many extra venues as needed to cover demand.
func (a *VenueAllocator) Allocate(ctx context.Context, in AllocationInput) (*Allocation, error) {
	if in.PrimaryVenueID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "primary venue is required")
	}
	if in.Start >= in.End {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}

	primary, err := a.venues.GetVenue(ctx, in.PrimaryVenueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			a.logger.Error("primary venue missing", zap.String("venue_id", in.PrimaryVenueID))
			return nil, appErrors.Clone(appErrors.ErrVenueNotFound, fmt.Sprintf("venue %s could not be resolved", in.PrimaryVenueID))
		}
		return nil, storageError(err, "failed to load primary venue")
	}
	if !primary.IsAvailable {
		return nil, appErrors.Clone(appErrors.ErrVenueUnavailable, fmt.Sprintf("venue %s is not available", primary.Code))
	}

	conflicts, err := a.conflicts.FindConflicts(ctx, primary.ID, in.Date, in.Start, in.End, "")
	if err != nil {
		return nil, err
	}
	conflicts = withoutExamination(conflicts, in.IgnoreExaminationID)
	if len(conflicts) > 0 {
		return nil, newConflictError(primary.ID, in.Date, in.Start, in.End, conflicts)
	}

	if in.Demand <= primary.Capacity {
		return &Allocation{Venues: []models.Venue{*primary}, Demand: in.Demand}, nil
	}

	candidates, err := a.resolveCandidates(ctx, primary.ID, in.CandidateVenueIDs)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(candidates))
	for _, v := range candidates {
		ids = append(ids, v.ID)
	}
	busy, err := a.conflicts.BusyVenues(ctx, in.Date, in.Start, in.End, ids, in.IgnoreExaminationID)
	if err != nil {
		return nil, err
	}

	allocation := SelectVenues(in.Demand, *primary, candidates, busy)
	if allocation.Shortfall > 0 {
		a.logger.Warn("venue capacity shortfall",
			zap.String("primary_venue_id", primary.ID),
			zap.Int("demand", in.Demand),
			zap.Int("shortfall", allocation.Shortfall),
		)
	}
	return &allocation, nil
}

func (a *VenueAllocator) resolveCandidates(ctx context.Context, primaryID string, ids []string) ([]models.Venue, error) {
	if len(ids) == 0 {
		venues, err := a.venues.ListAvailableVenues(ctx, a.maxCandidates)
		if err != nil {
			return nil, storageError(err, "failed to list available venues")
		}
		return venues, nil
	}

	wanted := uniqueIDs(ids, primaryID)
	if len(wanted) == 0 {
		return nil, nil
	}
	venues, err := a.venues.GetVenues(ctx, wanted)
	if err != nil {
		return nil, storageError(err, "failed to load candidate venues")
	}
	found := make(map[string]struct{}, len(venues))
	for _, v := range venues {
		found[v.ID] = struct{}{}
	}
	for _, id := range wanted {
		if _, ok := found[id]; !ok {
			a.logger.Error("candidate venue missing", zap.String("venue_id", id))
			return nil, appErrors.Clone(appErrors.ErrVenueNotFound, fmt.Sprintf("venue %s could not be resolved", id))
		}
	}
	return venues, nil
}

// SelectVenues greedily adds the largest free candidates to primary until demand is covered.
// Candidates that are the primary, duplicated, unavailable or present in busy are skipped.
// Ordering is capacity descending with ties broken by id ascending, so the result is deterministic.
func SelectVenues(demand int, primary models.Venue, candidates []models.Venue, busy map[string]struct{}) Allocation {
	selected := []models.Venue{primary}
	remaining := demand - primary.Capacity
	if remaining <= 0 {
		return Allocation{Venues: selected, Demand: demand}
	}

	seen := map[string]struct{}{primary.ID: {}}
	pool := make([]models.Venue, 0, len(candidates))
	for _, v := range candidates {
		if _, dup := seen[v.ID]; dup {
			continue
		}
		seen[v.ID] = struct{}{}
		if !v.IsAvailable || v.Capacity <= 0 {
			continue
		}
		if _, taken := busy[v.ID]; taken {
			continue
		}
		pool = append(pool, v)
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Capacity != pool[j].Capacity {
			return pool[i].Capacity > pool[j].Capacity
		}
		return pool[i].ID < pool[j].ID
	})

	for _, v := range pool {
		if remaining <= 0 {
			break
		}
		selected = append(selected, v)
		remaining -= v.Capacity
	}
	if remaining < 0 {
		remaining = 0
	}
	return Allocation{Venues: selected, Demand: demand, Shortfall: remaining}
}

func uniqueIDs(ids []string, skip string) []string {
	seen := map[string]struct{}{skip: {}}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func withoutExamination(conflicts []models.BookingConflict, examinationID string) []models.BookingConflict {
	if examinationID == "" {
		return conflicts
	}
	out := conflicts[:0:0]
	for _, c := range conflicts {
		if c.ExaminationID != examinationID {
			out = append(out, c)
		}
	}
	return out
}
