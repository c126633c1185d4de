package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/exam-venue-api/internal/models"
)

const venueColumns = `id, code, name, capacity, is_available`

// VenueRepository reads venue records. Venues are never mutated by the engine.
type VenueRepository struct {
	db *sqlx.DB
}

// NewVenueRepository constructs a venue repository.
func NewVenueRepository(db *sqlx.DB) *VenueRepository {
	return &VenueRepository{db: db}
}

// GetVenue loads a venue by id.
func (r *VenueRepository) GetVenue(ctx context.Context, id string) (*models.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE id = $1`
	var venue models.Venue
	if err := r.db.GetContext(ctx, &venue, query, id); err != nil {
		return nil, err
	}
	return &venue, nil
}

// GetVenues loads the venues matching ids; unknown ids are simply absent from the result.
func (r *VenueRepository) GetVenues(ctx context.Context, ids []string) ([]models.Venue, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + venueColumns + ` FROM venues WHERE id = ANY($1) ORDER BY id ASC`
	var venues []models.Venue
	if err := r.db.SelectContext(ctx, &venues, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("get venues: %w", err)
	}
	return venues, nil
}

// ListAvailableVenues returns venues flagged available, largest first.
func (r *VenueRepository) ListAvailableVenues(ctx context.Context, limit int) ([]models.Venue, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + venueColumns + ` FROM venues WHERE is_available = TRUE ORDER BY capacity DESC, id ASC LIMIT $1`
	var venues []models.Venue
	if err := r.db.SelectContext(ctx, &venues, query, limit); err != nil {
		return nil, fmt.Errorf("list available venues: %w", err)
	}
	return venues, nil
}
