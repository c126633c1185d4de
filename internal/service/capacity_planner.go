package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/exam-venue-api/internal/models"
	appErrors "github.com/noah-isme/exam-venue-api/pkg/errors"
)

// PlanCapacity returns the seats each venue contributes, index-aligned with venues.
// venues[0] is the primary venue and always contributes its full capacity; in MANUAL mode
// every additional venue contributes min(manualPerVenue, capacity).
func PlanCapacity(venues []models.Venue, mode models.CapacityMode, manualPerVenue int) ([]int, error) {
	mode, err := normalizeMode(mode, manualPerVenue)
	if err != nil {
		return nil, err
	}
	allocated := make([]int, len(venues))
	for i, v := range venues {
		if i == 0 {
			allocated[i] = v.Capacity
			continue
		}
		allocated[i] = capSeats(v, mode, manualPerVenue)
	}
	return allocated, nil
}

// CapSeats returns the seats a single venue contributes under mode.
func CapSeats(venue models.Venue, mode models.CapacityMode, manualPerVenue int) (int, error) {
	mode, err := normalizeMode(mode, manualPerVenue)
	if err != nil {
		return 0, err
	}
	return capSeats(venue, mode, manualPerVenue), nil
}

func capSeats(venue models.Venue, mode models.CapacityMode, manualPerVenue int) int {
	if mode == models.CapacityModeManual {
		return minInt(manualPerVenue, venue.Capacity)
	}
	return venue.Capacity
}

func normalizeMode(mode models.CapacityMode, manualPerVenue int) (models.CapacityMode, error) {
	switch normalized := models.CapacityMode(strings.ToUpper(strings.TrimSpace(string(mode)))); normalized {
	case models.CapacityModeAutomatic:
		return normalized, nil
	case models.CapacityModeManual:
		if manualPerVenue < 1 {
			return "", appErrors.Clone(appErrors.ErrInvalidCapacity, "manual capacity must be at least 1")
		}
		return normalized, nil
	default:
		return "", appErrors.Clone(appErrors.ErrInvalidCapacity, fmt.Sprintf("unknown capacity mode %q", mode))
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
