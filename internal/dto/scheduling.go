package dto

import "github.com/noah-isme/exam-venue-api/internal/models"

// DateCheckRequest asks whether a date falls in the examination's period.
type DateCheckRequest struct {
	ExamDate string `json:"exam_date" validate:"required"`
}

// PeriodSummary is the wire form of an exam period.
type PeriodSummary struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	AcademicSession string `json:"academic_session"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
}

// DateCheckResponse confirms a valid exam date.
type DateCheckResponse struct {
	ExaminationID string        `json:"examination_id"`
	ExamDate      string        `json:"exam_date"`
	Valid         bool          `json:"valid"`
	Period        PeriodSummary `json:"period"`
}

// BookingRequest drives the allocation pipeline for preview, create and replace.
// An empty CandidateVenueIDs list means every available venue is a candidate.
type BookingRequest struct {
	ExamDate          string   `json:"exam_date" validate:"required"`
	StartTime         string   `json:"start_time" validate:"required"`
	EndTime           string   `json:"end_time" validate:"required"`
	PrimaryVenueID    string   `json:"primary_venue_id" validate:"required"`
	CandidateVenueIDs []string `json:"candidate_venue_ids" validate:"omitempty,dive,required"`
	CapacityMode      string   `json:"capacity_mode"`
	ManualCapacity    int      `json:"manual_capacity"`
}

// AllocatedVenue is one venue of an allocation with its planned seats.
type AllocatedVenue struct {
	VenueID           string `json:"venue_id"`
	VenueCode         string `json:"venue_code"`
	VenueName         string `json:"venue_name"`
	Capacity          int    `json:"capacity"`
	AllocatedCapacity int    `json:"allocated_capacity"`
}

// AllocationPreview is the dry-run result of validate, allocate and plan.
type AllocationPreview struct {
	ExaminationID  string              `json:"examination_id"`
	ExamDate       string              `json:"exam_date"`
	StartTime      models.ClockTime    `json:"start_time"`
	EndTime        models.ClockTime    `json:"end_time"`
	CapacityMode   models.CapacityMode `json:"capacity_mode"`
	Demand         int                 `json:"demand"`
	TotalAllocated int                 `json:"total_allocated"`
	Shortfall      int                 `json:"shortfall"`
	Venues         []AllocatedVenue    `json:"venues"`
}

// BookingView renders a booking with its date as YYYY-MM-DD.
type BookingView struct {
	ID                string           `json:"id"`
	ExaminationID     string           `json:"examination_id"`
	VenueID           string           `json:"venue_id"`
	ExamDate          string           `json:"exam_date"`
	StartTime         models.ClockTime `json:"start_time"`
	EndTime           models.ClockTime `json:"end_time"`
	AllocatedCapacity int              `json:"allocated_capacity"`
	AssignedCount     int              `json:"assigned_count"`
}

// NewBookingView converts a stored booking.
func NewBookingView(b models.Booking) BookingView {
	return BookingView{
		ID:                b.ID,
		ExaminationID:     b.ExaminationID,
		VenueID:           b.VenueID,
		ExamDate:          b.ExamDate.Format(models.DateLayout),
		StartTime:         b.StartTime,
		EndTime:           b.EndTime,
		AllocatedCapacity: b.AllocatedCapacity,
		AssignedCount:     b.AssignedCount,
	}
}

// NewBookingViews converts a booking list.
func NewBookingViews(bookings []models.Booking) []BookingView {
	views := make([]BookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, NewBookingView(b))
	}
	return views
}

// ExaminationSchedule is an examination's booking set with its status projection.
type ExaminationSchedule struct {
	ExaminationID  string                `json:"examination_id"`
	Status         models.ScheduleStatus `json:"status"`
	Demand         int                   `json:"demand"`
	TotalAllocated int                   `json:"total_allocated"`
	Shortfall      int                   `json:"shortfall"`
	Bookings       []BookingView         `json:"bookings"`
}

// UpdateBookingRequest moves one booking. Capacity 0 keeps the venue's full capacity.
type UpdateBookingRequest struct {
	VenueID   string `json:"venue_id" validate:"required"`
	ExamDate  string `json:"exam_date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Capacity  int    `json:"capacity"`
}

// ConflictQuery filters venue conflicts.
type ConflictQuery struct {
	Date             string `form:"date" validate:"required"`
	StartTime        string `form:"start_time" validate:"required"`
	EndTime          string `form:"end_time" validate:"required"`
	ExcludeBookingID string `form:"exclude_booking_id"`
}

// VenueConflicts lists the bookings colliding with a queried range.
type VenueConflicts struct {
	VenueID   string                   `json:"venue_id"`
	ExamDate  string                   `json:"exam_date"`
	StartTime models.ClockTime         `json:"start_time"`
	EndTime   models.ClockTime         `json:"end_time"`
	Conflicts []models.BookingConflict `json:"conflicts"`
}

// CancelResult reports a delete-all cancellation.
type CancelResult struct {
	ExaminationID string                `json:"examination_id"`
	Removed       int64                 `json:"removed"`
	Status        models.ScheduleStatus `json:"status"`
}

// BookingSeats lists the students seated in one booking in seat order.
type BookingSeats struct {
	BookingID         string   `json:"booking_id"`
	VenueID           string   `json:"venue_id"`
	AllocatedCapacity int      `json:"allocated_capacity"`
	StudentIDs        []string `json:"student_ids"`
}

// SeatMap is the seat distribution of an examination.
type SeatMap struct {
	ExaminationID   string              `json:"examination_id"`
	Assignments     map[string][]string `json:"assignments"`
	Bookings        []BookingSeats      `json:"bookings"`
	AssignedCount   int                 `json:"assigned_count"`
	UnassignedCount int                 `json:"unassigned_count"`
	Unassigned      []string            `json:"unassigned"`
}
