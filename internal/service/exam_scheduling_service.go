package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-venue-api/internal/dto"
	"github.com/noah-isme/exam-venue-api/internal/models"
	appErrors "github.com/noah-isme/exam-venue-api/pkg/errors"
)

type enrollmentCounter interface {
	CountRegistered(ctx context.Context, courseID, examPeriodID string) (int, error)
}

type venueAllocator interface {
	Allocate(ctx context.Context, in AllocationInput) (*Allocation, error)
}

type conflictFinder interface {
	FindConflicts(ctx context.Context, venueID string, date time.Time, start, end models.ClockTime, excludeBookingID string) ([]models.BookingConflict, error)
}

type bookingWriter interface {
	ListBookings(ctx context.Context, examinationID string) ([]models.Booking, error)
	CreateBookings(ctx context.Context, examinationID string, rows []models.ProposedBooking) ([]models.Booking, error)
	ReplaceExaminationBookings(ctx context.Context, examinationID string, rows []models.ProposedBooking) ([]models.Booking, error)
	UpdateBooking(ctx context.Context, bookingID string, change BookingChange) (*models.Booking, error)
	DeleteBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	DeleteExaminationBookings(ctx context.Context, examinationID string) (int64, error)
}

type seatPlanner interface {
	AssignSeats(ctx context.Context, examinationID string) (*dto.SeatMap, error)
	GetSeatMap(ctx context.Context, examinationID string) (*dto.SeatMap, error)
}

// SchedulingConfig governs the scheduling pipeline.
type SchedulingConfig struct {
	TxTimeout           time.Duration
	DefaultCapacityMode models.CapacityMode
}

// ExamSchedulingService runs validate, allocate, plan, store and seat for HTTP callers.
type ExamSchedulingService struct {
	exams      examinationReader
	enrollment enrollmentCounter
	periods    dateValidator
	conflicts  conflictFinder
	allocator  venueAllocator
	store      bookingWriter
	seats      seatPlanner
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        SchedulingConfig
}

// NewExamSchedulingService wires the orchestrator.
func NewExamSchedulingService(
	exams examinationReader,
	enrollment enrollmentCounter,
	periods dateValidator,
	conflicts conflictFinder,
	allocator venueAllocator,
	store bookingWriter,
	seats seatPlanner,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SchedulingConfig,
) *ExamSchedulingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = 5 * time.Second
	}
	if cfg.DefaultCapacityMode == "" {
		cfg.DefaultCapacityMode = models.CapacityModeAutomatic
	}
	return &ExamSchedulingService{
		exams:      exams,
		enrollment: enrollment,
		periods:    periods,
		conflicts:  conflicts,
		allocator:  allocator,
		store:      store,
		seats:      seats,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// ValidateDate checks a proposed exam date against the examination's period.
func (s *ExamSchedulingService) ValidateDate(ctx context.Context, examinationID string, req dto.DateCheckRequest) (*dto.DateCheckResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date check payload")
	}
	date, err := models.ParseDate(req.ExamDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	period, err := s.periods.ValidateDate(ctx, examinationID, date)
	if err != nil {
		return nil, err
	}
	return &dto.DateCheckResponse{
		ExaminationID: examinationID,
		ExamDate:      date.Format(models.DateLayout),
		Valid:         true,
		Period: dto.PeriodSummary{
			ID:              period.ID,
			Name:            period.Name,
			AcademicSession: period.AcademicSession,
			StartDate:       period.StartDate.Format(models.DateLayout),
			EndDate:         period.EndDate.Format(models.DateLayout),
		},
	}, nil
}

// PreviewAllocation runs the pipeline without writing.
func (s *ExamSchedulingService) PreviewAllocation(ctx context.Context, examinationID string, req dto.BookingRequest) (*dto.AllocationPreview, []models.Warning, error) {
	plan, err := s.plan(ctx, examinationID, req, false)
	if err != nil {
		return nil, nil, err
	}
	return plan.preview(), plan.warnings(), nil
}

// BookExamination allocates venues and records the bookings.
func (s *ExamSchedulingService) BookExamination(ctx context.Context, examinationID string, req dto.BookingRequest) (*dto.ExaminationSchedule, []models.Warning, error) {
	plan, err := s.plan(ctx, examinationID, req, false)
	if err != nil {
		return nil, nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()
	if _, err := s.store.CreateBookings(txCtx, examinationID, plan.rows()); err != nil {
		s.recordFailure("create", err)
		return nil, nil, err
	}
	s.metrics.RecordBookingsCreated(len(plan.allocation.Venues), plan.shortfall())
	s.cache.InvalidateExamination(ctx, examinationID)

	schedule, err := s.loadSchedule(ctx, examinationID, plan.allocation.Demand)
	if err != nil {
		return nil, nil, err
	}
	return schedule, plan.warnings(), nil
}

// ReplaceBookings re-runs the pipeline and swaps the examination's whole booking set.
func (s *ExamSchedulingService) ReplaceBookings(ctx context.Context, examinationID string, req dto.BookingRequest) (*dto.ExaminationSchedule, []models.Warning, error) {
	plan, err := s.plan(ctx, examinationID, req, true)
	if err != nil {
		return nil, nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()
	if _, err := s.store.ReplaceExaminationBookings(txCtx, examinationID, plan.rows()); err != nil {
		s.recordFailure("replace", err)
		return nil, nil, err
	}
	s.metrics.RecordBookingsCreated(len(plan.allocation.Venues), plan.shortfall())
	s.cache.InvalidateExamination(ctx, examinationID)

	schedule, err := s.loadSchedule(ctx, examinationID, plan.allocation.Demand)
	if err != nil {
		return nil, nil, err
	}
	return schedule, plan.warnings(), nil
}

// GetSchedule returns an examination's bookings with their status projection.
func (s *ExamSchedulingService) GetSchedule(ctx context.Context, examinationID string) (*dto.ExaminationSchedule, error) {
	var cached dto.ExaminationSchedule
	if s.cache.Get(ctx, s.cache.BookingsKey(examinationID), &cached) {
		return &cached, nil
	}

	exam, err := s.exams.FindByID(ctx, examinationID)
	if err != nil {
		return nil, notFoundOr(err, "examination")
	}
	demand, err := s.enrollment.CountRegistered(ctx, exam.CourseID, exam.ExamPeriodID)
	if err != nil {
		return nil, storageError(err, "failed to count registered students")
	}
	schedule, err := s.loadSchedule(ctx, examinationID, demand)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, s.cache.BookingsKey(examinationID), schedule)
	return schedule, nil
}

// CancelExamination deletes every booking of an examination.
func (s *ExamSchedulingService) CancelExamination(ctx context.Context, examinationID string) (*dto.CancelResult, error) {
	if _, err := s.exams.FindByID(ctx, examinationID); err != nil {
		return nil, notFoundOr(err, "examination")
	}
	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()
	removed, err := s.store.DeleteExaminationBookings(txCtx, examinationID)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateExamination(ctx, examinationID)
	s.logger.Info("examination schedule cancelled", zap.String("examination_id", examinationID), zap.Int64("removed", removed))
	return &dto.CancelResult{ExaminationID: examinationID, Removed: removed, Status: models.ScheduleStatusCancelled}, nil
}

// UpdateBooking moves a single booking.
func (s *ExamSchedulingService) UpdateBooking(ctx context.Context, bookingID string, req dto.UpdateBookingRequest) (*dto.BookingView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking update payload")
	}
	date, start, end, err := parseSlot(req.ExamDate, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()
	booking, err := s.store.UpdateBooking(txCtx, bookingID, BookingChange{
		VenueID:   req.VenueID,
		ExamDate:  date,
		StartTime: start,
		EndTime:   end,
		Capacity:  req.Capacity,
	})
	if err != nil {
		s.recordFailure("update", err)
		return nil, err
	}
	s.cache.InvalidateExamination(ctx, booking.ExaminationID)
	view := dto.NewBookingView(*booking)
	return &view, nil
}

// DeleteBooking removes one booking unconditionally.
func (s *ExamSchedulingService) DeleteBooking(ctx context.Context, bookingID string) error {
	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()
	booking, err := s.store.DeleteBooking(txCtx, bookingID)
	if err != nil {
		return err
	}
	s.cache.InvalidateExamination(ctx, booking.ExaminationID)
	return nil
}

// VenueConflicts lists bookings of a venue overlapping the queried range.
func (s *ExamSchedulingService) VenueConflicts(ctx context.Context, venueID string, query dto.ConflictQuery) (*dto.VenueConflicts, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict query")
	}
	date, start, end, err := parseSlot(query.Date, query.StartTime, query.EndTime)
	if err != nil {
		return nil, err
	}
	conflicts, err := s.conflicts.FindConflicts(ctx, venueID, date, start, end, query.ExcludeBookingID)
	if err != nil {
		return nil, err
	}
	return &dto.VenueConflicts{
		VenueID:   venueID,
		ExamDate:  date.Format(models.DateLayout),
		StartTime: start,
		EndTime:   end,
		Conflicts: conflicts,
	}, nil
}

// AssignSeats distributes registered students across the examination's bookings.
func (s *ExamSchedulingService) AssignSeats(ctx context.Context, examinationID string) (*dto.SeatMap, []models.Warning, error) {
	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()
	seatMap, err := s.seats.AssignSeats(txCtx, examinationID)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.RecordSeatAssignment(seatMap.AssignedCount, seatMap.UnassignedCount)
	s.cache.InvalidateExamination(ctx, examinationID)
	return seatMap, seatWarnings(seatMap), nil
}

// GetSeatMap returns the persisted seat distribution.
func (s *ExamSchedulingService) GetSeatMap(ctx context.Context, examinationID string) (*dto.SeatMap, []models.Warning, error) {
	var cached dto.SeatMap
	if s.cache.Get(ctx, s.cache.SeatsKey(examinationID), &cached) {
		return &cached, seatWarnings(&cached), nil
	}
	seatMap, err := s.seats.GetSeatMap(ctx, examinationID)
	if err != nil {
		return nil, nil, err
	}
	s.cache.Set(ctx, s.cache.SeatsKey(examinationID), seatMap)
	return seatMap, seatWarnings(seatMap), nil
}

func (s *ExamSchedulingService) loadSchedule(ctx context.Context, examinationID string, demand int) (*dto.ExaminationSchedule, error) {
	bookings, err := s.store.ListBookings(ctx, examinationID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, b := range bookings {
		total += b.AllocatedCapacity
	}
	shortfall := demand - total
	if shortfall < 0 || len(bookings) == 0 {
		shortfall = 0
	}
	return &dto.ExaminationSchedule{
		ExaminationID:  examinationID,
		Status:         ProjectStatus(bookings, demand),
		Demand:         demand,
		TotalAllocated: total,
		Shortfall:      shortfall,
		Bookings:       dto.NewBookingViews(bookings),
	}, nil
}

func (s *ExamSchedulingService) recordFailure(operation string, err error) {
	if appErrors.IsCode(err, appErrors.ErrConflict.Code) {
		s.metrics.RecordConflict(operation)
		s.logger.Info("booking rejected by conflict", zap.String("operation", operation), zap.Error(err))
	}
}

// ProjectStatus derives the schedule state of an examination from its bookings.
func ProjectStatus(bookings []models.Booking, demand int) models.ScheduleStatus {
	if len(bookings) == 0 {
		return models.ScheduleStatusUnscheduled
	}
	total := 0
	for _, b := range bookings {
		total += b.AllocatedCapacity
	}
	if total < demand {
		return models.ScheduleStatusPartial
	}
	return models.ScheduleStatusFull
}

type schedulePlan struct {
	examinationID string
	date          time.Time
	start         models.ClockTime
	end           models.ClockTime
	mode          models.CapacityMode
	allocation    *Allocation
	capacities    []int
}

func (s *ExamSchedulingService) plan(ctx context.Context, examinationID string, req dto.BookingRequest, replacing bool) (*schedulePlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	date, start, end, err := parseSlot(req.ExamDate, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	mode := s.cfg.DefaultCapacityMode
	if strings.TrimSpace(req.CapacityMode) != "" {
		mode = models.CapacityMode(req.CapacityMode)
	}
	// Reject bad capacity input before touching storage.
	if _, err := PlanCapacity(nil, mode, req.ManualCapacity); err != nil {
		return nil, err
	}

	exam, err := s.exams.FindByID(ctx, examinationID)
	if err != nil {
		return nil, notFoundOr(err, "examination")
	}
	if _, err := s.periods.ValidateDate(ctx, exam.ID, date); err != nil {
		return nil, err
	}
	demand, err := s.enrollment.CountRegistered(ctx, exam.CourseID, exam.ExamPeriodID)
	if err != nil {
		return nil, storageError(err, "failed to count registered students")
	}

	in := AllocationInput{
		Demand:            demand,
		PrimaryVenueID:    req.PrimaryVenueID,
		CandidateVenueIDs: req.CandidateVenueIDs,
		Date:              date,
		Start:             start,
		End:               end,
	}
	if replacing {
		in.IgnoreExaminationID = exam.ID
	}
	allocation, err := s.allocator.Allocate(ctx, in)
	if err != nil {
		if appErrors.IsCode(err, appErrors.ErrConflict.Code) {
			s.metrics.RecordConflict("allocate")
		}
		return nil, err
	}
	capacities, err := PlanCapacity(allocation.Venues, mode, req.ManualCapacity)
	if err != nil {
		return nil, err
	}
	return &schedulePlan{
		examinationID: exam.ID,
		date:          date,
		start:         start,
		end:           end,
		mode:          models.CapacityMode(strings.ToUpper(string(mode))),
		allocation:    allocation,
		capacities:    capacities,
	}, nil
}

func (p *schedulePlan) total() int {
	total := 0
	for _, c := range p.capacities {
		total += c
	}
	return total
}

func (p *schedulePlan) shortfall() int {
	if gap := p.allocation.Demand - p.total(); gap > 0 {
		return gap
	}
	return 0
}

func (p *schedulePlan) rows() []models.ProposedBooking {
	rows := make([]models.ProposedBooking, len(p.allocation.Venues))
	for i, v := range p.allocation.Venues {
		rows[i] = models.ProposedBooking{
			VenueID:           v.ID,
			ExamDate:          p.date,
			StartTime:         p.start,
			EndTime:           p.end,
			AllocatedCapacity: p.capacities[i],
		}
	}
	return rows
}

func (p *schedulePlan) preview() *dto.AllocationPreview {
	venues := make([]dto.AllocatedVenue, len(p.allocation.Venues))
	for i, v := range p.allocation.Venues {
		venues[i] = dto.AllocatedVenue{
			VenueID:           v.ID,
			VenueCode:         v.Code,
			VenueName:         v.Name,
			Capacity:          v.Capacity,
			AllocatedCapacity: p.capacities[i],
		}
	}
	return &dto.AllocationPreview{
		ExaminationID:  p.examinationID,
		ExamDate:       p.date.Format(models.DateLayout),
		StartTime:      p.start,
		EndTime:        p.end,
		CapacityMode:   p.mode,
		Demand:         p.allocation.Demand,
		TotalAllocated: p.total(),
		Shortfall:      p.shortfall(),
		Venues:         venues,
	}
}

func (p *schedulePlan) warnings() []models.Warning {
	shortfall := p.shortfall()
	if shortfall == 0 {
		return nil
	}
	return []models.Warning{{
		Code:    models.WarningInsufficientCapacity,
		Message: fmt.Sprintf("allocated venues seat %d of %d registered students", p.total(), p.allocation.Demand),
		Meta: map[string]interface{}{
			"demand":    p.allocation.Demand,
			"allocated": p.total(),
			"shortfall": shortfall,
		},
	}}
}

func seatWarnings(seatMap *dto.SeatMap) []models.Warning {
	if seatMap == nil || seatMap.UnassignedCount == 0 {
		return nil
	}
	return []models.Warning{{
		Code:    models.WarningUnseatedStudents,
		Message: fmt.Sprintf("%d registered students have no seat", seatMap.UnassignedCount),
		Meta:    map[string]interface{}{"unassigned_count": seatMap.UnassignedCount},
	}}
}

func parseSlot(rawDate, rawStart, rawEnd string) (time.Time, models.ClockTime, models.ClockTime, error) {
	date, err := models.ParseDate(rawDate)
	if err != nil {
		return time.Time{}, 0, 0, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	start, err := models.ParseClockTime(rawStart)
	if err != nil {
		return time.Time{}, 0, 0, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	end, err := models.ParseClockTime(rawEnd)
	if err != nil {
		return time.Time{}, 0, 0, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if start >= end {
		return time.Time{}, 0, 0, appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}
	return date, start, end, nil
}
