package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medcampus/sims-api/internal/dto"
	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
)

type timetableStore interface {
	FindByID(ctx context.Context, id string) (*models.WeeklyTimetable, error)
	Cells(ctx context.Context, timetableID string) ([]models.TimetableCell, error)
	Create(ctx context.Context, timetable *models.WeeklyTimetable) error
	UpsertCell(ctx context.Context, cell *models.TimetableCell) error
	UpdateStatus(ctx context.Context, id string, status models.TimetableStatus) error
}

var dayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// TimetableService manages weekly timetables and the publish validation.
type TimetableService struct {
	timetables timetableStore
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewTimetableService constructs a TimetableService instance.
func NewTimetableService(timetables timetableStore, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TimetableService{timetables: timetables, validator: validate, logger: logger}
}

// Get returns a timetable with cells.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.WeeklyTimetable, error) {
	timetable, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return timetable, nil
}

// Create opens a draft timetable. WeekStart must be a Monday.
func (s *TimetableService) Create(ctx context.Context, req dto.CreateTimetableRequest) (*models.WeeklyTimetable, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	weekStart, err := time.Parse("2006-01-02", req.WeekStart)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "week_start must be YYYY-MM-DD")
	}
	if weekStart.Weekday() != time.Monday {
		return nil, appErrors.Clone(appErrors.ErrValidation, "week_start must be a Monday")
	}

	timetable := &models.WeeklyTimetable{
		BatchID:   req.BatchID,
		PeriodID:  req.PeriodID,
		WeekStart: weekStart,
		Status:    models.TimetableDraft,
	}
	if err := s.timetables.Create(ctx, timetable); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable")
	}
	return timetable, nil
}

// SetCell writes one cell of a draft grid.
func (s *TimetableService) SetCell(ctx context.Context, timetableID string, req dto.TimetableCellRequest) (*models.TimetableCell, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cell payload")
	}

	timetable, err := s.Get(ctx, timetableID)
	if err != nil {
		return nil, err
	}
	if timetable.Status == models.TimetablePublished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "published timetables cannot be edited")
	}

	cell := &models.TimetableCell{
		TimetableID: timetableID,
		DayOfWeek:   req.DayOfWeek,
		TimeSlot:    req.TimeSlot,
		Line1:       strings.TrimSpace(req.Line1),
		Line2:       req.Line2,
	}
	if err := s.timetables.UpsertCell(ctx, cell); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save cell")
	}
	return cell, nil
}

// Publish validates the three-period rule and flips the timetable to
// PUBLISHED. Every day Monday through Saturday must carry exactly
// RequiredPeriodsPerDay non-empty cells.
func (s *TimetableService) Publish(ctx context.Context, timetableID string) (*models.WeeklyTimetable, error) {
	timetable, err := s.Get(ctx, timetableID)
	if err != nil {
		return nil, err
	}
	if timetable.Status == models.TimetablePublished {
		return timetable, nil
	}

	filled := make(map[int]int)
	for _, cell := range timetable.Cells {
		if strings.TrimSpace(cell.Line1) != "" {
			filled[cell.DayOfWeek]++
		}
	}

	var offending []string
	for day := 0; day < len(dayNames); day++ {
		if filled[day] != models.RequiredPeriodsPerDay {
			offending = append(offending, dayNames[day])
		}
	}
	if len(offending) > 0 {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrInvalidPeriodCount,
				fmt.Sprintf("each day needs exactly %d filled periods", models.RequiredPeriodsPerDay)),
			map[string]string{"days": strings.Join(offending, ", ")})
	}

	if err := s.timetables.UpdateStatus(ctx, timetableID, models.TimetablePublished); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish timetable")
	}
	timetable.Status = models.TimetablePublished
	return timetable, nil
}
