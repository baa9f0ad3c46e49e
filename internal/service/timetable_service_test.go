package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcampus/sims-api/internal/dto"
	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
)

type mockTimetableStore struct {
	timetable *models.WeeklyTimetable
	status    models.TimetableStatus
}

func (m *mockTimetableStore) FindByID(ctx context.Context, id string) (*models.WeeklyTimetable, error) {
	return m.timetable, nil
}

func (m *mockTimetableStore) Cells(ctx context.Context, timetableID string) ([]models.TimetableCell, error) {
	return m.timetable.Cells, nil
}

func (m *mockTimetableStore) Create(ctx context.Context, timetable *models.WeeklyTimetable) error {
	timetable.ID = "tt-1"
	m.timetable = timetable
	return nil
}

func (m *mockTimetableStore) UpsertCell(ctx context.Context, cell *models.TimetableCell) error {
	m.timetable.Cells = append(m.timetable.Cells, *cell)
	return nil
}

func (m *mockTimetableStore) UpdateStatus(ctx context.Context, id string, status models.TimetableStatus) error {
	m.status = status
	return nil
}

func fullWeek() []models.TimetableCell {
	var cells []models.TimetableCell
	for day := 0; day < 6; day++ {
		for slot, name := range []string{"09:00", "11:00", "14:00"} {
			_ = slot
			cells = append(cells, models.TimetableCell{DayOfWeek: day, TimeSlot: name, Line1: "Anatomy"})
		}
	}
	return cells
}

func TestTimetableCreateRequiresMonday(t *testing.T) {
	svc := NewTimetableService(&mockTimetableStore{}, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateTimetableRequest{
		BatchID:   "batch-1",
		PeriodID:  "period-1",
		WeekStart: "2026-01-06", // a Tuesday
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	timetable, err := svc.Create(context.Background(), dto.CreateTimetableRequest{
		BatchID:   "batch-1",
		PeriodID:  "period-1",
		WeekStart: "2026-01-05",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TimetableDraft, timetable.Status)
}

func TestTimetablePublishHappyPath(t *testing.T) {
	store := &mockTimetableStore{timetable: &models.WeeklyTimetable{
		ID:     "tt-1",
		Status: models.TimetableDraft,
		Cells:  fullWeek(),
	}}
	svc := NewTimetableService(store, nil, nil)

	timetable, err := svc.Publish(context.Background(), "tt-1")
	require.NoError(t, err)
	assert.Equal(t, models.TimetablePublished, timetable.Status)
	assert.Equal(t, models.TimetablePublished, store.status)
}

func TestTimetablePublishReportsOffendingDays(t *testing.T) {
	cells := fullWeek()
	// Knock out one Wednesday period and blank a Saturday one.
	trimmed := cells[:0]
	for _, cell := range cells {
		if cell.DayOfWeek == 2 && cell.TimeSlot == "14:00" {
			continue
		}
		if cell.DayOfWeek == 5 && cell.TimeSlot == "09:00" {
			cell.Line1 = "   "
		}
		trimmed = append(trimmed, cell)
	}
	store := &mockTimetableStore{timetable: &models.WeeklyTimetable{
		ID:     "tt-1",
		Status: models.TimetableDraft,
		Cells:  trimmed,
	}}
	svc := NewTimetableService(store, nil, nil)

	_, err := svc.Publish(context.Background(), "tt-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidPeriodCount.Code, appErr.Code)
	assert.Equal(t, "Wednesday, Saturday", appErr.Details["days"])
}

func TestTimetablePublishIdempotent(t *testing.T) {
	store := &mockTimetableStore{timetable: &models.WeeklyTimetable{
		ID:     "tt-1",
		Status: models.TimetablePublished,
	}}
	svc := NewTimetableService(store, nil, nil)

	timetable, err := svc.Publish(context.Background(), "tt-1")
	require.NoError(t, err)
	assert.Equal(t, models.TimetablePublished, timetable.Status)
	assert.Empty(t, store.status)
}

func TestTimetableSetCellRejectedAfterPublish(t *testing.T) {
	store := &mockTimetableStore{timetable: &models.WeeklyTimetable{
		ID:     "tt-1",
		Status: models.TimetablePublished,
	}}
	svc := NewTimetableService(store, nil, nil)

	_, err := svc.SetCell(context.Background(), "tt-1", dto.TimetableCellRequest{
		DayOfWeek: 0,
		TimeSlot:  "09:00",
		Line1:     "Physiology",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
