package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcampus/sims-api/internal/dto"
	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
)

type fakeTransactor struct{}

func (fakeTransactor) RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type mockSessionStore struct {
	session *models.Session
	roster  []models.RosterEntry
}

func (m *mockSessionStore) FindByID(ctx context.Context, id string) (*models.Session, error) {
	return m.session, nil
}

func (m *mockSessionStore) Create(ctx context.Context, session *models.Session) error {
	session.ID = "sess-1"
	return nil
}

func (m *mockSessionStore) ListByFaculty(ctx context.Context, facultyID string, limit int) ([]models.Session, error) {
	return []models.Session{*m.session}, nil
}

func (m *mockSessionStore) Roster(ctx context.Context, sessionID string) ([]models.RosterEntry, error) {
	return m.roster, nil
}

type mockAttendanceStore struct {
	existing map[string]bool
	saved    map[string]models.Attendance
	attended int
	total    int
}

func (m *mockAttendanceStore) UpsertTx(ctx context.Context, tx *sqlx.Tx, record *models.Attendance) (bool, error) {
	if m.saved == nil {
		m.saved = make(map[string]models.Attendance)
	}
	m.saved[record.StudentID] = *record
	return !m.existing[record.StudentID], nil
}

func (m *mockAttendanceStore) ListBySession(ctx context.Context, sessionID string) ([]models.Attendance, error) {
	return nil, nil
}

func (m *mockAttendanceStore) StudentSummary(ctx context.Context, studentID, periodID string) (int, int, error) {
	return m.attended, m.total, nil
}

type mockFacultyLookup struct {
	faculty *models.Faculty
}

func (m *mockFacultyLookup) FindByUserID(ctx context.Context, userID string) (*models.Faculty, error) {
	return m.faculty, nil
}

func attendanceFixture(t *testing.T, startsAt time.Time) (*AttendanceService, *mockAttendanceStore) {
	t.Helper()
	sessions := &mockSessionStore{
		session: &models.Session{
			ID:        "sess-1",
			FacultyID: "fac-1",
			StartsAt:  startsAt,
			EndsAt:    startsAt.Add(time.Hour),
		},
		roster: []models.RosterEntry{
			{StudentID: "stu-1", RegNo: "R-001"},
			{StudentID: "stu-2", RegNo: "R-002"},
			{StudentID: "stu-3", RegNo: "R-003"},
		},
	}
	attendance := &mockAttendanceStore{existing: map[string]bool{}}
	faculty := &mockFacultyLookup{faculty: &models.Faculty{ID: "fac-1"}}
	svc := NewAttendanceService(sessions, attendance, faculty, fakeTransactor{}, nil, nil, nil, AttendanceServiceConfig{})
	return svc, attendance
}

func facultyClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Roles: []models.Role{models.RoleFaculty}}
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Roles: []models.Role{models.RoleAdmin}}
}

func TestMarkLiveBackfillsPresent(t *testing.T) {
	today := time.Now().UTC()
	svc, attendance := attendanceFixture(t, today)

	summary, err := svc.MarkLive(context.Background(), "sess-1", dto.BulkAttendanceRequest{
		Date:    today.Format("2006-01-02"),
		Entries: []dto.AttendanceEntry{{StudentID: "stu-2", Status: models.AttendanceAbsent}},
	}, facultyClaims())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Absent)
	assert.Equal(t, models.AttendancePresent, attendance.saved["stu-1"].Status)
	assert.Equal(t, models.AttendanceAbsent, attendance.saved["stu-2"].Status)
	assert.Equal(t, models.AttendancePresent, attendance.saved["stu-3"].Status)
}

func TestMarkOneTouchesOnlyTarget(t *testing.T) {
	today := time.Now().UTC()
	svc, attendance := attendanceFixture(t, today)

	summary, err := svc.MarkOne(context.Background(), "sess-1", dto.MarkAttendanceRequest{
		Date:      today.Format("2006-01-02"),
		StudentID: "stu-2",
		Status:    models.AttendanceLate,
	}, facultyClaims())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Total)
	assert.Len(t, attendance.saved, 1)
}

func TestUpsertDateMismatchForbiddenForFaculty(t *testing.T) {
	today := time.Now().UTC()
	svc, _ := attendanceFixture(t, today)

	_, err := svc.MarkLive(context.Background(), "sess-1", dto.BulkAttendanceRequest{
		Date:    today.AddDate(0, 0, -1).Format("2006-01-02"),
		Entries: []dto.AttendanceEntry{{StudentID: "stu-1", Status: models.AttendancePresent}},
	}, facultyClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDateMismatch.Code, appErrors.FromError(err).Code)
}

func TestUpsertPastDateForbiddenForFaculty(t *testing.T) {
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	svc, _ := attendanceFixture(t, yesterday)

	_, err := svc.MarkLive(context.Background(), "sess-1", dto.BulkAttendanceRequest{
		Date:    yesterday.Format("2006-01-02"),
		Entries: []dto.AttendanceEntry{{StudentID: "stu-1", Status: models.AttendancePresent}},
	}, facultyClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPastDateEdit.Code, appErrors.FromError(err).Code)
}

func TestUpsertPastDateAllowedForAdmin(t *testing.T) {
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	svc, _ := attendanceFixture(t, yesterday)

	summary, err := svc.MarkLive(context.Background(), "sess-1", dto.BulkAttendanceRequest{
		Date:    yesterday.Format("2006-01-02"),
		Entries: []dto.AttendanceEntry{{StudentID: "stu-1", Status: models.AttendancePresent}},
	}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
}

func TestUpsertRejectsOffRosterStudent(t *testing.T) {
	today := time.Now().UTC()
	svc, _ := attendanceFixture(t, today)

	_, err := svc.MarkLive(context.Background(), "sess-1", dto.BulkAttendanceRequest{
		Date:    today.Format("2006-01-02"),
		Entries: []dto.AttendanceEntry{{StudentID: "stranger", Status: models.AttendancePresent}},
	}, facultyClaims())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not on this session's roster")
}

func TestUpsertForbiddenForOtherFaculty(t *testing.T) {
	today := time.Now().UTC()
	svc, _ := attendanceFixture(t, today)
	svc.faculty = &mockFacultyLookup{faculty: &models.Faculty{ID: "fac-other"}}

	_, err := svc.MarkLive(context.Background(), "sess-1", dto.BulkAttendanceRequest{
		Date:    today.Format("2006-01-02"),
		Entries: []dto.AttendanceEntry{{StudentID: "stu-1", Status: models.AttendancePresent}},
	}, facultyClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmitScannedRejectsUnknownStatus(t *testing.T) {
	today := time.Now().UTC()
	svc, _ := attendanceFixture(t, today)

	_, err := svc.SubmitScanned(context.Background(), "sess-1", dto.ScannedSheetRequest{
		Date: today.Format("2006-01-02"),
		Entries: []dto.ScannedEntry{
			{RegNo: "R-001", Status: models.AttendancePresent},
			{RegNo: "R-002", Status: models.AttendanceUnknown},
		},
	}, facultyClaims())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNKNOWN")
}

func TestSubmitScannedMapsRegNosAndBackfillsAbsent(t *testing.T) {
	today := time.Now().UTC()
	svc, attendance := attendanceFixture(t, today)

	summary, err := svc.SubmitScanned(context.Background(), "sess-1", dto.ScannedSheetRequest{
		Date: today.Format("2006-01-02"),
		Entries: []dto.ScannedEntry{
			{RegNo: "R-001", Status: models.AttendancePresent},
			{RegNo: "R-002", Status: models.AttendanceLate},
		},
	}, facultyClaims())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Absent)
	assert.Equal(t, models.AttendanceAbsent, attendance.saved["stu-3"].Status)
}

func TestSummaryEligibility(t *testing.T) {
	svc, attendance := attendanceFixture(t, time.Now().UTC())

	attendance.attended = 15
	attendance.total = 20
	summary, err := svc.Summary(context.Background(), "stu-1", "period-1")
	require.NoError(t, err)
	assert.InDelta(t, 75.0, summary.Percent, 0.001)
	assert.True(t, summary.Eligible)

	attendance.attended = 14
	summary, err = svc.Summary(context.Background(), "stu-1", "period-1")
	require.NoError(t, err)
	assert.False(t, summary.Eligible)
}

func TestCommitCSVUnknownTokenFallsBackToAbsent(t *testing.T) {
	today := time.Now().UTC()
	svc, attendance := attendanceFixture(t, today)

	csv := "reg_no,status\nR-001,p\nR-002,banana\n"
	summary, err := svc.CommitCSV(context.Background(), "sess-1", today.Format("2006-01-02"),
		strings.NewReader(csv), facultyClaims())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, models.AttendancePresent, attendance.saved["stu-1"].Status)
	assert.Equal(t, models.AttendanceAbsent, attendance.saved["stu-2"].Status)
	assert.Equal(t, models.AttendanceAbsent, attendance.saved["stu-3"].Status)
}

func TestPreviewCSVKeepsUnknownRegNoInErrors(t *testing.T) {
	today := time.Now().UTC()
	svc, _ := attendanceFixture(t, today)

	csv := "reg_no,status\nR-001,maybe\nR-999,p\n,p\n"
	preview, err := svc.PreviewCSV(context.Background(), "sess-1", strings.NewReader(csv), facultyClaims())
	require.NoError(t, err)

	assert.Equal(t, 1, preview.Matched, "unrecognised token still matches with the default status")
	assert.Equal(t, []string{"R-999"}, preview.Unknown)
	require.Len(t, preview.Errors, 1)
	assert.Equal(t, "reg_no", preview.Errors[0].Column)
}

func TestParseStatusToken(t *testing.T) {
	cases := map[string]models.AttendanceStatus{
		"p":       models.AttendancePresent,
		"Present": models.AttendancePresent,
		"1":       models.AttendancePresent,
		"a":       models.AttendanceAbsent,
		"0":       models.AttendanceAbsent,
		"L":       models.AttendanceLate,
		"leave":   models.AttendanceExcused,
	}
	for raw, want := range cases {
		got, ok := parseStatusToken(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	_, ok := parseStatusToken("maybe")
	assert.False(t, ok)
}
