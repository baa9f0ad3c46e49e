package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/medcampus/sims-api/internal/dto"
	"github.com/medcampus/sims-api/internal/importer"
	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
)

type attendanceSessionStore interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	Create(ctx context.Context, session *models.Session) error
	ListByFaculty(ctx context.Context, facultyID string, limit int) ([]models.Session, error)
	Roster(ctx context.Context, sessionID string) ([]models.RosterEntry, error)
}

type attendanceStore interface {
	UpsertTx(ctx context.Context, tx *sqlx.Tx, record *models.Attendance) (bool, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.Attendance, error)
	StudentSummary(ctx context.Context, studentID, periodID string) (attended, total int, err error)
}

type attendanceFacultyLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.Faculty, error)
}

// AttendanceServiceConfig tunes caching and eligibility.
type AttendanceServiceConfig struct {
	RosterCacheTTL       time.Duration
	EligibilityThreshold float64
}

// AttendanceService manages teaching sessions and the three attendance input
// paths, funnelling every adapter through one upsert.
type AttendanceService struct {
	sessions   attendanceSessionStore
	attendance attendanceStore
	faculty    attendanceFacultyLookup
	tx         transactor
	redis      *redis.Client
	validator  *validator.Validate
	logger     *zap.Logger
	config     AttendanceServiceConfig
}

// NewAttendanceService constructs an AttendanceService instance. The redis
// client may be nil; roster caching is then disabled.
func NewAttendanceService(
	sessions attendanceSessionStore,
	attendance attendanceStore,
	faculty attendanceFacultyLookup,
	tx transactor,
	redisClient *redis.Client,
	validate *validator.Validate,
	logger *zap.Logger,
	config AttendanceServiceConfig,
) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.RosterCacheTTL <= 0 {
		config.RosterCacheTTL = 5 * time.Minute
	}
	if config.EligibilityThreshold <= 0 {
		config.EligibilityThreshold = 75.0
	}
	return &AttendanceService{
		sessions:   sessions,
		attendance: attendance,
		faculty:    faculty,
		tx:         tx,
		redis:      redisClient,
		validator:  validate,
		logger:     logger,
		config:     config,
	}
}

// CreateSession opens a teaching session.
func (s *AttendanceService) CreateSession(ctx context.Context, session *models.Session) (*models.Session, error) {
	if !session.StartsAt.Before(session.EndsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session must start before it ends")
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	return session, nil
}

// ListSessions returns sessions visible to the caller. FACULTY callers only
// see their own sessions.
func (s *AttendanceService) ListSessions(ctx context.Context, claims *models.JWTClaims, facultyID string, limit int) ([]models.Session, error) {
	if !claims.HasAnyRole(models.RoleAdmin, models.RoleCoordinator) {
		member, err := s.faculty.FindByUserID(ctx, claims.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve faculty")
		}
		if member == nil {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no faculty record linked to this account")
		}
		facultyID = member.ID
	}
	if facultyID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "faculty_id is required")
	}
	sessions, err := s.sessions.ListByFaculty(ctx, facultyID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// Roster returns the session's student roster joined with any existing
// attendance, served from cache when fresh.
func (s *AttendanceService) Roster(ctx context.Context, sessionID string, claims *models.JWTClaims) ([]models.RosterEntry, error) {
	if _, err := s.authorizeSession(ctx, sessionID, claims); err != nil {
		return nil, err
	}

	cacheKey := "roster:" + sessionID
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var roster []models.RosterEntry
			if json.Unmarshal(cached, &roster) == nil {
				return roster, nil
			}
		}
	}

	roster, err := s.sessions.Roster(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	if s.redis != nil {
		if encoded, err := json.Marshal(roster); err == nil {
			if err := s.redis.Set(ctx, cacheKey, encoded, s.config.RosterCacheTTL).Err(); err != nil {
				s.logger.Warn("roster cache write failed", zap.Error(err))
			}
		}
	}
	return roster, nil
}

// MarkLive records a live-roster submission: the payload carries only the
// exceptions and everyone else on the roster is marked PRESENT.
func (s *AttendanceService) MarkLive(ctx context.Context, sessionID string, req dto.BulkAttendanceRequest, claims *models.JWTClaims) (*models.AttendanceUpsertSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	records := make([]models.AttendanceRecord, 0, len(req.Entries))
	for _, entry := range req.Entries {
		records = append(records, models.AttendanceRecord{StudentID: entry.StudentID, Status: entry.Status, Notes: entry.Notes})
	}
	return s.UpsertForSession(ctx, sessionID, records, models.AttendancePresent, claims, req.Date)
}

// MarkOne toggles a single student without touching the rest of the roster.
func (s *AttendanceService) MarkOne(ctx context.Context, sessionID string, req dto.MarkAttendanceRequest, claims *models.JWTClaims) (*models.AttendanceUpsertSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	records := []models.AttendanceRecord{{StudentID: req.StudentID, Status: req.Status, Notes: req.Notes}}
	return s.UpsertForSession(ctx, sessionID, records, "", claims, req.Date)
}

// PreviewCSV dry-runs an uploaded attendance CSV against the roster without
// writing anything.
func (s *AttendanceService) PreviewCSV(ctx context.Context, sessionID string, file io.Reader, claims *models.JWTClaims) (*models.AttendanceCSVPreview, error) {
	if _, err := s.authorizeSession(ctx, sessionID, claims); err != nil {
		return nil, err
	}
	_, preview, err := s.parseAttendanceCSV(ctx, sessionID, file)
	if err != nil {
		return nil, err
	}
	return preview, nil
}

// CommitCSV applies an uploaded attendance CSV. Roster students absent from
// the file are marked ABSENT.
func (s *AttendanceService) CommitCSV(ctx context.Context, sessionID, date string, file io.Reader, claims *models.JWTClaims) (*models.AttendanceUpsertSummary, error) {
	records, preview, err := s.parseAttendanceCSV(ctx, sessionID, file)
	if err != nil {
		return nil, err
	}
	if len(preview.Errors) > 0 || len(preview.Unknown) > 0 {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "csv contains unresolved rows; run a dry-run preview first"),
			map[string]string{"unknown": strings.Join(preview.Unknown, ", ")})
	}
	return s.UpsertForSession(ctx, sessionID, records, models.AttendanceAbsent, claims, date)
}

// ScannedSheetTemplate returns one UNKNOWN row per roster student for the
// operator to resolve while transcribing a scanned paper sheet.
func (s *AttendanceService) ScannedSheetTemplate(ctx context.Context, sessionID string, claims *models.JWTClaims) ([]models.AttendanceRecord, error) {
	roster, err := s.Roster(ctx, sessionID, claims)
	if err != nil {
		return nil, err
	}
	records := make([]models.AttendanceRecord, 0, len(roster))
	for _, entry := range roster {
		records = append(records, models.AttendanceRecord{
			StudentID: entry.StudentID,
			RegNo:     entry.RegNo,
			Status:    models.AttendanceUnknown,
		})
	}
	return records, nil
}

// SubmitScanned applies a transcribed scanned sheet. Every entry must carry a
// resolved status; roster students missing from the payload are marked ABSENT.
func (s *AttendanceService) SubmitScanned(ctx context.Context, sessionID string, req dto.ScannedSheetRequest, claims *models.JWTClaims) (*models.AttendanceUpsertSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scanned sheet payload")
	}

	roster, err := s.Roster(ctx, sessionID, claims)
	if err != nil {
		return nil, err
	}
	byRegNo := make(map[string]string, len(roster))
	for _, entry := range roster {
		byRegNo[entry.RegNo] = entry.StudentID
	}

	records := make([]models.AttendanceRecord, 0, len(req.Entries))
	for i, entry := range req.Entries {
		if entry.Status == models.AttendanceUnknown {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("entry %d (%s) is still UNKNOWN", i+1, entry.RegNo))
		}
		studentID, ok := byRegNo[entry.RegNo]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("reg_no %s is not on this session's roster", entry.RegNo))
		}
		records = append(records, models.AttendanceRecord{StudentID: studentID, RegNo: entry.RegNo, Status: entry.Status})
	}
	return s.UpsertForSession(ctx, sessionID, records, models.AttendanceAbsent, claims, req.Date)
}

// UpsertForSession is the single write path shared by every input adapter.
// When defaultStatus is non-empty, roster students missing from records are
// filled with it. The whole batch commits in one transaction.
func (s *AttendanceService) UpsertForSession(ctx context.Context, sessionID string, records []models.AttendanceRecord, defaultStatus models.AttendanceStatus, actor *models.JWTClaims, targetDate string) (*models.AttendanceUpsertSummary, error) {
	session, err := s.authorizeSession(ctx, sessionID, actor)
	if err != nil {
		return nil, err
	}
	if err := s.checkDatePolicy(session, targetDate, actor); err != nil {
		return nil, err
	}

	roster, err := s.sessions.Roster(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	onRoster := make(map[string]struct{}, len(roster))
	for _, entry := range roster {
		onRoster[entry.StudentID] = struct{}{}
	}

	byStudent := make(map[string]models.AttendanceRecord, len(records))
	for _, record := range records {
		if !record.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid status %q for student %s", record.Status, record.StudentID))
		}
		if _, ok := onRoster[record.StudentID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not on this session's roster", record.StudentID))
		}
		byStudent[record.StudentID] = record
	}

	if defaultStatus != "" {
		for _, entry := range roster {
			if _, ok := byStudent[entry.StudentID]; !ok {
				byStudent[entry.StudentID] = models.AttendanceRecord{StudentID: entry.StudentID, Status: defaultStatus}
			}
		}
	}

	summary := &models.AttendanceUpsertSummary{}
	markedBy := actor.UserID
	err = s.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
		for _, record := range byStudent {
			inserted, err := s.attendance.UpsertTx(ctx, tx, &models.Attendance{
				SessionID: sessionID,
				StudentID: record.StudentID,
				Status:    record.Status,
				MarkedBy:  &markedBy,
				Notes:     record.Notes,
			})
			if err != nil {
				return err
			}
			if inserted {
				summary.Created++
			} else {
				summary.Updated++
			}
			if record.Status == models.AttendanceAbsent {
				summary.Absent++
			}
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}
	summary.Total = summary.Created + summary.Updated

	s.invalidateRoster(ctx, sessionID)
	return summary, nil
}

// Summary tallies a student's attendance over a period against the
// eligibility threshold.
func (s *AttendanceService) Summary(ctx context.Context, studentID, periodID string) (*models.AttendanceSummary, error) {
	attended, total, err := s.attendance.StudentSummary(ctx, studentID, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	summary := &models.AttendanceSummary{Attended: attended, Total: total}
	if total > 0 {
		summary.Percent = float64(attended) / float64(total) * 100
	}
	summary.Eligible = summary.Percent >= s.config.EligibilityThreshold
	return summary, nil
}

// authorizeSession loads the session and enforces the FACULTY tenancy cut:
// faculty members may only touch their own sessions.
func (s *AttendanceService) authorizeSession(ctx context.Context, sessionID string, claims *models.JWTClaims) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	if claims.HasAnyRole(models.RoleAdmin, models.RoleCoordinator) {
		return session, nil
	}

	member, err := s.faculty.FindByUserID(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve faculty")
	}
	if member == nil || member.ID != session.FacultyID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "session belongs to another faculty member")
	}
	return session, nil
}

// checkDatePolicy enforces the editing window: the submitted date must match
// the session date, and past-date edits require elevated roles.
func (s *AttendanceService) checkDatePolicy(session *models.Session, targetDate string, claims *models.JWTClaims) error {
	target, err := time.Parse("2006-01-02", targetDate)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}

	elevated := claims.HasAnyRole(models.RoleAdmin, models.RoleCoordinator)
	sessionDay := session.StartsAt.UTC().Truncate(24 * time.Hour)
	targetDay := target.UTC().Truncate(24 * time.Hour)
	today := time.Now().UTC().Truncate(24 * time.Hour)

	if !targetDay.Equal(sessionDay) && !elevated {
		return appErrors.Clone(appErrors.ErrDateMismatch, "")
	}
	if sessionDay.Before(today) && !elevated {
		return appErrors.Clone(appErrors.ErrPastDateEdit, "")
	}
	return nil
}

func (s *AttendanceService) parseAttendanceCSV(ctx context.Context, sessionID string, file io.Reader) ([]models.AttendanceRecord, *models.AttendanceCSVPreview, error) {
	parsed, err := importer.Parse(file)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to parse csv")
	}
	if missing := importer.MissingHeaders(parsed.Headers, []string{"reg_no", "status"}); len(missing) > 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "csv must have reg_no and status columns")
	}

	roster, err := s.sessions.Roster(ctx, sessionID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	byRegNo := make(map[string]string, len(roster))
	for _, entry := range roster {
		byRegNo[entry.RegNo] = entry.StudentID
	}

	preview := &models.AttendanceCSVPreview{}
	seen := make(map[string]struct{})
	var records []models.AttendanceRecord
	for i, row := range parsed.Rows {
		rowNumber := i + 2
		regNo := row.Get("reg_no")
		if regNo == "" {
			preview.Errors = append(preview.Errors, models.RowIssue{Row: rowNumber, Column: "reg_no", Message: "required"})
			continue
		}
		if _, dup := seen[regNo]; dup {
			preview.Duplicates = append(preview.Duplicates, regNo)
			continue
		}
		seen[regNo] = struct{}{}

		studentID, ok := byRegNo[regNo]
		if !ok {
			preview.Unknown = append(preview.Unknown, regNo)
			continue
		}

		// Unrecognised tokens fall back to the adapter default rather than
		// dropping the row.
		status, ok := parseStatusToken(row.Get("status"))
		if !ok {
			status = models.AttendanceAbsent
		}

		preview.Matched++
		records = append(records, models.AttendanceRecord{StudentID: studentID, RegNo: regNo, Status: status})
	}
	return records, preview, nil
}

// parseStatusToken maps the loose tokens seen in the wild onto statuses.
func parseStatusToken(raw string) (models.AttendanceStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "p", "present", "1", "true", "y", "yes":
		return models.AttendancePresent, true
	case "a", "absent", "0", "false", "n", "no":
		return models.AttendanceAbsent, true
	case "l", "late":
		return models.AttendanceLate, true
	case "e", "excused", "leave":
		return models.AttendanceExcused, true
	default:
		return "", false
	}
}

func (s *AttendanceService) invalidateRoster(ctx context.Context, sessionID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, "roster:"+sessionID).Err(); err != nil {
		s.logger.Warn("roster cache invalidation failed", zap.Error(err))
	}
}
