package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/medcampus/sims-api/internal/dto"
	"github.com/medcampus/sims-api/internal/importer"
	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
	"github.com/medcampus/sims-api/pkg/export"
	"github.com/medcampus/sims-api/pkg/jobs"
	"github.com/medcampus/sims-api/pkg/storage"
)

// ImportCommitJobType labels queued bulk-import commits.
const ImportCommitJobType = "import_commit"

var studentRequiredColumns = []string{"reg_no", "full_name", "program", "batch", "group"}
var facultyRequiredColumns = []string{"name"}

// studentColumnAliases maps the export-style column names accepted on student
// uploads onto the canonical set.
var studentColumnAliases = map[string]string{
	"name":         "full_name",
	"program_name": "program",
	"batch_name":   "batch",
	"group_name":   "group",
}

type importJobStore interface {
	Create(ctx context.Context, job *models.ImportJob) error
	FindByID(ctx context.Context, id string) (*models.ImportJob, error)
	FindRecentByHash(ctx context.Context, filter models.ImportDuplicateFilter) (*models.ImportJob, error)
	SavePreview(ctx context.Context, job *models.ImportJob) error
	MarkCommitted(ctx context.Context, job *models.ImportJob) error
	MarkFailed(ctx context.Context, id, summary string) error
	ClaimForCommit(ctx context.Context, id string) (bool, error)
}

type importStudentStore interface {
	FindRegNos(ctx context.Context, regNos []string) (map[string]string, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, student *models.Student) error
	UpdateByRegNoTx(ctx context.Context, tx *sqlx.Tx, student *models.Student) error
}

type importFacultyStore interface {
	FindNames(ctx context.Context, names []string) (map[string]string, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, faculty *models.Faculty) error
	UpdateByNameTx(ctx context.Context, tx *sqlx.Tx, faculty *models.Faculty) error
}

type importAcademicStore interface {
	ProgramIDByName(ctx context.Context, name string) (string, error)
	BatchIDByName(ctx context.Context, programID, name string) (string, error)
	GroupIDByName(ctx context.Context, batchID, name string) (string, error)
	DepartmentIDByName(ctx context.Context, name string) (string, error)
	EnsureProgramTx(ctx context.Context, tx *sqlx.Tx, name string) (string, error)
	EnsureBatchTx(ctx context.Context, tx *sqlx.Tx, programID, name string) (string, error)
	EnsureGroupTx(ctx context.Context, tx *sqlx.Tx, batchID, name string) (string, error)
	EnsureDepartmentTx(ctx context.Context, tx *sqlx.Tx, name string) (string, error)
}

type transactor interface {
	RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type commitEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// ImportServiceConfig tunes preview and commit behaviour.
type ImportServiceConfig struct {
	DuplicateWindow     time.Duration
	AsyncCommitRowLimit int
}

// ImportService runs the two-phase CSV bulk-import pipeline: upload and
// preview produce a validated row snapshot, commit replays that snapshot
// against the database.
type ImportService struct {
	importJobs importJobStore
	students   importStudentStore
	faculty    importFacultyStore
	academics  importAcademicStore
	tx         transactor
	storage    *storage.LocalStorage
	csv        *export.CSVExporter
	phones     *importer.PhoneNormalizer
	queue      commitEnqueuer
	validator  *validator.Validate
	logger     *zap.Logger
	config     ImportServiceConfig
}

// NewImportService constructs an ImportService instance. The queue may be nil
// when async commits are disabled.
func NewImportService(
	importJobs importJobStore,
	students importStudentStore,
	faculty importFacultyStore,
	academics importAcademicStore,
	tx transactor,
	store *storage.LocalStorage,
	phones *importer.PhoneNormalizer,
	queue commitEnqueuer,
	validate *validator.Validate,
	logger *zap.Logger,
	config ImportServiceConfig,
) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.DuplicateWindow <= 0 {
		config.DuplicateWindow = 24 * time.Hour
	}
	if config.AsyncCommitRowLimit <= 0 {
		config.AsyncCommitRowLimit = 2000
	}
	return &ImportService{
		importJobs: importJobs,
		students:   students,
		faculty:    faculty,
		academics:  academics,
		tx:         tx,
		storage:    store,
		csv:        export.NewCSVExporter(),
		phones:     phones,
		queue:      queue,
		validator:  validate,
		logger:     logger,
		config:     config,
	}
}

// Preview ingests an uploaded CSV, validates every row, snapshots the result
// on a new job, and returns the per-row decisions without touching the target
// tables.
func (s *ImportService) Preview(ctx context.Context, kind models.ImportKind, opts dto.ImportUploadOptions, file io.Reader, actorID string) (*dto.ImportPreviewResponse, error) {
	if err := s.validator.Struct(opts); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import options")
	}
	if !opts.Mode.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mode must be CREATE_ONLY or UPSERT")
	}
	if kind != models.ImportStudents && kind != models.ImportFaculty {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown import kind")
	}

	// The upload streams to disk through the hash so large files are never
	// buffered whole in memory.
	hasher := sha256.New()
	now := time.Now().UTC()
	path := storage.DatedPath(fmt.Sprintf("imports/%s", kind), now, uuid.NewString()+".csv")
	if _, err := s.storage.SaveStream(path, io.TeeReader(file, hasher)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
	}
	hash := hex.EncodeToString(hasher.Sum(nil))

	stored, err := s.storage.Open(path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reopen upload")
	}
	parsed, err := importer.Parse(stored)
	stored.Close() //nolint:errcheck
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to parse csv")
	}

	required := studentRequiredColumns
	if kind == models.ImportFaculty {
		required = facultyRequiredColumns
	} else {
		parsed.Canonicalize(studentColumnAliases)
	}
	if missing := importer.MissingHeaders(parsed.Headers, required); len(missing) > 0 {
		details := make(map[string]string, len(missing))
		for _, col := range missing {
			details[col] = "required column missing"
		}
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "missing required columns"), details)
	}

	var rows []models.ImportRow
	if kind == models.ImportStudents {
		rows, err = s.previewStudents(ctx, parsed.Rows, opts)
	} else {
		rows, err = s.previewFaculty(ctx, parsed.Rows, opts)
	}
	if err != nil {
		return nil, err
	}

	valid, invalid := 0, 0
	for _, row := range rows {
		if row.Valid() {
			valid++
		} else {
			invalid++
		}
	}

	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to snapshot rows")
	}

	job := &models.ImportJob{
		Kind:       kind,
		Mode:       opts.Mode,
		FileHash:   hash,
		FilePath:   path,
		AutoCreate: opts.AutoCreate,
		TotalRows:  len(rows),
		CreatedBy:  actorID,
	}
	if err := s.importJobs.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create import job")
	}

	job.RowsJSON = rowsJSON
	job.ValidRows = valid
	job.InvalidRows = invalid

	if invalid > 0 {
		reportPath, err := s.writeErrorReport(job.ID, kind, now, parsed.Headers, rows)
		if err != nil {
			s.logger.Warn("failed to write error report", zap.String("job_id", job.ID), zap.Error(err))
		} else {
			job.ErrorReportPath = &reportPath
		}
	}

	if err := s.importJobs.SavePreview(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save preview")
	}

	resp := &dto.ImportPreviewResponse{
		JobID:       job.ID,
		Status:      string(job.Status),
		TotalRows:   job.TotalRows,
		ValidRows:   valid,
		InvalidRows: invalid,
		Rows:        rows,
	}
	if job.ErrorReportPath != nil {
		resp.ErrorReportPath = *job.ErrorReportPath
	}

	dup, err := s.importJobs.FindRecentByHash(ctx, models.ImportDuplicateFilter{
		FileHash:  hash,
		CreatedBy: actorID,
		Mode:      opts.Mode,
		ExcludeID: job.ID,
		Since:     now.Add(-s.config.DuplicateWindow),
	})
	if err != nil {
		s.logger.Warn("duplicate lookup failed", zap.Error(err))
	} else if dup != nil {
		resp.DuplicateOfJobID = dup.ID
	}

	return resp, nil
}

// Commit replays a previewed job's row snapshot against the database. Jobs
// above the async row limit are handed to the background queue instead.
func (s *ImportService) Commit(ctx context.Context, jobID string, req dto.ImportCommitRequest) (*dto.ImportCommitResponse, error) {
	job, err := s.importJobs.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "import job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load import job")
	}

	if job.Status != models.ImportPreviewed {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("job is %s, expected PREVIEWED", job.Status))
	}

	dup, err := s.importJobs.FindRecentByHash(ctx, models.ImportDuplicateFilter{
		FileHash:      job.FileHash,
		CreatedBy:     job.CreatedBy,
		Mode:          job.Mode,
		ExcludeID:     job.ID,
		Since:         job.CreatedAt.Add(-s.config.DuplicateWindow),
		CommittedOnly: true,
	})
	if err == nil && dup != nil && !req.ConfirmDuplicate {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("an identical file was committed as job %s; set confirm_duplicate to proceed", dup.ID))
	}

	claimed, err := s.importJobs.ClaimForCommit(ctx, jobID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim job")
	}
	if !claimed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "job was already committed")
	}

	if s.queue != nil && job.TotalRows > s.config.AsyncCommitRowLimit {
		if err := s.queue.Enqueue(jobs.Job{ID: jobID, Type: ImportCommitJobType, Payload: jobID}); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue commit")
		}
		return &dto.ImportCommitResponse{JobID: jobID, Status: string(models.ImportPending), Async: true}, nil
	}

	if err := s.RunCommit(ctx, jobID); err != nil {
		return nil, err
	}

	committed, err := s.importJobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload job")
	}
	return &dto.ImportCommitResponse{
		JobID:   committed.ID,
		Status:  string(committed.Status),
		Created: committed.CreatedCount,
		Updated: committed.UpdatedCount,
		Failed:  committed.FailedCount,
	}, nil
}

// SetQueue attaches the background queue. The queue's handler references this
// service, so it is wired after construction.
func (s *ImportService) SetQueue(queue commitEnqueuer) {
	s.queue = queue
}

// HandleCommitJob adapts RunCommit to the queue handler signature.
func (s *ImportService) HandleCommitJob(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	return s.RunCommit(ctx, jobID)
}

// RunCommit executes the commit of a claimed job in one transaction.
// Unresolvable rows are tallied as failed and skipped; a database error rolls
// everything back and marks the job FAILED.
func (s *ImportService) RunCommit(ctx context.Context, jobID string) error {
	job, err := s.importJobs.FindByID(ctx, jobID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load import job")
	}

	var rows []models.ImportRow
	if err := json.Unmarshal(job.RowsJSON, &rows); err != nil {
		summary := "row snapshot is unreadable"
		_ = s.importJobs.MarkFailed(ctx, jobID, summary)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, summary)
	}

	created, updated, failed := 0, 0, 0
	err = s.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
		for i, row := range rows {
			if !row.Valid() || row.Action == models.RowSkip {
				continue
			}
			var rowErr error
			if job.Kind == models.ImportStudents {
				rowErr = s.commitStudentRow(ctx, tx, job, row)
			} else {
				rowErr = s.commitFacultyRow(ctx, tx, job, row)
			}
			if rowErr != nil {
				var resolve *rowResolveError
				if errors.As(rowErr, &resolve) {
					failed++
					rows[i].Errors = append(rows[i].Errors, models.RowError{Message: resolve.reason})
					s.logger.Warn("import row skipped",
						zap.String("job_id", jobID),
						zap.Int("row", row.RowNumber),
						zap.String("reason", resolve.reason))
					continue
				}
				return rowErr
			}
			if row.Action == models.RowCreate {
				created++
			} else {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		summary := err.Error()
		if markErr := s.importJobs.MarkFailed(ctx, jobID, summary); markErr != nil {
			s.logger.Error("failed to mark import job failed", zap.String("job_id", jobID), zap.Error(markErr))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "import commit failed")
	}

	job.CreatedCount = created
	job.UpdatedCount = updated
	job.FailedCount = failed

	// Regenerate the report so commit-time failures appear alongside the
	// preview errors.
	if failed > 0 || job.InvalidRows > 0 {
		columns := s.snapshotColumns(job)
		if reportPath, reportErr := s.writeErrorReport(job.ID, job.Kind, job.CreatedAt, columns, rows); reportErr != nil {
			s.logger.Warn("failed to write error report", zap.String("job_id", jobID), zap.Error(reportErr))
		} else {
			job.ErrorReportPath = &reportPath
		}
	}

	if err := s.importJobs.MarkCommitted(ctx, job); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finish import job")
	}

	s.logger.Info("import committed",
		zap.String("job_id", jobID),
		zap.String("kind", string(job.Kind)),
		zap.Int("created", created),
		zap.Int("updated", updated),
		zap.Int("failed", failed))
	return nil
}

// GetJob returns an import job by id.
func (s *ImportService) GetJob(ctx context.Context, jobID string) (*models.ImportJob, error) {
	job, err := s.importJobs.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "import job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load import job")
	}
	return job, nil
}

// ErrorReport opens the CSV error report written during preview. The caller
// owns the returned file handle.
func (s *ImportService) ErrorReport(ctx context.Context, jobID string) (*os.File, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ErrorReportPath == nil || *job.ErrorReportPath == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job has no error report")
	}
	f, err := s.storage.Open(*job.ErrorReportPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open error report")
	}
	return f, nil
}

// rowResolveError marks a per-row lookup failure that should not abort the
// whole transaction.
type rowResolveError struct {
	reason string
}

func (e *rowResolveError) Error() string { return e.reason }

func (s *ImportService) previewStudents(ctx context.Context, parsed []importer.Row, opts dto.ImportUploadOptions) ([]models.ImportRow, error) {
	regNos := make([]string, 0, len(parsed))
	for _, row := range parsed {
		if regNo := row.Get("reg_no"); regNo != "" {
			regNos = append(regNos, regNo)
		}
	}
	existing, err := s.students.FindRegNos(ctx, regNos)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing students")
	}

	seen := make(map[string]int, len(parsed))
	rows := make([]models.ImportRow, 0, len(parsed))
	for i, raw := range parsed {
		row := models.ImportRow{RowNumber: i + 2, Action: models.RowCreate, Data: map[string]string(raw)}

		regNo := raw.Get("reg_no")
		if regNo == "" {
			row.Errors = append(row.Errors, models.RowError{Column: "reg_no", Message: "required"})
		} else if first, dup := seen[regNo]; dup {
			row.Errors = append(row.Errors, models.RowError{Column: "reg_no", Message: fmt.Sprintf("duplicate of row %d", first)})
		} else {
			seen[regNo] = row.RowNumber
		}
		if raw.Get("full_name") == "" {
			row.Errors = append(row.Errors, models.RowError{Column: "full_name", Message: "required"})
		}
		for _, col := range []string{"program", "batch", "group"} {
			if raw.Get(col) == "" {
				row.Errors = append(row.Errors, models.RowError{Column: col, Message: "required"})
			}
		}

		if _, exists := existing[regNo]; regNo != "" && exists {
			if opts.Mode == models.ImportCreateOnly {
				row.Action = models.RowSkip
				row.Errors = append(row.Errors, models.RowError{Column: "reg_no", Message: "already exists"})
			} else {
				row.Action = models.RowUpdate
			}
		}

		if status := raw.Get("status"); status != "" && !models.StudentStatus(status).Valid() {
			row.Errors = append(row.Errors, models.RowError{Column: "status", Message: "unknown status"})
		}

		if dob := raw.Get("date_of_birth"); dob != "" {
			if parsedDate, err := importer.ParseDate(dob); err != nil {
				row.Errors = append(row.Errors, models.RowError{Column: "date_of_birth", Message: err.Error()})
			} else {
				row.Data["date_of_birth"] = parsedDate.Format("2006-01-02")
			}
		}

		if phone := raw.Get("phone"); phone != "" {
			if normalized, ok := s.phones.Normalize(phone); ok {
				row.Data["phone"] = normalized
			}
		}

		if row.Valid() && !opts.AutoCreate {
			if err := s.checkStudentAxes(ctx, raw, &row); err != nil {
				return nil, err
			}
		}

		rows = append(rows, row)
	}
	return rows, nil
}

func (s *ImportService) checkStudentAxes(ctx context.Context, raw importer.Row, row *models.ImportRow) error {
	programID, err := s.academics.ProgramIDByName(ctx, raw.Get("program"))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve program")
	}
	if programID == "" {
		row.Errors = append(row.Errors, models.RowError{Column: "program", Message: "unknown program"})
		return nil
	}
	batchID, err := s.academics.BatchIDByName(ctx, programID, raw.Get("batch"))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve batch")
	}
	if batchID == "" {
		row.Errors = append(row.Errors, models.RowError{Column: "batch", Message: "unknown batch"})
		return nil
	}
	groupID, err := s.academics.GroupIDByName(ctx, batchID, raw.Get("group"))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve group")
	}
	if groupID == "" {
		row.Errors = append(row.Errors, models.RowError{Column: "group", Message: "unknown group"})
	}
	return nil
}

func (s *ImportService) previewFaculty(ctx context.Context, parsed []importer.Row, opts dto.ImportUploadOptions) ([]models.ImportRow, error) {
	names := make([]string, 0, len(parsed))
	for _, row := range parsed {
		if name := row.Get("name"); name != "" {
			names = append(names, name)
		}
	}
	existing, err := s.faculty.FindNames(ctx, names)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing faculty")
	}

	seen := make(map[string]int, len(parsed))
	rows := make([]models.ImportRow, 0, len(parsed))
	for i, raw := range parsed {
		row := models.ImportRow{RowNumber: i + 2, Action: models.RowCreate, Data: map[string]string(raw)}

		name := raw.Get("name")
		if name == "" {
			row.Errors = append(row.Errors, models.RowError{Column: "name", Message: "required"})
		} else if first, dup := seen[name]; dup {
			row.Errors = append(row.Errors, models.RowError{Column: "name", Message: fmt.Sprintf("duplicate of row %d", first)})
		} else {
			seen[name] = row.RowNumber
		}

		if _, exists := existing[name]; name != "" && exists {
			if opts.Mode == models.ImportCreateOnly {
				row.Action = models.RowSkip
				row.Errors = append(row.Errors, models.RowError{Column: "name", Message: "already exists"})
			} else {
				row.Action = models.RowUpdate
			}
		}

		if dept := raw.Get("department"); dept != "" && !opts.AutoCreate {
			deptID, err := s.academics.DepartmentIDByName(ctx, dept)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve department")
			}
			if deptID == "" {
				row.Errors = append(row.Errors, models.RowError{Column: "department", Message: "unknown department"})
			}
		}

		if phone := raw.Get("phone"); phone != "" {
			if normalized, ok := s.phones.Normalize(phone); ok {
				row.Data["phone"] = normalized
			}
		}

		rows = append(rows, row)
	}
	return rows, nil
}

func (s *ImportService) commitStudentRow(ctx context.Context, tx *sqlx.Tx, job *models.ImportJob, row models.ImportRow) error {
	programID, batchID, groupID, err := s.resolveStudentAxesTx(ctx, tx, job.AutoCreate, row)
	if err != nil {
		return err
	}

	student := &models.Student{
		RegNo:     row.Data["reg_no"],
		FullName:  row.Data["full_name"],
		ProgramID: programID,
		BatchID:   batchID,
		GroupID:   groupID,
	}
	if status := row.Data["status"]; status != "" {
		student.Status = models.StudentStatus(status)
	}
	if email := row.Data["email"]; email != "" {
		student.Email = &email
	}
	if phone := row.Data["phone"]; phone != "" {
		student.Phone = &phone
	}
	if dob := row.Data["date_of_birth"]; dob != "" {
		if parsedDate, err := time.Parse("2006-01-02", dob); err == nil {
			student.DateOfBirth = &parsedDate
		}
	}

	if row.Action == models.RowUpdate {
		return s.students.UpdateByRegNoTx(ctx, tx, student)
	}
	return s.students.CreateTx(ctx, tx, student)
}

func (s *ImportService) resolveStudentAxesTx(ctx context.Context, tx *sqlx.Tx, autoCreate bool, row models.ImportRow) (programID, batchID, groupID string, err error) {
	program, batch, group := row.Data["program"], row.Data["batch"], row.Data["group"]

	if autoCreate {
		if programID, err = s.academics.EnsureProgramTx(ctx, tx, program); err != nil {
			return "", "", "", err
		}
		if batchID, err = s.academics.EnsureBatchTx(ctx, tx, programID, batch); err != nil {
			return "", "", "", err
		}
		if groupID, err = s.academics.EnsureGroupTx(ctx, tx, batchID, group); err != nil {
			return "", "", "", err
		}
		return programID, batchID, groupID, nil
	}

	if programID, err = s.academics.ProgramIDByName(ctx, program); err != nil {
		return "", "", "", err
	}
	if programID == "" {
		return "", "", "", &rowResolveError{reason: fmt.Sprintf("program %q not found", program)}
	}
	if batchID, err = s.academics.BatchIDByName(ctx, programID, batch); err != nil {
		return "", "", "", err
	}
	if batchID == "" {
		return "", "", "", &rowResolveError{reason: fmt.Sprintf("batch %q not found", batch)}
	}
	if groupID, err = s.academics.GroupIDByName(ctx, batchID, group); err != nil {
		return "", "", "", err
	}
	if groupID == "" {
		return "", "", "", &rowResolveError{reason: fmt.Sprintf("group %q not found", group)}
	}
	return programID, batchID, groupID, nil
}

func (s *ImportService) commitFacultyRow(ctx context.Context, tx *sqlx.Tx, job *models.ImportJob, row models.ImportRow) error {
	faculty := &models.Faculty{
		Name:   row.Data["name"],
		Active: true,
	}
	if dept := row.Data["department"]; dept != "" {
		var deptID string
		var err error
		if job.AutoCreate {
			deptID, err = s.academics.EnsureDepartmentTx(ctx, tx, dept)
		} else {
			deptID, err = s.academics.DepartmentIDByName(ctx, dept)
		}
		if err != nil {
			return err
		}
		if deptID == "" {
			return &rowResolveError{reason: fmt.Sprintf("department %q not found", dept)}
		}
		faculty.DepartmentID = &deptID
	}
	if designation := row.Data["designation"]; designation != "" {
		faculty.Designation = &designation
	}
	if email := row.Data["email"]; email != "" {
		faculty.Email = &email
	}
	if phone := row.Data["phone"]; phone != "" {
		faculty.Phone = &phone
	}

	if row.Action == models.RowUpdate {
		return s.faculty.UpdateByNameTx(ctx, tx, faculty)
	}
	return s.faculty.CreateTx(ctx, tx, faculty)
}

// writeErrorReport renders the failed rows with their original columns plus
// row_number and error_message, so the file can be corrected and re-uploaded.
func (s *ImportService) writeErrorReport(jobID string, kind models.ImportKind, now time.Time, columns []string, rows []models.ImportRow) (string, error) {
	headers := append([]string{"row_number"}, columns...)
	headers = append(headers, "error_message")
	dataset := export.Dataset{Headers: headers}

	for _, row := range rows {
		if len(row.Errors) == 0 {
			continue
		}
		record := map[string]string{"row_number": strconv.Itoa(row.RowNumber)}
		for _, col := range columns {
			record[col] = export.SanitizeCell(row.Data[col])
		}
		messages := make([]string, 0, len(row.Errors))
		for _, rowErr := range row.Errors {
			if rowErr.Column != "" {
				messages = append(messages, fmt.Sprintf("%s: %s", rowErr.Column, rowErr.Message))
			} else {
				messages = append(messages, rowErr.Message)
			}
		}
		record["error_message"] = export.SanitizeCell(strings.Join(messages, "; "))
		dataset.Rows = append(dataset.Rows, record)
	}

	rendered, err := s.csv.Render(dataset)
	if err != nil {
		return "", err
	}
	path := storage.DatedPath(fmt.Sprintf("imports/%s/errors", kind), now, jobID+".csv")
	return s.storage.Save(path, rendered)
}

// snapshotColumns recovers the uploaded file's column set for report
// rendering. Falls back to the required columns if the file is gone.
func (s *ImportService) snapshotColumns(job *models.ImportJob) []string {
	file, err := s.storage.Open(job.FilePath)
	if err == nil {
		defer file.Close() //nolint:errcheck
		if parsed, parseErr := importer.Parse(file); parseErr == nil {
			if job.Kind == models.ImportStudents {
				parsed.Canonicalize(studentColumnAliases)
			}
			return parsed.Headers
		}
	}
	if job.Kind == models.ImportFaculty {
		return facultyRequiredColumns
	}
	return studentRequiredColumns
}
