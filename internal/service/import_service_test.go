package service

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcampus/sims-api/internal/dto"
	"github.com/medcampus/sims-api/internal/importer"
	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
	"github.com/medcampus/sims-api/pkg/storage"
)

type mockImportJobStore struct {
	job       *models.ImportJob
	dup       *models.ImportJob
	dupFilter models.ImportDuplicateFilter
	claimed   bool
	failed    string
}

func (m *mockImportJobStore) Create(ctx context.Context, job *models.ImportJob) error {
	job.ID = "job-1"
	job.Status = models.ImportPending
	job.CreatedAt = time.Now().UTC()
	m.job = job
	return nil
}

func (m *mockImportJobStore) FindByID(ctx context.Context, id string) (*models.ImportJob, error) {
	return m.job, nil
}

func (m *mockImportJobStore) FindRecentByHash(ctx context.Context, filter models.ImportDuplicateFilter) (*models.ImportJob, error) {
	m.dupFilter = filter
	return m.dup, nil
}

func (m *mockImportJobStore) SavePreview(ctx context.Context, job *models.ImportJob) error {
	job.Status = models.ImportPreviewed
	m.job = job
	return nil
}

func (m *mockImportJobStore) MarkCommitted(ctx context.Context, job *models.ImportJob) error {
	job.Status = models.ImportCommitted
	m.job = job
	return nil
}

func (m *mockImportJobStore) MarkFailed(ctx context.Context, id, summary string) error {
	m.failed = summary
	return nil
}

func (m *mockImportJobStore) ClaimForCommit(ctx context.Context, id string) (bool, error) {
	if m.claimed {
		return false, nil
	}
	m.claimed = true
	return true, nil
}

type mockImportStudentStore struct {
	existing map[string]string
	created  []string
	updated  []string
}

func (m *mockImportStudentStore) FindRegNos(ctx context.Context, regNos []string) (map[string]string, error) {
	return m.existing, nil
}

func (m *mockImportStudentStore) CreateTx(ctx context.Context, tx *sqlx.Tx, student *models.Student) error {
	m.created = append(m.created, student.RegNo)
	return nil
}

func (m *mockImportStudentStore) UpdateByRegNoTx(ctx context.Context, tx *sqlx.Tx, student *models.Student) error {
	m.updated = append(m.updated, student.RegNo)
	return nil
}

type mockImportFacultyStore struct {
	existing map[string]string
}

func (m *mockImportFacultyStore) FindNames(ctx context.Context, names []string) (map[string]string, error) {
	return m.existing, nil
}

func (m *mockImportFacultyStore) CreateTx(ctx context.Context, tx *sqlx.Tx, faculty *models.Faculty) error {
	return nil
}

func (m *mockImportFacultyStore) UpdateByNameTx(ctx context.Context, tx *sqlx.Tx, faculty *models.Faculty) error {
	return nil
}

type mockImportAcademicStore struct {
	programs map[string]string
	batches  map[string]string
	groups   map[string]string
	depts    map[string]string
}

func (m *mockImportAcademicStore) ProgramIDByName(ctx context.Context, name string) (string, error) {
	return m.programs[name], nil
}

func (m *mockImportAcademicStore) BatchIDByName(ctx context.Context, programID, name string) (string, error) {
	return m.batches[name], nil
}

func (m *mockImportAcademicStore) GroupIDByName(ctx context.Context, batchID, name string) (string, error) {
	return m.groups[name], nil
}

func (m *mockImportAcademicStore) DepartmentIDByName(ctx context.Context, name string) (string, error) {
	return m.depts[name], nil
}

func (m *mockImportAcademicStore) EnsureProgramTx(ctx context.Context, tx *sqlx.Tx, name string) (string, error) {
	if id := m.programs[name]; id != "" {
		return id, nil
	}
	return "prog-new", nil
}

func (m *mockImportAcademicStore) EnsureBatchTx(ctx context.Context, tx *sqlx.Tx, programID, name string) (string, error) {
	if id := m.batches[name]; id != "" {
		return id, nil
	}
	return "batch-new", nil
}

func (m *mockImportAcademicStore) EnsureGroupTx(ctx context.Context, tx *sqlx.Tx, batchID, name string) (string, error) {
	if id := m.groups[name]; id != "" {
		return id, nil
	}
	return "group-new", nil
}

func (m *mockImportAcademicStore) EnsureDepartmentTx(ctx context.Context, tx *sqlx.Tx, name string) (string, error) {
	return "dept-new", nil
}

func knownAcademics() *mockImportAcademicStore {
	return &mockImportAcademicStore{
		programs: map[string]string{"MBBS": "prog-1"},
		batches:  map[string]string{"2026": "batch-1"},
		groups:   map[string]string{"A": "group-1"},
	}
}

func importFixture(t *testing.T, jobStore *mockImportJobStore, students *mockImportStudentStore, academics *mockImportAcademicStore) *ImportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewImportService(jobStore, students, &mockImportFacultyStore{}, academics,
		fakeTransactor{}, store, importer.NewPhoneNormalizer("92"), nil, nil, nil,
		ImportServiceConfig{})
}

const studentCSV = "reg_no,full_name,program,batch,group,phone\n" +
	"R-001,Ayesha Malik,MBBS,2026,A,0301-2345678\n" +
	"R-001,Duplicate Row,MBBS,2026,A,\n" +
	"R-002,,MBBS,2026,A,\n"

func TestPreviewTalliesRowsAndReportsErrors(t *testing.T) {
	jobStore := &mockImportJobStore{}
	svc := importFixture(t, jobStore, &mockImportStudentStore{}, knownAcademics())

	resp, err := svc.Preview(context.Background(), models.ImportStudents,
		dto.ImportUploadOptions{Mode: models.ImportUpsert},
		strings.NewReader(studentCSV), "actor-1")
	require.NoError(t, err)

	assert.Equal(t, 3, resp.TotalRows)
	assert.Equal(t, 1, resp.ValidRows)
	assert.Equal(t, 2, resp.InvalidRows)
	assert.NotEmpty(t, resp.ErrorReportPath)
	assert.Equal(t, string(models.ImportPreviewed), resp.Status)

	require.Len(t, resp.Rows, 3)
	assert.Equal(t, "+923012345678", resp.Rows[0].Data["phone"])
	require.Len(t, resp.Rows[1].Errors, 1)
	assert.Contains(t, resp.Rows[1].Errors[0].Message, "duplicate of row 2")
	assert.Equal(t, "full_name", resp.Rows[2].Errors[0].Column)

	assert.NotEmpty(t, jobStore.job.FileHash)
	assert.Equal(t, "actor-1", jobStore.dupFilter.CreatedBy)
	assert.Equal(t, models.ImportUpsert, jobStore.dupFilter.Mode)
	assert.Equal(t, "job-1", jobStore.dupFilter.ExcludeID)
	assert.False(t, jobStore.dupFilter.CommittedOnly)

	report, err := svc.ErrorReport(context.Background(), "job-1")
	require.NoError(t, err)
	defer report.Close() //nolint:errcheck
	content, err := io.ReadAll(report)
	require.NoError(t, err)
	assert.Contains(t, string(content), "row_number")
	assert.Contains(t, string(content), "error_message")
	assert.Contains(t, string(content), "reg_no")
	assert.Contains(t, string(content), "full_name: required")
}

func TestPreviewAcceptsAliasedHeaders(t *testing.T) {
	svc := importFixture(t, &mockImportJobStore{}, &mockImportStudentStore{}, knownAcademics())

	resp, err := svc.Preview(context.Background(), models.ImportStudents,
		dto.ImportUploadOptions{Mode: models.ImportUpsert},
		strings.NewReader("reg_no,name,program_name,batch_name,group_name\nR-001,Ayesha Malik,MBBS,2026,A\n"), "actor-1")
	require.NoError(t, err)

	assert.Equal(t, 1, resp.ValidRows)
	assert.Equal(t, 0, resp.InvalidRows)
	assert.Equal(t, "Ayesha Malik", resp.Rows[0].Data["full_name"])
	assert.Equal(t, "MBBS", resp.Rows[0].Data["program"])
}

func TestPreviewRejectsMissingColumns(t *testing.T) {
	svc := importFixture(t, &mockImportJobStore{}, &mockImportStudentStore{}, knownAcademics())

	_, err := svc.Preview(context.Background(), models.ImportStudents,
		dto.ImportUploadOptions{Mode: models.ImportUpsert},
		strings.NewReader("reg_no,full_name\nR-001,Ayesha Malik\n"), "actor-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Details, "program")
}

func TestPreviewModeControlsExistingRows(t *testing.T) {
	students := &mockImportStudentStore{existing: map[string]string{"R-001": "stu-1"}}
	csv := "reg_no,full_name,program,batch,group\nR-001,Ayesha Malik,MBBS,2026,A\n"

	svc := importFixture(t, &mockImportJobStore{}, students, knownAcademics())
	resp, err := svc.Preview(context.Background(), models.ImportStudents,
		dto.ImportUploadOptions{Mode: models.ImportCreateOnly},
		strings.NewReader(csv), "actor-1")
	require.NoError(t, err)
	assert.Equal(t, models.RowSkip, resp.Rows[0].Action)
	assert.Contains(t, resp.Rows[0].Errors[0].Message, "already exists")

	svc = importFixture(t, &mockImportJobStore{}, students, knownAcademics())
	resp, err = svc.Preview(context.Background(), models.ImportStudents,
		dto.ImportUploadOptions{Mode: models.ImportUpsert},
		strings.NewReader(csv), "actor-1")
	require.NoError(t, err)
	assert.Equal(t, models.RowUpdate, resp.Rows[0].Action)
	assert.Empty(t, resp.Rows[0].Errors)
}

func TestPreviewFlagsUnknownAxes(t *testing.T) {
	svc := importFixture(t, &mockImportJobStore{}, &mockImportStudentStore{}, &mockImportAcademicStore{
		programs: map[string]string{"MBBS": "prog-1"},
	})

	resp, err := svc.Preview(context.Background(), models.ImportStudents,
		dto.ImportUploadOptions{Mode: models.ImportUpsert},
		strings.NewReader("reg_no,full_name,program,batch,group\nR-001,Ayesha Malik,MBBS,2026,A\n"), "actor-1")
	require.NoError(t, err)
	require.Len(t, resp.Rows[0].Errors, 1)
	assert.Equal(t, "batch", resp.Rows[0].Errors[0].Column)
}

func previewedJob(rows []models.ImportRow) *models.ImportJob {
	rowsJSON, _ := json.Marshal(rows)
	return &models.ImportJob{
		ID:        "job-1",
		Kind:      models.ImportStudents,
		Mode:      models.ImportUpsert,
		Status:    models.ImportPreviewed,
		FileHash:  "hash-1",
		TotalRows: len(rows),
		RowsJSON:  rowsJSON,
		CreatedBy: "actor-1",
		CreatedAt: time.Now().UTC(),
	}
}

func TestCommitRequiresPreviewedJob(t *testing.T) {
	jobStore := &mockImportJobStore{job: &models.ImportJob{ID: "job-1", Status: models.ImportCommitted}}
	svc := importFixture(t, jobStore, &mockImportStudentStore{}, knownAcademics())

	_, err := svc.Commit(context.Background(), "job-1", dto.ImportCommitRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCommitDuplicateNeedsConfirmation(t *testing.T) {
	job := previewedJob([]models.ImportRow{{
		RowNumber: 2,
		Action:    models.RowCreate,
		Data:      map[string]string{"reg_no": "R-001", "full_name": "Ayesha Malik", "program": "MBBS", "batch": "2026", "group": "A"},
	}})
	jobStore := &mockImportJobStore{job: job, dup: &models.ImportJob{ID: "job-0"}}
	students := &mockImportStudentStore{}
	svc := importFixture(t, jobStore, students, knownAcademics())

	_, err := svc.Commit(context.Background(), "job-1", dto.ImportCommitRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.True(t, jobStore.dupFilter.CommittedOnly)
	assert.Equal(t, "actor-1", jobStore.dupFilter.CreatedBy)

	resp, err := svc.Commit(context.Background(), "job-1", dto.ImportCommitRequest{ConfirmDuplicate: true})
	require.NoError(t, err)
	assert.False(t, resp.Async)
	assert.Equal(t, 1, resp.Created)
	assert.Equal(t, []string{"R-001"}, students.created)
}

func TestCommitClaimWinsOnlyOnce(t *testing.T) {
	jobStore := &mockImportJobStore{job: previewedJob(nil), claimed: true}
	svc := importFixture(t, jobStore, &mockImportStudentStore{}, knownAcademics())

	_, err := svc.Commit(context.Background(), "job-1", dto.ImportCommitRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already committed")
}

func TestCommitLargeJobGoesAsync(t *testing.T) {
	job := previewedJob(nil)
	job.TotalRows = 5
	jobStore := &mockImportJobStore{job: job}
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	queue := &mockEnqueuer{}
	svc := NewImportService(jobStore, &mockImportStudentStore{}, &mockImportFacultyStore{}, knownAcademics(),
		fakeTransactor{}, store, importer.NewPhoneNormalizer("92"), queue, nil, nil,
		ImportServiceConfig{AsyncCommitRowLimit: 2})

	resp, err := svc.Commit(context.Background(), "job-1", dto.ImportCommitRequest{})
	require.NoError(t, err)
	assert.True(t, resp.Async)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, ImportCommitJobType, queue.jobs[0].Type)
}

func TestRunCommitSkipsUnresolvableRows(t *testing.T) {
	job := previewedJob([]models.ImportRow{
		{
			RowNumber: 2,
			Action:    models.RowCreate,
			Data:      map[string]string{"reg_no": "R-001", "full_name": "Ayesha Malik", "program": "MBBS", "batch": "2026", "group": "A"},
		},
		{
			RowNumber: 3,
			Action:    models.RowCreate,
			Data:      map[string]string{"reg_no": "R-002", "full_name": "Bilal Shah", "program": "BDS", "batch": "2026", "group": "A"},
		},
	})
	jobStore := &mockImportJobStore{job: job}
	students := &mockImportStudentStore{}
	svc := importFixture(t, jobStore, students, knownAcademics())

	require.NoError(t, svc.RunCommit(context.Background(), "job-1"))
	assert.Equal(t, models.ImportCommitted, jobStore.job.Status)
	assert.Equal(t, 1, jobStore.job.CreatedCount)
	assert.Equal(t, 1, jobStore.job.FailedCount)
	assert.Equal(t, []string{"R-001"}, students.created)

	// The failed row shows up in the regenerated error report.
	require.NotNil(t, jobStore.job.ErrorReportPath)
	report, err := svc.ErrorReport(context.Background(), "job-1")
	require.NoError(t, err)
	defer report.Close() //nolint:errcheck
	content, err := io.ReadAll(report)
	require.NoError(t, err)
	assert.Contains(t, string(content), "error_message")
	assert.Contains(t, string(content), "BDS")
	assert.NotContains(t, string(content), "R-001")
}
