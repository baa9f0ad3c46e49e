package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcampus/sims-api/internal/models"
)

func newImportJobMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestImportJobRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newImportJobMock(t)
	defer cleanup()
	repo := NewImportJobRepository(db)

	mock.ExpectExec("INSERT INTO import_jobs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ImportJob{
		Kind:      models.ImportStudents,
		Mode:      models.ImportUpsert,
		FileHash:  "abc123",
		FilePath:  "uploads/2026/01/15/students.csv",
		CreatedBy: "user-1",
	}
	err := repo.Create(context.Background(), job)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.ImportPending, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportJobRepositoryFindRecentByHashMiss(t *testing.T) {
	db, mock, cleanup := newImportJobMock(t)
	defer cleanup()
	repo := NewImportJobRepository(db)

	mock.ExpectQuery("SELECT").
		WithArgs("abc123", "user-1", string(models.ImportUpsert), "job-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	job, err := repo.FindRecentByHash(context.Background(), models.ImportDuplicateFilter{
		FileHash:  "abc123",
		CreatedBy: "user-1",
		Mode:      models.ImportUpsert,
		ExcludeID: "job-1",
		Since:     time.Now().Add(-24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportJobRepositoryClaimForCommit(t *testing.T) {
	db, mock, cleanup := newImportJobMock(t)
	defer cleanup()
	repo := NewImportJobRepository(db)

	mock.ExpectExec("UPDATE import_jobs").
		WithArgs("job-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.ClaimForCommit(context.Background(), "job-1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportJobRepositoryClaimForCommitAlreadyTaken(t *testing.T) {
	db, mock, cleanup := newImportJobMock(t)
	defer cleanup()
	repo := NewImportJobRepository(db)

	mock.ExpectExec("UPDATE import_jobs").
		WithArgs("job-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := repo.ClaimForCommit(context.Background(), "job-1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
