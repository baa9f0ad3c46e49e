package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcampus/sims-api/internal/models"
)

func newAttendanceMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryUpsertTxInsert(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO attendance").
		WithArgs(sqlmock.AnyArg(), "sess-1", "stu-1", models.AttendancePresent, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))

	tx, err := db.Beginx()
	require.NoError(t, err)

	inserted, err := repo.UpsertTx(context.Background(), tx, &models.Attendance{
		SessionID: "sess-1",
		StudentID: "stu-1",
		Status:    models.AttendancePresent,
	})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpsertTxOverwrite(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO attendance").
		WithArgs(sqlmock.AnyArg(), "sess-1", "stu-1", models.AttendanceAbsent, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(false))

	tx, err := db.Beginx()
	require.NoError(t, err)

	inserted, err := repo.UpsertTx(context.Background(), tx, &models.Attendance{
		SessionID: "sess-1",
		StudentID: "stu-1",
		Status:    models.AttendanceAbsent,
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryStudentSummary(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery("SELECT").
		WithArgs("stu-1", "period-1").
		WillReturnRows(sqlmock.NewRows([]string{"attended", "total"}).AddRow(18, 20))

	attended, total, err := repo.StudentSummary(context.Background(), "stu-1", "period-1")
	require.NoError(t, err)
	assert.Equal(t, 18, attended)
	assert.Equal(t, 20, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
