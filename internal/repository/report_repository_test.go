package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	return db, mock, func() { sqlDB.Close() }
}

func TestIsDuplicate_ExistingReport(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT \* FROM "reports" WHERE report_id = \$1`).
		WithArgs("12345678901234567890", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "report_id"}).
			AddRow("rpt_abc123", "12345678901234567890"))

	repo := NewReportRepository(db)
	duplicate, err := repo.IsDuplicate(context.Background(), "12345678901234567890")

	require.NoError(t, err)
	assert.True(t, duplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsDuplicate_NewReport(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT \* FROM "reports" WHERE report_id = \$1`).
		WithArgs("fresh-report", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "report_id"}))

	repo := NewReportRepository(db)
	duplicate, err := repo.IsDuplicate(context.Background(), "fresh-report")

	require.NoError(t, err)
	assert.False(t, duplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByReportID_NotFoundReturnsNil(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT \* FROM "reports" WHERE report_id = \$1`).
		WithArgs("missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "report_id"}))

	repo := NewReportRepository(db)
	report, err := repo.GetByReportID(context.Background(), "missing")

	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestList_Reports(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "reports"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT \* FROM "reports" ORDER BY received_at DESC LIMIT \$1`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "report_id"}).
			AddRow("rpt_1", "first").
			AddRow("rpt_2", "second"))

	repo := NewReportRepository(db)
	reports, total, err := repo.List(context.Background(), 10, 0)

	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, reports, 2)
	assert.Equal(t, "first", reports[0].ReportID)
}
