package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/dmarcwatch/internal/enum"
)

func TestHasRecentSent_WithinWindow(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT \* FROM "alerts" WHERE alert_type = \$1 AND email_sent = \$2 AND created_at >= \$3`).
		WithArgs(enum.AlertTypeDmarcFailure, true, sqlmock.AnyArg(), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "alert_type", "email_sent"}).
			AddRow("alr_1", "dmarc_failure", true))

	repo := NewAlertRepository(db)
	recent, err := repo.HasRecentSent(context.Background(), enum.AlertTypeDmarcFailure, 60*time.Minute)

	require.NoError(t, err)
	assert.True(t, recent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasRecentSent_NoSentAlert(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT \* FROM "alerts" WHERE alert_type = \$1 AND email_sent = \$2 AND created_at >= \$3`).
		WithArgs(enum.AlertTypeSpfFailure, true, sqlmock.AnyArg(), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "alert_type", "email_sent"}))

	repo := NewAlertRepository(db)
	recent, err := repo.HasRecentSent(context.Background(), enum.AlertTypeSpfFailure, 60*time.Minute)

	require.NoError(t, err)
	assert.False(t, recent)
	assert.NoError(t, mock.ExpectationsWereMet())
}
