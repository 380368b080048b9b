package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-leads-api/internal/models"
)

func TestSystemLogRepositoryAppend(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewSystemLogRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO system_logs")).
		WithArgs(sqlmock.AnyArg(), "admin-1", "Asha", models.ActionLeadsPurged, "3 leads", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.SystemLog{ActorID: "admin-1", ActorName: "Asha", Action: models.ActionLeadsPurged, Detail: "3 leads"}
	require.NoError(t, repo.Append(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSystemLogRepositoryList(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewSystemLogRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM system_logs WHERE action = $1 ORDER BY created_at DESC, id DESC LIMIT 10 OFFSET 10")).
		WithArgs(models.ActionLogin).
		WillReturnRows(sqlmock.NewRows([]string{"id", "actor_id", "actor_name", "action", "detail", "created_at"}).
			AddRow("log-1", "t-1", "Ravi", models.ActionLogin, "", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM system_logs WHERE action = $1")).
		WithArgs(models.ActionLogin).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	logs, total, err := repo.List(context.Background(), models.SystemLogFilter{Action: models.ActionLogin, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, 11, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
