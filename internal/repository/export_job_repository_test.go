package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-leads-api/internal/models"
)

var exportJobRowColumns = []string{"id", "format", "recipients", "status", "row_count", "result_url", "created_by", "created_at", "finished_at", "error_message"}

func TestExportJobRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewExportJobRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO export_jobs")).
		WithArgs(sqlmock.AnyArg(), models.ExportFormatCSV, "", models.ExportStatusQueued, 0, nil, "admin-1", sqlmock.AnyArg(), nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ExportJob{Format: models.ExportFormatCSV, CreatedBy: "admin-1"}
	require.NoError(t, repo.Create(context.Background(), job))

	mock.ExpectQuery(regexp.QuoteMeta("FROM export_jobs WHERE id = $1")).
		WithArgs(job.ID).
		WillReturnRows(sqlmock.NewRows(exportJobRowColumns).AddRow(job.ID, "csv", "", "QUEUED", 0, nil, "admin-1", time.Now(), nil, nil))

	fetched, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, fetched.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewExportJobRepository(db)

	now := time.Now()
	status := models.ExportStatusFinished
	rows := 12
	result := "/api/v1/exports/download/token"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE export_jobs SET status = $1, row_count = $2, result_url = $3, finished_at = $4 WHERE id = $5")).
		WithArgs(status, rows, result, now, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateExportJobParams{Status: &status, RowCount: &rows, ResultURL: &result, FinishedAt: &now})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
