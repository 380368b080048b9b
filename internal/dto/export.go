package dto

import (
	"time"

	"github.com/noah-isme/admission-leads-api/internal/models"
)

// ForwardExportRequest queues an export of the FORWARDED queue.
type ForwardExportRequest struct {
	Format     string   `json:"format" validate:"required,oneof=csv pdf"`
	Recipients []string `json:"recipients" validate:"omitempty,max=20,dive,email"`
}

// ExportJobResponse describes a queued or finished export.
type ExportJobResponse struct {
	ID          string              `json:"id"`
	Format      models.ExportFormat `json:"format"`
	Status      models.ExportStatus `json:"status"`
	RowCount    int                 `json:"row_count"`
	DownloadURL *string             `json:"download_url,omitempty"`
	Error       *string             `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	FinishedAt  *time.Time          `json:"finished_at,omitempty"`
}
