package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
	"github.com/noah-isme/admission-leads-api/internal/repository"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
	"github.com/noah-isme/admission-leads-api/pkg/export"
	"github.com/noah-isme/admission-leads-api/pkg/jobs"
	"github.com/noah-isme/admission-leads-api/pkg/mailer"
	"github.com/noah-isme/admission-leads-api/pkg/storage"
)

// JobKindForwardedExport tags queue jobs rendering the FORWARDED queue.
const JobKindForwardedExport = "forwarded_export"

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportFileStore interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type downloadSigner interface {
	Sign(jobID, relPath string) (string, storage.Ticket, error)
	Verify(token string) (storage.Ticket, error)
}

type forwardedLeadSource interface {
	ListAll(ctx context.Context, filter models.LeadFilter) ([]models.Lead, error)
}

type mailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// ForwardExportConfig governs download links and file retention.
type ForwardExportConfig struct {
	DownloadBasePath string
	ResultTTL        time.Duration
	CleanupInterval  time.Duration
}

// ForwardDownload is an opened export file resolved from a signed token.
type ForwardDownload struct {
	File        *os.File
	FileName    string
	ContentType string
	ExpiresAt   time.Time
}

// ForwardExportService queues exports of the FORWARDED queue and serves their downloads.
type ForwardExportService struct {
	repo      exportJobStore
	queue     jobDispatcher
	files     exportFileStore
	signer    downloadSigner
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ForwardExportConfig
}

// NewForwardExportService constructs the service.
func NewForwardExportService(repo exportJobStore, queue jobDispatcher, files exportFileStore, signer downloadSigner, validate *validator.Validate, logger *zap.Logger, cfg ForwardExportConfig) *ForwardExportService {
	if validate == nil {
		validate = dto.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ForwardExportService{repo: repo, queue: queue, files: files, signer: signer, validator: validate, logger: logger, cfg: cfg}
}

// CreateJob persists a queued export and hands it to the worker pool.
func (s *ForwardExportService) CreateJob(ctx context.Context, actor models.Actor, req dto.ForwardExportRequest) (*dto.ExportJobResponse, error) {
	if !actor.Admin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can export the forwarded queue")
	}
	req.Format = strings.ToLower(strings.TrimSpace(req.Format))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid export request")
	}

	job := &models.ExportJob{
		ID:         uuid.NewString(),
		Format:     models.ExportFormat(req.Format),
		Recipients: strings.Join(req.Recipients, ","),
		Status:     models.ExportStatusQueued,
		CreatedBy:  actor.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Internal(err, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Kind: JobKindForwardedExport}); err != nil {
		failed := models.ExportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		if updateErr := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &failed, ErrorMessage: &msg, FinishedAt: &now}); updateErr != nil {
			s.logger.Sugar().Warnw("failed to mark export job failed", "job_id", job.ID, "error", updateErr)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "export queue unavailable")
	}
	return exportJobResponse(job), nil
}

// GetStatus returns job metadata.
func (s *ForwardExportService) GetStatus(ctx context.Context, actor models.Actor, id string) (*dto.ExportJobResponse, error) {
	if !actor.Admin() {
		return nil, appErrors.ErrForbidden
	}
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Internal(err, "failed to load export job")
	}
	return exportJobResponse(job), nil
}

// ResolveDownload validates token and opens the stored file.
func (s *ForwardExportService) ResolveDownload(ctx context.Context, token string) (*ForwardDownload, error) {
	ticket, err := s.signer.Verify(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, ticket.JobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Internal(err, "failed to load export job")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "export not ready")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token does not match export")
	}
	file, err := s.files.Open(ticket.Path)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to open export file")
	}
	return &ForwardDownload{
		File:        file,
		FileName:    path.Base(ticket.Path),
		ContentType: export.Format(job.Format).ContentType(),
		ExpiresAt:   ticket.ExpiresAt,
	}, nil
}

// RecoverPendingJobs replays queued jobs after a restart.
func (s *ForwardExportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued export jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Kind: JobKindForwardedExport}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue export job", "job_id", job.ID, "error", err)
		}
	}
}

// StartCleanup removes rendered files older than the result TTL until ctx is done.
func (s *ForwardExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.files.CleanupOlderThan(s.cfg.ResultTTL)
				if err != nil {
					s.logger.Sugar().Warnw("export cleanup failed", "error", err)
					continue
				}
				if len(removed) > 0 {
					s.logger.Sugar().Infow("export files removed", "count", len(removed))
				}
			}
		}
	}()
}

func exportJobResponse(job *models.ExportJob) *dto.ExportJobResponse {
	resp := &dto.ExportJobResponse{
		ID:          job.ID,
		Format:      job.Format,
		Status:      job.Status,
		RowCount:    job.RowCount,
		DownloadURL: job.ResultURL,
		CreatedAt:   job.CreatedAt,
		FinishedAt:  job.FinishedAt,
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp
}

// ForwardExportWorker renders queued exports.
type ForwardExportWorker struct {
	repo       exportJobStore
	leads      forwardedLeadSource
	staff      staffLister
	files      exportFileStore
	signer     downloadSigner
	mail       mailSender
	recorder   *ActivityRecorder
	metrics    *MetricsService
	logger     *zap.Logger
	basePath   string
	maxRetries int
	now        func() time.Time
}

// NewForwardExportWorker constructs a worker. mail may be nil when SMTP is disabled.
func NewForwardExportWorker(repo exportJobStore, leads forwardedLeadSource, staff staffLister, files exportFileStore, signer downloadSigner, mail mailSender, recorder *ActivityRecorder, metrics *MetricsService, logger *zap.Logger, downloadBasePath string, maxRetries int) *ForwardExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &ForwardExportWorker{
		repo:       repo,
		leads:      leads,
		staff:      staff,
		files:      files,
		signer:     signer,
		mail:       mail,
		recorder:   recorder,
		metrics:    metrics,
		logger:     logger,
		basePath:   strings.TrimRight(downloadBasePath, "/"),
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Handle processes a queue job.
func (w *ForwardExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.ExportStatusProcessing
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &processing}); err != nil {
		return err
	}

	data, rows, err := w.render(ctx, record)
	if err == nil {
		err = w.publish(ctx, record, data, rows)
	}
	if err != nil {
		w.fail(ctx, job, err)
		return err
	}
	return nil
}

func (w *ForwardExportWorker) render(ctx context.Context, record *models.ExportJob) ([]byte, int, error) {
	stage := models.StageForwarded
	leads, err := w.leads.ListAll(ctx, models.LeadFilter{Stage: &stage})
	if err != nil {
		return nil, 0, fmt.Errorf("list forwarded leads: %w", err)
	}
	staff, err := w.staff.ListAll(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list staff: %w", err)
	}
	renderer, err := export.RendererFor(export.Format(record.Format))
	if err != nil {
		return nil, 0, err
	}
	data, err := renderer.Render(forwardedDataset(leads, staff, w.now()))
	if err != nil {
		return nil, 0, fmt.Errorf("render export: %w", err)
	}
	return data, len(leads), nil
}

func (w *ForwardExportWorker) publish(ctx context.Context, record *models.ExportJob, data []byte, rows int) error {
	format := export.Format(record.Format)
	fileName := fmt.Sprintf("forwarded-leads-%s%s", w.now().UTC().Format("20060102-150405"), format.Extension())
	relPath, err := w.files.Save(path.Join("forwarded", record.ID, fileName), data)
	if err != nil {
		return err
	}
	token, _, err := w.signer.Sign(record.ID, relPath)
	if err != nil {
		return fmt.Errorf("sign download: %w", err)
	}

	finished := models.ExportStatusFinished
	now := w.now().UTC()
	url := w.basePath + "/" + token
	noError := ""
	if err := w.repo.Update(ctx, record.ID, repository.UpdateExportJobParams{
		Status:       &finished,
		RowCount:     &rows,
		ResultURL:    &url,
		ErrorMessage: &noError,
		FinishedAt:   &now,
	}); err != nil {
		return err
	}
	w.metrics.RecordExport(finished)
	w.recorder.Record(ctx, models.Actor{ID: record.CreatedBy}, models.ActionForwardedExported, fmt.Sprintf("%d forwarded leads as %s", rows, record.Format))
	w.notify(ctx, record, fileName, data, rows)
	return nil
}

func (w *ForwardExportWorker) notify(ctx context.Context, record *models.ExportJob, fileName string, data []byte, rows int) {
	if w.mail == nil || strings.TrimSpace(record.Recipients) == "" {
		return
	}
	msg := mailer.Message{
		To:          strings.Split(record.Recipients, ","),
		Subject:     "Forwarded admission leads",
		Body:        "The forwarded queue export with " + strconv.Itoa(rows) + " leads is attached.",
		Attachments: []mailer.Attachment{{FileName: fileName, Content: data}},
	}
	if err := w.mail.Send(ctx, msg); err != nil {
		w.logger.Sugar().Warnw("failed to mail forwarded export", "job_id", record.ID, "error", err)
	}
}

func (w *ForwardExportWorker) fail(ctx context.Context, job jobs.Job, cause error) {
	msg := cause.Error()
	if job.Attempt >= w.maxRetries {
		failed := models.ExportStatusFailed
		now := w.now().UTC()
		if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &failed, ErrorMessage: &msg, FinishedAt: &now}); err != nil {
			w.logger.Sugar().Warnw("failed to mark export failed", "job_id", job.ID, "error", err)
		}
		w.metrics.RecordExport(failed)
		return
	}
	queued := models.ExportStatusQueued
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &queued, ErrorMessage: &msg}); err != nil {
		w.logger.Sugar().Warnw("failed to mark export queued", "job_id", job.ID, "error", err)
	}
}

var forwardedColumns = []export.Column{
	{Key: "name", Title: "Name", Weight: 2},
	{Key: "phone", Title: "Phone", Weight: 1.2},
	{Key: "department", Title: "Department", Weight: 2},
	{Key: "response", Title: "Response", Weight: 1.2},
	{Key: "head", Title: "Department Head", Weight: 1.5},
	{Key: "teacher", Title: "Teacher", Weight: 1.5},
	{Key: "call_duration", Title: "Call (s)", Weight: 0.7},
	{Key: "call_timestamp", Title: "Last Call", Weight: 1.4},
}

func forwardedDataset(leads []models.Lead, staff []models.Staff, now time.Time) export.Dataset {
	names := make(map[string]string, len(staff))
	for _, member := range staff {
		names[member.ID] = member.Name
	}
	rows := make([]map[string]string, len(leads))
	for i, lead := range leads {
		row := map[string]string{
			"name":          lead.Name,
			"phone":         lead.Phone,
			"department":    string(lead.Department),
			"head":          assigneeName(names, lead.AssignedHeadID),
			"teacher":       assigneeName(names, lead.AssignedTeacherID),
			"call_duration": strconv.Itoa(lead.CallDuration),
		}
		if lead.Response != nil {
			row["response"] = string(*lead.Response)
		}
		if lead.CallTimestamp != nil {
			row["call_timestamp"] = lead.CallTimestamp.UTC().Format("2006-01-02 15:04")
		}
		rows[i] = row
	}
	return export.Dataset{
		Title:   "Forwarded Leads " + now.UTC().Format("2006-01-02"),
		Columns: forwardedColumns,
		Rows:    rows,
	}
}
