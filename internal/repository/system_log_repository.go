package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admission-leads-api/internal/models"
)

// SystemLogRepository appends and lists activity records.
type SystemLogRepository struct {
	db *sqlx.DB
}

// NewSystemLogRepository constructs the repository.
func NewSystemLogRepository(db *sqlx.DB) *SystemLogRepository {
	return &SystemLogRepository{db: db}
}

// Append inserts entry; rows are never updated or deleted.
func (r *SystemLogRepository) Append(ctx context.Context, entry *models.SystemLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO system_logs (id, actor_id, actor_name, action, detail, created_at) VALUES (:id, :actor_id, :actor_name, :action, :detail, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append system log: %w", err)
	}
	return nil
}

// List returns newest-first logs matching filter with the total count.
func (r *SystemLogRepository) List(ctx context.Context, filter models.SystemLogFilter) ([]models.SystemLog, int, error) {
	var conditions []string
	var args []interface{}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT id, actor_id, actor_name, action, detail, created_at FROM system_logs%s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d", where, size, (page-1)*size)
	var logs []models.SystemLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list system logs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM system_logs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count system logs: %w", err)
	}
	return logs, total, nil
}

// Recent returns the newest limit logs.
func (r *SystemLogRepository) Recent(ctx context.Context, limit int) ([]models.SystemLog, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT id, actor_id, actor_name, action, detail, created_at FROM system_logs ORDER BY created_at DESC, id DESC LIMIT $1`
	var logs []models.SystemLog
	if err := r.db.SelectContext(ctx, &logs, query, limit); err != nil {
		return nil, fmt.Errorf("recent system logs: %w", err)
	}
	return logs, nil
}
