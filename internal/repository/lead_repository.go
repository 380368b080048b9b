package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/admission-leads-api/internal/models"
)

const leadColumns = `id, name, phone, source, department, stage, response, call_verified, call_timestamp, call_duration, assigned_head_id, assigned_teacher_id, created_at, updated_at`

// LeadRepository persists leads with merge-patch writes.
type LeadRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewLeadRepository constructs the repository.
func NewLeadRepository(db *sqlx.DB) *LeadRepository {
	return &LeadRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// List returns one page of leads matching filter plus the total count.
func (r *LeadRepository) List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, int, error) {
	where, args := leadWhere(filter)
	page, size := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM leads%s ORDER BY created_at ASC, id ASC LIMIT %d OFFSET %d", leadColumns, where, size, (page-1)*size)
	var leads []models.Lead
	if err := r.db.SelectContext(ctx, &leads, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM leads"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}
	return leads, total, nil
}

// ListAll returns every lead matching filter, ignoring pagination.
func (r *LeadRepository) ListAll(ctx context.Context, filter models.LeadFilter) ([]models.Lead, error) {
	where, args := leadWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM leads%s ORDER BY created_at ASC, id ASC", leadColumns, where)
	var leads []models.Lead
	if err := r.db.SelectContext(ctx, &leads, query, args...); err != nil {
		return nil, fmt.Errorf("list all leads: %w", err)
	}
	return leads, nil
}

// FindByID returns a lead or sql.ErrNoRows.
func (r *LeadRepository) FindByID(ctx context.Context, id string) (*models.Lead, error) {
	query := fmt.Sprintf("SELECT %s FROM leads WHERE id = $1", leadColumns)
	var lead models.Lead
	if err := r.db.GetContext(ctx, &lead, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lead: %w", err)
	}
	return &lead, nil
}

// FindByIDs returns the leads that exist among ids, in no particular order.
func (r *LeadRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Lead, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM leads WHERE id = ANY($1)", leadColumns)
	var leads []models.Lead
	if err := r.db.SelectContext(ctx, &leads, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find leads by ids: %w", err)
	}
	return leads, nil
}

// ListVerifiedByTeacher returns the teacher's leads with a verified call.
func (r *LeadRepository) ListVerifiedByTeacher(ctx context.Context, teacherID string) ([]models.Lead, error) {
	query := fmt.Sprintf("SELECT %s FROM leads WHERE assigned_teacher_id = $1 AND call_verified = TRUE ORDER BY created_at ASC, id ASC", leadColumns)
	var leads []models.Lead
	if err := r.db.SelectContext(ctx, &leads, query, teacherID); err != nil {
		return nil, fmt.Errorf("list verified leads: %w", err)
	}
	return leads, nil
}

// Create inserts a new lead, generating an id when absent.
func (r *LeadRepository) Create(ctx context.Context, lead *models.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	now := r.now()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if lead.Stage == "" {
		lead.Stage = models.StageUnassigned
	}
	query := fmt.Sprintf("INSERT INTO leads (%s) VALUES (:id, :name, :phone, :source, :department, :stage, :response, :call_verified, :call_timestamp, :call_duration, :assigned_head_id, :assigned_teacher_id, :created_at, :updated_at)", leadColumns)
	if _, err := r.db.NamedExecContext(ctx, query, lead); err != nil {
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

// Upsert merges patch into lead id, creating the row when missing. It returns rows mutated.
func (r *LeadRepository) Upsert(ctx context.Context, id string, patch models.LeadPatch) (int, error) {
	query, args := buildLeadUpsert(id, patch, r.now())
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("upsert lead %s: %w", id, err)
	}
	return affected(res), nil
}

// BatchUpsert applies every upsert inside one transaction and returns the ids of the rows it mutated.
func (r *LeadRepository) BatchUpsert(ctx context.Context, items []models.LeadUpsert) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin lead batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := r.now()
	applied := make([]string, 0, len(items))
	for _, item := range items {
		query, args := buildLeadUpsert(item.ID, item.Patch, now)
		var res sql.Result
		res, err = tx.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("batch upsert lead %s: %w", item.ID, err)
		}
		if affected(res) > 0 {
			applied = append(applied, item.ID)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lead batch: %w", err)
	}
	return applied, nil
}

// InsertIfAbsent inserts leads whose id is not yet stored and leaves existing rows untouched.
func (r *LeadRepository) InsertIfAbsent(ctx context.Context, leads []models.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin lead import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO leads (id, name, phone, source, department, stage, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7) ON CONFLICT (id) DO NOTHING`
	now := r.now()
	inserted := 0
	for _, lead := range leads {
		var res sql.Result
		res, err = tx.ExecContext(ctx, query, lead.ID, lead.Name, lead.Phone, lead.Source, lead.Department, lead.Stage, now)
		if err != nil {
			return 0, fmt.Errorf("import lead %s: %w", lead.ID, err)
		}
		inserted += affected(res)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit lead import: %w", err)
	}
	return inserted, nil
}

// DeleteMany hard-deletes the given leads and reports how many existed.
func (r *LeadRepository) DeleteMany(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete leads: %w", err)
	}
	return affected(res), nil
}

var leadGroupColumns = map[string]string{
	"stage":      "stage",
	"department": "department",
	"head":       "COALESCE(assigned_head_id, '')",
	"teacher":    "COALESCE(assigned_teacher_id, '')",
}

// CountBy groups lead counts by one of stage, department, head or teacher.
func (r *LeadRepository) CountBy(ctx context.Context, dimension string) ([]models.GroupCount, error) {
	column, ok := leadGroupColumns[dimension]
	if !ok {
		return nil, fmt.Errorf("unknown lead dimension %q", dimension)
	}
	query := fmt.Sprintf("SELECT %s AS key, COUNT(*) AS total FROM leads GROUP BY 1 ORDER BY 1", column)
	var counts []models.GroupCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count leads by %s: %w", dimension, err)
	}
	return counts, nil
}

func leadWhere(filter models.LeadFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	add := func(expr string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}

	if filter.Stage != nil {
		add("stage = $%d", *filter.Stage)
	}
	if filter.Department != nil {
		add("department = $%d", *filter.Department)
	}
	if filter.AssignedHeadID != nil {
		add("assigned_head_id = $%d", *filter.AssignedHeadID)
	}
	if filter.AssignedTeacherID != nil {
		add("assigned_teacher_id = $%d", *filter.AssignedTeacherID)
	}
	if filter.CallVerified != nil {
		add("call_verified = $%d", *filter.CallVerified)
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR phone LIKE $%d)", len(args), len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// buildLeadUpsert renders INSERT .. ON CONFLICT DO UPDATE touching only the patched columns.
func buildLeadUpsert(id string, patch models.LeadPatch, now time.Time) (string, []interface{}) {
	columns := []string{"id"}
	args := []interface{}{id}
	set := func(column string, value interface{}) {
		columns = append(columns, column)
		args = append(args, value)
	}

	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Phone != nil {
		set("phone", *patch.Phone)
	}
	if patch.Source != nil {
		set("source", *patch.Source)
	}
	if patch.Department != nil {
		set("department", *patch.Department)
	}
	if patch.Stage != nil {
		set("stage", *patch.Stage)
	}
	if patch.Response != nil {
		set("response", *patch.Response)
	}
	if patch.CallVerified != nil {
		set("call_verified", *patch.CallVerified)
	}
	if patch.CallTimestamp != nil {
		set("call_timestamp", *patch.CallTimestamp)
	}
	if patch.CallDuration != nil {
		set("call_duration", *patch.CallDuration)
	}
	if patch.AssignedHeadID != nil {
		set("assigned_head_id", *patch.AssignedHeadID)
	}
	if patch.AssignedTeacherID != nil {
		set("assigned_teacher_id", *patch.AssignedTeacherID)
	} else if patch.ClearAssignedTeacher {
		set("assigned_teacher_id", nil)
	}

	placeholders := make([]string, len(columns))
	updates := make([]string, 0, len(columns))
	for i, column := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if column != "id" {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", column, column))
		}
	}
	args = append(args, now)
	nowArg := fmt.Sprintf("$%d", len(args))
	updates = append(updates, "updated_at = EXCLUDED.updated_at")

	query := fmt.Sprintf("INSERT INTO leads (%s, created_at, updated_at) VALUES (%s, %s, %s) ON CONFLICT (id) DO UPDATE SET %s",
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		nowArg, nowArg,
		strings.Join(updates, ", "),
	)
	return query, args
}

func affected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}
