package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admission-leads-api/internal/models"
)

const staffColumns = `id, name, email, password_hash, role, department, approval_status, approved_by, approved_at, challenge, created_at, updated_at`

// StaffRepository provides database access for the staff directory.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository creates a new instance of StaffRepository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// FindByEmail returns a staff member by email address.
func (r *StaffRepository) FindByEmail(ctx context.Context, email string) (*models.Staff, error) {
	query := fmt.Sprintf("SELECT %s FROM staff WHERE LOWER(email) = LOWER($1) LIMIT 1", staffColumns)
	var staff models.Staff
	if err := r.db.GetContext(ctx, &staff, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find staff by email: %w", err)
	}
	return &staff, nil
}

// FindByID returns a staff member by identifier.
func (r *StaffRepository) FindByID(ctx context.Context, id string) (*models.Staff, error) {
	query := fmt.Sprintf("SELECT %s FROM staff WHERE id = $1 LIMIT 1", staffColumns)
	var staff models.Staff
	if err := r.db.GetContext(ctx, &staff, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find staff by id: %w", err)
	}
	return &staff, nil
}

// ListApproved returns the approved members of role, optionally within dept, in pool order.
func (r *StaffRepository) ListApproved(ctx context.Context, role models.StaffRole, dept *models.Department) ([]models.Staff, error) {
	query := fmt.Sprintf("SELECT %s FROM staff WHERE role = $1 AND approval_status = $2", staffColumns)
	args := []interface{}{role, models.ApprovalApproved}
	if dept != nil {
		query += " AND department = $3"
		args = append(args, *dept)
	}
	query += " ORDER BY created_at ASC, id ASC"

	var staff []models.Staff
	if err := r.db.SelectContext(ctx, &staff, query, args...); err != nil {
		return nil, fmt.Errorf("list approved staff: %w", err)
	}
	return staff, nil
}

// ListAll returns the whole directory in creation order.
func (r *StaffRepository) ListAll(ctx context.Context) ([]models.Staff, error) {
	query := fmt.Sprintf("SELECT %s FROM staff ORDER BY created_at ASC, id ASC", staffColumns)
	var staff []models.Staff
	if err := r.db.SelectContext(ctx, &staff, query); err != nil {
		return nil, fmt.Errorf("list all staff: %w", err)
	}
	return staff, nil
}

// List returns staff based on filters with total count.
func (r *StaffRepository) List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Department != nil {
		args = append(args, *filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.ApprovalStatus != nil {
		args = append(args, *filter.ApprovalStatus)
		conditions = append(conditions, fmt.Sprintf("approval_status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(name) LIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("SELECT %s FROM staff%s ORDER BY created_at ASC, id ASC LIMIT %d OFFSET %d", staffColumns, where, size, (page-1)*size)
	var staff []models.Staff
	if err := r.db.SelectContext(ctx, &staff, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list staff: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM staff"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count staff: %w", err)
	}
	return staff, total, nil
}

// Create inserts a new staff member.
func (r *StaffRepository) Create(ctx context.Context, staff *models.Staff) error {
	if staff.ID == "" {
		staff.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = now
	}
	staff.UpdatedAt = now

	const query = `INSERT INTO staff (id, name, email, password_hash, role, department, approval_status, approved_by, approved_at, created_at, updated_at)
VALUES (:id, :name, :email, :password_hash, :role, :department, :approval_status, :approved_by, :approved_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, staff); err != nil {
		return fmt.Errorf("create staff: %w", err)
	}
	return nil
}

// Update merges patch into the staff row; sql.ErrNoRows when the id is unknown.
func (r *StaffRepository) Update(ctx context.Context, id string, patch models.StaffPatch) error {
	set := make([]string, 0, 6)
	args := make([]interface{}, 0, 7)
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Role != nil {
		add("role", *patch.Role)
	}
	if patch.Department != nil {
		add("department", *patch.Department)
	}
	if patch.ApprovalStatus != nil {
		add("approval_status", *patch.ApprovalStatus)
	}
	if patch.ApprovedBy != nil {
		add("approved_by", *patch.ApprovedBy)
	}
	if patch.ApprovedAt != nil {
		add("approved_at", *patch.ApprovedAt)
	}
	if len(set) == 0 {
		return nil
	}
	add("updated_at", time.Now().UTC())

	args = append(args, id)
	query := fmt.Sprintf("UPDATE staff SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update staff: %w", err)
	}
	if affected(res) == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SaveChallenge replaces the verification challenge document of a staff member.
func (r *StaffRepository) SaveChallenge(ctx context.Context, id string, challenge *models.VerificationChallenge) error {
	const query = `UPDATE staff SET challenge = $1, updated_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, challenge, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("save verification challenge: %w", err)
	}
	if affected(res) == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a staff member; sql.ErrNoRows when the id is unknown.
func (r *StaffRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM staff WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete staff: %w", err)
	}
	if affected(res) == 0 {
		return sql.ErrNoRows
	}
	return nil
}
