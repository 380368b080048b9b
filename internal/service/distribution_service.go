package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
	"github.com/noah-isme/admission-leads-api/pkg/changefeed"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
)

type distributionLeadStore interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Lead, error)
	BatchUpsert(ctx context.Context, items []models.LeadUpsert) ([]string, error)
}

type staffPoolReader interface {
	FindByID(ctx context.Context, id string) (*models.Staff, error)
	ListApproved(ctx context.Context, role models.StaffRole, dept *models.Department) ([]models.Staff, error)
}

// DistributionService moves leads down the Admin -> Head -> Teacher chain.
type DistributionService struct {
	leads    distributionLeadStore
	staff    staffPoolReader
	recorder *ActivityRecorder
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewDistributionService constructs the engine.
func NewDistributionService(leads distributionLeadStore, staff staffPoolReader, recorder *ActivityRecorder, metrics *MetricsService, logger *zap.Logger) *DistributionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DistributionService{leads: leads, staff: staff, recorder: recorder, metrics: metrics, logger: logger}
}

type assignment struct {
	LeadID     string
	AssigneeID string
}

// roundRobin hands ids[i] to assignees[i mod K]. It never inspects lead state.
func roundRobin(ids []string, assignees []string) []assignment {
	if len(ids) == 0 || len(assignees) == 0 {
		return nil
	}
	out := make([]assignment, len(ids))
	for i, id := range ids {
		out[i] = assignment{LeadID: id, AssigneeID: assignees[i%len(assignees)]}
	}
	return out
}

// AssignToDepartmentHead moves every lead to headID.
func (s *DistributionService) AssignToDepartmentHead(ctx context.Context, actor models.Actor, leadIDs []string, headID string) (*dto.AssignmentResult, error) {
	if !actor.Admin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can assign department heads")
	}
	ids := compactIDs(leadIDs)
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lead_ids must not be empty")
	}
	head, err := s.approvedMember(ctx, headID, models.RoleDepartmentHead)
	if err != nil {
		return nil, err
	}

	items := make([]models.LeadUpsert, len(ids))
	for i, id := range ids {
		items[i] = models.LeadUpsert{ID: id, Patch: headPatch(head)}
	}
	result, err := s.apply(ctx, "head", items)
	if err != nil {
		return nil, err
	}
	s.finish(ctx, actor, models.ActionLeadsAssignedHead, fmt.Sprintf("%d leads to %s", result.Moved, head.Name))
	return result, nil
}

// AutoDistributeToDepartmentHeads spreads leads round-robin over every approved head.
func (s *DistributionService) AutoDistributeToDepartmentHeads(ctx context.Context, actor models.Actor, leadIDs []string) (*dto.AssignmentResult, error) {
	if !actor.Admin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can distribute to department heads")
	}
	ids := compactIDs(leadIDs)
	if len(ids) == 0 {
		return emptyResult(), nil
	}
	heads, err := s.staff.ListApproved(ctx, models.RoleDepartmentHead, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load department heads")
	}
	if len(heads) == 0 {
		return emptyResult(), nil
	}

	byID := indexStaff(heads)
	items := make([]models.LeadUpsert, 0, len(ids))
	for _, a := range roundRobin(ids, staffIDs(heads)) {
		items = append(items, models.LeadUpsert{ID: a.LeadID, Patch: headPatch(byID[a.AssigneeID])})
	}
	result, err := s.apply(ctx, "head_auto", items)
	if err != nil {
		return nil, err
	}
	s.finish(ctx, actor, models.ActionLeadsAssignedHead, fmt.Sprintf("%d leads across %d heads", result.Moved, len(heads)))
	return result, nil
}

// AssignToTeacher moves every lead to teacherID.
func (s *DistributionService) AssignToTeacher(ctx context.Context, actor models.Actor, leadIDs []string, teacherID string) (*dto.AssignmentResult, error) {
	if !actor.Admin() && actor.Role != models.RoleDepartmentHead {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators and department heads can assign teachers")
	}
	ids := compactIDs(leadIDs)
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lead_ids must not be empty")
	}
	teacher, err := s.approvedMember(ctx, teacherID, models.RoleTeacher)
	if err != nil {
		return nil, err
	}
	if !actor.Admin() && !actor.HeadOf(*teacher.Department) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teacher belongs to another department")
	}
	if err := s.ensureDepartmentScope(ctx, actor, ids); err != nil {
		return nil, err
	}

	items := make([]models.LeadUpsert, len(ids))
	for i, id := range ids {
		items[i] = models.LeadUpsert{ID: id, Patch: teacherPatch(teacher)}
	}
	result, err := s.apply(ctx, "teacher", items)
	if err != nil {
		return nil, err
	}
	s.finish(ctx, actor, models.ActionLeadsAssignedTeacher, fmt.Sprintf("%d leads to %s", result.Moved, teacher.Name))
	return result, nil
}

// AutoDistributeToTeachers spreads leads round-robin over the department's approved teachers.
func (s *DistributionService) AutoDistributeToTeachers(ctx context.Context, actor models.Actor, leadIDs []string, department models.Department) (*dto.AssignmentResult, error) {
	if !department.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown department")
	}
	if !actor.Admin() && !actor.HeadOf(department) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot distribute outside your department")
	}
	ids := compactIDs(leadIDs)
	if len(ids) == 0 {
		return emptyResult(), nil
	}
	teachers, err := s.staff.ListApproved(ctx, models.RoleTeacher, &department)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load teachers")
	}
	if len(teachers) == 0 {
		return emptyResult(), nil
	}
	if err := s.ensureDepartmentScope(ctx, actor, ids); err != nil {
		return nil, err
	}

	byID := indexStaff(teachers)
	items := make([]models.LeadUpsert, 0, len(ids))
	for _, a := range roundRobin(ids, staffIDs(teachers)) {
		items = append(items, models.LeadUpsert{ID: a.LeadID, Patch: teacherPatch(byID[a.AssigneeID])})
	}
	result, err := s.apply(ctx, "teacher_auto", items)
	if err != nil {
		return nil, err
	}
	s.finish(ctx, actor, models.ActionLeadsAssignedTeacher, fmt.Sprintf("%d %s leads across %d teachers", result.Moved, department, len(teachers)))
	return result, nil
}

// SmartRouteByInterest sends each lead to a head of the department it already carries.
func (s *DistributionService) SmartRouteByInterest(ctx context.Context, actor models.Actor, leadIDs []string) (*dto.AssignmentResult, error) {
	if !actor.Admin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can smart-route leads")
	}
	ids := compactIDs(leadIDs)
	if len(ids) == 0 {
		return emptyResult(), nil
	}
	leads, err := s.leads.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load leads")
	}
	heads, err := s.staff.ListApproved(ctx, models.RoleDepartmentHead, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load department heads")
	}

	known := make(map[string]models.Department, len(leads))
	for _, lead := range leads {
		known[lead.ID] = lead.Department
	}
	headsByDept := make(map[models.Department][]string)
	for _, head := range heads {
		if head.Department != nil {
			headsByDept[*head.Department] = append(headsByDept[*head.Department], head.ID)
		}
	}

	result := emptyResult()
	var order []models.Department
	groups := make(map[models.Department][]string)
	for _, id := range ids {
		dept, ok := known[id]
		if !ok {
			result.Missing = append(result.Missing, id)
			continue
		}
		if _, seen := groups[dept]; !seen {
			order = append(order, dept)
		}
		groups[dept] = append(groups[dept], id)
	}

	byID := indexStaff(heads)
	var items []models.LeadUpsert
	for _, dept := range order {
		pool := headsByDept[dept]
		if len(pool) == 0 {
			result.Unrouted[dept] = groups[dept]
			continue
		}
		for _, a := range roundRobin(groups[dept], pool) {
			items = append(items, models.LeadUpsert{ID: a.LeadID, Patch: headPatch(byID[a.AssigneeID])})
		}
	}

	if len(items) > 0 {
		applied, err := s.apply(ctx, "smart_route", items)
		if err != nil {
			return nil, err
		}
		result.Moved = applied.Moved
		result.PerAssignee = applied.PerAssignee
	}
	if len(result.Unrouted) > 0 || len(result.Missing) > 0 {
		s.logger.Sugar().Infow("smart route left leads behind", "unrouted_departments", len(result.Unrouted), "missing", len(result.Missing))
	}
	s.finish(ctx, actor, models.ActionLeadsSmartRouted,
		fmt.Sprintf("%d leads routed, %d departments without a head, %d missing", result.Moved, len(result.Unrouted), len(result.Missing)))
	return result, nil
}

func (s *DistributionService) apply(ctx context.Context, mode string, items []models.LeadUpsert) (*dto.AssignmentResult, error) {
	result := emptyResult()
	if len(items) == 0 {
		return result, nil
	}
	appliedIDs, err := s.leads.BatchUpsert(ctx, items)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to assign leads")
	}
	applied := make(map[string]struct{}, len(appliedIDs))
	for _, id := range appliedIDs {
		applied[id] = struct{}{}
	}
	moved := len(applied)
	result.Moved = moved
	for _, item := range items {
		if _, ok := applied[item.ID]; !ok {
			continue
		}
		if item.Patch.AssignedTeacherID != nil {
			result.PerAssignee[*item.Patch.AssignedTeacherID]++
		} else if item.Patch.AssignedHeadID != nil {
			result.PerAssignee[*item.Patch.AssignedHeadID]++
		}
	}
	s.metrics.RecordLeadsMoved(mode, moved)
	return result, nil
}

func (s *DistributionService) finish(ctx context.Context, actor models.Actor, action, detail string) {
	s.recorder.Record(ctx, actor, action, detail)
	s.recorder.Changed(ctx, changefeed.CollectionLeads)
}

// approvedMember loads id and checks it is an approved member of role with a department.
func (s *DistributionService) approvedMember(ctx context.Context, id string, role models.StaffRole) (*models.Staff, error) {
	member, err := s.staff.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignee not found")
		}
		return nil, appErrors.Internal(err, "failed to load assignee")
	}
	if member.Role != role || !member.Approved() || member.Department == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("assignee must be an approved %s", strings.ToLower(strings.ReplaceAll(string(role), "_", " "))))
	}
	return member, nil
}

// ensureDepartmentScope rejects a head touching existing leads outside their department.
func (s *DistributionService) ensureDepartmentScope(ctx context.Context, actor models.Actor, ids []string) error {
	if actor.Admin() {
		return nil
	}
	leads, err := s.leads.FindByIDs(ctx, ids)
	if err != nil {
		return appErrors.Internal(err, "failed to load leads")
	}
	for _, lead := range leads {
		if !actor.HeadOf(lead.Department) {
			return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("lead %s belongs to another department", lead.ID))
		}
	}
	return nil
}

func headPatch(head *models.Staff) models.LeadPatch {
	stage := models.StageAssigned
	return models.LeadPatch{
		AssignedHeadID:       &head.ID,
		Department:           head.Department,
		Stage:                &stage,
		ClearAssignedTeacher: true,
	}
}

func teacherPatch(teacher *models.Staff) models.LeadPatch {
	stage := models.StageAssigned
	return models.LeadPatch{
		AssignedTeacherID: &teacher.ID,
		Department:        teacher.Department,
		Stage:             &stage,
	}
}

func emptyResult() *dto.AssignmentResult {
	return &dto.AssignmentResult{
		PerAssignee: map[string]int{},
		Unrouted:    map[models.Department][]string{},
	}
}

// compactIDs trims, drops blanks and keeps the first occurrence of each id.
func compactIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func staffIDs(members []models.Staff) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return ids
}

func indexStaff(members []models.Staff) map[string]*models.Staff {
	out := make(map[string]*models.Staff, len(members))
	for i := range members {
		out[members[i].ID] = &members[i]
	}
	return out
}
