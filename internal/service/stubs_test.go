package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/admission-leads-api/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type manualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (t *manualTicker) Chan() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() { t.once.Do(func() { close(t.stopped) }) }

type manualTickers struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (m *manualTickers) New(time.Duration) Ticker {
	t := &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	m.mu.Lock()
	m.tickers = append(m.tickers, t)
	m.mu.Unlock()
	return t
}

func (m *manualTickers) last() *manualTicker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tickers) == 0 {
		return nil
	}
	return m.tickers[len(m.tickers)-1]
}

type memLeadStore struct {
	mu      sync.Mutex
	order   []string
	leads   map[string]*models.Lead
	upserts int
	frozen  map[string]bool
	err     error
}

func newMemLeadStore(leads ...models.Lead) *memLeadStore {
	store := &memLeadStore{leads: map[string]*models.Lead{}}
	for i := range leads {
		lead := leads[i]
		store.put(&lead)
	}
	return store
}

func (m *memLeadStore) put(lead *models.Lead) {
	if _, ok := m.leads[lead.ID]; !ok {
		m.order = append(m.order, lead.ID)
	}
	m.leads[lead.ID] = lead
}

func (m *memLeadStore) get(id string) models.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lead, ok := m.leads[id]; ok {
		return *lead
	}
	return models.Lead{}
}

func (m *memLeadStore) matches(lead *models.Lead, f models.LeadFilter) bool {
	if f.Stage != nil && lead.Stage != *f.Stage {
		return false
	}
	if f.Department != nil && lead.Department != *f.Department {
		return false
	}
	if f.AssignedHeadID != nil && (lead.AssignedHeadID == nil || *lead.AssignedHeadID != *f.AssignedHeadID) {
		return false
	}
	if f.AssignedTeacherID != nil && (lead.AssignedTeacherID == nil || *lead.AssignedTeacherID != *f.AssignedTeacherID) {
		return false
	}
	if f.CallVerified != nil && lead.CallVerified != *f.CallVerified {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(lead.Name), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

func (m *memLeadStore) ListAll(ctx context.Context, filter models.LeadFilter) ([]models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Lead
	for _, id := range m.order {
		if lead := m.leads[id]; m.matches(lead, filter) {
			out = append(out, *lead)
		}
	}
	return out, nil
}

func (m *memLeadStore) List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, int, error) {
	all, err := m.ListAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total := len(all)
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (m *memLeadStore) FindByID(ctx context.Context, id string) (*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	lead, ok := m.leads[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *lead
	return &copied, nil
}

func (m *memLeadStore) FindByIDs(ctx context.Context, ids []string) ([]models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Lead
	for _, id := range ids {
		if lead, ok := m.leads[id]; ok {
			out = append(out, *lead)
		}
	}
	return out, nil
}

func (m *memLeadStore) ListVerifiedByTeacher(ctx context.Context, teacherID string) ([]models.Lead, error) {
	verified := true
	return m.ListAll(ctx, models.LeadFilter{AssignedTeacherID: &teacherID, CallVerified: &verified})
}

func (m *memLeadStore) Create(ctx context.Context, lead *models.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	copied := *lead
	m.put(&copied)
	return nil
}

func (m *memLeadStore) Upsert(ctx context.Context, id string, patch models.LeadPatch) (int, error) {
	applied, err := m.BatchUpsert(ctx, []models.LeadUpsert{{ID: id, Patch: patch}})
	return len(applied), err
}

// BatchUpsert skips ids marked frozen, standing in for rows the database left unchanged.
func (m *memLeadStore) BatchUpsert(ctx context.Context, items []models.LeadUpsert) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	applied := make([]string, 0, len(items))
	for _, item := range items {
		if m.frozen[item.ID] {
			continue
		}
		lead, ok := m.leads[item.ID]
		if !ok {
			lead = &models.Lead{ID: item.ID, Stage: models.StageUnassigned}
			m.put(lead)
		}
		applyLeadPatch(lead, item.Patch)
		m.upserts++
		applied = append(applied, item.ID)
	}
	return applied, nil
}

func (m *memLeadStore) InsertIfAbsent(ctx context.Context, leads []models.Lead) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	inserted := 0
	for i := range leads {
		if _, ok := m.leads[leads[i].ID]; ok {
			continue
		}
		lead := leads[i]
		m.put(&lead)
		inserted++
	}
	return inserted, nil
}

func (m *memLeadStore) DeleteMany(ctx context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for _, id := range ids {
		if _, ok := m.leads[id]; ok {
			delete(m.leads, id)
			deleted++
		}
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if _, ok := m.leads[id]; ok {
			kept = append(kept, id)
		}
	}
	m.order = kept
	return deleted, nil
}

func (m *memLeadStore) CountBy(ctx context.Context, dimension string) ([]models.GroupCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	counts := map[string]int{}
	for _, lead := range m.leads {
		var key string
		switch dimension {
		case "stage":
			key = string(lead.Stage)
		case "department":
			key = string(lead.Department)
		case "head":
			if lead.AssignedHeadID != nil {
				key = *lead.AssignedHeadID
			}
		case "teacher":
			if lead.AssignedTeacherID != nil {
				key = *lead.AssignedTeacherID
			}
		}
		counts[key]++
	}
	out := make([]models.GroupCount, 0, len(counts))
	for key, total := range counts {
		out = append(out, models.GroupCount{Key: key, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func applyLeadPatch(lead *models.Lead, p models.LeadPatch) {
	if p.Name != nil {
		lead.Name = *p.Name
	}
	if p.Phone != nil {
		lead.Phone = *p.Phone
	}
	if p.Source != nil {
		lead.Source = *p.Source
	}
	if p.Department != nil {
		lead.Department = *p.Department
	}
	if p.Stage != nil {
		lead.Stage = *p.Stage
	}
	if p.Response != nil {
		r := *p.Response
		lead.Response = &r
	}
	if p.CallVerified != nil {
		lead.CallVerified = *p.CallVerified
	}
	if p.CallTimestamp != nil {
		at := *p.CallTimestamp
		lead.CallTimestamp = &at
	}
	if p.CallDuration != nil {
		lead.CallDuration = *p.CallDuration
	}
	if p.AssignedHeadID != nil {
		id := *p.AssignedHeadID
		lead.AssignedHeadID = &id
	}
	if p.AssignedTeacherID != nil {
		id := *p.AssignedTeacherID
		lead.AssignedTeacherID = &id
	} else if p.ClearAssignedTeacher {
		lead.AssignedTeacherID = nil
	}
}

type memStaffStore struct {
	mu    sync.Mutex
	order []string
	staff map[string]*models.Staff
	err   error
}

func newMemStaffStore(members ...models.Staff) *memStaffStore {
	store := &memStaffStore{staff: map[string]*models.Staff{}}
	for i := range members {
		member := members[i]
		store.order = append(store.order, member.ID)
		store.staff[member.ID] = &member
	}
	return store
}

func (m *memStaffStore) get(id string) *models.Staff {
	m.mu.Lock()
	defer m.mu.Unlock()
	if member, ok := m.staff[id]; ok {
		copied := *member
		return &copied
	}
	return nil
}

func (m *memStaffStore) FindByEmail(ctx context.Context, email string) (*models.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, id := range m.order {
		if strings.EqualFold(m.staff[id].Email, email) {
			copied := *m.staff[id]
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memStaffStore) FindByID(ctx context.Context, id string) (*models.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	member, ok := m.staff[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *member
	if member.Challenge != nil {
		challenge := *member.Challenge
		copied.Challenge = &challenge
	}
	return &copied, nil
}

func (m *memStaffStore) ListApproved(ctx context.Context, role models.StaffRole, dept *models.Department) ([]models.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Staff
	for _, id := range m.order {
		member := m.staff[id]
		if member.Role != role || !member.Approved() {
			continue
		}
		if dept != nil && !member.InDepartment(*dept) {
			continue
		}
		out = append(out, *member)
	}
	return out, nil
}

func (m *memStaffStore) ListAll(ctx context.Context) ([]models.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.Staff, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.staff[id])
	}
	return out, nil
}

func (m *memStaffStore) List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, int, error) {
	all, err := m.ListAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	var out []models.Staff
	for _, member := range all {
		if filter.Role != nil && member.Role != *filter.Role {
			continue
		}
		if filter.ApprovalStatus != nil && member.ApprovalStatus != *filter.ApprovalStatus {
			continue
		}
		out = append(out, member)
	}
	return out, len(out), nil
}

func (m *memStaffStore) Create(ctx context.Context, staff *models.Staff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	copied := *staff
	m.order = append(m.order, staff.ID)
	m.staff[staff.ID] = &copied
	return nil
}

func (m *memStaffStore) Update(ctx context.Context, id string, patch models.StaffPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.staff[id]
	if !ok {
		return sql.ErrNoRows
	}
	if patch.Name != nil {
		member.Name = *patch.Name
	}
	if patch.Role != nil {
		member.Role = *patch.Role
	}
	if patch.Department != nil {
		dept := *patch.Department
		member.Department = &dept
	}
	if patch.ApprovalStatus != nil {
		member.ApprovalStatus = *patch.ApprovalStatus
	}
	if patch.ApprovedBy != nil {
		by := *patch.ApprovedBy
		member.ApprovedBy = &by
	}
	if patch.ApprovedAt != nil {
		at := *patch.ApprovedAt
		member.ApprovedAt = &at
	}
	return nil
}

func (m *memStaffStore) SaveChallenge(ctx context.Context, id string, challenge *models.VerificationChallenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.staff[id]
	if !ok {
		return sql.ErrNoRows
	}
	if challenge == nil {
		member.Challenge = nil
		return nil
	}
	copied := *challenge
	member.Challenge = &copied
	return nil
}

func (m *memStaffStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.staff[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.staff, id)
	kept := m.order[:0]
	for _, existing := range m.order {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	m.order = kept
	return nil
}

type memLogStore struct {
	mu      sync.Mutex
	entries []models.SystemLog
	err     error
}

func (m *memLogStore) Append(ctx context.Context, entry *models.SystemLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memLogStore) Recent(ctx context.Context, limit int) ([]models.SystemLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := append([]models.SystemLog(nil), m.entries...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLogStore) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, entry := range m.entries {
		out[i] = entry.Action
	}
	return out
}

type feedRecorder struct {
	mu        sync.Mutex
	published []string
}

func (f *feedRecorder) Publish(ctx context.Context, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, collection)
	return nil
}

func (f *feedRecorder) collections() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.published...)
}

func newTestRecorder() (*ActivityRecorder, *memLogStore, *feedRecorder) {
	logs := &memLogStore{}
	feed := &feedRecorder{}
	return NewActivityRecorder(logs, feed, nil), logs, feed
}

func strPtr(s string) *string { return &s }

func deptPtr(d models.Department) *models.Department { return &d }

func adminActor() models.Actor {
	return models.Actor{ID: "admin-1", Name: "ADMIN", Role: models.RoleAdmin}
}

func headActor(id string, dept models.Department) models.Actor {
	return models.Actor{ID: id, Name: strings.ToUpper(id), Role: models.RoleDepartmentHead, Department: deptPtr(dept)}
}

func teacherActor(id string, dept models.Department) models.Actor {
	return models.Actor{ID: id, Name: strings.ToUpper(id), Role: models.RoleTeacher, Department: deptPtr(dept)}
}

func approvedStaff(id string, role models.StaffRole, dept models.Department) models.Staff {
	member := models.Staff{
		ID:             id,
		Name:           strings.ToUpper(id),
		Email:          id + "@example.edu",
		Role:           role,
		ApprovalStatus: models.ApprovalApproved,
	}
	if !role.Central() {
		member.Department = deptPtr(dept)
	}
	return member
}
