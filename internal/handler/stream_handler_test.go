package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
	"github.com/noah-isme/admission-leads-api/internal/service"
	"github.com/noah-isme/admission-leads-api/pkg/changefeed"
)

type fakeSnapshots struct {
	initial []service.Snapshot
	updates chan service.Snapshot
}

func (f *fakeSnapshots) All() []service.Snapshot { return f.initial }

func (f *fakeSnapshots) Subscribe() (<-chan service.Snapshot, func()) {
	return f.updates, func() {}
}

type streamFrame struct {
	Type       string               `json:"type"`
	Collection string               `json:"collection"`
	Version    uint64               `json:"version"`
	Data       []models.Lead        `json:"data"`
	Session    *dto.CallSessionView `json:"session"`
}

func teacherLeads() []models.Lead {
	mine, other := "t1", "t2"
	return []models.Lead{
		{ID: "l1", AssignedTeacherID: &mine},
		{ID: "l2", AssignedTeacherID: &other},
	}
}

func startStream(t *testing.T, snaps *fakeSnapshots, calls *fakeCalls, role models.StaffRole) (*websocket.Conn, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewStreamHandler(snaps, calls, nil, nil)
	r := gin.New()
	r.GET("/ws/snapshots", func(c *gin.Context) {
		withClaims(c, "t1", role, deptRef(models.DepartmentCivil))
		c.Next()
	}, h.Snapshots)
	srv := httptest.NewServer(r)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/snapshots"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	return conn, func() {
		_ = conn.Close()
		srv.Close()
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) streamFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame streamFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestStreamScopesLeadsToTeacher(t *testing.T) {
	snaps := &fakeSnapshots{
		initial: []service.Snapshot{
			{Collection: changefeed.CollectionLeads, Version: 1, Data: teacherLeads()},
			{Collection: changefeed.CollectionSystemLogs, Version: 2, Data: []models.SystemLog{{ID: "log-1"}}},
		},
		updates: make(chan service.Snapshot, 1),
	}
	calls := &fakeCalls{}
	conn, stop := startStream(t, snaps, calls, models.RoleTeacher)
	defer stop()

	frame := readFrame(t, conn)
	assert.Equal(t, messageSnapshot, frame.Type)
	assert.Equal(t, changefeed.CollectionLeads, frame.Collection)
	require.Len(t, frame.Data, 1)
	assert.Equal(t, "l1", frame.Data[0].ID)

	snaps.updates <- service.Snapshot{Collection: changefeed.CollectionLeads, Version: 3, Data: teacherLeads()[:1]}
	frame = readFrame(t, conn)
	assert.Equal(t, uint64(3), frame.Version, "system logs are withheld from teachers")
}

func TestStreamForwardsCallProgressAndTearsDown(t *testing.T) {
	snaps := &fakeSnapshots{updates: make(chan service.Snapshot)}
	calls := &fakeCalls{current: map[string]dto.CallSessionView{"t1": {LeadID: "lead-1", Active: true, ElapsedSeconds: 4}}}
	conn, stop := startStream(t, snaps, calls, models.RoleTeacher)

	frame := readFrame(t, conn)
	require.Equal(t, messageCallProgress, frame.Type)
	assert.Equal(t, 4, frame.Session.ElapsedSeconds)

	require.NotNil(t, calls.progress)
	calls.progress("t1", dto.CallSessionView{LeadID: "lead-1", Active: true, ElapsedSeconds: 5})
	frame = readFrame(t, conn)
	assert.Equal(t, 5, frame.Session.ElapsedSeconds)

	stop()
	assert.Eventually(t, func() bool {
		torn := calls.tornDown()
		return len(torn) == 1 && torn[0] == "t1"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://admissions.example.edu/"})

	req := httptest.NewRequest(http.MethodGet, "http://api.example.edu/ws/snapshots", nil)
	req.Header.Set("Origin", "https://admissions.example.edu")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	req.Header.Set("Origin", "http://api.example.edu")
	assert.True(t, check(req), "same host is always allowed")

	assert.True(t, originChecker([]string{"*"})(req))
}

func auditedStaff() []models.Staff {
	civil := models.DepartmentCivil
	mech := models.DepartmentMechanical
	called := time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)
	challenge := func(lead string, seconds int) *models.VerificationChallenge {
		return &models.VerificationChallenge{Status: models.ChallengePending, LeadID: lead, ActualDuration: seconds, ActualTimestamp: &called}
	}
	return []models.Staff{
		{ID: "t1", Role: models.RoleTeacher, Department: &civil, Challenge: challenge("l1", 42)},
		{ID: "t2", Role: models.RoleTeacher, Department: &civil, Challenge: challenge("l2", 37)},
		{ID: "t3", Role: models.RoleTeacher, Department: &mech, Challenge: challenge("l3", 55)},
	}
}

func TestSnapshotStaffHidesRecordedCallFromTeacher(t *testing.T) {
	teacher := models.Actor{ID: "t1", Role: models.RoleTeacher, Department: deptRef(models.DepartmentCivil)}
	msg, ok := snapshotMessage(teacher, service.Snapshot{Collection: changefeed.CollectionStaff, Data: auditedStaff()})
	require.True(t, ok)

	staff, ok := msg.Data.([]models.Staff)
	require.True(t, ok)
	require.Len(t, staff, 1)
	assert.Equal(t, "t1", staff[0].ID)
	require.NotNil(t, staff[0].Challenge)
	assert.Equal(t, models.ChallengePending, staff[0].Challenge.Status)

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "actual_duration")
	assert.NotContains(t, string(raw), "actual_timestamp")
}

func TestSnapshotStaffScopesChallengesToHeadDepartment(t *testing.T) {
	head := models.Actor{ID: "h1", Role: models.RoleDepartmentHead, Department: deptRef(models.DepartmentCivil)}
	msg, ok := snapshotMessage(head, service.Snapshot{Collection: changefeed.CollectionStaff, Data: auditedStaff()})
	require.True(t, ok)

	staff := msg.Data.([]models.Staff)
	require.Len(t, staff, 3)
	assert.Equal(t, 42, staff[0].Challenge.ActualDuration)
	assert.Equal(t, 37, staff[1].Challenge.ActualDuration)
	assert.Zero(t, staff[2].Challenge.ActualDuration)
	assert.Nil(t, staff[2].Challenge.ActualTimestamp)

	admin := models.Actor{ID: "a1", Role: models.RoleAdmin}
	msg, ok = snapshotMessage(admin, service.Snapshot{Collection: changefeed.CollectionStaff, Data: auditedStaff()})
	require.True(t, ok)
	assert.Equal(t, 55, msg.Data.([]models.Staff)[2].Challenge.ActualDuration)
}
