package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageForResponseTable(t *testing.T) {
	expected := map[LeadResponse]LeadStage{
		ResponseInterested:    StageTargeted,
		ResponseConfused:      StageTargeted,
		ResponseNotInterested: StageDiscarded,
		ResponseNotResponding: StageDiscarded,
		ResponseNotReachable:  StageDiscarded,
		ResponseSchoolStage:   StageForwarded,
		ResponseOthers:        StageNoAction,
	}
	require.Len(t, Responses, len(expected))
	for _, resp := range Responses {
		stage, ok := StageForResponse(resp)
		require.True(t, ok, resp)
		assert.Equal(t, expected[resp], stage, resp)
		assert.True(t, stage.Terminal())
	}
	_, ok := StageForResponse("Maybe")
	assert.False(t, ok)
}

func TestParseDepartment(t *testing.T) {
	dept, ok := ParseDepartment("  electronics & telecommunication ")
	require.True(t, ok)
	assert.Equal(t, DepartmentElectronicsTelecom, dept)
	_, ok = ParseDepartment("Arts")
	assert.False(t, ok)
	assert.False(t, Department("").Valid())
}

func TestVerificationChallengeScan(t *testing.T) {
	var c VerificationChallenge
	require.NoError(t, c.Scan([]byte(`{"status":"pending","lead_id":"lead-1","actual_duration":42}`)))
	assert.Equal(t, ChallengePending, c.Status)
	assert.Equal(t, 42, c.ActualDuration)

	raw, err := c.Value()
	require.NoError(t, err)
	var round VerificationChallenge
	require.NoError(t, round.Scan(raw))
	assert.Equal(t, c.LeadID, round.LeadID)

	require.NoError(t, c.Scan(nil))
	assert.Equal(t, VerificationChallenge{}, c)
	assert.Error(t, c.Scan(42))
}

func TestStaffChallengeStatus(t *testing.T) {
	var s *Staff
	assert.Equal(t, ChallengeNone, s.ChallengeStatus())
	s = &Staff{Challenge: &VerificationChallenge{Status: ChallengeRejected}}
	assert.Equal(t, ChallengeRejected, s.ChallengeStatus())
}

func TestActorScopes(t *testing.T) {
	dept := DepartmentCivil
	head := Actor{Role: RoleDepartmentHead, Department: &dept}
	assert.True(t, head.HeadOf(DepartmentCivil))
	assert.False(t, head.HeadOf(DepartmentMechanical))
	assert.False(t, head.Admin())
	assert.True(t, Actor{Role: RoleSuperAdmin}.Admin())
}
