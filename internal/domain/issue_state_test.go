package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingIssue() *Issue {
	return &Issue{
		ID:             7,
		Reporter:       IdentityRef{ID: "u-1", Name: "Auditor"},
		Status:         IssueStatusPending,
		DateIdentified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestResolveRequiresActionTaken(t *testing.T) {
	issue := pendingIssue()
	err := issue.Resolve(Identity{ID: "rm-1", Name: "RM"}, time.Now())
	assert.ErrorIs(t, err, ErrActionTakenRequired)
	assert.Equal(t, IssueStatusPending, issue.Status)
	assert.Nil(t, issue.ResolvedBy)
	assert.Nil(t, issue.DateOfClosure)
}

func TestResolveSetsResolverAndClosure(t *testing.T) {
	issue := pendingIssue()
	issue.ActionTaken = "replaced signage"
	now := time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)

	require.NoError(t, issue.Resolve(Identity{ID: "rm-1", Name: "RM"}, now))
	assert.Equal(t, IssueStatusResolved, issue.Status)
	require.NotNil(t, issue.ResolvedBy)
	assert.Equal(t, "rm-1", issue.ResolvedBy.ID)
	require.NotNil(t, issue.DateOfClosure)
	assert.True(t, issue.DateOfClosure.Equal(now))

	assert.ErrorIs(t, issue.Resolve(Identity{ID: "rm-2"}, now), ErrInvalidTransition)
	assert.ErrorIs(t, issue.ToggleCancel(), ErrInvalidTransition)
	assert.True(t, issue.Status.Terminal())
}

func TestToggleCancelRoundTrip(t *testing.T) {
	issue := pendingIssue()
	require.NoError(t, issue.ToggleCancel())
	assert.Equal(t, IssueStatusCancelled, issue.Status)
	require.NoError(t, issue.ToggleCancel())
	assert.Equal(t, IssueStatusPending, issue.Status)
}

func TestToggleCancelRejectedFromMaintenance(t *testing.T) {
	issue := pendingIssue()
	issue.LogNumber = "WO-1"
	issue.MaintenanceComment = "pump replacement scheduled"
	require.NoError(t, issue.MarkMaintenance())
	assert.ErrorIs(t, issue.ToggleCancel(), ErrInvalidTransition)
	assert.Equal(t, IssueStatusMaintenance, issue.Status)
}

func TestMarkMaintenanceRequiresFields(t *testing.T) {
	issue := pendingIssue()
	issue.LogNumber = "WO-1"
	assert.ErrorIs(t, issue.MarkMaintenance(), ErrMaintenanceFieldsRequired)
	assert.Equal(t, IssueStatusPending, issue.Status)
}

func TestEscalateIsMonotonic(t *testing.T) {
	issue := pendingIssue()
	assert.True(t, issue.Escalate())
	assert.False(t, issue.Escalate())
	assert.True(t, issue.IsPrioritized)

	resolved := pendingIssue()
	resolved.Status = IssueStatusResolved
	assert.False(t, resolved.Escalate())
	assert.False(t, resolved.IsPrioritized)
}

func TestCloneIsDeep(t *testing.T) {
	issue := pendingIssue()
	issue.EvidenceBefore = []EvidenceRef{"before/a.jpg"}
	issue.AppendAttribution(Identity{ID: "u-1", Name: "Auditor"}, time.Now())

	cp := issue.Clone()
	cp.EvidenceBefore = append(cp.EvidenceBefore, "before/b.jpg")
	cp.EvidenceBefore[0] = "changed"
	cp.UpdatedBy[0].ActorName = "someone else"

	assert.Equal(t, []EvidenceRef{"before/a.jpg"}, issue.EvidenceBefore)
	assert.Equal(t, "Auditor", issue.UpdatedBy[0].ActorName)
}
