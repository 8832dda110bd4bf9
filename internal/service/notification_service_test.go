package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/field-audit-service/internal/domain"
	"github.com/spec-kit/field-audit-service/internal/events"
)

func TestNotificationServiceLogsIssueEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.New(core)).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		ID:      "e1",
		Type:    events.EventIssueStatusChanged,
		IssueID: 7,
		Actor:   events.ActorOf(manager),
		Payload: events.IssueStatusChangedPayload{OldStatus: domain.IssueStatusPending, NewStatus: domain.IssueStatusResolved},
	}))
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		ID:      "e2",
		Type:    events.EventIssuesEscalated,
		Payload: events.IssuesEscalatedPayload{Updated: 3},
	}))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, string(events.EventIssueStatusChanged), entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(7), fields["issue_id"])
	assert.Equal(t, "Resolved", fields["new_status"])
	assert.Equal(t, "u9", fields["actor_id"])
	assert.Equal(t, int64(3), entries[1].ContextMap()["updated"])
}

func TestNotificationServiceLogsInitiativeEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.New(core)).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		ID:           "e3",
		Type:         events.EventInitiativeCreated,
		InitiativeID: 4,
		Actor:        events.ActorOf(auditor),
		Payload:      events.InitiativeSavedPayload{Region: domain.RegionSouthern, Station: "Galle", EvidenceAdded: 2},
	}))

	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, string(events.EventInitiativeCreated), entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(4), fields["initiative_id"])
	assert.NotContains(t, fields, "issue_id")
	assert.Equal(t, "u1", fields["actor_id"])
}
