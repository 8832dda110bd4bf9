package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/field-audit-service/internal/events"
)

// NotificationService reports domain events to the operational log.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventIssueCreated,
		events.EventIssueUpdated,
		events.EventIssueCancelToggled,
		events.EventIssueDeleted,
		events.EventIssueEvidenceDetached,
		events.EventInitiativeCreated,
		events.EventInitiativeUpdated,
		events.EventInitiativeDeleted,
	} {
		n.dispatcher.Subscribe(eventType, n.handleIssueEvent)
	}
	n.dispatcher.Subscribe(events.EventIssueStatusChanged, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventIssuesEscalated, n.handleEscalated)
}

func (n *NotificationService) handleIssueEvent(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), n.fields(event)...)
	return nil
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	fields := n.fields(event)
	if payload, ok := event.Payload.(events.IssueStatusChangedPayload); ok {
		fields = append(fields,
			zap.String("old_status", string(payload.OldStatus)),
			zap.String("new_status", string(payload.NewStatus)))
	}
	n.logger.Info(string(event.Type), fields...)
	return nil
}

func (n *NotificationService) handleEscalated(ctx context.Context, event events.Event) error {
	fields := []zap.Field{zap.String("event_id", event.ID)}
	if payload, ok := event.Payload.(events.IssuesEscalatedPayload); ok {
		fields = append(fields, zap.Int64("updated", payload.Updated), zap.Time("cutoff", payload.Cutoff))
	}
	n.logger.Info(string(event.Type), fields...)
	return nil
}

func (n *NotificationService) fields(event events.Event) []zap.Field {
	fields := []zap.Field{zap.String("event_id", event.ID)}
	if event.InitiativeID != 0 {
		fields = append(fields, zap.Int64("initiative_id", event.InitiativeID))
	} else {
		fields = append(fields, zap.Int64("issue_id", event.IssueID))
	}
	fields = append(fields, zap.Any("payload", event.Payload))
	if event.Actor != nil {
		fields = append(fields, zap.String("actor_id", event.Actor.ID))
	}
	return fields
}
