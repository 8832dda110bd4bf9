package events

import (
	"time"

	"github.com/spec-kit/field-audit-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueCreated          EventType = "issue_created"
	EventIssueUpdated          EventType = "issue_updated"
	EventIssueStatusChanged    EventType = "issue_status_changed"
	EventIssueCancelToggled    EventType = "issue_cancel_toggled"
	EventIssueDeleted          EventType = "issue_deleted"
	EventIssueEvidenceDetached EventType = "issue_evidence_detached"
	EventIssuesEscalated       EventType = "issues_escalated"
	EventInitiativeCreated     EventType = "initiative_created"
	EventInitiativeUpdated     EventType = "initiative_updated"
	EventInitiativeDeleted     EventType = "initiative_deleted"
)

// Actor identifies who caused an event. Nil for scheduler-driven events.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ActorOf converts an identity into event actor metadata.
func ActorOf(identity domain.Identity) *Actor {
	return &Actor{ID: identity.ID, Name: identity.Name}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	IssueID      int64       `json:"issue_id,omitempty"`
	InitiativeID int64       `json:"initiative_id,omitempty"`
	Actor        *Actor      `json:"actor,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload"`
}

// IssueCreatedPayload payload.
type IssueCreatedPayload struct {
	Region        domain.Region    `json:"region"`
	Station       string           `json:"station"`
	Type          domain.IssueType `json:"type"`
	EvidenceCount int              `json:"evidence_count"`
}

// IssueUpdatedPayload lists the fields an update touched.
type IssueUpdatedPayload struct {
	Fields        []string `json:"fields"`
	EvidenceAdded int      `json:"evidence_added"`
}

// IssueStatusChangedPayload payload.
type IssueStatusChangedPayload struct {
	OldStatus domain.IssueStatus `json:"old_status"`
	NewStatus domain.IssueStatus `json:"new_status"`
}

// IssueDeletedPayload payload.
type IssueDeletedPayload struct {
	BlobsDeleted int `json:"blobs_deleted"`
	BlobsFailed  int `json:"blobs_failed"`
}

// EvidenceDetachedPayload payload.
type EvidenceDetachedPayload struct {
	Slot domain.EvidenceSlot `json:"slot"`
	Ref  domain.EvidenceRef  `json:"ref"`
}

// IssuesEscalatedPayload payload.
type IssuesEscalatedPayload struct {
	Cutoff  time.Time `json:"cutoff"`
	Updated int64     `json:"updated"`
}

// InitiativeSavedPayload payload.
type InitiativeSavedPayload struct {
	Region        domain.Region `json:"region"`
	Station       string        `json:"station"`
	EvidenceAdded int           `json:"evidence_added"`
}
