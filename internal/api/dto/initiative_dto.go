package dto

import (
	"time"

	"github.com/spec-kit/field-audit-service/internal/domain"
)

// InitiativeFields lists the text fields accepted on initiative submissions.
var InitiativeFields = []string{
	FieldDate, FieldRegion, FieldStation, FieldType, FieldDetails,
	FieldAreaManager, FieldRegionalManager,
}

// InitiativeResponse is the public view of an initiative.
type InitiativeResponse struct {
	ID              int64              `json:"id"`
	ReportedBy      domain.IdentityRef `json:"reportedBy"`
	Week            int                `json:"week"`
	Date            time.Time          `json:"date"`
	Region          domain.Region      `json:"region"`
	Station         string             `json:"station"`
	Type            domain.IssueType   `json:"type"`
	Details         string             `json:"details"`
	AreaManager     string             `json:"areaManager"`
	RegionalManager string             `json:"regionalManager"`
	EvidencesBefore []string           `json:"evidencesBefore"`
	EvidencesAfter  []string           `json:"evidencesAfter"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

func NewInitiativeResponse(initiative *domain.Initiative) InitiativeResponse {
	return InitiativeResponse{
		ID:              initiative.ID,
		ReportedBy:      initiative.Reporter,
		Week:            initiative.Week,
		Date:            initiative.Date,
		Region:          initiative.Region,
		Station:         initiative.Station,
		Type:            initiative.Type,
		Details:         initiative.Details,
		AreaManager:     initiative.AreaManager,
		RegionalManager: initiative.RegionalManager,
		EvidencesBefore: refs(initiative.EvidenceBefore),
		EvidencesAfter:  refs(initiative.EvidenceAfter),
		CreatedAt:       initiative.CreatedAt,
		UpdatedAt:       initiative.UpdatedAt,
	}
}
