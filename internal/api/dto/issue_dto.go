package dto

import (
	"time"

	"github.com/spec-kit/field-audit-service/internal/domain"
	"github.com/spec-kit/field-audit-service/internal/report"
)

// Form field names accepted on issue submissions.
const (
	FieldDate               = "date"
	FieldDateIdentified     = "dateIdentified"
	FieldRegion             = "region"
	FieldStation            = "station"
	FieldType               = "type"
	FieldDetails            = "details"
	FieldAreaManager        = "areaManager"
	FieldRegionalManager    = "regionalManager"
	FieldProcessSpecialist  = "processSpecialist"
	FieldIsPrioritized      = "isPrioritized"
	FieldStatus             = "status"
	FieldLogNumber          = "logNumber"
	FieldMaintenanceComment = "maintenanceComment"
	FieldActionTaken        = "actionTaken"
	FieldFeedback           = "feedback"

	FileEvidences       = "evidences"
	FileEvidencesBefore = "evidencesBefore"
	FileEvidencesAfter  = "evidencesAfter"
)

// CreateFields lists the text fields accepted by POST /issues.
var CreateFields = []string{
	FieldDate, FieldDateIdentified, FieldRegion, FieldStation, FieldType, FieldDetails,
	FieldAreaManager, FieldRegionalManager, FieldProcessSpecialist, FieldIsPrioritized,
}

// UpdateFields lists the text fields accepted by PATCH /issues/:id.
var UpdateFields = append(append([]string{}, CreateFields...),
	FieldStatus, FieldLogNumber, FieldMaintenanceComment, FieldActionTaken, FieldFeedback)

// AttributionResponse is one entry of the update trail.
type AttributionResponse struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Time time.Time `json:"time"`
}

// IssueResponse is the public view of an issue.
type IssueResponse struct {
	ID                 int64                 `json:"id"`
	ReportedBy         domain.IdentityRef    `json:"reportedBy"`
	Week               int                   `json:"week"`
	Date               time.Time             `json:"date"`
	DateIdentified     time.Time             `json:"dateIdentified"`
	Region             domain.Region         `json:"region"`
	Station            string                `json:"station"`
	Type               domain.IssueType      `json:"type"`
	Category           string                `json:"category"`
	Details            string                `json:"details"`
	AreaManager        string                `json:"areaManager"`
	RegionalManager    string                `json:"regionalManager"`
	ProcessSpecialist  string                `json:"processSpecialist"`
	EvidencesBefore    []string              `json:"evidencesBefore"`
	EvidencesAfter     []string              `json:"evidencesAfter"`
	IsPrioritized      bool                  `json:"isPrioritized"`
	Status             domain.IssueStatus    `json:"status"`
	ResolvedBy         *domain.IdentityRef   `json:"resolvedBy"`
	DateOfClosure      *time.Time            `json:"dateOfClosure"`
	LogNumber          string                `json:"logNumber"`
	MaintenanceComment string                `json:"maintenanceComment"`
	ActionTaken        string                `json:"actionTaken"`
	Feedback           string                `json:"feedback"`
	UpdatedBy          []AttributionResponse `json:"updatedBy"`
	DaysOpen           int                   `json:"daysOpen"`
	CreatedAt          time.Time             `json:"createdAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
}

// Pagination describes the page returned by a listing.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// IssueListResponse is the body of GET /issues.
type IssueListResponse struct {
	Data       []IssueResponse `json:"data"`
	Pagination Pagination      `json:"pagination"`
}

// NewIssueResponse maps an issue and its derived age.
func NewIssueResponse(issue *domain.Issue, daysOpen int) IssueResponse {
	trail := make([]AttributionResponse, 0, len(issue.UpdatedBy))
	for _, a := range issue.UpdatedBy {
		trail = append(trail, AttributionResponse{ID: a.ActorID, Name: a.ActorName, Time: a.Timestamp})
	}
	return IssueResponse{
		ID:                 issue.ID,
		ReportedBy:         issue.Reporter,
		Week:               issue.Week,
		Date:               issue.Date,
		DateIdentified:     issue.DateIdentified,
		Region:             issue.Region,
		Station:            issue.Station,
		Type:               issue.Type,
		Category:           issue.Category(),
		Details:            issue.Details,
		AreaManager:        issue.AreaManager,
		RegionalManager:    issue.RegionalManager,
		ProcessSpecialist:  issue.ProcessSpecialist,
		EvidencesBefore:    refs(issue.EvidenceBefore),
		EvidencesAfter:     refs(issue.EvidenceAfter),
		IsPrioritized:      issue.IsPrioritized,
		Status:             issue.Status,
		ResolvedBy:         issue.ResolvedBy,
		DateOfClosure:      issue.DateOfClosure,
		LogNumber:          issue.LogNumber,
		MaintenanceComment: issue.MaintenanceComment,
		ActionTaken:        issue.ActionTaken,
		Feedback:           issue.Feedback,
		UpdatedBy:          trail,
		DaysOpen:           daysOpen,
		CreatedAt:          issue.CreatedAt,
		UpdatedAt:          issue.UpdatedAt,
	}
}

// NewIssueListResponse maps one page of report rows.
func NewIssueListResponse(result report.Result) IssueListResponse {
	items := make([]IssueResponse, 0, len(result.Rows))
	for i := range result.Rows {
		items = append(items, NewIssueResponse(&result.Rows[i].Issue, result.Rows[i].DaysOpen))
	}
	return IssueListResponse{
		Data: items,
		Pagination: Pagination{
			Page:       result.Page.Number,
			PageSize:   result.Page.Size,
			Total:      result.Total,
			TotalPages: result.TotalPages(),
		},
	}
}

func refs(in []domain.EvidenceRef) []string {
	out := make([]string, 0, len(in))
	for _, ref := range in {
		out = append(out, string(ref))
	}
	return out
}
