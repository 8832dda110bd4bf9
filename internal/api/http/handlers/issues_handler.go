package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-audit-service/internal/api/dto"
	"github.com/spec-kit/field-audit-service/internal/auth"
	"github.com/spec-kit/field-audit-service/internal/domain"
	"github.com/spec-kit/field-audit-service/internal/service"
	apperrors "github.com/spec-kit/field-audit-service/pkg/util/errorutil"
)

// IssuesHandler manages issue lifecycle endpoints.
type IssuesHandler struct {
	service *service.IssueService
	now     func() time.Time
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issueService *service.IssueService, clock func() time.Time) *IssuesHandler {
	if clock == nil {
		clock = time.Now
	}
	return &IssuesHandler{service: issueService, now: clock}
}

// CreateIssue POST /issues.
func (h *IssuesHandler) CreateIssue(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("identity required")
	}
	sub, err := parseSubmission(c, dto.CreateFields, []string{dto.FileEvidences})
	if err != nil {
		return err
	}

	var invalid []string
	input := service.CreateIssueInput{
		Region:            domain.Region(sub.values[dto.FieldRegion]),
		Station:           sub.values[dto.FieldStation],
		Type:              domain.IssueType(sub.values[dto.FieldType]),
		Details:           sub.values[dto.FieldDetails],
		AreaManager:       sub.values[dto.FieldAreaManager],
		RegionalManager:   sub.values[dto.FieldRegionalManager],
		ProcessSpecialist: sub.values[dto.FieldProcessSpecialist],
		Evidence:          sub.uploads(dto.FileEvidences),
	}
	if d := sub.date(dto.FieldDate, &invalid); d != nil {
		input.Date = *d
	}
	if d := sub.date(dto.FieldDateIdentified, &invalid); d != nil {
		input.DateIdentified = *d
	}
	if b := sub.boolean(dto.FieldIsPrioritized, &invalid); b != nil {
		input.IsPrioritized = *b
	}
	if len(invalid) > 0 {
		return apperrors.NewValidationError("malformed fields", invalid...)
	}

	issue, err := h.service.CreateIssue(c.UserContext(), identity, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewIssueResponse(issue, issue.DaysOpen(h.now()))})
}

// GetIssue GET /issues/:id.
func (h *IssuesHandler) GetIssue(c *fiber.Ctx) error {
	id, err := issueID(c)
	if err != nil {
		return err
	}
	issue, err := h.service.GetIssue(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIssueResponse(issue, issue.DaysOpen(h.now()))})
}

// UpdateIssue PATCH /issues/:id.
func (h *IssuesHandler) UpdateIssue(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("identity required")
	}
	id, err := issueID(c)
	if err != nil {
		return err
	}
	sub, err := parseSubmission(c, dto.UpdateFields, []string{dto.FileEvidencesBefore, dto.FileEvidencesAfter})
	if err != nil {
		return err
	}

	var invalid []string
	cmd := service.UpdateIssueCommand{
		Date:               sub.date(dto.FieldDate, &invalid),
		DateIdentified:     sub.date(dto.FieldDateIdentified, &invalid),
		Station:            sub.text(dto.FieldStation),
		Details:            sub.text(dto.FieldDetails),
		AreaManager:        sub.text(dto.FieldAreaManager),
		RegionalManager:    sub.text(dto.FieldRegionalManager),
		ProcessSpecialist:  sub.text(dto.FieldProcessSpecialist),
		IsPrioritized:      sub.boolean(dto.FieldIsPrioritized, &invalid),
		LogNumber:          sub.text(dto.FieldLogNumber),
		MaintenanceComment: sub.text(dto.FieldMaintenanceComment),
		ActionTaken:        sub.text(dto.FieldActionTaken),
		Feedback:           sub.text(dto.FieldFeedback),
		EvidenceBefore:     sub.uploads(dto.FileEvidencesBefore),
		EvidenceAfter:      sub.uploads(dto.FileEvidencesAfter),
	}
	if sub.has(dto.FieldRegion) {
		region := domain.Region(sub.values[dto.FieldRegion])
		cmd.Region = &region
	}
	if sub.has(dto.FieldType) {
		issueType := domain.IssueType(sub.values[dto.FieldType])
		cmd.Type = &issueType
	}
	if sub.has(dto.FieldStatus) {
		status := domain.IssueStatus(sub.values[dto.FieldStatus])
		cmd.Status = &status
	}
	if len(invalid) > 0 {
		return apperrors.NewValidationError("malformed fields", invalid...)
	}

	issue, err := h.service.UpdateIssue(c.UserContext(), identity, id, cmd)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIssueResponse(issue, issue.DaysOpen(h.now()))})
}

// ToggleCancel POST /issues/:id/cancel.
func (h *IssuesHandler) ToggleCancel(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("identity required")
	}
	id, err := issueID(c)
	if err != nil {
		return err
	}
	issue, err := h.service.ToggleCancel(c.UserContext(), identity, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIssueResponse(issue, issue.DaysOpen(h.now()))})
}

// DeleteIssue DELETE /issues/:id.
func (h *IssuesHandler) DeleteIssue(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("identity required")
	}
	id, err := issueID(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteIssue(c.UserContext(), identity, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// DetachEvidence DELETE /issues/:id/evidence/:slot?ref=.
func (h *IssuesHandler) DetachEvidence(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("identity required")
	}
	id, err := issueID(c)
	if err != nil {
		return err
	}
	ref := c.Query("ref")
	if ref == "" {
		return apperrors.NewValidationError("ref required", "ref")
	}
	if err := h.service.DetachEvidence(c.UserContext(), identity, id, domain.EvidenceSlot(c.Params("slot")), domain.EvidenceRef(ref)); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func issueID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid issue id", "id")
	}
	return id, nil
}
