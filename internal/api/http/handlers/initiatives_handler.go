package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-audit-service/internal/api/dto"
	"github.com/spec-kit/field-audit-service/internal/auth"
	"github.com/spec-kit/field-audit-service/internal/domain"
	"github.com/spec-kit/field-audit-service/internal/service"
	apperrors "github.com/spec-kit/field-audit-service/pkg/util/errorutil"
)

// InitiativesHandler manages initiative endpoints.
type InitiativesHandler struct {
	service *service.InitiativeService
}

// NewInitiativesHandler constructs handler.
func NewInitiativesHandler(initiativeService *service.InitiativeService) *InitiativesHandler {
	return &InitiativesHandler{service: initiativeService}
}

// CreateInitiative POST /initiatives.
func (h *InitiativesHandler) CreateInitiative(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("identity required")
	}
	input, err := initiativeInput(c)
	if err != nil {
		return err
	}
	initiative, err := h.service.CreateInitiative(c.UserContext(), identity, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewInitiativeResponse(initiative)})
}

// GetInitiative GET /initiatives/:id.
func (h *InitiativesHandler) GetInitiative(c *fiber.Ctx) error {
	id, err := initiativeID(c)
	if err != nil {
		return err
	}
	initiative, err := h.service.GetInitiative(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewInitiativeResponse(initiative)})
}

// UpdateInitiative PATCH /initiatives/:id.
func (h *InitiativesHandler) UpdateInitiative(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("identity required")
	}
	id, err := initiativeID(c)
	if err != nil {
		return err
	}
	input, err := initiativeInput(c)
	if err != nil {
		return err
	}
	initiative, err := h.service.UpdateInitiative(c.UserContext(), identity, id, input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewInitiativeResponse(initiative)})
}

// DeleteInitiative DELETE /initiatives/:id.
func (h *InitiativesHandler) DeleteInitiative(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("identity required")
	}
	id, err := initiativeID(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteInitiative(c.UserContext(), identity, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func initiativeInput(c *fiber.Ctx) (service.InitiativeInput, error) {
	sub, err := parseSubmission(c, dto.InitiativeFields, []string{dto.FileEvidencesBefore, dto.FileEvidencesAfter})
	if err != nil {
		return service.InitiativeInput{}, err
	}

	var invalid []string
	input := service.InitiativeInput{
		Date:            sub.date(dto.FieldDate, &invalid),
		Station:         sub.text(dto.FieldStation),
		Details:         sub.text(dto.FieldDetails),
		AreaManager:     sub.text(dto.FieldAreaManager),
		RegionalManager: sub.text(dto.FieldRegionalManager),
		EvidenceBefore:  sub.uploads(dto.FileEvidencesBefore),
		EvidenceAfter:   sub.uploads(dto.FileEvidencesAfter),
	}
	if sub.has(dto.FieldRegion) {
		region := domain.Region(sub.values[dto.FieldRegion])
		input.Region = &region
	}
	if sub.has(dto.FieldType) {
		initiativeType := domain.IssueType(sub.values[dto.FieldType])
		input.Type = &initiativeType
	}
	if len(invalid) > 0 {
		return service.InitiativeInput{}, apperrors.NewValidationError("malformed fields", invalid...)
	}
	return input, nil
}

func initiativeID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid initiative id", "id")
	}
	return id, nil
}
