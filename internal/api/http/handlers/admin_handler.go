package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-audit-service/internal/service"
)

// TriggerManual marks escalation runs started by an administrator.
const TriggerManual = "manual"

// AdminHandler exposes operational controls.
type AdminHandler struct {
	escalation *service.EscalationService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(escalation *service.EscalationService) *AdminHandler {
	return &AdminHandler{escalation: escalation}
}

// RunEscalation POST /admin/escalation/run.
func (h *AdminHandler) RunEscalation(c *fiber.Ctx) error {
	run, err := h.escalation.RunEscalation(c.UserContext(), TriggerManual)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": run})
}

// EscalationStatus GET /admin/escalation/status.
func (h *AdminHandler) EscalationStatus(c *fiber.Ctx) error {
	run, err := h.escalation.LastRun(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": run})
}
