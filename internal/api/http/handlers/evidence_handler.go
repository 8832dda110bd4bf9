package handlers

import (
	"errors"
	"path"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-audit-service/internal/domain"
	"github.com/spec-kit/field-audit-service/internal/evidence"
	apperrors "github.com/spec-kit/field-audit-service/pkg/util/errorutil"
)

// EvidenceHandler streams stored evidence blobs.
type EvidenceHandler struct {
	blobs evidence.BlobStore
}

// NewEvidenceHandler constructs handler.
func NewEvidenceHandler(blobs evidence.BlobStore) *EvidenceHandler {
	return &EvidenceHandler{blobs: blobs}
}

// Download GET /evidence/:slot/:name.
func (h *EvidenceHandler) Download(c *fiber.Ctx) error {
	slot, ok := domain.ParseEvidenceSlot(c.Params("slot"))
	if !ok {
		return apperrors.NewValidationError("unknown evidence slot", "slot")
	}
	name := c.Params("name")
	if name == "" || strings.ContainsAny(name, `/\`) {
		return apperrors.NewValidationError("invalid evidence name", "name")
	}

	rc, err := h.blobs.Open(c.UserContext(), domain.EvidenceRef(path.Join(string(slot), name)))
	if err != nil {
		if errors.Is(err, evidence.ErrBlobNotFound) {
			return apperrors.NewNotFound("evidence", map[string]any{"slot": slot, "name": name})
		}
		return apperrors.NewInternalError(err)
	}
	if ext := strings.TrimPrefix(path.Ext(name), "."); ext != "" {
		c.Type(ext)
	}
	return c.SendStream(rc)
}
