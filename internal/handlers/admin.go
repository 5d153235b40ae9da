package handlers

import (
	"github.com/m1z23r/drift/pkg/drift"
)

type AdminHandler struct {
	auditService AuditServiceInterface
}

func NewAdminHandler(auditService AuditServiceInterface) *AdminHandler {
	return &AdminHandler{auditService: auditService}
}

// Audit lists the platform-wide audit log, newest first.
func (h *AdminHandler) Audit(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	limit, offset := pageParams(c)
	entries, err := h.auditService.ListAll(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(200, entries)
}
