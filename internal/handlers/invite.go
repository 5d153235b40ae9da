package handlers

import (
	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/dimitrije/memorai-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type InvitationHandler struct {
	invitationService InvitationServiceInterface
}

func NewInvitationHandler(invitationService InvitationServiceInterface) *InvitationHandler {
	return &InvitationHandler{invitationService: invitationService}
}

func (h *InvitationHandler) Create(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req dto.CreateInvitationRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.Email == "" {
		c.BadRequest("email is required")
		return
	}

	inv, err := h.invitationService.Create(c.Request.Context(), id, c.Param("slug"), req.Email, models.Role(req.Role))
	if err != nil {
		respondError(c, err, true)
		return
	}

	_ = c.JSON(201, inv)
}

func (h *InvitationHandler) ListForSpace(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	invitations, err := h.invitationService.ListForSpace(c.Request.Context(), id, c.Param("slug"))
	if err != nil {
		respondError(c, err, true)
		return
	}

	_ = c.JSON(200, invitations)
}

func (h *InvitationHandler) Cancel(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	invitationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid invitation id")
		return
	}

	if err := h.invitationService.Cancel(c.Request.Context(), id, c.Param("slug"), invitationID); err != nil {
		respondError(c, err, true)
		return
	}

	_ = c.JSON(200, dto.MessageResponse{Message: "invitation cancelled"})
}

func (h *InvitationHandler) ListMine(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	invitations, err := h.invitationService.ListMine(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(200, invitations)
}

func (h *InvitationHandler) Get(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	invitationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid invitation id")
		return
	}

	inv, err := h.invitationService.Get(c.Request.Context(), id, invitationID)
	if err != nil {
		respondError(c, err, true)
		return
	}

	_ = c.JSON(200, inv)
}

func (h *InvitationHandler) Accept(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	invitationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid invitation id")
		return
	}

	inv, err := h.invitationService.Accept(c.Request.Context(), id, invitationID)
	if err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(200, inv)
}

func (h *InvitationHandler) Decline(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	invitationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid invitation id")
		return
	}

	if err := h.invitationService.Decline(c.Request.Context(), id, invitationID); err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(200, dto.MessageResponse{Message: "invitation declined"})
}
