package handlers

import (
	"encoding/json"

	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/dimitrije/memorai-api/internal/services"
	"github.com/dimitrije/memorai-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type SpaceHandler struct {
	spaceService SpaceServiceInterface
	auditService AuditServiceInterface
}

func NewSpaceHandler(spaceService SpaceServiceInterface, auditService AuditServiceInterface) *SpaceHandler {
	return &SpaceHandler{
		spaceService: spaceService,
		auditService: auditService,
	}
}

func toSpaceResponse(s *models.Space, role models.Role) dto.SpaceResponse {
	return dto.SpaceResponse{
		ID:          s.ID,
		Name:        s.Name,
		Slug:        s.Slug,
		Description: s.Description,
		Settings:    s.Settings,
		Role:        string(role),
		CreatedBy:   s.CreatedBy,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func (h *SpaceHandler) Create(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req dto.CreateSpaceRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.Name == "" {
		c.BadRequest("name is required")
		return
	}

	space, err := h.spaceService.Create(c.Request.Context(), id, req.Name, req.Slug, req.Description)
	if err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(201, toSpaceResponse(space, models.RoleOwner))
}

func (h *SpaceHandler) List(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	spaces, err := h.spaceService.ListForUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, false)
		return
	}

	response := make([]dto.SpaceResponse, len(spaces))
	for i := range spaces {
		response[i] = toSpaceResponse(&spaces[i].Space, spaces[i].Role)
	}
	_ = c.JSON(200, response)
}

func (h *SpaceHandler) Get(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	space, err := h.spaceService.Get(c.Request.Context(), id, c.Param("slug"))
	if err != nil {
		respondError(c, err, true)
		return
	}

	_ = c.JSON(200, toSpaceResponse(&space.Space, space.Role))
}

func (h *SpaceHandler) Delete(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	if err := h.spaceService.Delete(c.Request.Context(), id, c.Param("slug")); err != nil {
		respondError(c, err, true)
		return
	}

	_ = c.JSON(200, dto.MessageResponse{Message: "space deleted"})
}

func (h *SpaceHandler) GetSettings(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	settings, err := h.spaceService.GetSettings(c.Request.Context(), id, c.Param("slug"))
	if err != nil {
		respondError(c, err, true)
		return
	}

	_ = c.JSON(200, settings)
}

func (h *SpaceHandler) UpdateSettings(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	var patch map[string]json.RawMessage
	if err := c.BindJSON(&patch); err != nil || patch == nil {
		c.BadRequest("settings must be a JSON object")
		return
	}

	settings, err := h.spaceService.UpdateSettings(c.Request.Context(), id, c.Param("slug"), patch)
	if err != nil {
		respondError(c, err, true)
		return
	}

	_ = c.JSON(200, settings)
}

func (h *SpaceHandler) ListMembers(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	members, err := h.spaceService.ListMembers(c.Request.Context(), id, c.Param("slug"))
	if err != nil {
		respondError(c, err, true)
		return
	}

	response := make([]dto.SpaceMemberResponse, len(members))
	for i, m := range members {
		response[i] = dto.SpaceMemberResponse{
			ID:       m.ID,
			UserID:   m.UserID,
			Role:     string(m.Role),
			JoinedAt: m.JoinedAt,
		}
		if m.User != nil {
			user := toUserResponse(m.User)
			user.GlobalRole = ""
			response[i].User = &user
		}
	}
	_ = c.JSON(200, response)
}

func (h *SpaceHandler) RemoveMember(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.BadRequest("invalid user id")
		return
	}

	if err := h.spaceService.RemoveMember(c.Request.Context(), id, c.Param("slug"), targetID); err != nil {
		respondError(c, err, true)
		return
	}

	_ = c.JSON(200, dto.MessageResponse{Message: "member removed"})
}

func (h *SpaceHandler) ChangeRole(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.BadRequest("invalid user id")
		return
	}

	var req dto.ChangeRoleRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		c.BadRequest(err.Error())
		return
	}

	if err := h.spaceService.ChangeRole(c.Request.Context(), id, c.Param("slug"), targetID, role); err != nil {
		respondError(c, err, true)
		return
	}

	_ = c.JSON(200, dto.MessageResponse{Message: "role updated"})
}

func (h *SpaceHandler) Audit(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	limit, offset := pageParams(c)
	entries, err := h.auditService.ListForSpace(c.Request.Context(), id, services.SpaceBySlug(c.Param("slug")), limit, offset)
	if err != nil {
		respondError(c, err, true)
		return
	}

	_ = c.JSON(200, entries)
}
