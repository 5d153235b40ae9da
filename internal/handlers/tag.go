package handlers

import (
	"github.com/dimitrije/memorai-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type TagHandler struct {
	tagService TagServiceInterface
}

func NewTagHandler(tagService TagServiceInterface) *TagHandler {
	return &TagHandler{tagService: tagService}
}

func (h *TagHandler) Create(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req dto.CreateTagRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.Name == "" {
		c.BadRequest("name is required")
		return
	}

	tag, err := h.tagService.Create(c.Request.Context(), id, c.Param("slug"), req.Name, req.Color)
	if err != nil {
		respondError(c, err, true)
		return
	}

	_ = c.JSON(201, tag)
}

func (h *TagHandler) List(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	tags, err := h.tagService.List(c.Request.Context(), id, c.Param("slug"))
	if err != nil {
		respondError(c, err, true)
		return
	}

	_ = c.JSON(200, tags)
}

func (h *TagHandler) Delete(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	tagID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid tag id")
		return
	}

	if err := h.tagService.Delete(c.Request.Context(), id, tagID); err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(200, dto.MessageResponse{Message: "tag deleted"})
}

func (h *TagHandler) ListForMemory(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	tags, err := h.tagService.ListForMemory(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(200, tags)
}

func (h *TagHandler) Attach(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req dto.AttachTagRequest
	if err := c.BindJSON(&req); err != nil || req.TagID == uuid.Nil {
		c.BadRequest("tag_id is required")
		return
	}

	if err := h.tagService.Attach(c.Request.Context(), id, c.Param("id"), req.TagID); err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(201, dto.MessageResponse{Message: "tag attached"})
}

func (h *TagHandler) Detach(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	tagID, err := uuid.Parse(c.Param("tagId"))
	if err != nil {
		c.BadRequest("invalid tag id")
		return
	}

	if err := h.tagService.Detach(c.Request.Context(), id, c.Param("id"), tagID); err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(200, dto.MessageResponse{Message: "tag detached"})
}
