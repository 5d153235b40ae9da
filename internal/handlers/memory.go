package handlers

import (
	"github.com/dimitrije/memorai-api/internal/services"
	"github.com/dimitrije/memorai-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

// MemoryHandler serves memory records held by the external memory service, plus the
// annotations and bookmarks kept locally against them.
type MemoryHandler struct {
	memoryService MemoryServiceInterface
}

func NewMemoryHandler(memoryService MemoryServiceInterface) *MemoryHandler {
	return &MemoryHandler{memoryService: memoryService}
}

// List serves the memories of the space named by user_id, or the caller's bookmarks when
// bookmarked=true.
func (h *MemoryHandler) List(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	if c.QueryParam("bookmarked") == "true" {
		bookmarks, err := h.memoryService.ListBookmarks(c.Request.Context(), id)
		if err != nil {
			respondError(c, err, false)
			return
		}
		_ = c.JSON(200, bookmarks)
		return
	}

	slug := c.QueryParam("user_id")
	if slug == "" {
		c.BadRequest("user_id is required")
		return
	}

	results, err := h.memoryService.List(c.Request.Context(), id, slug, c.QueryParam("agent_id"))
	if err != nil {
		respondError(c, err, true)
		return
	}

	_ = c.JSON(200, dto.MemoryListResponse{Results: results})
}

func (h *MemoryHandler) Create(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req dto.CreateMemoryRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.UserID == "" || req.Content == "" {
		c.BadRequest("user_id and content are required")
		return
	}

	result, err := h.memoryService.Create(c.Request.Context(), id, services.IngestInput{
		Slug:     req.UserID,
		Content:  req.Content,
		Source:   req.Source,
		AgentID:  req.AgentID,
		Metadata: req.Metadata,
	})
	if err != nil {
		respondError(c, err, true)
		return
	}

	_ = c.JSON(201, result)
}

func (h *MemoryHandler) Search(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req dto.SearchRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.Query == "" {
		c.BadRequest("query is required")
		return
	}

	results, err := h.memoryService.Search(c.Request.Context(), id, services.SearchInput{
		Query:   req.Query,
		Slug:    req.UserID,
		AgentID: req.AgentID,
		Limit:   req.Limit,
	})
	if err != nil {
		respondError(c, err, true)
		return
	}

	_ = c.JSON(200, dto.MemoryListResponse{Results: results})
}

func (h *MemoryHandler) Get(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	rec, err := h.memoryService.Get(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(200, rec.Raw)
}

func (h *MemoryHandler) Update(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req dto.UpdateMemoryRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if len(req.Data) == 0 {
		c.BadRequest("data is required")
		return
	}

	updated, err := h.memoryService.Update(c.Request.Context(), id, c.Param("id"), req.Data)
	if err != nil {
		respondError(c, err, false)
		return
	}

	if len(updated) == 0 {
		_ = c.JSON(200, dto.MessageResponse{Message: "memory updated"})
		return
	}
	_ = c.JSON(200, updated)
}

func (h *MemoryHandler) Delete(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	if err := h.memoryService.Delete(c.Request.Context(), id, c.Param("id")); err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(200, dto.MessageResponse{Message: "memory deleted"})
}

func (h *MemoryHandler) ListAnnotations(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	annotations, err := h.memoryService.ListAnnotations(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(200, annotations)
}

func (h *MemoryHandler) CreateAnnotation(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req dto.AnnotationRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.Content == "" {
		c.BadRequest("content is required")
		return
	}

	annotation, err := h.memoryService.CreateAnnotation(c.Request.Context(), id, c.Param("id"), req.Content)
	if err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(201, annotation)
}

func (h *MemoryHandler) UpdateAnnotation(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	annotationID, err := uuid.Parse(c.Param("annotationId"))
	if err != nil {
		c.BadRequest("invalid annotation id")
		return
	}

	var req dto.AnnotationRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	annotation, err := h.memoryService.UpdateAnnotation(c.Request.Context(), id, c.Param("id"), annotationID, req.Content)
	if err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(200, annotation)
}

func (h *MemoryHandler) DeleteAnnotation(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	annotationID, err := uuid.Parse(c.Param("annotationId"))
	if err != nil {
		c.BadRequest("invalid annotation id")
		return
	}

	if err := h.memoryService.DeleteAnnotation(c.Request.Context(), id, c.Param("id"), annotationID); err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(200, dto.MessageResponse{Message: "annotation deleted"})
}

func (h *MemoryHandler) ToggleBookmark(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	memoryID := c.Param("id")
	bookmarked, err := h.memoryService.ToggleBookmark(c.Request.Context(), id, memoryID)
	if err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(200, dto.BookmarkResponse{MemoryID: memoryID, Bookmarked: bookmarked})
}
