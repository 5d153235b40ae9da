package handlers

import (
	"github.com/dimitrije/memorai-api/internal/services"
	"github.com/dimitrije/memorai-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type KanbanHandler struct {
	kanbanService KanbanServiceInterface
}

func NewKanbanHandler(kanbanService KanbanServiceInterface) *KanbanHandler {
	return &KanbanHandler{kanbanService: kanbanService}
}

func (h *KanbanHandler) ListBoards(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	boards, err := h.kanbanService.ListBoards(c.Request.Context(), id, c.Param("slug"))
	if err != nil {
		respondError(c, err, true)
		return
	}

	_ = c.JSON(200, boards)
}

func (h *KanbanHandler) CreateBoard(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req dto.CreateBoardRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.Name == "" {
		c.BadRequest("name is required")
		return
	}

	board, err := h.kanbanService.CreateBoard(c.Request.Context(), id, c.Param("slug"), req.Name)
	if err != nil {
		respondError(c, err, true)
		return
	}

	_ = c.JSON(201, board)
}

func (h *KanbanHandler) CreateCard(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req dto.CreateCardRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.ColumnID == uuid.Nil {
		c.BadRequest("column_id is required")
		return
	}
	if req.Title == "" {
		c.BadRequest("title is required")
		return
	}

	card, err := h.kanbanService.CreateCard(c.Request.Context(), id, services.CardInput{
		ColumnID:    &req.ColumnID,
		Title:       &req.Title,
		Description: req.Description,
		Position:    req.Position,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
	})
	if err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(201, card)
}

func (h *KanbanHandler) UpdateCard(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	cardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid card id")
		return
	}

	var req dto.UpdateCardRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	card, err := h.kanbanService.UpdateCard(c.Request.Context(), id, cardID, services.CardInput{
		ColumnID:    req.ColumnID,
		Title:       req.Title,
		Description: req.Description,
		Position:    req.Position,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
	})
	if err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(200, card)
}

func (h *KanbanHandler) DeleteCard(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	cardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid card id")
		return
	}

	if err := h.kanbanService.DeleteCard(c.Request.Context(), id, cardID); err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(200, dto.MessageResponse{Message: "card deleted"})
}
