package handlers

import (
	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/dimitrije/memorai-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type UserHandler struct {
	userService UserServiceInterface
}

func NewUserHandler(userService UserServiceInterface) *UserHandler {
	return &UserHandler{userService: userService}
}

func toUserResponse(u *models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		AvatarURL:  u.AvatarURL,
		GlobalRole: u.GlobalRole,
		CreatedAt:  u.CreatedAt,
	}
}

func (h *UserHandler) GetMe(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(200, toUserResponse(user))
}

func (h *UserHandler) List(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	limit, offset := pageParams(c)
	users, err := h.userService.List(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondError(c, err, false)
		return
	}

	response := make([]dto.UserResponse, len(users))
	for i := range users {
		response[i] = toUserResponse(&users[i])
	}
	_ = c.JSON(200, response)
}

func (h *UserHandler) SetGlobalRole(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.BadRequest("invalid user id")
		return
	}

	var req dto.SetGlobalRoleRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	user, err := h.userService.SetGlobalRole(c.Request.Context(), id, targetID, req.GlobalRole)
	if err != nil {
		respondError(c, err, false)
		return
	}

	_ = c.JSON(200, toUserResponse(user))
}
