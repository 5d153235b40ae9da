package dto

import (
	"time"

	"github.com/google/uuid"
)

type UserResponse struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	GlobalRole string    `json:"global_role,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type SetGlobalRoleRequest struct {
	GlobalRole string `json:"global_role"`
}
