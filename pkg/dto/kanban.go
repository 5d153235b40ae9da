package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateBoardRequest struct {
	Name string `json:"name"`
}

type CreateCardRequest struct {
	ColumnID    uuid.UUID  `json:"column_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Position    *int       `json:"position,omitempty"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// UpdateCardRequest is a partial update. Setting column_id moves the card.
type UpdateCardRequest struct {
	ColumnID    *uuid.UUID `json:"column_id,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Position    *int       `json:"position,omitempty"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}
