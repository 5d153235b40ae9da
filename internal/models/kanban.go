package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultKanbanColumns are created with every new board, in position order.
var DefaultKanbanColumns = []string{"To Do", "In Progress", "Done"}

type KanbanBoard struct {
	ID        uuid.UUID      `json:"id"`
	SpaceID   uuid.UUID      `json:"space_id"`
	Name      string         `json:"name"`
	CreatedBy uuid.UUID      `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Columns   []KanbanColumn `json:"columns"`
}

type KanbanColumn struct {
	ID       uuid.UUID    `json:"id"`
	BoardID  uuid.UUID    `json:"board_id"`
	Name     string       `json:"name"`
	Position int          `json:"position"`
	Color    *string      `json:"color,omitempty"`
	Cards    []KanbanCard `json:"cards"`
}

type KanbanCard struct {
	ID          uuid.UUID  `json:"id"`
	ColumnID    uuid.UUID  `json:"column_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Position    int        `json:"position"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
