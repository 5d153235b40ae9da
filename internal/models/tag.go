package models

import (
	"time"

	"github.com/google/uuid"
)

const DefaultTagColor = "#6366f1"

type Tag struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	SpaceID   uuid.UUID `json:"space_id"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
