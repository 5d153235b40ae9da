package models

import (
	"time"

	"github.com/google/uuid"
)

// Annotation is a private note a user keeps on an external memory record.
type Annotation struct {
	ID        uuid.UUID `json:"id"`
	MemoryID  string    `json:"memory_id"`
	UserID    uuid.UUID `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Bookmark marks a memory the user wants to find again. Bookmarks are private.
type Bookmark struct {
	ID        uuid.UUID `json:"id"`
	MemoryID  string    `json:"memory_id"`
	UserID    uuid.UUID `json:"user_id"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}
