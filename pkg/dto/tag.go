package dto

import "github.com/google/uuid"

type CreateTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type AttachTagRequest struct {
	TagID uuid.UUID `json:"tag_id"`
}
