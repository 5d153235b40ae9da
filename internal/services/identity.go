package services

import (
	"github.com/google/uuid"
)

// Identity is the already-authenticated caller. It is passed into every operation explicitly.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

func (id Identity) Valid() bool {
	return id.UserID != uuid.Nil
}

// SpaceRef addresses a space either by id or by slug. Exactly one is set.
type SpaceRef struct {
	ID   uuid.UUID
	Slug string
}

func SpaceByID(id uuid.UUID) SpaceRef {
	return SpaceRef{ID: id}
}

func SpaceBySlug(slug string) SpaceRef {
	return SpaceRef{Slug: slug}
}

func (r SpaceRef) IsZero() bool {
	return r.ID == uuid.Nil && r.Slug == ""
}

func (r SpaceRef) String() string {
	if r.ID != uuid.Nil {
		return r.ID.String()
	}
	return r.Slug
}
