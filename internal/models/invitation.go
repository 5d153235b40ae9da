package models

import (
	"time"

	"github.com/google/uuid"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

func (s InvitationStatus) Terminal() bool {
	return s == InvitationAccepted || s == InvitationDeclined || s == InvitationExpired
}

type Invitation struct {
	ID        uuid.UUID        `json:"id"`
	SpaceID   uuid.UUID        `json:"space_id"`
	Email     string           `json:"email"`
	Role      Role             `json:"role"`
	Status    InvitationStatus `json:"status"`
	InvitedBy uuid.UUID        `json:"invited_by"`
	ExpiresAt time.Time        `json:"expires_at"`
	CreatedAt time.Time        `json:"created_at"`

	SpaceName string `json:"space_name,omitempty"`
	SpaceSlug string `json:"space_slug,omitempty"`
}

// ExpiredAt reports whether a pending invitation has outlived its window at now.
func (i *Invitation) ExpiredAt(now time.Time) bool {
	return i.Status == InvitationPending && now.After(i.ExpiresAt)
}
