package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditCreate         AuditAction = "create"
	AuditUpdate         AuditAction = "update"
	AuditDelete         AuditAction = "delete"
	AuditLogin          AuditAction = "login"
	AuditLogout         AuditAction = "logout"
	AuditInvite         AuditAction = "invite"
	AuditRoleChange     AuditAction = "role_change"
	AuditSettingsChange AuditAction = "settings_change"
)

func (a AuditAction) Valid() bool {
	switch a {
	case AuditCreate, AuditUpdate, AuditDelete, AuditLogin, AuditLogout,
		AuditInvite, AuditRoleChange, AuditSettingsChange:
		return true
	}
	return false
}

// Resource types recorded in the audit log.
const (
	ResourceSpace       = "space"
	ResourceSpaceMember = "space_member"
	ResourceInvitation  = "space_invitation"
	ResourceTag         = "tag"
	ResourceKanbanCard  = "kanban_card"
	ResourceMemory      = "memory"
	ResourceUser        = "user"
)

type AuditEntry struct {
	ID           uuid.UUID       `json:"id"`
	Seq          int64           `json:"seq"`
	UserID       *uuid.UUID      `json:"user_id,omitempty"`
	Action       AuditAction     `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id,omitempty"`
	SpaceID      *uuid.UUID      `json:"space_id,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`

	UserName  *string `json:"user_name,omitempty"`
	UserEmail *string `json:"user_email,omitempty"`
}
