package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dimitrije/memorai-api/internal/memory"
	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/dimitrije/memorai-api/internal/services"
	"github.com/google/uuid"
)

// UserServiceInterface defines the methods used by handlers from UserService
type UserServiceInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, id services.Identity, limit, offset int) ([]models.User, error)
	SetGlobalRole(ctx context.Context, id services.Identity, targetID uuid.UUID, role string) (*models.User, error)
}

// TokenIssuerInterface defines the methods used by handlers from TokenIssuer
type TokenIssuerInterface interface {
	Issue(userID uuid.UUID, email, role string) (string, error)
	Expiry() time.Duration
}

// SpaceServiceInterface defines the methods used by handlers from SpaceService
type SpaceServiceInterface interface {
	Create(ctx context.Context, id services.Identity, name, slug string, description *string) (*models.Space, error)
	ListForUser(ctx context.Context, id services.Identity) ([]models.SpaceWithRole, error)
	Get(ctx context.Context, id services.Identity, slug string) (*models.SpaceWithRole, error)
	GetSettings(ctx context.Context, id services.Identity, slug string) (json.RawMessage, error)
	UpdateSettings(ctx context.Context, id services.Identity, slug string, patch map[string]json.RawMessage) (json.RawMessage, error)
	Delete(ctx context.Context, id services.Identity, slug string) error
	ListMembers(ctx context.Context, id services.Identity, slug string) ([]models.SpaceMember, error)
	RemoveMember(ctx context.Context, id services.Identity, slug string, targetUserID uuid.UUID) error
	ChangeRole(ctx context.Context, id services.Identity, slug string, targetUserID uuid.UUID, role models.Role) error
}

// InvitationServiceInterface defines the methods used by handlers from InvitationService
type InvitationServiceInterface interface {
	Create(ctx context.Context, id services.Identity, slug, email string, role models.Role) (*models.Invitation, error)
	Get(ctx context.Context, id services.Identity, invitationID uuid.UUID) (*models.Invitation, error)
	ListForSpace(ctx context.Context, id services.Identity, slug string) ([]models.Invitation, error)
	ListMine(ctx context.Context, id services.Identity) ([]models.Invitation, error)
	Accept(ctx context.Context, id services.Identity, invitationID uuid.UUID) (*models.Invitation, error)
	Decline(ctx context.Context, id services.Identity, invitationID uuid.UUID) error
	Cancel(ctx context.Context, id services.Identity, slug string, invitationID uuid.UUID) error
}

// AuditServiceInterface defines the methods used by handlers from AuditRecorder
type AuditServiceInterface interface {
	ListForSpace(ctx context.Context, id services.Identity, ref services.SpaceRef, limit, offset int) ([]models.AuditEntry, error)
	ListAll(ctx context.Context, id services.Identity, limit, offset int) ([]models.AuditEntry, error)
}

// TagServiceInterface defines the methods used by handlers from TagService
type TagServiceInterface interface {
	Create(ctx context.Context, id services.Identity, slug, name, color string) (*models.Tag, error)
	List(ctx context.Context, id services.Identity, slug string) ([]models.Tag, error)
	Delete(ctx context.Context, id services.Identity, tagID uuid.UUID) error
	Attach(ctx context.Context, id services.Identity, memoryID string, tagID uuid.UUID) error
	Detach(ctx context.Context, id services.Identity, memoryID string, tagID uuid.UUID) error
	ListForMemory(ctx context.Context, id services.Identity, memoryID string) ([]models.Tag, error)
}

// KanbanServiceInterface defines the methods used by handlers from KanbanService
type KanbanServiceInterface interface {
	CreateBoard(ctx context.Context, id services.Identity, slug, name string) (*models.KanbanBoard, error)
	ListBoards(ctx context.Context, id services.Identity, slug string) ([]models.KanbanBoard, error)
	CreateCard(ctx context.Context, id services.Identity, in services.CardInput) (*models.KanbanCard, error)
	UpdateCard(ctx context.Context, id services.Identity, cardID uuid.UUID, in services.CardInput) (*models.KanbanCard, error)
	DeleteCard(ctx context.Context, id services.Identity, cardID uuid.UUID) error
}

// MemoryServiceInterface defines the methods used by handlers from MemoryService
type MemoryServiceInterface interface {
	List(ctx context.Context, id services.Identity, slug, agentID string) ([]json.RawMessage, error)
	Create(ctx context.Context, id services.Identity, in services.IngestInput) (*services.IngestResult, error)
	Search(ctx context.Context, id services.Identity, in services.SearchInput) ([]json.RawMessage, error)
	ListBookmarks(ctx context.Context, id services.Identity) ([]models.Bookmark, error)
	Get(ctx context.Context, id services.Identity, memoryID string) (*memory.Record, error)
	Update(ctx context.Context, id services.Identity, memoryID string, data json.RawMessage) (json.RawMessage, error)
	Delete(ctx context.Context, id services.Identity, memoryID string) error
	ListAnnotations(ctx context.Context, id services.Identity, memoryID string) ([]models.Annotation, error)
	CreateAnnotation(ctx context.Context, id services.Identity, memoryID, content string) (*models.Annotation, error)
	UpdateAnnotation(ctx context.Context, id services.Identity, memoryID string, annotationID uuid.UUID, content string) (*models.Annotation, error)
	DeleteAnnotation(ctx context.Context, id services.Identity, memoryID string, annotationID uuid.UUID) error
	ToggleBookmark(ctx context.Context, id services.Identity, memoryID string) (bool, error)
}
