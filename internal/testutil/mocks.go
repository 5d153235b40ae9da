package testutil

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dimitrije/memorai-api/internal/memory"
	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/dimitrije/memorai-api/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockUserService mocks the UserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) List(ctx context.Context, id services.Identity, limit, offset int) ([]models.User, error) {
	args := m.Called(ctx, id, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserService) SetGlobalRole(ctx context.Context, id services.Identity, targetID uuid.UUID, role string) (*models.User, error) {
	args := m.Called(ctx, id, targetID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockTokenIssuer mocks the TokenIssuer
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(userID uuid.UUID, email, role string) (string, error) {
	args := m.Called(userID, email, role)
	return args.String(0), args.Error(1)
}

func (m *MockTokenIssuer) Expiry() time.Duration {
	return time.Hour
}

// MockSpaceService mocks the SpaceService
type MockSpaceService struct {
	mock.Mock
}

func (m *MockSpaceService) Create(ctx context.Context, id services.Identity, name, slug string, description *string) (*models.Space, error) {
	args := m.Called(ctx, id, name, slug, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Space), args.Error(1)
}

func (m *MockSpaceService) ListForUser(ctx context.Context, id services.Identity) ([]models.SpaceWithRole, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SpaceWithRole), args.Error(1)
}

func (m *MockSpaceService) Get(ctx context.Context, id services.Identity, slug string) (*models.SpaceWithRole, error) {
	args := m.Called(ctx, id, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SpaceWithRole), args.Error(1)
}

func (m *MockSpaceService) GetSettings(ctx context.Context, id services.Identity, slug string) (json.RawMessage, error) {
	args := m.Called(ctx, id, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockSpaceService) UpdateSettings(ctx context.Context, id services.Identity, slug string, patch map[string]json.RawMessage) (json.RawMessage, error) {
	args := m.Called(ctx, id, slug, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockSpaceService) Delete(ctx context.Context, id services.Identity, slug string) error {
	args := m.Called(ctx, id, slug)
	return args.Error(0)
}

func (m *MockSpaceService) ListMembers(ctx context.Context, id services.Identity, slug string) ([]models.SpaceMember, error) {
	args := m.Called(ctx, id, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SpaceMember), args.Error(1)
}

func (m *MockSpaceService) RemoveMember(ctx context.Context, id services.Identity, slug string, targetUserID uuid.UUID) error {
	args := m.Called(ctx, id, slug, targetUserID)
	return args.Error(0)
}

func (m *MockSpaceService) ChangeRole(ctx context.Context, id services.Identity, slug string, targetUserID uuid.UUID, role models.Role) error {
	args := m.Called(ctx, id, slug, targetUserID, role)
	return args.Error(0)
}

// MockInvitationService mocks the InvitationService
type MockInvitationService struct {
	mock.Mock
}

func (m *MockInvitationService) Create(ctx context.Context, id services.Identity, slug, email string, role models.Role) (*models.Invitation, error) {
	args := m.Called(ctx, id, slug, email, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invitation), args.Error(1)
}

func (m *MockInvitationService) Get(ctx context.Context, id services.Identity, invitationID uuid.UUID) (*models.Invitation, error) {
	args := m.Called(ctx, id, invitationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invitation), args.Error(1)
}

func (m *MockInvitationService) ListForSpace(ctx context.Context, id services.Identity, slug string) ([]models.Invitation, error) {
	args := m.Called(ctx, id, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Invitation), args.Error(1)
}

func (m *MockInvitationService) ListMine(ctx context.Context, id services.Identity) ([]models.Invitation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Invitation), args.Error(1)
}

func (m *MockInvitationService) Accept(ctx context.Context, id services.Identity, invitationID uuid.UUID) (*models.Invitation, error) {
	args := m.Called(ctx, id, invitationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invitation), args.Error(1)
}

func (m *MockInvitationService) Decline(ctx context.Context, id services.Identity, invitationID uuid.UUID) error {
	args := m.Called(ctx, id, invitationID)
	return args.Error(0)
}

func (m *MockInvitationService) Cancel(ctx context.Context, id services.Identity, slug string, invitationID uuid.UUID) error {
	args := m.Called(ctx, id, slug, invitationID)
	return args.Error(0)
}

// MockAuditService mocks the AuditRecorder read side
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) ListForSpace(ctx context.Context, id services.Identity, ref services.SpaceRef, limit, offset int) ([]models.AuditEntry, error) {
	args := m.Called(ctx, id, ref, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AuditEntry), args.Error(1)
}

func (m *MockAuditService) ListAll(ctx context.Context, id services.Identity, limit, offset int) ([]models.AuditEntry, error) {
	args := m.Called(ctx, id, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AuditEntry), args.Error(1)
}

// MockTagService mocks the TagService
type MockTagService struct {
	mock.Mock
}

func (m *MockTagService) Create(ctx context.Context, id services.Identity, slug, name, color string) (*models.Tag, error) {
	args := m.Called(ctx, id, slug, name, color)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tag), args.Error(1)
}

func (m *MockTagService) List(ctx context.Context, id services.Identity, slug string) ([]models.Tag, error) {
	args := m.Called(ctx, id, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Tag), args.Error(1)
}

func (m *MockTagService) Delete(ctx context.Context, id services.Identity, tagID uuid.UUID) error {
	args := m.Called(ctx, id, tagID)
	return args.Error(0)
}

func (m *MockTagService) Attach(ctx context.Context, id services.Identity, memoryID string, tagID uuid.UUID) error {
	args := m.Called(ctx, id, memoryID, tagID)
	return args.Error(0)
}

func (m *MockTagService) Detach(ctx context.Context, id services.Identity, memoryID string, tagID uuid.UUID) error {
	args := m.Called(ctx, id, memoryID, tagID)
	return args.Error(0)
}

func (m *MockTagService) ListForMemory(ctx context.Context, id services.Identity, memoryID string) ([]models.Tag, error) {
	args := m.Called(ctx, id, memoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Tag), args.Error(1)
}

// MockKanbanService mocks the KanbanService
type MockKanbanService struct {
	mock.Mock
}

func (m *MockKanbanService) CreateBoard(ctx context.Context, id services.Identity, slug, name string) (*models.KanbanBoard, error) {
	args := m.Called(ctx, id, slug, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.KanbanBoard), args.Error(1)
}

func (m *MockKanbanService) ListBoards(ctx context.Context, id services.Identity, slug string) ([]models.KanbanBoard, error) {
	args := m.Called(ctx, id, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.KanbanBoard), args.Error(1)
}

func (m *MockKanbanService) CreateCard(ctx context.Context, id services.Identity, in services.CardInput) (*models.KanbanCard, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.KanbanCard), args.Error(1)
}

func (m *MockKanbanService) UpdateCard(ctx context.Context, id services.Identity, cardID uuid.UUID, in services.CardInput) (*models.KanbanCard, error) {
	args := m.Called(ctx, id, cardID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.KanbanCard), args.Error(1)
}

func (m *MockKanbanService) DeleteCard(ctx context.Context, id services.Identity, cardID uuid.UUID) error {
	args := m.Called(ctx, id, cardID)
	return args.Error(0)
}

// MockMemoryService mocks the MemoryService
type MockMemoryService struct {
	mock.Mock
}

func (m *MockMemoryService) List(ctx context.Context, id services.Identity, slug, agentID string) ([]json.RawMessage, error) {
	args := m.Called(ctx, id, slug, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]json.RawMessage), args.Error(1)
}

func (m *MockMemoryService) Create(ctx context.Context, id services.Identity, in services.IngestInput) (*services.IngestResult, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.IngestResult), args.Error(1)
}

func (m *MockMemoryService) Search(ctx context.Context, id services.Identity, in services.SearchInput) ([]json.RawMessage, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]json.RawMessage), args.Error(1)
}

func (m *MockMemoryService) ListBookmarks(ctx context.Context, id services.Identity) ([]models.Bookmark, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Bookmark), args.Error(1)
}

func (m *MockMemoryService) Get(ctx context.Context, id services.Identity, memoryID string) (*memory.Record, error) {
	args := m.Called(ctx, id, memoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*memory.Record), args.Error(1)
}

func (m *MockMemoryService) Update(ctx context.Context, id services.Identity, memoryID string, data json.RawMessage) (json.RawMessage, error) {
	args := m.Called(ctx, id, memoryID, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockMemoryService) Delete(ctx context.Context, id services.Identity, memoryID string) error {
	args := m.Called(ctx, id, memoryID)
	return args.Error(0)
}

func (m *MockMemoryService) ListAnnotations(ctx context.Context, id services.Identity, memoryID string) ([]models.Annotation, error) {
	args := m.Called(ctx, id, memoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Annotation), args.Error(1)
}

func (m *MockMemoryService) CreateAnnotation(ctx context.Context, id services.Identity, memoryID, content string) (*models.Annotation, error) {
	args := m.Called(ctx, id, memoryID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Annotation), args.Error(1)
}

func (m *MockMemoryService) UpdateAnnotation(ctx context.Context, id services.Identity, memoryID string, annotationID uuid.UUID, content string) (*models.Annotation, error) {
	args := m.Called(ctx, id, memoryID, annotationID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Annotation), args.Error(1)
}

func (m *MockMemoryService) DeleteAnnotation(ctx context.Context, id services.Identity, memoryID string, annotationID uuid.UUID) error {
	args := m.Called(ctx, id, memoryID, annotationID)
	return args.Error(0)
}

func (m *MockMemoryService) ToggleBookmark(ctx context.Context, id services.Identity, memoryID string) (bool, error) {
	args := m.Called(ctx, id, memoryID)
	return args.Bool(0), args.Error(1)
}

// MockPinger mocks a database health check
type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
