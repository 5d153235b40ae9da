package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dimitrije/memorai-api/internal/database"
	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/google/uuid"
)

// Fixtures provides factory methods for creating test data
type Fixtures struct {
	db      *database.DB
	counter int
}

func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{db: db}
}

// CreateUser creates a test user with default values
func (f *Fixtures) CreateUser(t *testing.T, opts ...UserOption) *models.User {
	t.Helper()
	f.counter++

	user := &models.User{
		Email:      fmt.Sprintf("user%d@example.com", f.counter),
		Name:       fmt.Sprintf("Test User %d", f.counter),
		GlobalRole: models.GlobalRoleUser,
	}
	for _, opt := range opts {
		opt(user)
	}

	err := f.db.Pool.QueryRow(context.Background(), `
		INSERT INTO users (email, name, global_role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, user.Email, user.Name, user.GlobalRole).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

// UserOption configures a test user
type UserOption func(*models.User)

func WithEmail(email string) UserOption {
	return func(u *models.User) { u.Email = email }
}

func WithGlobalRole(role string) UserOption {
	return func(u *models.User) { u.GlobalRole = role }
}

// CreateSpace creates a live space owned by owner.
func (f *Fixtures) CreateSpace(t *testing.T, owner *models.User, slug string) *models.Space {
	t.Helper()
	ctx := context.Background()

	space := &models.Space{Name: slug, Slug: slug, CreatedBy: owner.ID}
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO space (name, slug, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, space.Name, space.Slug, owner.ID).Scan(&space.ID, &space.CreatedAt, &space.UpdatedAt)
	if err != nil {
		t.Fatalf("failed to create space: %v", err)
	}

	f.AddMember(t, space.ID, owner.ID, models.RoleOwner)
	return space
}

func (f *Fixtures) AddMember(t *testing.T, spaceID, userID uuid.UUID, role models.Role) {
	t.Helper()
	_, err := f.db.Pool.Exec(context.Background(), `
		INSERT INTO space_member (space_id, user_id, role) VALUES ($1, $2, $3)
	`, spaceID, userID, string(role))
	if err != nil {
		t.Fatalf("failed to add member: %v", err)
	}
}

// CreateInvitation inserts a pending invitation directly, bypassing the inviter checks.
func (f *Fixtures) CreateInvitation(t *testing.T, spaceID, invitedBy uuid.UUID, email string, role models.Role, expiresAt time.Time) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := f.db.Pool.QueryRow(context.Background(), `
		INSERT INTO space_invitation (space_id, email, role, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, spaceID, email, string(role), invitedBy, expiresAt).Scan(&id)
	if err != nil {
		t.Fatalf("failed to create invitation: %v", err)
	}
	return id
}
