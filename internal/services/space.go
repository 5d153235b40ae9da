package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dimitrije/memorai-api/internal/database"
	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

const spaceColumns = `s.id, s.name, s.slug, s.description, s.settings, s.created_by, s.created_at, s.updated_at`

type SpaceService struct {
	db      *database.DB
	members *MembershipResolver
	audit   *AuditRecorder
}

func NewSpaceService(db *database.DB, members *MembershipResolver, audit *AuditRecorder) *SpaceService {
	return &SpaceService{db: db, members: members, audit: audit}
}

func scanSpace(row pgx.Row) (*models.Space, error) {
	var s models.Space
	if err := row.Scan(&s.ID, &s.Name, &s.Slug, &s.Description, &s.Settings, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create makes a new space with the caller as its owner.
func (s *SpaceService) Create(ctx context.Context, id Identity, name, slug string, description *string) (*models.Space, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !slugPattern.MatchString(slug) {
		return nil, ErrInvalidSlug
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, persistenceErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	space, err := scanSpace(tx.QueryRow(ctx, `
		INSERT INTO space AS s (name, slug, description, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING `+spaceColumns,
		name, slug, description, id.UserID))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, persistenceErr("create space", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO space_member (space_id, user_id, role)
		VALUES ($1, $2, $3)
	`, space.ID, id.UserID, string(models.RoleOwner))
	if err != nil {
		return nil, persistenceErr("add owner", err)
	}

	err = s.audit.Record(ctx, tx, AuditRecord{
		ActorID:      id.UserID,
		Action:       models.AuditCreate,
		ResourceType: models.ResourceSpace,
		ResourceID:   space.ID.String(),
		SpaceID:      space.ID,
		Details:      map[string]string{"name": name, "slug": slug},
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistenceErr("commit transaction", err)
	}
	return space, nil
}

func (s *SpaceService) ListForUser(ctx context.Context, id Identity) ([]models.SpaceWithRole, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+spaceColumns+`, sm.role
		FROM space s
		JOIN space_member sm ON sm.space_id = s.id
		WHERE sm.user_id = $1 AND s.deleted_at IS NULL
		ORDER BY s.created_at DESC
	`, id.UserID)
	if err != nil {
		return nil, persistenceErr("list spaces", err)
	}
	defer rows.Close()

	spaces := []models.SpaceWithRole{}
	for rows.Next() {
		var sw models.SpaceWithRole
		var role string
		if err := rows.Scan(
			&sw.ID, &sw.Name, &sw.Slug, &sw.Description, &sw.Settings, &sw.CreatedBy, &sw.CreatedAt, &sw.UpdatedAt, &role,
		); err != nil {
			return nil, persistenceErr("scan space", err)
		}
		if sw.Role, err = models.ParseRole(role); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		spaces = append(spaces, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list spaces", err)
	}
	return spaces, nil
}

func (s *SpaceService) Get(ctx context.Context, id Identity, slug string) (*models.SpaceWithRole, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}
	access, err := s.members.RequireRole(ctx, id.UserID, SpaceBySlug(slug), models.RoleMember)
	if err != nil {
		return nil, err
	}

	space, err := s.load(ctx, s.db.Pool, access.SpaceID)
	if err != nil {
		return nil, err
	}
	return &models.SpaceWithRole{Space: *space, Role: access.Role}, nil
}

func (s *SpaceService) load(ctx context.Context, q database.Querier, spaceID uuid.UUID) (*models.Space, error) {
	space, err := scanSpace(q.QueryRow(ctx, `
		SELECT `+spaceColumns+`
		FROM space s
		WHERE s.id = $1 AND s.deleted_at IS NULL
	`, spaceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, persistenceErr("load space", err)
	}
	return space, nil
}

func (s *SpaceService) GetSettings(ctx context.Context, id Identity, slug string) (json.RawMessage, error) {
	space, err := s.Get(ctx, id, slug)
	if err != nil {
		return nil, err
	}
	if len(space.Settings) == 0 {
		return json.RawMessage(`{}`), nil
	}
	return space.Settings, nil
}

// UpdateSettings shallow-merges patch into the stored settings object. Owner only.
func (s *SpaceService) UpdateSettings(ctx context.Context, id Identity, slug string, patch map[string]json.RawMessage) (json.RawMessage, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, persistenceErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	access, err := s.members.requireRole(ctx, tx, id.UserID, SpaceBySlug(slug), models.RoleOwner)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT settings FROM space WHERE id = $1 FOR UPDATE`, access.SpaceID).Scan(&raw)
	if err != nil {
		return nil, persistenceErr("load settings", err)
	}

	current := map[string]json.RawMessage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &current); err != nil {
			return nil, fmt.Errorf("%w: stored settings are not an object: %v", ErrPersistence, err)
		}
	}
	for k, v := range patch {
		current[k] = v
	}

	merged, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE space SET settings = $1, updated_at = NOW() WHERE id = $2`, merged, access.SpaceID)
	if err != nil {
		return nil, persistenceErr("update settings", err)
	}

	err = s.audit.Record(ctx, tx, AuditRecord{
		ActorID:      id.UserID,
		Action:       models.AuditSettingsChange,
		ResourceType: models.ResourceSpace,
		ResourceID:   access.SpaceID.String(),
		SpaceID:      access.SpaceID,
		Details:      map[string]any{"changes": patch},
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistenceErr("commit transaction", err)
	}
	return merged, nil
}

// Delete soft-deletes the space. It disappears from every resolver immediately. Owner only.
func (s *SpaceService) Delete(ctx context.Context, id Identity, slug string) error {
	if !id.Valid() {
		return ErrUnauthenticated
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return persistenceErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	access, err := s.members.requireRole(ctx, tx, id.UserID, SpaceBySlug(slug), models.RoleOwner)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE space SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, access.SpaceID)
	if err != nil {
		return persistenceErr("delete space", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrResourceNotFound
	}

	err = s.audit.Record(ctx, tx, AuditRecord{
		ActorID:      id.UserID,
		Action:       models.AuditDelete,
		ResourceType: models.ResourceSpace,
		ResourceID:   access.SpaceID.String(),
		SpaceID:      access.SpaceID,
		Details:      map[string]string{"slug": slug},
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return persistenceErr("commit transaction", err)
	}
	return nil
}

func (s *SpaceService) ListMembers(ctx context.Context, id Identity, slug string) ([]models.SpaceMember, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}
	access, err := s.members.RequireRole(ctx, id.UserID, SpaceBySlug(slug), models.RoleMember)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT sm.id, sm.space_id, sm.user_id, sm.role, sm.joined_at,
		       u.id, u.email, u.name, u.avatar_url, u.global_role, u.created_at, u.updated_at
		FROM space_member sm
		JOIN users u ON sm.user_id = u.id
		WHERE sm.space_id = $1
		ORDER BY sm.joined_at
	`, access.SpaceID)
	if err != nil {
		return nil, persistenceErr("list members", err)
	}
	defer rows.Close()

	members := []models.SpaceMember{}
	for rows.Next() {
		var member models.SpaceMember
		var user models.User
		var role string
		if err := rows.Scan(
			&member.ID, &member.SpaceID, &member.UserID, &role, &member.JoinedAt,
			&user.ID, &user.Email, &user.Name, &user.AvatarURL, &user.GlobalRole, &user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, persistenceErr("scan member", err)
		}
		if member.Role, err = models.ParseRole(role); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		member.User = &user
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list members", err)
	}
	return members, nil
}

// lockMemberRole locks the target membership row for the rest of the transaction.
func lockMemberRole(ctx context.Context, tx pgx.Tx, spaceID, userID uuid.UUID) (models.Role, error) {
	var role string
	err := tx.QueryRow(ctx, `
		SELECT role FROM space_member
		WHERE space_id = $1 AND user_id = $2
		FOR UPDATE
	`, spaceID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrResourceNotFound
		}
		return "", persistenceErr("load member", err)
	}
	r, err := models.ParseRole(role)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return r, nil
}

// lockOwnerCount locks every owner row of the space and returns how many there are.
func lockOwnerCount(ctx context.Context, tx pgx.Tx, spaceID uuid.UUID) (int, error) {
	rows, err := tx.Query(ctx, `
		SELECT user_id FROM space_member
		WHERE space_id = $1 AND role = $2
		FOR UPDATE
	`, spaceID, string(models.RoleOwner))
	if err != nil {
		return 0, persistenceErr("count owners", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, persistenceErr("count owners", err)
	}
	return n, nil
}

// RemoveMember needs admin; removing an owner needs owner. A space never loses its last owner,
// which also covers a sole owner removing themselves.
func (s *SpaceService) RemoveMember(ctx context.Context, id Identity, slug string, targetUserID uuid.UUID) error {
	if !id.Valid() {
		return ErrUnauthenticated
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return persistenceErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	access, err := s.members.requireRole(ctx, tx, id.UserID, SpaceBySlug(slug), models.RoleAdmin)
	if err != nil {
		return err
	}

	targetRole, err := lockMemberRole(ctx, tx, access.SpaceID, targetUserID)
	if err != nil {
		return err
	}

	if targetRole == models.RoleOwner {
		if !access.Role.Dominates(models.RoleOwner) {
			return ErrInsufficientRole
		}
		owners, err := lockOwnerCount(ctx, tx, access.SpaceID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return ErrSoleOwner
		}
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM space_member WHERE space_id = $1 AND user_id = $2
	`, access.SpaceID, targetUserID)
	if err != nil {
		return persistenceErr("remove member", err)
	}

	err = s.audit.Record(ctx, tx, AuditRecord{
		ActorID:      id.UserID,
		Action:       models.AuditDelete,
		ResourceType: models.ResourceSpaceMember,
		ResourceID:   targetUserID.String(),
		SpaceID:      access.SpaceID,
		Details:      map[string]string{"role": string(targetRole)},
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return persistenceErr("commit transaction", err)
	}
	return nil
}

// ChangeRole sets a member's role. Owner only; demoting the last owner is rejected.
func (s *SpaceService) ChangeRole(ctx context.Context, id Identity, slug string, targetUserID uuid.UUID, role models.Role) error {
	if !id.Valid() {
		return ErrUnauthenticated
	}
	if !role.Valid() {
		return fmt.Errorf("%w: invalid role %q", ErrInvalidInput, role)
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return persistenceErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	access, err := s.members.requireRole(ctx, tx, id.UserID, SpaceBySlug(slug), models.RoleOwner)
	if err != nil {
		return err
	}

	current, err := lockMemberRole(ctx, tx, access.SpaceID, targetUserID)
	if err != nil {
		return err
	}
	if current == role {
		return nil
	}

	if current == models.RoleOwner {
		owners, err := lockOwnerCount(ctx, tx, access.SpaceID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return ErrSoleOwner
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE space_member SET role = $1 WHERE space_id = $2 AND user_id = $3
	`, string(role), access.SpaceID, targetUserID)
	if err != nil {
		return persistenceErr("change role", err)
	}

	err = s.audit.Record(ctx, tx, AuditRecord{
		ActorID:      id.UserID,
		Action:       models.AuditRoleChange,
		ResourceType: models.ResourceSpaceMember,
		ResourceID:   targetUserID.String(),
		SpaceID:      access.SpaceID,
		Details:      map[string]string{"from": string(current), "to": string(role)},
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return persistenceErr("commit transaction", err)
	}
	return nil
}
