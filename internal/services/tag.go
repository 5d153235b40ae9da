package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dimitrije/memorai-api/internal/database"
	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type TagService struct {
	db      *database.DB
	members *MembershipResolver
	gate    *Gate
	audit   *AuditRecorder
}

func NewTagService(db *database.DB, members *MembershipResolver, gate *Gate, audit *AuditRecorder) *TagService {
	return &TagService{db: db, members: members, gate: gate, audit: audit}
}

func collectTags(rows pgx.Rows) ([]models.Tag, error) {
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color, &tag.SpaceID, &tag.CreatedBy, &tag.CreatedAt); err != nil {
			return nil, persistenceErr("scan tag", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list tags", err)
	}
	return tags, nil
}

func (s *TagService) Create(ctx context.Context, id Identity, slug, name, color string) (*models.Tag, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if color == "" {
		color = models.DefaultTagColor
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, persistenceErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	access, err := s.members.requireRole(ctx, tx, id.UserID, SpaceBySlug(slug), models.RoleMember)
	if err != nil {
		return nil, err
	}

	var tag models.Tag
	err = tx.QueryRow(ctx, `
		INSERT INTO tag (name, color, space_id, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, color, space_id, created_by, created_at
	`, name, color, access.SpaceID, id.UserID).Scan(&tag.ID, &tag.Name, &tag.Color, &tag.SpaceID, &tag.CreatedBy, &tag.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrTagExists
		}
		return nil, persistenceErr("create tag", err)
	}

	err = s.audit.Record(ctx, tx, AuditRecord{
		ActorID:      id.UserID,
		Action:       models.AuditCreate,
		ResourceType: models.ResourceTag,
		ResourceID:   tag.ID.String(),
		SpaceID:      access.SpaceID,
		Details:      map[string]string{"name": name},
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistenceErr("commit transaction", err)
	}
	return &tag, nil
}

func (s *TagService) List(ctx context.Context, id Identity, slug string) ([]models.Tag, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}
	access, err := s.members.RequireRole(ctx, id.UserID, SpaceBySlug(slug), models.RoleMember)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, name, color, space_id, created_by, created_at
		FROM tag
		WHERE space_id = $1
		ORDER BY name
	`, access.SpaceID)
	if err != nil {
		return nil, persistenceErr("list tags", err)
	}
	return collectTags(rows)
}

// Delete lets the tag's creator remove it as a member; anyone else needs admin.
func (s *TagService) Delete(ctx context.Context, id Identity, tagID uuid.UUID) error {
	access, err := s.gate.Authorize(ctx, id, KindTag, tagID.String(), models.RoleMember)
	if err != nil {
		return err
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return persistenceErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var createdBy uuid.UUID
	var name string
	err = tx.QueryRow(ctx, `
		SELECT created_by, name FROM tag WHERE id = $1 AND space_id = $2 FOR UPDATE
	`, tagID, access.SpaceID).Scan(&createdBy, &name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrResourceNotFound
		}
		return persistenceErr("load tag", err)
	}
	if createdBy != id.UserID && !access.Role.Dominates(models.RoleAdmin) {
		return ErrInsufficientRole
	}

	if _, err := tx.Exec(ctx, `DELETE FROM tag WHERE id = $1`, tagID); err != nil {
		return persistenceErr("delete tag", err)
	}

	err = s.audit.Record(ctx, tx, AuditRecord{
		ActorID:      id.UserID,
		Action:       models.AuditDelete,
		ResourceType: models.ResourceTag,
		ResourceID:   tagID.String(),
		SpaceID:      access.SpaceID,
		Details:      map[string]string{"name": name},
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return persistenceErr("commit transaction", err)
	}
	return nil
}

// authorizeTagging checks the caller against the memory's space and that the tag lives in
// that same space.
func (s *TagService) authorizeTagging(ctx context.Context, id Identity, memoryID string, tagID uuid.UUID) (*Access, error) {
	access, _, err := s.gate.AuthorizeMemory(ctx, id, memoryID, models.RoleMember)
	if err != nil {
		return nil, err
	}

	tagRef, err := s.gate.owners.ResolveOwner(ctx, KindTag, tagID.String())
	if err != nil {
		return nil, err
	}
	if tagRef.ID != access.SpaceID {
		return nil, ErrCrossSpace
	}
	return access, nil
}

func (s *TagService) Attach(ctx context.Context, id Identity, memoryID string, tagID uuid.UUID) error {
	if _, err := s.authorizeTagging(ctx, id, memoryID, tagID); err != nil {
		return err
	}

	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO memory_tag (memory_id, tag_id) VALUES ($1, $2)
	`, memoryID, tagID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrTagApplied
		}
		return persistenceErr("attach tag", err)
	}
	return nil
}

func (s *TagService) Detach(ctx context.Context, id Identity, memoryID string, tagID uuid.UUID) error {
	if _, err := s.authorizeTagging(ctx, id, memoryID, tagID); err != nil {
		return err
	}

	_, err := s.db.Pool.Exec(ctx, `
		DELETE FROM memory_tag WHERE memory_id = $1 AND tag_id = $2
	`, memoryID, tagID)
	if err != nil {
		return persistenceErr("detach tag", err)
	}
	return nil
}

func (s *TagService) ListForMemory(ctx context.Context, id Identity, memoryID string) ([]models.Tag, error) {
	access, _, err := s.gate.AuthorizeMemory(ctx, id, memoryID, models.RoleMember)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT t.id, t.name, t.color, t.space_id, t.created_by, t.created_at
		FROM memory_tag mt
		JOIN tag t ON t.id = mt.tag_id
		WHERE mt.memory_id = $1 AND t.space_id = $2
		ORDER BY t.name
	`, memoryID, access.SpaceID)
	if err != nil {
		return nil, persistenceErr("list memory tags", err)
	}
	return collectTags(rows)
}
