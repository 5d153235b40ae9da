package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dimitrije/memorai-api/internal/database"
	"github.com/dimitrije/memorai-api/internal/memory"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ResourceKind string

const (
	KindSpace      ResourceKind = "space"
	KindTag        ResourceKind = "tag"
	KindBoard      ResourceKind = "kanban_board"
	KindColumn     ResourceKind = "kanban_column"
	KindCard       ResourceKind = "kanban_card"
	KindInvitation ResourceKind = "space_invitation"
	KindMemory     ResourceKind = "memory"
)

// ownerQueries walk each resource kind up to its live owning space.
var ownerQueries = map[ResourceKind]string{
	KindSpace: `
		SELECT s.id FROM space s
		WHERE s.id = $1 AND s.deleted_at IS NULL`,
	KindTag: `
		SELECT s.id FROM tag t
		JOIN space s ON s.id = t.space_id
		WHERE t.id = $1 AND s.deleted_at IS NULL`,
	KindBoard: `
		SELECT s.id FROM kanban_board b
		JOIN space s ON s.id = b.space_id
		WHERE b.id = $1 AND s.deleted_at IS NULL`,
	KindColumn: `
		SELECT s.id FROM kanban_column c
		JOIN kanban_board b ON b.id = c.board_id
		JOIN space s ON s.id = b.space_id
		WHERE c.id = $1 AND s.deleted_at IS NULL`,
	KindCard: `
		SELECT s.id FROM kanban_card k
		JOIN kanban_column c ON c.id = k.column_id
		JOIN kanban_board b ON b.id = c.board_id
		JOIN space s ON s.id = b.space_id
		WHERE k.id = $1 AND s.deleted_at IS NULL`,
	KindInvitation: `
		SELECT s.id FROM space_invitation i
		JOIN space s ON s.id = i.space_id
		WHERE i.id = $1 AND s.deleted_at IS NULL`,
}

// MemoryFetcher is the read side of the memory service used for ownership resolution.
type MemoryFetcher interface {
	Get(ctx context.Context, id string) (*memory.Record, error)
}

// OwnershipResolver maps an owned resource to the space it belongs to. A broken chain is
// always ErrResourceNotFound, never "unrestricted".
type OwnershipResolver struct {
	db       *database.DB
	memories MemoryFetcher
}

func NewOwnershipResolver(db *database.DB, memories MemoryFetcher) *OwnershipResolver {
	return &OwnershipResolver{db: db, memories: memories}
}

func (r *OwnershipResolver) ResolveOwner(ctx context.Context, kind ResourceKind, resourceID string) (SpaceRef, error) {
	if kind == KindMemory {
		_, ref, err := r.ResolveMemory(ctx, resourceID)
		return ref, err
	}
	return r.resolveOwner(ctx, r.db.Pool, kind, resourceID)
}

func (r *OwnershipResolver) resolveOwner(ctx context.Context, q database.Querier, kind ResourceKind, resourceID string) (SpaceRef, error) {
	query, ok := ownerQueries[kind]
	if !ok {
		return SpaceRef{}, fmt.Errorf("unknown resource kind %q", kind)
	}

	id, err := uuid.Parse(resourceID)
	if err != nil {
		return SpaceRef{}, ErrResourceNotFound
	}

	var spaceID uuid.UUID
	if err := q.QueryRow(ctx, query, id).Scan(&spaceID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SpaceRef{}, ErrResourceNotFound
		}
		return SpaceRef{}, persistenceErr("resolve "+string(kind)+" owner", err)
	}
	return SpaceByID(spaceID), nil
}

// ResolveMemory fetches the record from the memory service; its user_id is the slug of
// the owning space. Unreachable or timed out upstream fails closed with ErrUpstreamUnavailable.
func (r *OwnershipResolver) ResolveMemory(ctx context.Context, memoryID string) (*memory.Record, SpaceRef, error) {
	if memoryID == "" {
		return nil, SpaceRef{}, ErrResourceNotFound
	}

	rec, err := r.memories.Get(ctx, memoryID)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			return nil, SpaceRef{}, ErrResourceNotFound
		}
		return nil, SpaceRef{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	if rec == nil || rec.UserID == "" {
		return nil, SpaceRef{}, ErrResourceNotFound
	}
	return rec, SpaceBySlug(rec.UserID), nil
}
