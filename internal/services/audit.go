package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dimitrije/memorai-api/internal/database"
	"github.com/dimitrije/memorai-api/internal/metrics"
	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 200
)

// AuditRecord describes one privileged state change.
type AuditRecord struct {
	ActorID      uuid.UUID
	Action       models.AuditAction
	ResourceType string
	ResourceID   string
	SpaceID      uuid.UUID
	Details      any
}

// AuditRecorder appends to audit_log. Entries are never updated or deleted here.
type AuditRecorder struct {
	db      *database.DB
	members *MembershipResolver
	metrics *metrics.Metrics
}

func NewAuditRecorder(db *database.DB, members *MembershipResolver, m *metrics.Metrics) *AuditRecorder {
	return &AuditRecorder{db: db, members: members, metrics: m}
}

// Record writes the entry through q, which should be the transaction of the mutation it
// describes so both commit or neither does.
func (a *AuditRecorder) Record(ctx context.Context, q database.Querier, rec AuditRecord) error {
	if !rec.Action.Valid() {
		return fmt.Errorf("invalid audit action %q", rec.Action)
	}

	var details []byte
	if rec.Details != nil {
		var err error
		details, err = json.Marshal(rec.Details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
	}

	var actorID, spaceID *uuid.UUID
	if rec.ActorID != uuid.Nil {
		actorID = &rec.ActorID
	}
	if rec.SpaceID != uuid.Nil {
		spaceID = &rec.SpaceID
	}

	_, err := q.Exec(ctx, `
		INSERT INTO audit_log (user_id, action, resource_type, resource_id, space_id, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, actorID, string(rec.Action), rec.ResourceType, rec.ResourceID, spaceID, details)
	if err != nil {
		return persistenceErr("write audit entry", err)
	}

	a.metrics.ObserveAudit(string(rec.Action))
	return nil
}

// ListForSpace returns a space's entries in creation order. Requires admin.
func (a *AuditRecorder) ListForSpace(ctx context.Context, id Identity, ref SpaceRef, limit, offset int) ([]models.AuditEntry, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}
	access, err := a.members.RequireRole(ctx, id.UserID, ref, models.RoleAdmin)
	if err != nil {
		return nil, err
	}

	limit, offset = clampPage(limit, offset)
	rows, err := a.db.Pool.Query(ctx, `
		SELECT a.id, a.seq, a.user_id, a.action, a.resource_type, a.resource_id, a.space_id,
		       a.details, a.created_at, u.name, u.email
		FROM audit_log a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.space_id = $1
		ORDER BY a.created_at, a.seq
		LIMIT $2 OFFSET $3
	`, access.SpaceID, limit, offset)
	if err != nil {
		return nil, persistenceErr("list audit entries", err)
	}
	return scanAuditEntries(rows)
}

// ListAll is the platform-wide view, newest first. The caller's global role is read live
// rather than trusted from the token.
func (a *AuditRecorder) ListAll(ctx context.Context, id Identity, limit, offset int) ([]models.AuditEntry, error) {
	if err := requireSuperAdmin(ctx, a.db.Pool, id); err != nil {
		return nil, err
	}

	limit, offset = clampPage(limit, offset)
	rows, err := a.db.Pool.Query(ctx, `
		SELECT a.id, a.seq, a.user_id, a.action, a.resource_type, a.resource_id, a.space_id,
		       a.details, a.created_at, u.name, u.email
		FROM audit_log a
		LEFT JOIN users u ON u.id = a.user_id
		ORDER BY a.created_at DESC, a.seq DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, persistenceErr("list audit entries", err)
	}
	return scanAuditEntries(rows)
}

func scanAuditEntries(rows pgx.Rows) ([]models.AuditEntry, error) {
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var e models.AuditEntry
		var action string
		var resourceID *string
		if err := rows.Scan(
			&e.ID, &e.Seq, &e.UserID, &action, &e.ResourceType, &resourceID, &e.SpaceID,
			&e.Details, &e.CreatedAt, &e.UserName, &e.UserEmail,
		); err != nil {
			return nil, persistenceErr("scan audit entry", err)
		}
		e.Action = models.AuditAction(action)
		if resourceID != nil {
			e.ResourceID = *resourceID
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("read audit entries", err)
	}
	return entries, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func requireSuperAdmin(ctx context.Context, q database.Querier, id Identity) error {
	if !id.Valid() {
		return ErrUnauthenticated
	}

	var globalRole string
	err := q.QueryRow(ctx, `SELECT global_role FROM users WHERE id = $1`, id.UserID).Scan(&globalRole)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUnauthenticated
		}
		return persistenceErr("load global role", err)
	}
	if globalRole != models.GlobalRoleSuperAdmin {
		return ErrInsufficientRole
	}
	return nil
}
