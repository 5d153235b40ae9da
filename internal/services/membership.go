package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dimitrije/memorai-api/internal/database"
	"github.com/dimitrije/memorai-api/internal/logger"
	"github.com/dimitrije/memorai-api/internal/metrics"
	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Access is a resolved, verified membership: the caller holds Role in SpaceID.
type Access struct {
	SpaceID uuid.UUID
	Role    models.Role
}

// MembershipResolver answers "what role does this user hold in this space". Deleted spaces
// never resolve, so no caller has to remember the deleted_at filter.
type MembershipResolver struct {
	db      *database.DB
	metrics *metrics.Metrics
}

func NewMembershipResolver(db *database.DB, m *metrics.Metrics) *MembershipResolver {
	return &MembershipResolver{db: db, metrics: m}
}

// RoleOf returns nil when the user has no membership in a live space matching ref.
func (r *MembershipResolver) RoleOf(ctx context.Context, userID uuid.UUID, ref SpaceRef) (*Access, error) {
	return r.roleOf(ctx, r.db.Pool, userID, ref)
}

func (r *MembershipResolver) roleOf(ctx context.Context, q database.Querier, userID uuid.UUID, ref SpaceRef) (*Access, error) {
	if ref.IsZero() {
		return nil, nil
	}

	query := `
		SELECT s.id, sm.role
		FROM space_member sm
		JOIN space s ON s.id = sm.space_id
		WHERE sm.user_id = $1 AND s.id = $2 AND s.deleted_at IS NULL
	`
	var key any = ref.ID
	if ref.ID == uuid.Nil {
		query = `
		SELECT s.id, sm.role
		FROM space_member sm
		JOIN space s ON s.id = sm.space_id
		WHERE sm.user_id = $1 AND s.slug = $2 AND s.deleted_at IS NULL
	`
		key = ref.Slug
	}

	var access Access
	var role string
	err := q.QueryRow(ctx, query, userID, key).Scan(&access.SpaceID, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, persistenceErr("resolve membership", err)
	}

	access.Role, err = models.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return &access, nil
}

// Evaluate turns a membership lookup into a Decision. The error is reserved for storage
// failures; denials are reported through the Decision.
func (r *MembershipResolver) Evaluate(ctx context.Context, userID uuid.UUID, ref SpaceRef, required models.Role) (Decision, error) {
	return r.evaluate(ctx, r.db.Pool, userID, ref, required)
}

func (r *MembershipResolver) evaluate(ctx context.Context, q database.Querier, userID uuid.UUID, ref SpaceRef, required models.Role) (Decision, error) {
	if !required.Valid() {
		return Decision{}, fmt.Errorf("invalid required role %q", required)
	}

	access, err := r.roleOf(ctx, q, userID, ref)
	if err != nil {
		logger.Error().Err(err).Str("space", ref.String()).Msg("membership lookup failed")
		return Decision{}, err
	}

	d := Decision{Required: required}
	switch {
	case access == nil:
		d.Outcome = OutcomeNotMember
	case !access.Role.Dominates(required):
		d.Outcome = OutcomeInsufficientRole
		d.SpaceID = access.SpaceID
		d.Role = access.Role
	default:
		d.Outcome = OutcomeAllowed
		d.SpaceID = access.SpaceID
		d.Role = access.Role
	}

	r.metrics.ObserveAuthz(d.Outcome.String(), string(required))
	if !d.Allowed() {
		logger.Debug().
			Str("user_id", userID.String()).
			Str("space", ref.String()).
			Str("required", string(required)).
			Str("outcome", d.Outcome.String()).
			Msg("authorization denied")
	}
	return d, nil
}

// RequireRole is the single entry point for privileged operations: it fails with
// ErrNotMember or ErrInsufficientRole and otherwise returns the verified access.
func (r *MembershipResolver) RequireRole(ctx context.Context, userID uuid.UUID, ref SpaceRef, required models.Role) (*Access, error) {
	return r.requireRole(ctx, r.db.Pool, userID, ref, required)
}

func (r *MembershipResolver) requireRole(ctx context.Context, q database.Querier, userID uuid.UUID, ref SpaceRef, required models.Role) (*Access, error) {
	d, err := r.evaluate(ctx, q, userID, ref, required)
	if err != nil {
		return nil, err
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return d.Access(), nil
}

// Slugs lists the live spaces userID belongs to.
func (r *MembershipResolver) Slugs(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT s.slug
		FROM space_member sm
		JOIN space s ON s.id = sm.space_id
		WHERE sm.user_id = $1 AND s.deleted_at IS NULL
		ORDER BY s.slug
	`, userID)
	if err != nil {
		return nil, persistenceErr("list member spaces", err)
	}
	defer rows.Close()

	slugs := []string{}
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, persistenceErr("scan space slug", err)
		}
		slugs = append(slugs, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list member spaces", err)
	}
	return slugs, nil
}
