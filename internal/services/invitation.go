package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dimitrije/memorai-api/internal/database"
	"github.com/dimitrije/memorai-api/internal/logger"
	"github.com/dimitrije/memorai-api/internal/metrics"
	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const invitationColumns = `i.id, i.space_id, i.email, i.role, i.status, i.invited_by, i.expires_at, i.created_at, s.name, s.slug`

// InvitationService runs the invitation state machine: pending moves exactly once to
// accepted, declined or expired. Expiry is applied lazily whenever a pending row is read.
type InvitationService struct {
	db      *database.DB
	members *MembershipResolver
	audit   *AuditRecorder
	metrics *metrics.Metrics
	expiry  time.Duration
	now     func() time.Time
}

func NewInvitationService(db *database.DB, members *MembershipResolver, audit *AuditRecorder, m *metrics.Metrics, expiry time.Duration) *InvitationService {
	return &InvitationService{
		db:      db,
		members: members,
		audit:   audit,
		metrics: m,
		expiry:  expiry,
		now:     time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func scanInvitation(row pgx.Row) (*models.Invitation, error) {
	var inv models.Invitation
	var role, status string
	if err := row.Scan(
		&inv.ID, &inv.SpaceID, &inv.Email, &role, &status, &inv.InvitedBy, &inv.ExpiresAt, &inv.CreatedAt,
		&inv.SpaceName, &inv.SpaceSlug,
	); err != nil {
		return nil, err
	}
	r, err := models.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	inv.Role = r
	inv.Status = models.InvitationStatus(status)
	return &inv, nil
}

func collectInvitations(rows pgx.Rows) ([]models.Invitation, error) {
	defer rows.Close()

	invitations := []models.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, persistenceErr("scan invitation", err)
		}
		invitations = append(invitations, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list invitations", err)
	}
	return invitations, nil
}

// Create invites email into the space with role. Requires admin, and the invited role may not
// outrank the inviter's own.
func (s *InvitationService) Create(ctx context.Context, id Identity, slug, email string, role models.Role) (*models.Invitation, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: invalid role %q", ErrInvalidInput, role)
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, persistenceErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	access, err := s.members.requireRole(ctx, tx, id.UserID, SpaceBySlug(slug), models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if !access.Role.Dominates(role) {
		return nil, ErrRoleAboveInviter
	}

	var isMember bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM space_member sm
			JOIN users u ON u.id = sm.user_id
			WHERE sm.space_id = $1 AND lower(u.email) = $2
		)
	`, access.SpaceID, email).Scan(&isMember)
	if err != nil {
		return nil, persistenceErr("check membership", err)
	}
	if isMember {
		return nil, ErrAlreadyMember
	}

	// overdue pending rows still hold the pending index slot until expired
	now := s.now()
	tag, err := tx.Exec(ctx, `
		UPDATE space_invitation SET status = 'expired'
		WHERE space_id = $1 AND email = $2 AND status = 'pending' AND expires_at <= $3
	`, access.SpaceID, email, now)
	if err != nil {
		return nil, persistenceErr("expire invitations", err)
	}
	s.metrics.ObserveInvitationsExpired(tag.RowsAffected())

	inv, err := scanInvitation(tx.QueryRow(ctx, `
		WITH i AS (
			INSERT INTO space_invitation (space_id, email, role, invited_by, expires_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING *
		)
		SELECT `+invitationColumns+`
		FROM i JOIN space s ON s.id = i.space_id
	`, access.SpaceID, email, string(role), id.UserID, now.Add(s.expiry)))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrInvitationPending
		}
		return nil, persistenceErr("create invitation", err)
	}

	err = s.audit.Record(ctx, tx, AuditRecord{
		ActorID:      id.UserID,
		Action:       models.AuditInvite,
		ResourceType: models.ResourceInvitation,
		ResourceID:   inv.ID.String(),
		SpaceID:      access.SpaceID,
		Details:      map[string]string{"email": email, "role": string(role)},
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistenceErr("commit transaction", err)
	}
	return inv, nil
}

// Get is visible to the invitee and to members of the space.
func (s *InvitationService) Get(ctx context.Context, id Identity, invitationID uuid.UUID) (*models.Invitation, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}

	inv, err := scanInvitation(s.db.Pool.QueryRow(ctx, `
		SELECT `+invitationColumns+`
		FROM space_invitation i
		JOIN space s ON s.id = i.space_id
		WHERE i.id = $1 AND s.deleted_at IS NULL
	`, invitationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, persistenceErr("load invitation", err)
	}

	if normalizeEmail(inv.Email) != normalizeEmail(id.Email) {
		if _, err := s.members.RequireRole(ctx, id.UserID, SpaceByID(inv.SpaceID), models.RoleMember); err != nil {
			return nil, err
		}
	}

	if inv.ExpiredAt(s.now()) {
		if err := s.markExpired(ctx, s.db.Pool, inv.ID); err != nil {
			return nil, err
		}
		inv.Status = models.InvitationExpired
	}
	return inv, nil
}

func (s *InvitationService) markExpired(ctx context.Context, q database.Querier, invitationID uuid.UUID) error {
	tag, err := q.Exec(ctx, `
		UPDATE space_invitation SET status = 'expired'
		WHERE id = $1 AND status = 'pending'
	`, invitationID)
	if err != nil {
		return persistenceErr("expire invitation", err)
	}
	s.metrics.ObserveInvitationsExpired(tag.RowsAffected())
	return nil
}

// ListForSpace returns every invitation of the space, newest first. Stale pending rows are
// expired before listing.
func (s *InvitationService) ListForSpace(ctx context.Context, id Identity, slug string) ([]models.Invitation, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}
	access, err := s.members.RequireRole(ctx, id.UserID, SpaceBySlug(slug), models.RoleMember)
	if err != nil {
		return nil, err
	}

	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE space_invitation SET status = 'expired'
		WHERE space_id = $1 AND status = 'pending' AND expires_at < $2
	`, access.SpaceID, s.now())
	if err != nil {
		return nil, persistenceErr("expire invitations", err)
	}
	s.metrics.ObserveInvitationsExpired(tag.RowsAffected())

	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+invitationColumns+`
		FROM space_invitation i
		JOIN space s ON s.id = i.space_id
		WHERE i.space_id = $1
		ORDER BY i.created_at DESC
	`, access.SpaceID)
	if err != nil {
		return nil, persistenceErr("list invitations", err)
	}
	return collectInvitations(rows)
}

// ListMine returns the caller's pending invitations into live spaces.
func (s *InvitationService) ListMine(ctx context.Context, id Identity) ([]models.Invitation, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}
	email := normalizeEmail(id.Email)
	if email == "" {
		return []models.Invitation{}, nil
	}

	now := s.now()
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE space_invitation SET status = 'expired'
		WHERE email = $1 AND status = 'pending' AND expires_at < $2
	`, email, now)
	if err != nil {
		return nil, persistenceErr("expire invitations", err)
	}
	s.metrics.ObserveInvitationsExpired(tag.RowsAffected())

	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+invitationColumns+`
		FROM space_invitation i
		JOIN space s ON s.id = i.space_id
		WHERE i.email = $1 AND i.status = 'pending' AND s.deleted_at IS NULL
		ORDER BY i.created_at DESC
	`, email)
	if err != nil {
		return nil, persistenceErr("list invitations", err)
	}
	return collectInvitations(rows)
}

// lockForResponse loads and locks an invitation for the invitee, applying lazy expiry. When
// it returns ErrInvitationExpired the expiry has been written through tx and must be committed.
func (s *InvitationService) lockForResponse(ctx context.Context, tx pgx.Tx, id Identity, invitationID uuid.UUID) (*models.Invitation, error) {
	inv, err := scanInvitation(tx.QueryRow(ctx, `
		SELECT `+invitationColumns+`
		FROM space_invitation i
		JOIN space s ON s.id = i.space_id
		WHERE i.id = $1 AND s.deleted_at IS NULL
		FOR UPDATE OF i
	`, invitationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, persistenceErr("load invitation", err)
	}

	if normalizeEmail(inv.Email) != normalizeEmail(id.Email) {
		return nil, ErrInvitationEmailMismatch
	}
	if inv.Status == models.InvitationExpired {
		return nil, ErrInvitationExpired
	}
	if inv.Status != models.InvitationPending {
		return nil, fmt.Errorf("%w: invitation already %s", ErrInvitationAlreadyResolved, inv.Status)
	}
	if inv.ExpiredAt(s.now()) {
		if err := s.markExpired(ctx, tx, inv.ID); err != nil {
			return nil, err
		}
		return inv, ErrInvitationExpired
	}
	return inv, nil
}

// Accept joins the caller to the space and consumes the invitation in one transaction. The
// invitation row lock serializes concurrent accepts; the loser sees it already resolved.
func (s *InvitationService) Accept(ctx context.Context, id Identity, invitationID uuid.UUID) (*models.Invitation, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, persistenceErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	inv, err := s.lockForResponse(ctx, tx, id, invitationID)
	if errors.Is(err, ErrInvitationExpired) {
		if cerr := tx.Commit(ctx); cerr != nil {
			return nil, persistenceErr("commit transaction", cerr)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	var memberID uuid.UUID
	joined := true
	err = tx.QueryRow(ctx, `
		INSERT INTO space_member (space_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (space_id, user_id) DO NOTHING
		RETURNING id
	`, inv.SpaceID, id.UserID, string(inv.Role)).Scan(&memberID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			if database.IsUniqueViolation(err) {
				return nil, ErrAlreadyMember
			}
			return nil, persistenceErr("add member", err)
		}
		joined = false
	}

	tag, err := tx.Exec(ctx, `
		UPDATE space_invitation SET status = 'accepted'
		WHERE id = $1 AND status = 'pending'
	`, inv.ID)
	if err != nil {
		return nil, persistenceErr("accept invitation", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrInvitationAlreadyResolved
	}

	rec := AuditRecord{
		ActorID:      id.UserID,
		Action:       models.AuditCreate,
		ResourceType: models.ResourceSpaceMember,
		ResourceID:   id.UserID.String(),
		SpaceID:      inv.SpaceID,
		Details:      map[string]string{"role": string(inv.Role), "via": "invitation", "invitation_id": inv.ID.String()},
	}
	if !joined {
		rec = AuditRecord{
			ActorID:      id.UserID,
			Action:       models.AuditUpdate,
			ResourceType: models.ResourceInvitation,
			ResourceID:   inv.ID.String(),
			SpaceID:      inv.SpaceID,
			Details:      map[string]any{"status": models.InvitationAccepted, "already_member": true},
		}
	}
	if err := s.audit.Record(ctx, tx, rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistenceErr("commit transaction", err)
	}

	inv.Status = models.InvitationAccepted
	return inv, nil
}

func (s *InvitationService) Decline(ctx context.Context, id Identity, invitationID uuid.UUID) error {
	if !id.Valid() {
		return ErrUnauthenticated
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return persistenceErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	inv, err := s.lockForResponse(ctx, tx, id, invitationID)
	if errors.Is(err, ErrInvitationExpired) {
		if cerr := tx.Commit(ctx); cerr != nil {
			return persistenceErr("commit transaction", cerr)
		}
		return err
	}
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE space_invitation SET status = 'declined'
		WHERE id = $1 AND status = 'pending'
	`, inv.ID)
	if err != nil {
		return persistenceErr("decline invitation", err)
	}

	err = s.audit.Record(ctx, tx, AuditRecord{
		ActorID:      id.UserID,
		Action:       models.AuditUpdate,
		ResourceType: models.ResourceInvitation,
		ResourceID:   inv.ID.String(),
		SpaceID:      inv.SpaceID,
		Details:      map[string]any{"status": models.InvitationDeclined},
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return persistenceErr("commit transaction", err)
	}
	return nil
}

// Cancel withdraws a pending invitation. Requires admin of the space it belongs to.
func (s *InvitationService) Cancel(ctx context.Context, id Identity, slug string, invitationID uuid.UUID) error {
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

	tag, err := tx.Exec(ctx, `
		DELETE FROM space_invitation
		WHERE id = $1 AND space_id = $2 AND status = 'pending'
	`, invitationID, access.SpaceID)
	if err != nil {
		return persistenceErr("cancel invitation", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrResourceNotFound
	}

	err = s.audit.Record(ctx, tx, AuditRecord{
		ActorID:      id.UserID,
		Action:       models.AuditDelete,
		ResourceType: models.ResourceInvitation,
		ResourceID:   invitationID.String(),
		SpaceID:      access.SpaceID,
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return persistenceErr("commit transaction", err)
	}
	return nil
}

// ExpireStale marks every overdue pending invitation expired. Lazy expiry keeps reads correct
// without it; the sweep only keeps listings tidy.
func (s *InvitationService) ExpireStale(ctx context.Context) (int64, error) {
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE space_invitation SET status = 'expired'
		WHERE status = 'pending' AND expires_at < $1
	`, s.now())
	if err != nil {
		return 0, persistenceErr("expire invitations", err)
	}

	n := tag.RowsAffected()
	s.metrics.ObserveInvitationsExpired(n)
	if n > 0 {
		logger.Info().Int64("count", n).Msg("expired stale invitations")
	}
	return n, nil
}
