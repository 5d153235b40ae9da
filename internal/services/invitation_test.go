package services

import (
	"context"
	"testing"
	"time"

	"github.com/dimitrije/memorai-api/internal/metrics"
	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var invitationRowColumns = []string{"id", "space_id", "email", "role", "status", "invited_by", "expires_at", "created_at", "name", "slug"}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupInvitationService(t *testing.T) (*InvitationService, pgxmock.PgxPoolIface, *metrics.Metrics) {
	t.Helper()
	db, mock := setupDB(t)
	m := metrics.New()
	members := NewMembershipResolver(db, nil)
	svc := NewInvitationService(db, members, NewAuditRecorder(db, members, nil), m, 7*24*time.Hour)
	svc.now = func() time.Time { return fixedNow }
	return svc, mock, m
}

func invitationRow(invID, spaceID uuid.UUID, email, role, status string, expiresAt time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(invitationRowColumns).
		AddRow(invID, spaceID, email, role, status, uuid.New(), expiresAt, fixedNow.Add(-time.Hour), "Acme", "acme")
}

func TestInvitationService_Create(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)
	admin := identity()
	spaceID, invID := uuid.New(), uuid.New()
	expires := fixedNow.Add(7 * 24 * time.Hour)

	mock.ExpectBegin()
	expectRole(mock, admin.UserID, SpaceBySlug("acme"), spaceID, models.RoleAdmin)
	mock.ExpectQuery(`SELECT EXISTS\(\s+SELECT 1 FROM space_member sm`).
		WithArgs(spaceID, "new@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`UPDATE space_invitation SET status = 'expired'\s+WHERE space_id = \$1 AND email = \$2`).
		WithArgs(spaceID, "new@example.com", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`INSERT INTO space_invitation`).
		WithArgs(spaceID, "new@example.com", "member", admin.UserID, expires).
		WillReturnRows(invitationRow(invID, spaceID, "new@example.com", "member", "pending", expires))
	expectAudit(mock, models.AuditInvite, models.ResourceInvitation)
	mock.ExpectCommit()

	inv, err := svc.Create(context.Background(), admin, "acme", "  New@Example.com ", "")

	require.NoError(t, err)
	assert.Equal(t, invID, inv.ID)
	assert.Equal(t, models.InvitationPending, inv.Status)
	assert.Equal(t, models.RoleMember, inv.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Create_MemberCannotInvite(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)
	member := identity()

	mock.ExpectBegin()
	expectRole(mock, member.UserID, SpaceBySlug("acme"), uuid.New(), models.RoleMember)
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), member, "acme", "x@example.com", models.RoleMember)

	assert.ErrorIs(t, err, ErrInsufficientRole)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Create_RoleAboveInviter(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)
	admin := identity()

	mock.ExpectBegin()
	expectRole(mock, admin.UserID, SpaceBySlug("acme"), uuid.New(), models.RoleAdmin)
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), admin, "acme", "x@example.com", models.RoleOwner)

	assert.ErrorIs(t, err, ErrRoleAboveInviter)
	assert.ErrorIs(t, err, ErrInsufficientRole)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Create_AlreadyMember(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)
	admin := identity()
	spaceID := uuid.New()

	mock.ExpectBegin()
	expectRole(mock, admin.UserID, SpaceBySlug("acme"), spaceID, models.RoleOwner)
	mock.ExpectQuery(`SELECT EXISTS\(\s+SELECT 1 FROM space_member sm`).
		WithArgs(spaceID, "u2@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), admin, "acme", "u2@example.com", models.RoleMember)

	assert.ErrorIs(t, err, ErrAlreadyMember)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Create_DuplicatePending(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)
	admin := identity()
	spaceID := uuid.New()

	mock.ExpectBegin()
	expectRole(mock, admin.UserID, SpaceBySlug("acme"), spaceID, models.RoleAdmin)
	mock.ExpectQuery(`SELECT EXISTS\(\s+SELECT 1 FROM space_member sm`).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`UPDATE space_invitation SET status = 'expired'\s+WHERE space_id = \$1 AND email = \$2`).
		WithArgs(spaceID, "x@example.com", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`INSERT INTO space_invitation`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "space_invitation_pending_idx"})
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), admin, "acme", "x@example.com", models.RoleMember)

	assert.ErrorIs(t, err, ErrInvitationPending)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Create_ReplacesOverduePending(t *testing.T) {
	svc, mock, m := setupInvitationService(t)
	admin := identity()
	spaceID, invID := uuid.New(), uuid.New()
	expires := fixedNow.Add(7 * 24 * time.Hour)

	mock.ExpectBegin()
	expectRole(mock, admin.UserID, SpaceBySlug("acme"), spaceID, models.RoleAdmin)
	mock.ExpectQuery(`SELECT EXISTS\(\s+SELECT 1 FROM space_member sm`).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`UPDATE space_invitation SET status = 'expired'\s+WHERE space_id = \$1 AND email = \$2`).
		WithArgs(spaceID, "x@example.com", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO space_invitation`).
		WillReturnRows(invitationRow(invID, spaceID, "x@example.com", "member", "pending", expires))
	expectAudit(mock, models.AuditInvite, models.ResourceInvitation)
	mock.ExpectCommit()

	inv, err := svc.Create(context.Background(), admin, "acme", "x@example.com", models.RoleMember)

	require.NoError(t, err)
	assert.Equal(t, invID, inv.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvitationsExpiredTotal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Create_EmptyEmail(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)

	_, err := svc.Create(context.Background(), identity(), "acme", "   ", models.RoleMember)

	assert.ErrorIs(t, err, ErrInvalidEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Accept(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)
	invitee := Identity{UserID: uuid.New(), Email: "Invitee@Example.com"}
	invID, spaceID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE OF i`).
		WithArgs(invID).
		WillReturnRows(invitationRow(invID, spaceID, "invitee@example.com", "admin", "pending", fixedNow.Add(time.Hour)))
	mock.ExpectQuery(`(?s)INSERT INTO space_member.+ON CONFLICT \(space_id, user_id\) DO NOTHING`).
		WithArgs(spaceID, invitee.UserID, "admin").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectExec(`UPDATE space_invitation SET status = 'accepted'`).
		WithArgs(invID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(&invitee.UserID, "create", models.ResourceSpaceMember, invitee.UserID.String(), &spaceID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	inv, err := svc.Accept(context.Background(), invitee, invID)

	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, inv.Status)
	assert.Equal(t, spaceID, inv.SpaceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Accept_Expired(t *testing.T) {
	svc, mock, m := setupInvitationService(t)
	invitee := Identity{UserID: uuid.New(), Email: "invitee@example.com"}
	invID, spaceID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE OF i`).
		WithArgs(invID).
		WillReturnRows(invitationRow(invID, spaceID, "invitee@example.com", "member", "pending", fixedNow.Add(-time.Minute)))
	mock.ExpectExec(`UPDATE space_invitation SET status = 'expired'`).
		WithArgs(invID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	_, err := svc.Accept(context.Background(), invitee, invID)

	assert.ErrorIs(t, err, ErrInvitationExpired)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvitationsExpiredTotal))
	assert.NoError(t, mock.ExpectationsWereMet())

	// a subsequent read reports the persisted terminal status
	mock.ExpectQuery(`FROM space_invitation i\s+JOIN space s ON s.id = i.space_id\s+WHERE i.id = \$1 AND s.deleted_at IS NULL\s*$`).
		WithArgs(invID).
		WillReturnRows(invitationRow(invID, spaceID, "invitee@example.com", "member", "expired", fixedNow.Add(-time.Minute)))

	inv, err := svc.Get(context.Background(), invitee, invID)

	require.NoError(t, err)
	assert.Equal(t, models.InvitationExpired, inv.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Accept_EmailMismatch(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)
	other := Identity{UserID: uuid.New(), Email: "someone@example.com"}
	invID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE OF i`).
		WithArgs(invID).
		WillReturnRows(invitationRow(invID, uuid.New(), "invitee@example.com", "member", "pending", fixedNow.Add(time.Hour)))
	mock.ExpectRollback()

	_, err := svc.Accept(context.Background(), other, invID)

	assert.ErrorIs(t, err, ErrInvitationEmailMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Accept_AlreadyResolved(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)
	invitee := Identity{UserID: uuid.New(), Email: "invitee@example.com"}
	invID := uuid.New()

	// second of two concurrent accepts: the row lock releases with the status already flipped
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE OF i`).
		WithArgs(invID).
		WillReturnRows(invitationRow(invID, uuid.New(), "invitee@example.com", "member", "accepted", fixedNow.Add(time.Hour)))
	mock.ExpectRollback()

	_, err := svc.Accept(context.Background(), invitee, invID)

	assert.ErrorIs(t, err, ErrInvitationAlreadyResolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Accept_AlreadyExpired(t *testing.T) {
	svc, mock, m := setupInvitationService(t)
	invitee := Identity{UserID: uuid.New(), Email: "invitee@example.com"}
	invID := uuid.New()

	// the sweep already flipped the row; no second expiry write happens
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE OF i`).
		WithArgs(invID).
		WillReturnRows(invitationRow(invID, uuid.New(), "invitee@example.com", "member", "expired", fixedNow.Add(-time.Hour)))
	mock.ExpectCommit()

	_, err := svc.Accept(context.Background(), invitee, invID)

	assert.ErrorIs(t, err, ErrInvitationExpired)
	assert.NotErrorIs(t, err, ErrInvitationAlreadyResolved)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InvitationsExpiredTotal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Decline_AlreadyExpired(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)
	invitee := Identity{UserID: uuid.New(), Email: "invitee@example.com"}
	invID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE OF i`).
		WithArgs(invID).
		WillReturnRows(invitationRow(invID, uuid.New(), "invitee@example.com", "member", "expired", fixedNow.Add(-time.Hour)))
	mock.ExpectCommit()

	err := svc.Decline(context.Background(), invitee, invID)

	assert.ErrorIs(t, err, ErrInvitationExpired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Accept_ExistingMembershipKept(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)
	invitee := Identity{UserID: uuid.New(), Email: "invitee@example.com"}
	invID, spaceID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE OF i`).
		WithArgs(invID).
		WillReturnRows(invitationRow(invID, spaceID, "invitee@example.com", "member", "pending", fixedNow.Add(time.Hour)))
	mock.ExpectQuery(`INSERT INTO space_member`).
		WithArgs(spaceID, invitee.UserID, "member").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectExec(`UPDATE space_invitation SET status = 'accepted'`).
		WithArgs(invID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectAudit(mock, models.AuditUpdate, models.ResourceInvitation)
	mock.ExpectCommit()

	inv, err := svc.Accept(context.Background(), invitee, invID)

	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, inv.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Accept_NotFound(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)
	invID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE OF i`).
		WithArgs(invID).
		WillReturnRows(pgxmock.NewRows(invitationRowColumns))
	mock.ExpectRollback()

	_, err := svc.Accept(context.Background(), identity(), invID)

	assert.ErrorIs(t, err, ErrResourceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Get_LazyExpiry(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)
	invitee := Identity{UserID: uuid.New(), Email: "invitee@example.com"}
	invID := uuid.New()

	mock.ExpectQuery(`FROM space_invitation i`).
		WithArgs(invID).
		WillReturnRows(invitationRow(invID, uuid.New(), "invitee@example.com", "member", "pending", fixedNow.Add(-time.Second)))
	mock.ExpectExec(`UPDATE space_invitation SET status = 'expired'`).
		WithArgs(invID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	inv, err := svc.Get(context.Background(), invitee, invID)

	require.NoError(t, err)
	assert.Equal(t, models.InvitationExpired, inv.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Get_OutsiderDenied(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)
	outsider := identity()
	invID, spaceID := uuid.New(), uuid.New()

	mock.ExpectQuery(`FROM space_invitation i`).
		WithArgs(invID).
		WillReturnRows(invitationRow(invID, spaceID, "invitee@example.com", "member", "pending", fixedNow.Add(time.Hour)))
	expectNoRole(mock, outsider.UserID, SpaceByID(spaceID))

	_, err := svc.Get(context.Background(), outsider, invID)

	assert.ErrorIs(t, err, ErrNotMember)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Decline(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)
	invitee := Identity{UserID: uuid.New(), Email: "invitee@example.com"}
	invID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE OF i`).
		WithArgs(invID).
		WillReturnRows(invitationRow(invID, uuid.New(), "invitee@example.com", "member", "pending", fixedNow.Add(time.Hour)))
	mock.ExpectExec(`UPDATE space_invitation SET status = 'declined'`).
		WithArgs(invID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectAudit(mock, models.AuditUpdate, models.ResourceInvitation)
	mock.ExpectCommit()

	err := svc.Decline(context.Background(), invitee, invID)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Cancel(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)
	admin := identity()
	invID, spaceID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	expectRole(mock, admin.UserID, SpaceBySlug("acme"), spaceID, models.RoleAdmin)
	mock.ExpectExec(`DELETE FROM space_invitation`).
		WithArgs(invID, spaceID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	expectAudit(mock, models.AuditDelete, models.ResourceInvitation)
	mock.ExpectCommit()

	err := svc.Cancel(context.Background(), admin, "acme", invID)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_Cancel_NotPending(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)
	admin := identity()
	invID, spaceID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	expectRole(mock, admin.UserID, SpaceBySlug("acme"), spaceID, models.RoleAdmin)
	mock.ExpectExec(`DELETE FROM space_invitation`).
		WithArgs(invID, spaceID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err := svc.Cancel(context.Background(), admin, "acme", invID)

	assert.ErrorIs(t, err, ErrResourceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_ListForSpace_ExpiresFirst(t *testing.T) {
	svc, mock, m := setupInvitationService(t)
	member := identity()
	spaceID := uuid.New()

	expectRole(mock, member.UserID, SpaceBySlug("acme"), spaceID, models.RoleMember)
	mock.ExpectExec(`UPDATE space_invitation SET status = 'expired'\s+WHERE space_id = \$1`).
		WithArgs(spaceID, fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectQuery(`WHERE i.space_id = \$1\s+ORDER BY i.created_at DESC`).
		WithArgs(spaceID).
		WillReturnRows(invitationRow(uuid.New(), spaceID, "a@example.com", "member", "expired", fixedNow.Add(-time.Hour)))

	invitations, err := svc.ListForSpace(context.Background(), member, "acme")

	require.NoError(t, err)
	require.Len(t, invitations, 1)
	assert.Equal(t, models.InvitationExpired, invitations[0].Status)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.InvitationsExpiredTotal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_ListMine(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)
	invitee := Identity{UserID: uuid.New(), Email: "Invitee@example.com"}

	mock.ExpectExec(`UPDATE space_invitation SET status = 'expired'\s+WHERE email = \$1`).
		WithArgs("invitee@example.com", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`WHERE i.email = \$1 AND i.status = 'pending'`).
		WithArgs("invitee@example.com").
		WillReturnRows(invitationRow(uuid.New(), uuid.New(), "invitee@example.com", "member", "pending", fixedNow.Add(time.Hour)))

	invitations, err := svc.ListMine(context.Background(), invitee)

	require.NoError(t, err)
	require.Len(t, invitations, 1)
	assert.Equal(t, "acme", invitations[0].SpaceSlug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationService_ExpireStale(t *testing.T) {
	svc, mock, _ := setupInvitationService(t)

	mock.ExpectExec(`UPDATE space_invitation SET status = 'expired'\s+WHERE status = 'pending' AND expires_at < \$1`).
		WithArgs(fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := svc.ExpireStale(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
