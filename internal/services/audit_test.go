package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dimitrije/memorai-api/internal/metrics"
	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var auditColumns = []string{
	"id", "seq", "user_id", "action", "resource_type", "resource_id", "space_id",
	"details", "created_at", "name", "email",
}

func setupAuditRecorder(t *testing.T) (*AuditRecorder, pgxmock.PgxPoolIface, *metrics.Metrics) {
	t.Helper()
	db, mock := setupDB(t)
	m := metrics.New()
	return NewAuditRecorder(db, NewMembershipResolver(db, nil), m), mock, m
}

func TestAuditRecorder_Record(t *testing.T) {
	a, mock, m := setupAuditRecorder(t)
	actor, spaceID := uuid.New(), uuid.New()
	details, _ := json.Marshal(map[string]string{"role": "member", "via": "invitation"})

	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(&actor, "create", models.ResourceSpaceMember, actor.String(), &spaceID, details).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := a.Record(context.Background(), mock, AuditRecord{
		ActorID:      actor,
		Action:       models.AuditCreate,
		ResourceType: models.ResourceSpaceMember,
		ResourceID:   actor.String(),
		SpaceID:      spaceID,
		Details:      map[string]string{"role": "member", "via": "invitation"},
	})

	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditEntriesTotal.WithLabelValues("create")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRecorder_Record_InvalidAction(t *testing.T) {
	a, mock, _ := setupAuditRecorder(t)

	err := a.Record(context.Background(), mock, AuditRecord{Action: "archive", ResourceType: models.ResourceSpace})

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRecorder_Record_WriteFailure(t *testing.T) {
	a, mock, _ := setupAuditRecorder(t)

	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnError(assert.AnError)

	err := a.Record(context.Background(), mock, AuditRecord{
		ActorID:      uuid.New(),
		Action:       models.AuditDelete,
		ResourceType: models.ResourceTag,
	})

	assert.ErrorIs(t, err, ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRecorder_ListForSpace_CreationOrder(t *testing.T) {
	a, mock, _ := setupAuditRecorder(t)
	id := identity()
	spaceID := uuid.New()
	now := time.Now()
	name, email := "Owner", "owner@example.com"
	rid := "r1"

	expectRole(mock, id.UserID, SpaceBySlug("acme"), spaceID, models.RoleAdmin)
	mock.ExpectQuery(`FROM audit_log a\s+LEFT JOIN users u ON u.id = a.user_id\s+WHERE a.space_id = \$1\s+ORDER BY a.created_at, a.seq`).
		WithArgs(spaceID, DefaultAuditLimit, 0).
		WillReturnRows(pgxmock.NewRows(auditColumns).
			AddRow(uuid.New(), int64(1), &id.UserID, "create", "space", &rid, &spaceID, json.RawMessage(nil), now, &name, &email).
			AddRow(uuid.New(), int64(2), &id.UserID, "invite", "space_invitation", &rid, &spaceID, json.RawMessage(`{"role":"member"}`), now, &name, &email))

	entries, err := a.ListForSpace(context.Background(), id, SpaceBySlug("acme"), 0, -5)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, models.AuditInvite, entries[1].Action)
	assert.Equal(t, "r1", entries[1].ResourceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRecorder_ListForSpace_MemberDenied(t *testing.T) {
	a, mock, _ := setupAuditRecorder(t)
	id := identity()

	expectRole(mock, id.UserID, SpaceBySlug("acme"), uuid.New(), models.RoleMember)

	_, err := a.ListForSpace(context.Background(), id, SpaceBySlug("acme"), 10, 0)

	assert.ErrorIs(t, err, ErrInsufficientRole)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRecorder_ListAll(t *testing.T) {
	a, mock, _ := setupAuditRecorder(t)
	id := identity()

	mock.ExpectQuery(`SELECT global_role FROM users WHERE id = \$1`).
		WithArgs(id.UserID).
		WillReturnRows(pgxmock.NewRows([]string{"global_role"}).AddRow(models.GlobalRoleSuperAdmin))
	mock.ExpectQuery(`ORDER BY a.created_at DESC, a.seq DESC`).
		WithArgs(MaxAuditLimit, 10).
		WillReturnRows(pgxmock.NewRows(auditColumns))

	entries, err := a.ListAll(context.Background(), id, 1000, 10)

	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRecorder_ListAll_RequiresLiveSuperAdmin(t *testing.T) {
	a, mock, _ := setupAuditRecorder(t)
	id := identity()

	mock.ExpectQuery(`SELECT global_role FROM users WHERE id = \$1`).
		WithArgs(id.UserID).
		WillReturnRows(pgxmock.NewRows([]string{"global_role"}).AddRow(models.GlobalRoleUser))

	_, err := a.ListAll(context.Background(), id, 50, 0)

	assert.ErrorIs(t, err, ErrInsufficientRole)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClampPage(t *testing.T) {
	testCases := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, DefaultAuditLimit, 0},
		{-1, -1, DefaultAuditLimit, 0},
		{20, 40, 20, 40},
		{500, 0, MaxAuditLimit, 0},
	}

	for _, tc := range testCases {
		l, o := clampPage(tc.limit, tc.offset)
		assert.Equal(t, tc.wantLimit, l)
		assert.Equal(t, tc.wantOffset, o)
	}
}
