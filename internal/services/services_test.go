package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/dimitrije/memorai-api/internal/database"
	"github.com/dimitrije/memorai-api/internal/memory"
	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) (*database.DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &database.DB{Pool: mock}, mock
}

type fakeMemories struct {
	records  map[string]*memory.Record
	err      error
	writeErr error
	updated  map[string]json.RawMessage
	deleted  []string

	lists      map[string][]json.RawMessage
	created    []memory.CreateRequest
	failChunks map[int]bool
	hits       map[string][]json.RawMessage
	searchErr  map[string]error

	mu       sync.Mutex
	searched []string
}

func (f *fakeMemories) List(_ context.Context, slug, _ string) ([]json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lists[slug], nil
}

func (f *fakeMemories) Create(_ context.Context, req memory.CreateRequest) (json.RawMessage, error) {
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	if idx, _ := req.Metadata["chunk_index"].(int); f.failChunks[idx] {
		return nil, memory.ErrUnavailable
	}
	f.created = append(f.created, req)
	return json.RawMessage(fmt.Sprintf(`{"id":"m%d"}`, len(f.created))), nil
}

func (f *fakeMemories) Search(_ context.Context, req memory.SearchRequest) ([]json.RawMessage, error) {
	f.mu.Lock()
	f.searched = append(f.searched, req.UserID)
	f.mu.Unlock()
	if err := f.searchErr[req.UserID]; err != nil {
		return nil, err
	}
	return f.hits[req.UserID], nil
}

func (f *fakeMemories) Get(_ context.Context, id string) (*memory.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[id]
	if !ok {
		return nil, memory.ErrNotFound
	}
	return rec, nil
}

func (f *fakeMemories) Update(_ context.Context, id string, data json.RawMessage) (json.RawMessage, error) {
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	f.updated[id] = data
	return data, nil
}

func (f *fakeMemories) Delete(_ context.Context, id string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func newFakeMemories(recs ...*memory.Record) *fakeMemories {
	f := &fakeMemories{
		records:    map[string]*memory.Record{},
		updated:    map[string]json.RawMessage{},
		lists:      map[string][]json.RawMessage{},
		failChunks: map[int]bool{},
		hits:       map[string][]json.RawMessage{},
		searchErr:  map[string]error{},
	}
	for _, r := range recs {
		f.records[r.ID] = r
	}
	return f
}

const (
	membershipByIDQuery   = `SELECT s.id, sm.role\s+FROM space_member sm\s+JOIN space s ON s.id = sm.space_id\s+WHERE sm.user_id = \$1 AND s.id = \$2 AND s.deleted_at IS NULL`
	membershipBySlugQuery = `SELECT s.id, sm.role\s+FROM space_member sm\s+JOIN space s ON s.id = sm.space_id\s+WHERE sm.user_id = \$1 AND s.slug = \$2 AND s.deleted_at IS NULL`
)

func expectRole(mock pgxmock.PgxPoolIface, userID uuid.UUID, ref SpaceRef, spaceID uuid.UUID, role models.Role) {
	rows := pgxmock.NewRows([]string{"id", "role"}).AddRow(spaceID, string(role))
	if ref.ID != uuid.Nil {
		mock.ExpectQuery(membershipByIDQuery).WithArgs(userID, ref.ID).WillReturnRows(rows)
		return
	}
	mock.ExpectQuery(membershipBySlugQuery).WithArgs(userID, ref.Slug).WillReturnRows(rows)
}

func expectNoRole(mock pgxmock.PgxPoolIface, userID uuid.UUID, ref SpaceRef) {
	rows := pgxmock.NewRows([]string{"id", "role"})
	if ref.ID != uuid.Nil {
		mock.ExpectQuery(membershipByIDQuery).WithArgs(userID, ref.ID).WillReturnRows(rows)
		return
	}
	mock.ExpectQuery(membershipBySlugQuery).WithArgs(userID, ref.Slug).WillReturnRows(rows)
}

func expectOwner(mock pgxmock.PgxPoolIface, kind ResourceKind, id, spaceID uuid.UUID) {
	mock.ExpectQuery(ownerPattern(kind)).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(spaceID))
}

func expectNoOwner(mock pgxmock.PgxPoolIface, kind ResourceKind, id uuid.UUID) {
	mock.ExpectQuery(ownerPattern(kind)).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
}

func ownerPattern(kind ResourceKind) string {
	switch kind {
	case KindTag:
		return `SELECT s.id FROM tag t`
	case KindBoard:
		return `SELECT s.id FROM kanban_board b`
	case KindColumn:
		return `SELECT s.id FROM kanban_column c`
	case KindCard:
		return `SELECT s.id FROM kanban_card k`
	case KindInvitation:
		return `SELECT s.id FROM space_invitation i`
	}
	return `SELECT s.id FROM space s`
}

func expectAudit(mock pgxmock.PgxPoolIface, action models.AuditAction, resourceType string) {
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(pgxmock.AnyArg(), string(action), resourceType, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func identity() Identity {
	return Identity{UserID: uuid.New(), Email: "user@example.com"}
}
