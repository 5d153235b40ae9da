package handlers

import (
	"net/http"
	"testing"

	"github.com/dimitrije/memorai-api/internal/middleware"
	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/dimitrije/memorai-api/internal/services"
	"github.com/dimitrije/memorai-api/internal/testutil"
	"github.com/dimitrije/memorai-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	driftmw "github.com/m1z23r/drift/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupKanbanTest(t *testing.T) (*testutil.MockKanbanService, *testutil.HTTPTestClient) {
	t.Helper()
	mockKanbanService := new(testutil.MockKanbanService)
	handler := NewKanbanHandler(mockKanbanService)

	app := drift.New()
	app.Use(driftmw.BodyParser())
	app.Use(middleware.Auth(testutil.TestTokenIssuer()))
	app.Get("/spaces/:slug/kanban", handler.ListBoards)
	app.Post("/spaces/:slug/kanban", handler.CreateBoard)
	app.Post("/kanban/cards", handler.CreateCard)
	app.Patch("/kanban/cards/:id", handler.UpdateCard)
	app.Delete("/kanban/cards/:id", handler.DeleteCard)

	client := testutil.NewHTTPTestClient(t, app).As(testutil.GenerateTestToken(t, uuid.New(), "member@example.com"))
	return mockKanbanService, client
}

func TestKanbanHandler_CreateBoard(t *testing.T) {
	mockKanbanService, client := setupKanbanTest(t)

	board := &models.KanbanBoard{ID: uuid.New(), Name: "Sprint"}
	for i, name := range models.DefaultKanbanColumns {
		board.Columns = append(board.Columns, models.KanbanColumn{ID: uuid.New(), BoardID: board.ID, Name: name, Position: i})
	}
	mockKanbanService.On("CreateBoard", mock.Anything, mock.Anything, "research", "Sprint").Return(board, nil)

	rec := client.POST("/spaces/research/kanban", dto.CreateBoardRequest{Name: "Sprint"})

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.KanbanBoard
	testutil.ParseJSON(t, rec, &resp)
	assert.Len(t, resp.Columns, len(models.DefaultKanbanColumns))
}

func TestKanbanHandler_ListBoards_OutsiderSeesNotFound(t *testing.T) {
	mockKanbanService, client := setupKanbanTest(t)

	mockKanbanService.On("ListBoards", mock.Anything, mock.Anything, "research").Return(nil, services.ErrNotMember)

	rec := client.GET("/spaces/research/kanban")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKanbanHandler_CreateCard_Validation(t *testing.T) {
	_, client := setupKanbanTest(t)

	rec := client.POST("/kanban/cards", dto.CreateCardRequest{Title: "Write docs"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "column_id is required")

	rec = client.POST("/kanban/cards", dto.CreateCardRequest{ColumnID: uuid.New()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "title is required")
}

func TestKanbanHandler_CreateCard(t *testing.T) {
	mockKanbanService, client := setupKanbanTest(t)

	columnID := uuid.New()
	card := &models.KanbanCard{ID: uuid.New(), ColumnID: columnID, Title: "Write docs"}
	mockKanbanService.On("CreateCard", mock.Anything, mock.Anything, mock.MatchedBy(func(in services.CardInput) bool {
		return in.ColumnID != nil && *in.ColumnID == columnID && in.Title != nil && *in.Title == "Write docs"
	})).Return(card, nil)

	rec := client.POST("/kanban/cards", dto.CreateCardRequest{ColumnID: columnID, Title: "Write docs"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	mockKanbanService.AssertExpectations(t)
}

func TestKanbanHandler_UpdateCard_CrossSpaceMove(t *testing.T) {
	mockKanbanService, client := setupKanbanTest(t)

	cardID := uuid.New()
	target := uuid.New()
	mockKanbanService.On("UpdateCard", mock.Anything, mock.Anything, cardID, mock.MatchedBy(func(in services.CardInput) bool {
		return in.ColumnID != nil && *in.ColumnID == target
	})).Return(nil, services.ErrCrossSpace)

	rec := client.PATCH("/kanban/cards/"+cardID.String(), dto.UpdateCardRequest{ColumnID: &target})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "different spaces")
}

func TestKanbanHandler_DeleteCard(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{name: "deleted", wantStatus: http.StatusOK},
		{name: "not creator and not admin", serviceErr: services.ErrInsufficientRole, wantStatus: http.StatusForbidden},
		{name: "missing card", serviceErr: services.ErrResourceNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockKanbanService, client := setupKanbanTest(t)

			cardID := uuid.New()
			mockKanbanService.On("DeleteCard", mock.Anything, mock.Anything, cardID).Return(tt.serviceErr)

			rec := client.DELETE("/kanban/cards/" + cardID.String())

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
