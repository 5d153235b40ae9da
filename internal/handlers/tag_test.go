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
)

func setupTagTest(t *testing.T) (*testutil.MockTagService, *testutil.HTTPTestClient) {
	t.Helper()
	mockTagService := new(testutil.MockTagService)
	handler := NewTagHandler(mockTagService)

	app := drift.New()
	app.Use(driftmw.BodyParser())
	app.Use(middleware.Auth(testutil.TestTokenIssuer()))
	app.Post("/spaces/:slug/tags", handler.Create)
	app.Get("/spaces/:slug/tags", handler.List)
	app.Delete("/tags/:id", handler.Delete)
	app.Get("/memories/:id/tags", handler.ListForMemory)
	app.Post("/memories/:id/tags", handler.Attach)
	app.Delete("/memories/:id/tags/:tagId", handler.Detach)

	client := testutil.NewHTTPTestClient(t, app).As(testutil.GenerateTestToken(t, uuid.New(), "member@example.com"))
	return mockTagService, client
}

func TestTagHandler_Create(t *testing.T) {
	mockTagService, client := setupTagTest(t)

	tag := &models.Tag{ID: uuid.New(), Name: "urgent", Color: models.DefaultTagColor}
	mockTagService.On("Create", mock.Anything, mock.Anything, "research", "urgent", "").Return(tag, nil)

	rec := client.POST("/spaces/research/tags", dto.CreateTagRequest{Name: "urgent"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), models.DefaultTagColor)
}

func TestTagHandler_Create_Duplicate(t *testing.T) {
	mockTagService, client := setupTagTest(t)

	mockTagService.On("Create", mock.Anything, mock.Anything, "research", "urgent", "").Return(nil, services.ErrTagExists)

	rec := client.POST("/spaces/research/tags", dto.CreateTagRequest{Name: "urgent"})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTagHandler_Delete_ForeignSpace(t *testing.T) {
	mockTagService, client := setupTagTest(t)

	tagID := uuid.New()
	mockTagService.On("Delete", mock.Anything, mock.Anything, tagID).Return(services.ErrNotMember)

	rec := client.DELETE("/tags/" + tagID.String())

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTagHandler_Attach(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{name: "applied", wantStatus: http.StatusCreated},
		{name: "cross space", serviceErr: services.ErrCrossSpace, wantStatus: http.StatusBadRequest},
		{name: "already applied", serviceErr: services.ErrTagApplied, wantStatus: http.StatusConflict},
		{name: "memory service down", serviceErr: services.ErrUpstreamUnavailable, wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTagService, client := setupTagTest(t)

			tagID := uuid.New()
			mockTagService.On("Attach", mock.Anything, mock.Anything, "mem-1", tagID).Return(tt.serviceErr)

			rec := client.POST("/memories/mem-1/tags", dto.AttachTagRequest{TagID: tagID})

			assert.Equal(t, tt.wantStatus, rec.Code)
			mockTagService.AssertExpectations(t)
		})
	}
}

func TestTagHandler_Detach_InvalidTagID(t *testing.T) {
	_, client := setupTagTest(t)

	rec := client.DELETE("/memories/mem-1/tags/nope")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
