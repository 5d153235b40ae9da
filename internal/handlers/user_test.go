package handlers

import (
	"net/http"
	"testing"
	"time"

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

func setupUserTest(t *testing.T) (*testutil.MockUserService, *testutil.MockAuditService, *testutil.HTTPTestClient, uuid.UUID) {
	t.Helper()
	mockUserService := new(testutil.MockUserService)
	mockAuditService := new(testutil.MockAuditService)
	userHandler := NewUserHandler(mockUserService)
	adminHandler := NewAdminHandler(mockAuditService)

	app := drift.New()
	app.Use(driftmw.BodyParser())
	app.Use(middleware.Auth(testutil.TestTokenIssuer()))
	app.Get("/users/me", userHandler.GetMe)
	app.Get("/admin/users", userHandler.List)
	app.Put("/admin/users/:userId/role", userHandler.SetGlobalRole)
	app.Get("/admin/audit", adminHandler.Audit)

	userID := uuid.New()
	client := testutil.NewHTTPTestClient(t, app).As(testutil.GenerateTestToken(t, userID, "user@example.com"))
	return mockUserService, mockAuditService, client, userID
}

func TestUserHandler_GetMe(t *testing.T) {
	mockUserService, _, client, userID := setupUserTest(t)

	mockUserService.On("GetByID", mock.Anything, userID).Return(&models.User{
		ID:         userID,
		Email:      "user@example.com",
		Name:       "Ada",
		GlobalRole: models.GlobalRoleUser,
		CreatedAt:  time.Now(),
	}, nil)

	rec := client.GET("/users/me")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.UserResponse
	testutil.ParseJSON(t, rec, &resp)
	assert.Equal(t, "Ada", resp.Name)
	assert.Equal(t, models.GlobalRoleUser, resp.GlobalRole)
}

func TestUserHandler_List_RequiresSuperAdmin(t *testing.T) {
	mockUserService, _, client, _ := setupUserTest(t)

	mockUserService.On("List", mock.Anything, mock.Anything, 0, 0).Return(nil, services.ErrInsufficientRole)

	rec := client.GET("/admin/users")

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUserHandler_SetGlobalRole(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		serviceErr error
		wantStatus int
	}{
		{name: "promote", role: models.GlobalRoleSuperAdmin, wantStatus: http.StatusOK},
		{name: "bad role", role: "root", serviceErr: services.ErrInvalidInput, wantStatus: http.StatusBadRequest},
		{name: "self demotion", role: models.GlobalRoleUser, serviceErr: services.ErrConflict, wantStatus: http.StatusConflict},
		{name: "caller not superadmin", role: models.GlobalRoleSuperAdmin, serviceErr: services.ErrInsufficientRole, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockUserService, _, client, _ := setupUserTest(t)

			targetID := uuid.New()
			if tt.serviceErr != nil {
				mockUserService.On("SetGlobalRole", mock.Anything, mock.Anything, targetID, tt.role).Return(nil, tt.serviceErr)
			} else {
				mockUserService.On("SetGlobalRole", mock.Anything, mock.Anything, targetID, tt.role).Return(&models.User{ID: targetID, GlobalRole: tt.role}, nil)
			}

			rec := client.PUT("/admin/users/"+targetID.String()+"/role", dto.SetGlobalRoleRequest{GlobalRole: tt.role})

			assert.Equal(t, tt.wantStatus, rec.Code)
			mockUserService.AssertExpectations(t)
		})
	}
}

func TestAdminHandler_Audit(t *testing.T) {
	_, mockAuditService, client, userID := setupUserTest(t)

	spaceID := uuid.New()
	entries := []models.AuditEntry{
		{ID: uuid.New(), Seq: 2, UserID: &userID, Action: models.AuditRoleChange, ResourceType: models.ResourceUser},
		{ID: uuid.New(), Seq: 1, UserID: &userID, Action: models.AuditCreate, ResourceType: models.ResourceSpace, SpaceID: &spaceID},
	}
	mockAuditService.On("ListAll", mock.Anything, callerID(userID), 50, 0).Return(entries, nil)

	rec := client.GET("/admin/audit?limit=50")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []models.AuditEntry
	testutil.ParseJSON(t, rec, &resp)
	require.Len(t, resp, 2)
	assert.Equal(t, int64(2), resp[0].Seq)
}

func TestAdminHandler_Audit_Forbidden(t *testing.T) {
	_, mockAuditService, client, _ := setupUserTest(t)

	mockAuditService.On("ListAll", mock.Anything, mock.Anything, 0, 0).Return(nil, services.ErrInsufficientRole)

	rec := client.GET("/admin/audit")

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
