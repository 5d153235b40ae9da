package handlers

import (
	"errors"
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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupAuthTest(t *testing.T) (*testutil.MockUserService, *testutil.HTTPTestClient, uuid.UUID) {
	t.Helper()
	mockUserService := new(testutil.MockUserService)
	tokens := testutil.TestTokenIssuer()
	handler := NewAuthHandler(mockUserService, tokens)

	app := drift.New()
	app.Use(middleware.Auth(tokens))
	app.Post("/token", handler.IssueToken)

	userID := uuid.New()
	client := testutil.NewHTTPTestClient(t, app).As(testutil.GenerateTestToken(t, userID, "user@example.com"))
	return mockUserService, client, userID
}

func TestAuthHandler_IssueToken_UsesLiveRole(t *testing.T) {
	mockUserService, client, userID := setupAuthTest(t)

	mockUserService.On("GetByID", mock.Anything, userID).Return(&models.User{
		ID:         userID,
		Email:      "user@example.com",
		GlobalRole: models.GlobalRoleSuperAdmin,
		CreatedAt:  time.Now(),
	}, nil)

	rec := client.POST("/token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.TokenResponse
	testutil.ParseJSON(t, rec, &resp)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(time.Hour.Seconds()), resp.ExpiresIn)
	assert.Equal(t, models.GlobalRoleSuperAdmin, resp.GlobalRole)

	claims, err := testutil.TestTokenIssuer().Verify(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.GlobalRoleSuperAdmin, claims.Role)
}

func TestAuthHandler_IssueToken_DeletedUser(t *testing.T) {
	mockUserService, client, userID := setupAuthTest(t)

	mockUserService.On("GetByID", mock.Anything, userID).Return(nil, services.ErrResourceNotFound)

	rec := client.POST("/token", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "user no longer exists")
}

func TestAuthHandler_IssueToken_DatabaseDown(t *testing.T) {
	mockUserService, client, userID := setupAuthTest(t)

	mockUserService.On("GetByID", mock.Anything, userID).Return(nil, errors.Join(services.ErrPersistence, errors.New("connection refused")))

	rec := client.POST("/token", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
