package handlers

import (
	"errors"

	"github.com/dimitrije/memorai-api/internal/logger"
	"github.com/dimitrije/memorai-api/internal/services"
	"github.com/dimitrije/memorai-api/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

type AuthHandler struct {
	userService UserServiceInterface
	tokens      TokenIssuerInterface
}

func NewAuthHandler(userService UserServiceInterface, tokens TokenIssuerInterface) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		tokens:      tokens,
	}
}

// IssueToken mints a fresh API token for the caller. The global role is read from the
// database, so a re-issued token picks up promotions and demotions.
func (h *AuthHandler) IssueToken(c *drift.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), id.UserID)
	if err != nil {
		if errors.Is(err, services.ErrResourceNotFound) {
			c.Unauthorized("user no longer exists")
			return
		}
		respondError(c, err, false)
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email, user.GlobalRole)
	if err != nil {
		logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to issue token")
		c.InternalServerError("failed to issue token")
		return
	}

	_ = c.JSON(200, dto.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.tokens.Expiry().Seconds()),
		GlobalRole:  user.GlobalRole,
	})
}
