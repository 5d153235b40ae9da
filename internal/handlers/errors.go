package handlers

import (
	"errors"
	"strconv"

	"github.com/dimitrije/memorai-api/internal/logger"
	"github.com/dimitrije/memorai-api/internal/middleware"
	"github.com/dimitrije/memorai-api/internal/services"
	"github.com/dimitrije/memorai-api/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

// respondError maps a service error onto the HTTP response. With hideMembership set, a caller
// outside the space gets the same 404 as for a space that does not exist.
func respondError(c *drift.Context, err error, hideMembership bool) {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		c.Unauthorized("not authenticated")
	case errors.Is(err, services.ErrNotMember) && hideMembership:
		c.NotFound("not found")
	case errors.Is(err, services.ErrNotMember), errors.Is(err, services.ErrInsufficientRole):
		c.Forbidden(err.Error())
	case errors.Is(err, services.ErrResourceNotFound):
		c.NotFound("not found")
	case errors.Is(err, services.ErrInvitationExpired):
		_ = c.JSON(410, dto.ErrorResponse{Error: "gone", Message: err.Error()})
	case errors.Is(err, services.ErrInvitationAlreadyResolved), errors.Is(err, services.ErrConflict):
		_ = c.JSON(409, dto.ErrorResponse{Error: "conflict", Message: err.Error()})
	case errors.Is(err, services.ErrInvalidInput):
		c.BadRequest(err.Error())
	case errors.Is(err, services.ErrUpstreamUnavailable):
		logger.Warn().Err(err).Msg("memory service unavailable")
		c.BadGateway("memory service unavailable")
	default:
		logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.InternalServerError("internal server error")
	}
}

func requireIdentity(c *drift.Context) (services.Identity, bool) {
	id := middleware.GetIdentity(c)
	if !id.Valid() {
		c.Unauthorized("not authenticated")
		return id, false
	}
	return id, true
}

func pageParams(c *drift.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}
