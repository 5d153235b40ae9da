package handlers

import (
	"context"
	"time"

	"github.com/dimitrije/memorai-api/internal/logger"
	"github.com/m1z23r/drift/pkg/drift"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Check(c *drift.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("health check: database unreachable")
		_ = c.JSON(503, map[string]string{"status": "degraded", "database": "unreachable"})
		return
	}

	_ = c.JSON(200, map[string]string{"status": "ok"})
}
