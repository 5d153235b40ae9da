package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimitrije/memorai-api/internal/config"
	"github.com/dimitrije/memorai-api/internal/database"
	"github.com/dimitrije/memorai-api/internal/handlers"
	"github.com/dimitrije/memorai-api/internal/logger"
	"github.com/dimitrije/memorai-api/internal/memory"
	"github.com/dimitrije/memorai-api/internal/metrics"
	authmw "github.com/dimitrije/memorai-api/internal/middleware"
	"github.com/dimitrije/memorai-api/internal/services"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	m := metrics.New()
	memoryClient := memory.NewClient(cfg.MemoryAPI, m)

	tokenIssuer := services.NewTokenIssuer(cfg.JWTSecret, cfg.APITokenExpiry)
	members := services.NewMembershipResolver(db, m)
	owners := services.NewOwnershipResolver(db, memoryClient)
	gate := services.NewGate(owners, members, m)
	audit := services.NewAuditRecorder(db, members, m)

	userService := services.NewUserService(db, audit)
	spaceService := services.NewSpaceService(db, members, audit)
	invitationService := services.NewInvitationService(db, members, audit, m, cfg.InvitationExpiry)
	tagService := services.NewTagService(db, members, gate, audit)
	kanbanService := services.NewKanbanService(db, members, gate, audit)
	memoryService := services.NewMemoryService(db, memoryClient, gate, audit)

	authHandler := handlers.NewAuthHandler(userService, tokenIssuer)
	userHandler := handlers.NewUserHandler(userService)
	spaceHandler := handlers.NewSpaceHandler(spaceService, audit)
	invitationHandler := handlers.NewInvitationHandler(invitationService)
	tagHandler := handlers.NewTagHandler(tagService)
	kanbanHandler := handlers.NewKanbanHandler(kanbanService)
	memoryHandler := handlers.NewMemoryHandler(memoryService)
	adminHandler := handlers.NewAdminHandler(audit)
	healthHandler := handlers.NewHealthHandler(db.Pool)

	app := drift.New()

	if cfg.IsProduction() {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		MaxAge:       86400,
	}))
	app.Use(middleware.BodyParser())

	api := app.Group("/api/v1")
	api.Get("/health", healthHandler.Check)

	protected := api.Group("")
	protected.Use(authmw.Auth(tokenIssuer))

	protected.Post("/token", authHandler.IssueToken)
	protected.Get("/users/me", userHandler.GetMe)

	protected.Get("/spaces", spaceHandler.List)
	protected.Post("/spaces", spaceHandler.Create)
	protected.Get("/spaces/:slug", spaceHandler.Get)
	protected.Delete("/spaces/:slug", spaceHandler.Delete)
	protected.Get("/spaces/:slug/settings", spaceHandler.GetSettings)
	protected.Put("/spaces/:slug/settings", spaceHandler.UpdateSettings)
	protected.Get("/spaces/:slug/members", spaceHandler.ListMembers)
	protected.Patch("/spaces/:slug/members/:userId", spaceHandler.ChangeRole)
	protected.Delete("/spaces/:slug/members/:userId", spaceHandler.RemoveMember)
	protected.Get("/spaces/:slug/audit", spaceHandler.Audit)

	protected.Get("/spaces/:slug/invitations", invitationHandler.ListForSpace)
	protected.Post("/spaces/:slug/invitations", invitationHandler.Create)
	protected.Delete("/spaces/:slug/invitations/:id", invitationHandler.Cancel)
	protected.Get("/invitations", invitationHandler.ListMine)
	protected.Get("/invitations/:id", invitationHandler.Get)
	protected.Post("/invitations/:id/accept", invitationHandler.Accept)
	protected.Post("/invitations/:id/decline", invitationHandler.Decline)

	protected.Get("/spaces/:slug/tags", tagHandler.List)
	protected.Post("/spaces/:slug/tags", tagHandler.Create)
	protected.Delete("/tags/:id", tagHandler.Delete)

	protected.Get("/spaces/:slug/kanban", kanbanHandler.ListBoards)
	protected.Post("/spaces/:slug/kanban", kanbanHandler.CreateBoard)
	protected.Post("/kanban/cards", kanbanHandler.CreateCard)
	protected.Patch("/kanban/cards/:id", kanbanHandler.UpdateCard)
	protected.Delete("/kanban/cards/:id", kanbanHandler.DeleteCard)

	protected.Get("/memories", memoryHandler.List)
	protected.Post("/memories", memoryHandler.Create)
	protected.Post("/search", memoryHandler.Search)
	protected.Get("/memories/:id", memoryHandler.Get)
	protected.Put("/memories/:id", memoryHandler.Update)
	protected.Delete("/memories/:id", memoryHandler.Delete)
	protected.Get("/memories/:id/tags", tagHandler.ListForMemory)
	protected.Post("/memories/:id/tags", tagHandler.Attach)
	protected.Delete("/memories/:id/tags/:tagId", tagHandler.Detach)
	protected.Get("/memories/:id/annotations", memoryHandler.ListAnnotations)
	protected.Post("/memories/:id/annotations", memoryHandler.CreateAnnotation)
	protected.Patch("/memories/:id/annotations/:annotationId", memoryHandler.UpdateAnnotation)
	protected.Delete("/memories/:id/annotations/:annotationId", memoryHandler.DeleteAnnotation)
	protected.Post("/memories/:id/bookmark", memoryHandler.ToggleBookmark)

	protected.Get("/admin/audit", adminHandler.Audit)
	protected.Get("/admin/users", userHandler.List)
	protected.Put("/admin/users/:userId/role", userHandler.SetGlobalRole)

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/", app)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           authmw.Observe(mux, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if cfg.InvitationSweepInterval <= 0 {
			return nil
		}
		ticker := time.NewTicker(cfg.InvitationSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, err := invitationService.ExpireStale(gctx); err != nil {
					logger.Warn().Err(err).Msg("invitation sweep failed")
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}
