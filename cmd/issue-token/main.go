package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dimitrije/memorai-api/internal/config"
	"github.com/dimitrije/memorai-api/internal/database"
	"github.com/dimitrije/memorai-api/internal/logger"
	"github.com/dimitrije/memorai-api/internal/metrics"
	"github.com/dimitrije/memorai-api/internal/services"
)

// issue-token creates the user if needed and prints a fresh API token for it.
func main() {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		fmt.Println("Usage: issue-token <email> [name]")
		os.Exit(1)
	}

	email := os.Args[1]
	name := ""
	if len(os.Args) == 3 {
		name = os.Args[2]
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.LogLevel)

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	m := metrics.New()
	audit := services.NewAuditRecorder(db, services.NewMembershipResolver(db, m), m)
	userService := services.NewUserService(db, audit)
	tokenIssuer := services.NewTokenIssuer(cfg.JWTSecret, cfg.APITokenExpiry)

	user, err := userService.Ensure(ctx, email, name)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure user")
	}

	token, err := tokenIssuer.Issue(user.ID, user.Email, user.GlobalRole)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to issue token")
	}

	fmt.Println(token)
}
