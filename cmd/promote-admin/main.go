package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dimitrije/memorai-api/internal/config"
	"github.com/dimitrije/memorai-api/internal/database"
	"github.com/dimitrije/memorai-api/internal/logger"
	"github.com/dimitrije/memorai-api/internal/metrics"
	"github.com/dimitrije/memorai-api/internal/services"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Println("Usage: promote-admin <email>")
		os.Exit(1)
	}

	email := os.Args[1]

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

	m := metrics.New()
	audit := services.NewAuditRecorder(db, services.NewMembershipResolver(db, m), m)
	userService := services.NewUserService(db, audit)

	user, err := userService.Promote(ctx, email)
	if err != nil {
		if errors.Is(err, services.ErrResourceNotFound) {
			logger.Fatal().Str("email", email).Msg("no user found with email")
		}
		logger.Fatal().Err(err).Msg("failed to promote user")
	}

	fmt.Printf("Successfully promoted %s to super admin\n", user.Email)
}
