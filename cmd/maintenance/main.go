package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tarot/internal/config"
	"tarot/internal/database"
	"tarot/internal/logger"
	"tarot/internal/repository"
	"tarot/internal/secrets"
	"tarot/internal/service"
	"tarot/internal/util"
)

func main() {
	mode := flag.String("mode", "", "Maintenance mode: migrate|repair-cycles|create-admin")
	username := flag.String("username", "", "Admin username (create-admin)")
	password := flag.String("password", "", "Admin password (create-admin)")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log := logger.New(os.Getenv("ENV"), "maintenance")
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log := logger.New(cfg.Environment, "maintenance").With().Str("mode", *mode).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := secrets.ResolveFromProject(ctx, cfg.GCPProjectID, cfg.SecretFields(), log); err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve secrets")
	}

	pool, err := database.NewPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()
	store := repository.NewStore(pool)

	switch *mode {
	case "migrate":
		if err := database.Migrate(pool); err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}
		log.Info().Msg("Migrations applied")

	case "repair-cycles":
		// Repair never grants, so there is nothing to publish.
		memberships := service.NewMembershipService(store, nil, log)
		closed, err := memberships.RepairCycles(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Cycle repair failed")
		}
		log.Info().Int64("closed_free_cycles", closed).Msg("Cycle repair finished")

	case "create-admin":
		if *username == "" || *password == "" {
			log.Fatal().Msg("create-admin requires -username and -password")
		}
		tokens := util.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
		admins := service.NewAdminService(store, tokens, cfg.AdminTokenTTL, log)
		a, err := admins.CreateAdmin(ctx, *username, *password)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create admin")
		}
		log.Info().Str("admin_id", a.ID).Str("username", a.Username).Msg("Admin created")

	default:
		log.Fatal().Msgf("Invalid mode: %s. Must be one of migrate|repair-cycles|create-admin", *mode)
	}
}
