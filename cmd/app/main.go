package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tarot/internal/api/v1/router"
	"tarot/internal/billing"
	"tarot/internal/config"
	"tarot/internal/database"
	"tarot/internal/llm"
	"tarot/internal/logger"
	"tarot/internal/pubsub"
	"tarot/internal/repository"
	"tarot/internal/secrets"
	"tarot/internal/service"
	"tarot/internal/util"
)

// @title Tarot API
// @version 1.0
// @description Tarot reading backend: accounts, membership, topics and readings.
// @host localhost:8080
// @BasePath /api
// @Schemes http https

func main() {
	// Production has no .env file and reads the real environment.
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log := logger.New(os.Getenv("ENV"), "api")
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log := logger.New(cfg.Environment, "api")

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

	if cfg.RunMigrations {
		if err := database.Migrate(pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		log.Info().Msg("Migrations applied")
	}

	var publisher pubsub.Publisher = pubsub.NoopPublisher{}
	if cfg.GCPProjectID != "" {
		p, err := pubsub.NewPublisher(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Pub/Sub publisher")
		}
		defer p.Close()
		publisher = p
	}

	tokens := util.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	deps := router.Deps{
		Config:    cfg,
		Store:     repository.NewStore(pool),
		Tokens:    tokens,
		Providers: providers(cfg),
		Completer: llm.NewClient(llm.Options{
			APIKey:      cfg.LLMAPIKey,
			BaseURL:     cfg.LLMBaseURL,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     cfg.LLMTimeout,
		}),
		Notifier: pubsub.NewMembershipNotifier(publisher, cfg.PubSubMembershipTopic, log),
		Logger:   log,
	}
	if cfg.GoogleClientID != "" {
		deps.OAuth = service.NewGoogleProvider(service.GoogleOptions{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
	} else {
		log.Warn().Msg("GOOGLE_CLIENT_ID not set, Google login disabled")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Listen failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received, exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server shut down gracefully")
}

func providers(cfg *config.Config) []billing.Provider {
	out := []billing.Provider{billing.NewCreem(billing.CreemOptions{
		APIKey:        cfg.CreemAPIKey,
		WebhookSecret: cfg.CreemWebhookSecret,
		ProductID:     cfg.CreemProductID,
		BaseURL:       cfg.CreemAPIBaseURL,
	})}
	if cfg.StripeEnabled() {
		out = append(out, billing.NewStripe(billing.StripeOptions{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			PriceID:       cfg.StripePriceID,
		}))
	}
	return out
}
