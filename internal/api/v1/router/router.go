package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"tarot/internal/api/v1/handler"
	"tarot/internal/billing"
	"tarot/internal/config"
	"tarot/internal/llm"
	"tarot/internal/metrics"
	"tarot/internal/middleware"
	"tarot/internal/repository"
	"tarot/internal/service"
	"tarot/internal/util"
)

// Deps carries everything the router wires into services. Store is built
// once from the shared pool in main; tests pass an in-memory store.
type Deps struct {
	Config    *config.Config
	Store     repository.Store
	Tokens    *util.TokenIssuer
	OAuth     service.OAuthProvider
	Providers []billing.Provider
	Completer llm.Completer
	Notifier  service.Notifier
	Logger    zerolog.Logger
	// Now overrides the service clock.
	Now func() time.Time
}

// New builds the services and returns the HTTP routing table.
func New(d Deps) http.Handler {
	cfg, logger := d.Config, d.Logger
	var opts []service.Option
	if d.Now != nil {
		opts = append(opts, service.WithClock(d.Now))
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	planSvc := service.NewPlanService(d.Store, logger, opts...)
	usageSvc := service.NewUsageService(d.Store, logger, opts...)
	authSvc := service.NewAuthService(d.Store, d.OAuth, d.Tokens, logger)
	topicSvc := service.NewTopicService(d.Store, logger, opts...)
	membershipSvc := service.NewMembershipService(d.Store, d.Notifier, logger, opts...)
	codeSvc := service.NewCodeService(d.Store, membershipSvc, logger, opts...)
	billingSvc := service.NewBillingService(d.Store, d.Providers, membershipSvc, cfg.FrontendURL, logger)
	shareSvc := service.NewShareService(d.Store, logger)
	readingSvc := service.NewReadingService(d.Store, d.Completer, logger)
	analyticsSvc := service.NewAnalyticsService(d.Store, logger, opts...)
	promptSvc := service.NewPromptService(d.Store, logger)
	adminSvc := service.NewAdminService(d.Store, d.Tokens, cfg.AdminTokenTTL, logger)

	secure := !cfg.IsDevelopment()
	healthHandler := handler.NewHealthHandler(d.Store, logger)
	authHandler := handler.NewAuthHandler(authSvc, planSvc, usageSvc, cfg.FrontendURL, secure, logger)
	billingHandler := handler.NewBillingHandler(billingSvc, validate, logger)
	codeHandler := handler.NewCodeHandler(codeSvc, authSvc, validate, secure, logger)
	topicHandler := handler.NewTopicHandler(topicSvc, validate, logger)
	usageHandler := handler.NewUsageHandler(usageSvc, logger)
	shareHandler := handler.NewShareHandler(shareSvc, validate, cfg.FrontendURL, logger)
	readingHandler := handler.NewReadingHandler(readingSvc, validate, logger)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc, validate)
	adminHandler := handler.NewAdminHandler(adminSvc, analyticsSvc, promptSvc, validate, int(cfg.AdminTokenTTL.Seconds()), logger)

	authMw := middleware.AuthMiddleware(d.Tokens, logger)
	optionalAuthMw := middleware.OptionalAuthMiddleware(d.Tokens)
	adminMw := middleware.AdminMiddleware(cfg.AdminSecret, d.Tokens, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.AdminSecretHeader},
		AllowCredentials: true,
	}).Handler)

	r.With(middleware.MetricsBasicAuth(cfg.MetricsUsername, cfg.MetricsPassword)).Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		healthHandler.RegisterRoutes(r)
		authHandler.RegisterRoutes(r, authMw)
		billingHandler.RegisterRoutes(r, authMw, cfg.StripeEnabled())
		codeHandler.RegisterRoutes(r, authMw, adminMw)
		topicHandler.RegisterRoutes(r, authMw)
		usageHandler.RegisterRoutes(r, authMw)
		shareHandler.RegisterRoutes(r, optionalAuthMw)
		readingHandler.RegisterRoutes(r, authMw)
		analyticsHandler.RegisterRoutes(r)
		adminHandler.RegisterRoutes(r, adminMw)
	})

	logger.Info().Bool("stripe", cfg.StripeEnabled()).Bool("oauth", d.OAuth != nil).Msg("Router initialized")
	return r
}
