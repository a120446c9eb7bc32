package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENV" default:"production"`
	Port        string `envconfig:"PORT" default:"8080"`

	// Database
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	DBMaxConns         int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	RunMigrations      bool   `envconfig:"RUN_MIGRATIONS" default:"true"`

	// Application tokens
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer string        `envconfig:"JWT_ISSUER" default:"tarot-api"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"168h"`

	FrontendURL    string   `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Google OAuth
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `envconfig:"GOOGLE_REDIRECT_URL"`

	// Admin
	AdminSecret   string        `envconfig:"ADMIN_SECRET"`
	AdminTokenTTL time.Duration `envconfig:"ADMIN_TOKEN_TTL" default:"12h"`

	// Creem payments
	CreemAPIKey        string `envconfig:"CREEM_API_KEY"`
	CreemWebhookSecret string `envconfig:"CREEM_WEBHOOK_SECRET"`
	CreemProductID     string `envconfig:"CREEM_PRODUCT_ID"`
	CreemAPIBaseURL    string `envconfig:"CREEM_API_BASE_URL" default:"https://api.creem.io"`

	// Stripe payments (optional)
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripePriceID       string `envconfig:"STRIPE_PRICE_ID"`

	// LLM provider (OpenAI-compatible)
	LLMAPIKey      string        `envconfig:"LLM_API_KEY"`
	LLMBaseURL     string        `envconfig:"LLM_BASE_URL" default:"https://api.deepseek.com/v1"`
	LLMModel       string        `envconfig:"LLM_MODEL" default:"deepseek-chat"`
	LLMMaxTokens   int           `envconfig:"LLM_MAX_TOKENS" default:"1500"`
	LLMTemperature float32       `envconfig:"LLM_TEMPERATURE" default:"0.8"`
	LLMTimeout     time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`

	// Google Cloud
	GCPProjectID          string `envconfig:"GCP_PROJECT_ID"`
	PubSubMembershipTopic string `envconfig:"PUBSUB_MEMBERSHIP_TOPIC" default:"membership-events"`

	// Metrics endpoint basic auth; open when empty
	MetricsUsername string `envconfig:"METRICS_USERNAME"`
	MetricsPassword string `envconfig:"METRICS_PASSWORD"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment reports whether the service runs locally. Only an explicit
// ENV=development counts; cookies are Secure everywhere else.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// StripeEnabled reports whether the optional Stripe provider is configured.
func (c *Config) StripeEnabled() bool {
	return c.StripeSecretKey != ""
}

// SecretFields returns pointers to every field that may hold an sm:// reference.
func (c *Config) SecretFields() map[string]*string {
	return map[string]*string{
		"DB_CONNECTION_STRING":  &c.DBConnectionString,
		"JWT_SECRET":            &c.JWTSecret,
		"GOOGLE_CLIENT_SECRET":  &c.GoogleClientSecret,
		"ADMIN_SECRET":          &c.AdminSecret,
		"CREEM_API_KEY":         &c.CreemAPIKey,
		"CREEM_WEBHOOK_SECRET":  &c.CreemWebhookSecret,
		"STRIPE_SECRET_KEY":     &c.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": &c.StripeWebhookSecret,
		"LLM_API_KEY":           &c.LLMAPIKey,
	}
}
