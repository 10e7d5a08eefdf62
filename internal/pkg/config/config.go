// Package config builds the explicit configuration object handed to every
// component at startup. Nothing below this package reads the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/StudyFox/internal/pkg/env"
)

// ErrMissingCredentials marks an operator configuration fault, e.g. no Stripe
// key for the mode an invoice was created in. It must surface as a 500.
var ErrMissingCredentials = errors.New("missing credentials")

const (
	DefaultWebhookTolerance     = 300 * time.Second
	DefaultInviteDailyLimit     = 3
	DefaultRedeemEmailAttempts  = 5
	defaultRevenueCatAPIBaseURL = "https://api.revenuecat.com/v2"
	defaultSendGridAPIBaseURL   = "https://api.sendgrid.com"
)

type App struct {
	Host              string
	Port              string
	Env               string
	PublicAppURL      string // deep-link base for claim redemption
	ParentPurchaseURL string
	MetricsUser       string
	MetricsPassword   string
}

type Database struct {
	Driver   string // mysql or postgres
	Host     string
	Port     string
	User     string
	Password string
	Name     string

	// AutoMigrate runs GORM AutoMigrate on startup; production uses cmd/migrate.
	AutoMigrate bool
}

type Cache struct {
	Host     string
	Port     string
	Password string
}

type Stripe struct {
	WebhookSecretLive string
	WebhookSecretTest string
	WebhookTolerance  time.Duration
	SecretKeyLive     string
	SecretKeyTest     string
	APIBaseURL        string // empty uses the stripe-go default
}

type Entitlements struct {
	APIKey        string
	ProjectID     string
	EntitlementID string
	APIBaseURL    string
}

type Mail struct {
	Driver          string // sendgrid or smtp
	SendGridAPIKey  string
	SendGridBaseURL string
	From            string
	FromName        string
	SMTPHost        string
	SMTPPort        string
	SMTPUsername    string
	SMTPPassword    string
}

type Auth struct {
	JWTSecret string
}

type Limits struct {
	InviteDailyLimit       int
	RedeemEmailMaxAttempts int
	RedeemEmailSweepEvery  time.Duration
	APIRequestsPerMinute   int
}

// Config is the full runtime configuration.
type Config struct {
	App          App
	Database     Database
	Cache        Cache
	Stripe       Stripe
	Entitlements Entitlements
	Mail         Mail
	Auth         Auth
	Limits       Limits
}

// Load reads the process configuration. Call env.SetupEnvFile first.
func Load() *Config {
	return &Config{
		App: App{
			Host:              env.GetEnv("APP_HOST", "localhost"),
			Port:              env.GetEnv("APP_PORT", "4000"),
			Env:               env.GetEnv("APP_ENV", "prod"),
			PublicAppURL:      env.GetEnv("PUBLIC_APP_URL", "studyfox://redeem"),
			ParentPurchaseURL: env.GetEnv("PARENT_PURCHASE_URL", "https://studyfox.app/parents"),
			MetricsUser:       env.GetEnv("METRICS_USER", "admin"),
			MetricsPassword:   env.GetEnv("METRICS_PASSWORD", ""),
		},
		Database: Database{
			Driver:      strings.ToLower(env.GetEnv("DB_DRIVER", "mysql")),
			Host:        env.GetEnv("DB_HOST", "127.0.0.1"),
			Port:        env.GetEnv("DB_PORT", ""),
			User:        env.GetEnv("DB_USER", ""),
			Password:    env.GetEnv("DB_PASSWORD", ""),
			Name:        env.GetEnv("DB_NAME", ""),
			AutoMigrate: env.GetEnv("DB_AUTO_MIGRATE", "false") == "true",
		},
		Cache: Cache{
			Host:     env.GetEnv("CACHE_HOST", "localhost"),
			Port:     env.GetEnv("CACHE_PORT", "6379"),
			Password: env.GetEnv("CACHE_PASSWORD", ""),
		},
		Stripe: Stripe{
			WebhookSecretLive: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET_LIVE", "")),
			WebhookSecretTest: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET_TEST", "")),
			WebhookTolerance:  env.GetDuration("STRIPE_WEBHOOK_TOLERANCE_SECONDS", DefaultWebhookTolerance),
			SecretKeyLive:     strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY_LIVE", "")),
			SecretKeyTest:     strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY_TEST", "")),
			APIBaseURL:        strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", "")),
		},
		Entitlements: Entitlements{
			APIKey:        strings.TrimSpace(env.GetEnv("REVENUECAT_API_KEY", "")),
			ProjectID:     strings.TrimSpace(env.GetEnv("REVENUECAT_PROJECT_ID", "")),
			EntitlementID: strings.TrimSpace(env.GetEnv("REVENUECAT_ENTITLEMENT_ID", "")),
			APIBaseURL:    strings.TrimSpace(env.GetEnv("REVENUECAT_API_BASE_URL", defaultRevenueCatAPIBaseURL)),
		},
		Mail: Mail{
			Driver:          strings.ToLower(env.GetEnv("MAIL_DRIVER", "sendgrid")),
			SendGridAPIKey:  strings.TrimSpace(env.GetEnv("SENDGRID_API_KEY", "")),
			SendGridBaseURL: strings.TrimSpace(env.GetEnv("SENDGRID_API_BASE_URL", defaultSendGridAPIBaseURL)),
			From:            env.GetEnv("MAIL_FROM", "no-reply@studyfox.app"),
			FromName:        env.GetEnv("MAIL_FROM_NAME", "StudyFox"),
			SMTPHost:        env.GetEnv("SMTP_HOST", ""),
			SMTPPort:        env.GetEnv("SMTP_PORT", "587"),
			SMTPUsername:    env.GetEnv("SMTP_USERNAME", ""),
			SMTPPassword:    env.GetEnv("SMTP_PASSWORD", ""),
		},
		Auth: Auth{
			JWTSecret: env.GetEnv("JWT_SECRET", ""),
		},
		Limits: Limits{
			InviteDailyLimit:       env.GetInt("INVITE_DAILY_LIMIT", DefaultInviteDailyLimit),
			RedeemEmailMaxAttempts: env.GetInt("REDEEM_EMAIL_MAX_ATTEMPTS", DefaultRedeemEmailAttempts),
			RedeemEmailSweepEvery:  env.GetDuration("REDEEM_EMAIL_SWEEP_INTERVAL", 0),
			APIRequestsPerMinute:   env.GetInt("API_REQUESTS_PER_MINUTE", 30),
		},
	}
}

// WebhookSecrets returns every configured signing secret. Live and test
// endpoints may point at the same deployment.
func (s Stripe) WebhookSecrets() []string {
	var out []string
	for _, secret := range []string{s.WebhookSecretLive, s.WebhookSecretTest} {
		if secret != "" {
			out = append(out, secret)
		}
	}
	return out
}

// SecretKey selects the API key for the invoice's mode.
func (s Stripe) SecretKey(livemode bool) (string, error) {
	if livemode {
		if s.SecretKeyLive == "" {
			return "", fmt.Errorf("%w: STRIPE_SECRET_KEY_LIVE is not configured", ErrMissingCredentials)
		}
		return s.SecretKeyLive, nil
	}
	if s.SecretKeyTest == "" {
		return "", fmt.Errorf("%w: STRIPE_SECRET_KEY_TEST is not configured", ErrMissingCredentials)
	}
	return s.SecretKeyTest, nil
}

// Validate reports configuration that makes the entitlement core unusable.
// Mode-specific Stripe keys are checked lazily per invoice instead.
func (c *Config) Validate() error {
	var missing []string
	if len(c.Stripe.WebhookSecrets()) == 0 {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET_LIVE/STRIPE_WEBHOOK_SECRET_TEST")
	}
	if c.Entitlements.APIKey == "" {
		missing = append(missing, "REVENUECAT_API_KEY")
	}
	if c.Entitlements.ProjectID == "" {
		missing = append(missing, "REVENUECAT_PROJECT_ID")
	}
	if c.Entitlements.EntitlementID == "" {
		missing = append(missing, "REVENUECAT_ENTITLEMENT_ID")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}
