package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Google   GoogleConfig
	Stripe   StripeConfig
	Redis    RedisConfig
	Storage  StorageConfig
	SMTP     SMTPConfig
	Webhook  WebhookConfig
	Logger   LoggerConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port          string
	Mode          string
	CORSOrigin    string
	PublicBaseURL string // where the embed script posts consent events
	AppURL        string // dashboard frontend
}

type DatabaseConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type GoogleConfig struct {
	ClientID         string
	ClientSecret     string
	RedirectURL      string
	FrontendRedirect string
}

// Enabled reports whether Google sign-in routes should be registered.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RedirectURL != ""
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	ProductID     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// Enabled reports whether scripts should be published to object storage.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type WebhookConfig struct {
	Timeout time.Duration
}

type LoggerConfig struct {
	Level  string
	Format string
}

type WorkerConfig struct {
	RetentionInterval time.Duration
}

var ErrMissingEnv = errors.New("missing required environment variable")

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("CORS_ORIGIN", "http://localhost:5173")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("APP_URL", "http://localhost:5173")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("STORAGE_BUCKET", "consent-scripts")
	v.SetDefault("STORAGE_USE_SSL", false)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("WEBHOOK_TIMEOUT", "10s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("RETENTION_INTERVAL", "1h")

	cfg := &Config{
		Server: ServerConfig{
			Port:          v.GetString("PORT"),
			Mode:          v.GetString("GIN_MODE"),
			CORSOrigin:    v.GetString("CORS_ORIGIN"),
			PublicBaseURL: strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
			AppURL:        strings.TrimRight(v.GetString("APP_URL"), "/"),
		},
		Database: DatabaseConfig{URL: v.GetString("DB_URL")},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
			TokenTTL:  v.GetDuration("JWT_TTL"),
		},
		Google: GoogleConfig{
			ClientID:         v.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret:     v.GetString("GOOGLE_CLIENT_SECRET"),
			RedirectURL:      v.GetString("GOOGLE_REDIRECT_URL"),
			FrontendRedirect: v.GetString("GOOGLE_FRONTEND_REDIRECT"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
			ProductID:     v.GetString("STRIPE_PRODUCT_ID"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Storage: StorageConfig{
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
			PublicURL: strings.TrimRight(v.GetString("STORAGE_PUBLIC_URL"), "/"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
		},
		Webhook: WebhookConfig{Timeout: v.GetDuration("WEBHOOK_TIMEOUT")},
		Logger: LoggerConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Worker: WorkerConfig{RetentionInterval: v.GetDuration("RETENTION_INTERVAL")},
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("%w: DB_URL", ErrMissingEnv)
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET", ErrMissingEnv)
	}

	return cfg, nil
}
