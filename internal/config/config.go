package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the relay server's settings.
type Config struct {
	Server    ServerConfig
	GitLab    GitLabConfig
	Webhook   WebhookConfig
	RateLimit RateLimitConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	Logging   LoggingConfig
	App       AppConfig

	// values present in the environment but unparseable
	problems []string
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// GitLabConfig points the proxy at one project's REST API.
type GitLabConfig struct {
	APIURL      string
	ProjectID   string
	AccessToken string
	Timeout     time.Duration
}

// WebhookConfig holds the shared secret GitLab presents on every delivery
// and the header it arrives in.
type WebhookConfig struct {
	Secret      string
	TokenHeader string
}

// RateLimitConfig budgets the browser API and the webhook separately; the
// webhook sees bursts from a single upstream address.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	WebhookRPS        float64
	WebhookBurst      int
}

type WebSocketConfig struct {
	AllowedOrigins    []string
	ReadBufferSize    int
	WriteBufferSize   int
	HeartbeatInterval time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

// Load reads .env when present, then the environment, and validates.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from the current environment. Unparseable values
// fall back to their defaults and are reported by Validate.
func FromEnv() *Config {
	env := &envReader{}

	cfg := &Config{
		Server: ServerConfig{
			Port:            env.String("SERVER_PORT", ":5050"),
			ReadTimeout:     env.Duration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    env.Duration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     env.Duration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: env.Duration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		GitLab: GitLabConfig{
			APIURL:      strings.TrimRight(env.String("GITLAB_API_URL", "https://gitlab.com/api/v4"), "/"),
			ProjectID:   env.String("GITLAB_PROJECT_ID", ""),
			AccessToken: env.String("GITLAB_ACCESS_TOKEN", ""),
			Timeout:     env.Duration("GITLAB_TIMEOUT", 10*time.Second),
		},
		Webhook: WebhookConfig{
			Secret:      env.String("GITLAB_WEBHOOK_SECRET", ""),
			TokenHeader: env.String("WEBHOOK_TOKEN_HEADER", "X-Gitlab-Token"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           env.Bool("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: env.Float("RATE_LIMIT_RPS", 10),
			BurstSize:         env.Int("RATE_LIMIT_BURST", 20),
			WebhookRPS:        env.Float("RATE_LIMIT_WEBHOOK_RPS", 50),
			WebhookBurst:      env.Int("RATE_LIMIT_WEBHOOK_BURST", 100),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins:    env.List("WS_ALLOWED_ORIGINS", nil),
			ReadBufferSize:    env.Int("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize:   env.Int("WS_WRITE_BUFFER_SIZE", 1024),
			HeartbeatInterval: env.Duration("WS_HEARTBEAT_INTERVAL", 30*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: env.List("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Logging: LoggingConfig{
			Level:  env.String("LOG_LEVEL", "info"),
			Format: env.String("LOG_FORMAT", "json"),
		},
		App: AppConfig{
			Name:        env.String("APP_NAME", "issue-relay"),
			Version:     env.String("APP_VERSION", "dev"),
			Environment: env.String("APP_ENV", "development"),
		},
	}
	cfg.problems = env.problems
	return cfg
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	problems := append([]string(nil), c.problems...)
	add := func(cond bool, msg string) {
		if cond {
			problems = append(problems, msg)
		}
	}

	add(c.Webhook.Secret == "", "GITLAB_WEBHOOK_SECRET is required")
	add(c.GitLab.ProjectID == "", "GITLAB_PROJECT_ID is required")
	add(c.GitLab.AccessToken == "", "GITLAB_ACCESS_TOKEN is required")

	u, err := url.Parse(c.GitLab.APIURL)
	add(err != nil || u.Scheme == "" || u.Host == "", "GITLAB_API_URL must be an absolute URL")

	add(strings.TrimSpace(c.Webhook.TokenHeader) == "", "WEBHOOK_TOKEN_HEADER cannot be empty")
	add(c.WebSocket.HeartbeatInterval <= 0, "WS_HEARTBEAT_INTERVAL must be positive")
	add(c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.BurstSize <= 0),
		"RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive when rate limiting is enabled")

	if c.IsProduction() {
		add(len(c.Webhook.Secret) < 16, "GITLAB_WEBHOOK_SECRET must be at least 16 characters in production")
		add(len(c.WebSocket.AllowedOrigins) == 0, "WS_ALLOWED_ORIGINS must be set in production")
	}

	return joinProblems(problems)
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// String is safe to log: credentials are redacted.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: %s, GitLab: %s project=%s token=%s, Webhook: secret=%s header=%s, RateLimit: %v, Environment: %s}",
		c.Server.Port,
		c.GitLab.APIURL,
		c.GitLab.ProjectID,
		redact(c.GitLab.AccessToken),
		redact(c.Webhook.Secret),
		c.Webhook.TokenHeader,
		c.RateLimit.Enabled,
		c.App.Environment,
	)
}
