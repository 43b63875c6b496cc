package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ViewerConfig holds the terminal viewer's settings.
type ViewerConfig struct {
	ServerURL      string
	ReconnectDelay time.Duration
	RequestTimeout time.Duration

	// Notes by this author are automated and never shown.
	BotAuthorName string

	Logging LoggingConfig
}

// LoadViewer reads .env when present, then the environment, and validates.
func LoadViewer() (*ViewerConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	env := &envReader{}
	cfg := &ViewerConfig{
		ServerURL:      strings.TrimRight(env.String("VIEWER_SERVER_URL", "http://localhost:5050"), "/"),
		ReconnectDelay: env.Duration("VIEWER_RECONNECT_DELAY", 5*time.Second),
		RequestTimeout: env.Duration("VIEWER_REQUEST_TIMEOUT", 10*time.Second),
		BotAuthorName:  env.String("BOT_AUTHOR_NAME", "GitLab Support Bot"),
		Logging: LoggingConfig{
			Level:  env.String("LOG_LEVEL", "warn"),
			Format: env.String("LOG_FORMAT", "text"),
		},
	}

	if err := joinProblems(append(env.problems, cfg.check()...)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that LoadViewer cannot default.
func (c *ViewerConfig) Validate() error {
	return joinProblems(c.check())
}

func (c *ViewerConfig) check() []string {
	var problems []string

	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		problems = append(problems, "VIEWER_SERVER_URL must be an http(s) URL")
	}
	if c.ReconnectDelay <= 0 {
		problems = append(problems, "VIEWER_RECONNECT_DELAY must be positive")
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "VIEWER_REQUEST_TIMEOUT must be positive")
	}

	return problems
}
