package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv reads .env into the environment when present. Variables that
// are already set win. A missing file is fine; a malformed one is not.
func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// envReader reads typed variables and remembers every value it could not
// parse, so one Validate call reports all of them.
type envReader struct {
	problems []string
}

func (e *envReader) String(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) Int(key string, def int) int {
	return parseEnv(e, key, def, "an integer", strconv.Atoi)
}

func (e *envReader) Float(key string, def float64) float64 {
	return parseEnv(e, key, def, "a number", func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func (e *envReader) Bool(key string, def bool) bool {
	return parseEnv(e, key, def, "a boolean", strconv.ParseBool)
}

func (e *envReader) Duration(key string, def time.Duration) time.Duration {
	return parseEnv(e, key, def, "a duration such as 30s", time.ParseDuration)
}

// List splits a comma-separated variable and drops empty entries.
func (e *envReader) List(key string, def []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func parseEnv[T any](e *envReader, key string, def T, want string, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		e.problems = append(e.problems, key+" must be "+want+", got "+strconv.Quote(raw))
		return def
	}
	return v
}

// joinProblems renders collected problems as one error, or nil.
func joinProblems(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return errors.New("configuration errors:\n  - " + strings.Join(problems, "\n  - "))
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "[REDACTED]"
}
