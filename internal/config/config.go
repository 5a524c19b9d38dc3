// Package config reads the server's settings from CHORELEDGER_* environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const prefix = "CHORELEDGER_"

type Config struct {
	Port     string
	DBPath   string
	LogLevel string
	// LogFormat is text, json or tint; empty picks by terminal.
	LogFormat string

	JWTSecret  string
	SessionTTL time.Duration

	LockMonths int
	Timezone   string
	TopupHour  int

	// AMQPURL enables event publishing when set.
	AMQPURL      string
	AMQPExchange string
}

// Load reads the environment. Values already set in the environment win
// over those in the .env files; missing files are ignored.
func Load(envFiles ...string) *Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	return &Config{
		Port:         getEnv("PORT", "8080"),
		DBPath:       getEnv("DB_PATH", "choreledger.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", ""),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		SessionTTL:   getEnvDuration("SESSION_TTL", 30*24*time.Hour),
		LockMonths:   getEnvInt("LOCK_MONTHS", 4),
		Timezone:     getEnv("TIMEZONE", "UTC"),
		TopupHour:    getEnvInt("TOPUP_HOUR", 1),
		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "choreledger"),
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port %q: must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}
	if c.DBPath == "" {
		problems = append(problems, "database path cannot be empty")
	}
	if len(c.JWTSecret) < 32 {
		problems = append(problems, prefix+"JWT_SECRET must be at least 32 characters")
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, "session TTL must be positive")
	}
	if c.LockMonths < 0 {
		problems = append(problems, "lock months cannot be negative")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("invalid timezone %q: %v", c.Timezone, err))
	}
	if c.TopupHour < 0 || c.TopupHour > 23 {
		problems = append(problems, fmt.Sprintf("invalid top-up hour %d: must be between 0 and 23", c.TopupHour))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json", "tint":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format %q: must be text, json or tint", c.LogFormat))
	}
	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme %q: must be amqp or amqps", u.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange cannot be empty when AMQP URL is set")
		}
	}

	if len(problems) > 0 {
		return errors.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(prefix + key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
