package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	App      AppConfig
	Auth     AuthConfig
	GitHub   GitHubAppConfig
	Broker   BrokerConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
}

// AuthConfig holds the admin API token configuration
type AuthConfig struct {
	Secret string
}

// GitHubAppConfig holds the upstream GitHub App installation settings
type GitHubAppConfig struct {
	AppID           string
	PrivateKey      string
	InstallationID  int64
	Organization    string
	APIBaseURL      string
	RequestTimeout  time.Duration
	CandidatePrefix string
}

// BrokerConfig holds the token broker settings
type BrokerConfig struct {
	TokenHashKey  string
	SweepInterval time.Duration
	// PinFromCache pins candidate repos to the seed's cached main SHA
	// instead of resolving the branch head live at start time.
	PinFromCache bool
}

func Load() (*Config, error) {
	// Missing .env is fine in deployed environments; env vars win either way.
	_ = godotenv.Load()

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "codetrial_broker"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:     appPort,
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	config.Auth = AuthConfig{
		Secret: getEnv("ADMIN_JWT_SECRET", ""),
	}

	// GitHub App configuration
	installationID, err := strconv.ParseInt(getEnv("GITHUB_APP_INSTALLATION_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GITHUB_APP_INSTALLATION_ID: %w", err)
	}

	githubTimeout, err := time.ParseDuration(getEnv("GITHUB_HTTP_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid GITHUB_HTTP_TIMEOUT: %w", err)
	}

	config.GitHub = GitHubAppConfig{
		AppID:           getEnv("GITHUB_APP_ID", ""),
		PrivateKey:      normalizePrivateKey(getEnv("GITHUB_APP_PRIVATE_KEY", "")),
		InstallationID:  installationID,
		Organization:    getEnv("GITHUB_ORG", ""),
		APIBaseURL:      getEnv("GITHUB_API_BASE_URL", "https://api.github.com"),
		RequestTimeout:  githubTimeout,
		CandidatePrefix: getEnv("GITHUB_CANDIDATE_PREFIX", "candidate"),
	}

	// Broker configuration
	sweepInterval, err := time.ParseDuration(getEnv("BROKER_SWEEP_INTERVAL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid BROKER_SWEEP_INTERVAL: %w", err)
	}

	config.Broker = BrokerConfig{
		TokenHashKey:  getEnv("BROKER_TOKEN_HASH_KEY", ""),
		SweepInterval: sweepInterval,
		PinFromCache:  getEnv("BROKER_PIN_FROM_CACHE", "true") == "true",
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("ADMIN_JWT_SECRET is required")
	}
	if c.GitHub.AppID == "" {
		return fmt.Errorf("GITHUB_APP_ID is required")
	}
	if c.GitHub.PrivateKey == "" {
		return fmt.Errorf("GITHUB_APP_PRIVATE_KEY is required")
	}
	if c.GitHub.InstallationID == 0 {
		return fmt.Errorf("GITHUB_APP_INSTALLATION_ID is required")
	}
	if c.GitHub.Organization == "" {
		return fmt.Errorf("GITHUB_ORG is required")
	}
	if c.Broker.TokenHashKey == "" {
		return fmt.Errorf("BROKER_TOKEN_HASH_KEY is required")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// normalizePrivateKey restores a PEM key that was stored with escaped
// newlines or base64-encoded to survive single-line env vars.
func normalizePrivateKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return key
	}
	if strings.Contains(key, `\n`) {
		key = strings.ReplaceAll(key, `\n`, "\n")
	}
	if !strings.Contains(key, "-----BEGIN") {
		if decoded, err := base64.StdEncoding.DecodeString(key); err == nil {
			if candidate := string(decoded); strings.Contains(candidate, "-----BEGIN") {
				key = candidate
			}
		}
	}
	return key
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
