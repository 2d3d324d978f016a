package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAccountsURL = "https://accounts.zoho.com"
	DefaultAPIPath     = "/crm/v2"
	DefaultTimeout     = 30 * time.Second
)

// Config holds the credentials and endpoints for a Zoho CRM client.
// AccessToken and APIDomain are optional; when both are set the client
// starts with a usable token and skips the first token exchange.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccessToken  string
	APIDomain    string
	AccountsURL  string
	APIPath      string
	Timeout      time.Duration
}

func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		ClientID:     os.Getenv("ZOHO_CLIENT_ID"),
		ClientSecret: os.Getenv("ZOHO_CLIENT_SECRET"),
		RefreshToken: os.Getenv("ZOHO_REFRESH_TOKEN"),
		AccessToken:  os.Getenv("ZOHO_ACCESS_TOKEN"),
		APIDomain:    os.Getenv("ZOHO_API_DOMAIN"),
		AccountsURL:  getEnv("ZOHO_ACCOUNTS_URL", DefaultAccountsURL),
		APIPath:      getEnv("ZOHO_API_PATH", DefaultAPIPath),
		Timeout:      DefaultTimeout,
	}

	if raw := os.Getenv("ZOHO_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("ZOHO_TIMEOUT is not a valid duration: %w", err)
		}
		cfg.Timeout = timeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("ZOHO_CLIENT_ID is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("ZOHO_CLIENT_SECRET is required")
	}
	if c.RefreshToken == "" {
		return fmt.Errorf("ZOHO_REFRESH_TOKEN is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("ZOHO_TIMEOUT must be positive")
	}
	// AccessToken and APIDomain are optional, so we don't validate them
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
