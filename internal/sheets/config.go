// Package sheets reads and writes spreadsheet tables through the Google Sheets API.
package sheets

import (
	"fmt"
	"os"
	"time"

	"github.com/Veraticus/tally/internal/service"
)

// Config holds the configuration for the Google Sheets client.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountPath string
	SpreadsheetID      string
	RetryAttempts      int
	RetryDelay         time.Duration
	RetryMaxDelay      time.Duration
	RetryMultiplier    float64
	// RateLimitDelay is the wait after the API answers 429.
	RateLimitDelay time.Duration
	// ForceText prefixes string values with an apostrophe so the sheet keeps
	// display strings such as "22:06, 24/08/25" as text.
	ForceText bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RetryAttempts:   3,
		RetryDelay:      time.Second,
		RetryMaxDelay:   30 * time.Second,
		RetryMultiplier: 2.0,
		RateLimitDelay:  30 * time.Second,
	}
}

// RetryOptions is the backoff used for every API call.
func (c *Config) RetryOptions() service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:    c.RetryAttempts,
		InitialDelay:   c.RetryDelay,
		MaxDelay:       c.RetryMaxDelay,
		Multiplier:     c.RetryMultiplier,
		RateLimitDelay: c.RateLimitDelay,
	}
}

// LoadFromEnv loads the configuration from environment variables.
// SHEET_ID and KEY_PATH are accepted as aliases for the spreadsheet ID and
// the service account path.
func (c *Config) LoadFromEnv() error {
	c.ClientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	c.ClientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	c.RefreshToken = os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN")

	c.ServiceAccountPath = firstEnv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "KEY_PATH")
	c.SpreadsheetID = firstEnv("GOOGLE_SHEETS_SPREADSHEET_ID", "SHEET_ID")

	if c.ServiceAccountPath == "" && (c.ClientID == "" || c.ClientSecret == "" || c.RefreshToken == "") {
		return fmt.Errorf("missing Google Sheets authentication: provide either service account path or OAuth2 credentials")
	}

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	hasOAuth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	hasServiceAccount := c.ServiceAccountPath != ""

	if !hasOAuth && !hasServiceAccount {
		return fmt.Errorf("no authentication method configured")
	}

	if hasOAuth && hasServiceAccount {
		return fmt.Errorf("multiple authentication methods configured; use either OAuth2 or service account")
	}

	if c.SpreadsheetID == "" {
		return fmt.Errorf("spreadsheet ID is required")
	}

	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts cannot be negative")
	}

	if c.RetryDelay < 0 || c.RetryMaxDelay < 0 || c.RateLimitDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}

	if c.RetryMultiplier != 0 && c.RetryMultiplier < 1 {
		return fmt.Errorf("retry multiplier must be at least 1")
	}

	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
