package config

import (
	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/sheets"
	"github.com/spf13/viper"
)

// LoadSheetsConfig loads Google Sheets configuration. It follows this precedence:
// 1. Viper configuration (config file or TALLY_ env vars)
// 2. Direct environment variables (GOOGLE_SHEETS_*, KEY_PATH, SHEET_ID)
// 3. Default values
func LoadSheetsConfig(v *viper.Viper) (*sheets.Config, error) {
	config := sheets.DefaultConfig()
	env := sheets.DefaultConfig()
	_ = env.LoadFromEnv() // partial env is fine here; Validate decides

	config.ServiceAccountPath = ExpandPath(first(v.GetString("sheets.service_account_path"), env.ServiceAccountPath))
	config.ClientID = first(v.GetString("sheets.client_id"), env.ClientID)
	config.ClientSecret = first(v.GetString("sheets.client_secret"), env.ClientSecret)
	config.RefreshToken = first(v.GetString("sheets.refresh_token"), env.RefreshToken)
	config.SpreadsheetID = first(v.GetString("sheets.spreadsheet_id"), env.SpreadsheetID)
	config.ForceText = v.GetBool("sheets.force_text")

	if v.IsSet("sheets.retry_attempts") {
		config.RetryAttempts = v.GetInt("sheets.retry_attempts")
	}
	if v.IsSet("sheets.retry_delay") {
		config.RetryDelay = v.GetDuration("sheets.retry_delay")
	}
	if v.IsSet("sheets.retry_max_delay") {
		config.RetryMaxDelay = v.GetDuration("sheets.retry_max_delay")
	}
	if v.IsSet("sheets.retry_multiplier") {
		config.RetryMultiplier = v.GetFloat64("sheets.retry_multiplier")
	}
	if v.IsSet("sheets.rate_limit_delay") {
		config.RateLimitDelay = v.GetDuration("sheets.rate_limit_delay")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadStampConfig returns where the "last updated" stamp is written.
// Setting sheets.stamp.table to "" disables it.
func LoadStampConfig(v *viper.Viper) engine.StampConfig {
	stamp := engine.DefaultConfig().Stamp
	if v.IsSet("sheets.stamp.table") {
		stamp.Table = v.GetString("sheets.stamp.table")
	}
	if c := v.GetString("sheets.stamp.cell"); c != "" {
		stamp.Cell = c
	}
	if l := v.GetString("sheets.stamp.layout"); l != "" {
		stamp.Layout = l
	}
	return stamp
}

func first(values ...string) string {
	for _, s := range values {
		if s != "" {
			return s
		}
	}
	return ""
}
