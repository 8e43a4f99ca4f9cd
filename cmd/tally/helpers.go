package main

import (
	"context"
	"fmt"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/config"
	"github.com/Veraticus/tally/internal/sheets"
	"github.com/Veraticus/tally/internal/storage"
	"github.com/spf13/viper"
)

// initStorage opens the run-history database and applies migrations.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.Open(ctx, config.DatabasePath(viper.GetViper()), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return store, nil
}

// initSheets builds the Google Sheets client from configuration.
func initSheets(ctx context.Context) (*sheets.Client, error) {
	cfg, err := config.LoadSheetsConfig(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("Google Sheets is not configured (set sheets.* in config or GOOGLE_SHEETS_* / KEY_PATH / SHEET_ID)", err)
	}

	client, err := sheets.NewClient(ctx, *cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return client, nil
}
