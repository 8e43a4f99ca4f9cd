package main

import (
	"fmt"

	"github.com/Veraticus/tally/internal/backup"
	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Download every tab of the spreadsheet to CSV",
		Long: `Export each tab to <dir>/<YYYY-MM-DD_HH-MM-SS>/<tab>.csv. Characters other
than letters, digits, spaces, '-' and '_' in tab names become '_'.`,
		RunE: runBackup,
	}

	cmd.Flags().String("dir", "", "backup root directory (default: backup.dir or ./downloads)")
	_ = viper.BindPFlag("backup.dir", cmd.Flags().Lookup("dir"))

	return cmd
}

func runBackup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	client, err := initSheets(ctx)
	if err != nil {
		return err
	}

	exporter := backup.NewExporter(client, config.BackupDir(viper.GetViper()), logger,
		backup.WithProgress(cmd.ErrOrStderr()))

	result, err := exporter.Export(ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBackup(result))
	return nil
}
