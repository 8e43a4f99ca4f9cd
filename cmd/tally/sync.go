package main

import (
	"errors"
	"fmt"

	"github.com/Veraticus/tally/internal/classify"
	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/config"
	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/phone"
	"github.com/Veraticus/tally/internal/reconcile"
	"github.com/Veraticus/tally/internal/source"
	"github.com/Veraticus/tally/internal/timestamp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Apply a message batch to the spreadsheet",
		Long: `Read a batch of chat messages, classify them, and update the matching
student rows in every configured table.

The batch is a YAML or JSON list of {sender, timestamp, text} records, or
{meta, text} records where meta is the "[HH:MM, D/M/YYYY] sender: " prefix.`,
		RunE: runSync,
	}

	cmd.Flags().StringP("messages", "m", "-", "message batch file (- for stdin)")
	cmd.Flags().Bool("dry-run", false, "compute writes without applying them")
	cmd.Flags().Bool("no-history", false, "do not record this run in the history database")

	_ = viper.BindPFlag("sync.messages", cmd.Flags().Lookup("messages"))

	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	v := viper.GetViper()

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noHistory, _ := cmd.Flags().GetBool("no-history")

	tsConfig, err := config.LoadTimestampConfig(v)
	if err != nil {
		return err
	}
	layouts, err := config.LoadTables(v)
	if err != nil {
		return err
	}
	classifyConfig := config.LoadClassifyConfig(v, logger)

	normalizer := phone.NewNormalizer(config.LoadPhoneConfig(v))
	parser := timestamp.NewParser(tsConfig.Options()...)

	client, err := initSheets(ctx)
	if err != nil {
		return err
	}

	deps := engine.Deps{
		Source:     source.NewFileSource(viper.GetString("sync.messages"), logger),
		Store:      client,
		Stamper:    client,
		Classifier: classify.New(classifyConfig.Classifier(), normalizer, parser, logger),
		Reconciler: reconcile.New(reconcile.Config{
			ClassLabel:    classifyConfig.ClassLabel,
			ClassCategory: classifyConfig.ClassCategory,
			Layouts:       layouts,
		}, normalizer, parser, logger),
	}

	if !noHistory {
		store, storeErr := initStorage(ctx)
		if storeErr != nil {
			logger.Warn("run history unavailable", "error", storeErr)
		} else {
			defer func() { _ = store.Close() }()
			deps.Runs = store
		}
	}

	eng := engine.New(deps, engine.Config{
		Location: tsConfig.Location,
		Stamp:    config.LoadStampConfig(v),
		DryRun:   dryRun,
	}, logger)

	report, runErr := eng.Run(ctx)
	out := cmd.OutOrStdout()

	if errors.Is(runErr, common.ErrNoMessages) {
		fmt.Fprintln(out, cli.FormatInfo("No messages read, nothing to do"))
		return nil
	}
	if report != nil {
		if dryRun {
			if planned := cli.RenderWrites(report.Reconcile.Tables); planned != "" {
				fmt.Fprintln(out, planned)
			}
		}
		fmt.Fprintln(out, cli.RenderSyncReport(report))
	}

	return runErr
}
