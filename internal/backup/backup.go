// Package backup exports every tab of the spreadsheet to CSV files.
package backup

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/Veraticus/tally/internal/common"
	"github.com/schollz/progressbar/v3"
)

// FolderLayout names the per-run backup folder.
const FolderLayout = "2006-01-02_15-04-05"

// TabReader lists and reads raw tab contents.
type TabReader interface {
	ListTables(ctx context.Context) ([]string, error)
	ReadAll(ctx context.Context, table string) ([][]string, error)
}

// Exporter writes one CSV per tab into a timestamped folder under Dir.
type Exporter struct {
	reader   TabReader
	now      func() time.Time
	logger   *slog.Logger
	progress io.Writer
	dir      string
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithProgress renders a progress bar to w.
func WithProgress(w io.Writer) Option {
	return func(e *Exporter) { e.progress = w }
}

// WithClock overrides the clock used to name the backup folder.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// NewExporter creates an Exporter writing under dir.
func NewExporter(reader TabReader, dir string, logger *slog.Logger, opts ...Option) *Exporter {
	e := &Exporter{
		reader: reader,
		dir:    dir,
		now:    time.Now,
		logger: common.OrDiscard(logger),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result lists what an export produced.
type Result struct {
	Folder string
	Files  []string
	Rows   int
}

// Export downloads every tab. A tab that fails to read aborts the export;
// files already written are kept.
func (e *Exporter) Export(ctx context.Context) (*Result, error) {
	tabs, err := e.reader.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tabs: %w", err)
	}

	folder := filepath.Join(e.dir, e.now().Format(FolderLayout))
	if err := os.MkdirAll(folder, 0750); err != nil {
		return nil, fmt.Errorf("failed to create backup folder: %w", err)
	}
	e.logger.Info("saving CSV files", "folder", folder, "tabs", len(tabs))

	bar := e.newBar(len(tabs))
	result := &Result{Folder: folder}
	for _, tab := range tabs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rows, err := e.reader.ReadAll(ctx, tab)
		if err != nil {
			return result, fmt.Errorf("failed to read tab %q: %w", tab, err)
		}

		path := filepath.Join(folder, SafeName(tab)+".csv")
		if err := writeCSV(path, rows); err != nil {
			return result, err
		}

		result.Files = append(result.Files, path)
		result.Rows += len(rows)
		e.logger.Debug("saved tab", "tab", tab, "path", path, "rows", len(rows))

		if bar != nil {
			if err := bar.Add(1); err != nil {
				e.logger.Warn("failed to update progress bar", "error", err)
			}
		}
	}

	return result, nil
}

func (e *Exporter) newBar(total int) *progressbar.ProgressBar {
	if e.progress == nil || total == 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(e.progress),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Downloading tabs...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(e.progress)
		}),
	)
}

func writeCSV(path string, rows [][]string) (err error) {
	f, err := os.Create(path) //nolint:gosec // path is built from a sanitized tab name
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, closeErr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// SafeName keeps letters, digits, spaces, '-' and '_' and replaces
// everything else with '_'.
func SafeName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)
}
