package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/tally/internal/backup"
	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/model"
)

// RenderSyncReport summarizes one sync pass: per-table outcomes, skipped
// columns, senders with no row and stage timings.
func RenderSyncReport(report *engine.Report) string {
	var sb strings.Builder

	title := "Sync summary"
	if report.Run.DryRun {
		title += " (dry run)"
	}
	sb.WriteString(FormatTitle(title))
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Messages: %d   Classified: %d   Updates: %d   Skipped: %d\n\n",
		report.Run.Messages, report.Run.Classified, len(report.Updates), report.Run.Skipped)

	tables := NewTable("Tables", "Table", "Rows", "Matched", "Writes", "Status")
	stats := make(map[string]string, len(report.Reconcile.Stats))
	matched := make(map[string]string, len(report.Reconcile.Stats))
	for _, s := range report.Reconcile.Stats {
		stats[s.Table] = strconv.Itoa(s.Rows)
		matched[s.Table] = strconv.Itoa(s.Matched)
	}
	for _, o := range report.Run.Tables {
		tables.AddRow(o.Table, stats[o.Table], matched[o.Table], strconv.Itoa(o.Writes), outcomeStatus(o, report.Run.DryRun))
	}
	if out := tables.Render(); out != "" {
		sb.WriteString(out)
		sb.WriteString("\n")
	}

	for _, skip := range report.Reconcile.Skipped {
		target := skip.Table
		if skip.Category != "" {
			target += "/" + string(skip.Category)
		}
		sb.WriteString(FormatWarning(fmt.Sprintf("skipped %s: %s", target, skip.Reason)))
		sb.WriteString("\n")
	}
	if n := len(report.Reconcile.Unmatched); n > 0 {
		sb.WriteString(FormatInfo(fmt.Sprintf("%d update(s) matched no row", n)))
		sb.WriteString("\n")
	}
	if report.Stamped {
		sb.WriteString(FormatSuccess("last-update stamp written"))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(RenderStages(report.Run.Stages, report.Run.Duration()))
	return sb.String()
}

func outcomeStatus(o model.TableOutcome, dryRun bool) string {
	switch {
	case !o.Succeeded():
		return ErrorStyle.Render(ErrorIcon + " " + o.Error)
	case dryRun && o.Writes > 0:
		return InfoStyle.Render("not applied")
	case o.Writes == 0:
		return SubtleStyle.Render("up to date")
	default:
		return SuccessStyle.Render(SuccessIcon + " applied")
	}
}

// RenderStages lists stage durations with the total runtime.
func RenderStages(stages []model.StageTiming, total time.Duration) string {
	t := NewTable(ClockIcon+" Timing", "Stage", "Duration")
	for _, s := range stages {
		t.AddRow(s.Name, FormatDuration(s.Duration))
	}
	t.AddRow(BoldStyle.Render("total"), BoldStyle.Render(FormatDuration(total)))
	return t.Render()
}

// RenderWrites lists planned cell writes, used by dry runs.
func RenderWrites(batches []model.TableWrites) string {
	t := NewTable("Planned writes", "Table", "Cell", "Value")
	for _, b := range batches {
		for _, w := range b.Writes {
			t.AddRow(b.Table, w.Range, fmt.Sprint(w.Value))
		}
	}
	return t.Render()
}

// RenderRuns lists run history, most recent first.
func RenderRuns(runs []model.Run) string {
	if len(runs) == 0 {
		return FormatInfo("No runs recorded yet")
	}
	t := NewTable("Recent runs", "Started", "Duration", "Messages", "Writes", "Failed", "ID")
	for _, r := range runs {
		started := r.StartedAt.Local().Format("2006-01-02 15:04:05")
		if r.DryRun {
			started += " (dry)"
		}
		failed := "-"
		if f := r.Failed(); len(f) > 0 {
			failed = ErrorStyle.Render(strings.Join(f, ", "))
		}
		t.AddRow(started, FormatDuration(r.Duration()), strconv.Itoa(r.Messages), strconv.Itoa(r.TotalWrites()), failed, r.ID)
	}
	return t.Render()
}

// RenderBackup summarizes a CSV export.
func RenderBackup(result *backup.Result) string {
	var sb strings.Builder
	for _, f := range result.Files {
		sb.WriteString(FormatSuccess("saved " + f))
		sb.WriteString("\n")
	}
	sb.WriteString(FormatInfo(fmt.Sprintf("%s %d tab(s), %d row(s) downloaded to %s", FolderIcon, len(result.Files), result.Rows, result.Folder)))
	return sb.String()
}

// FormatDuration renders d as seconds with two decimals.
func FormatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
