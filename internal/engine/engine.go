// Package engine runs one synchronization pass from chat messages to table writes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/tally/internal/aggregate"
	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/reconcile"
	"github.com/Veraticus/tally/internal/service"
)

// Stage names recorded in run timings.
const (
	StageLoad      = "load"
	StageClassify  = "classify"
	StageRead      = "read"
	StageReconcile = "reconcile"
	StageApply     = "apply"
	StageStamp     = "stamp"
)

// StampConfig locates the "last updated" cell. An empty Table disables stamping.
type StampConfig struct {
	Table  string
	Cell   string
	Layout string
}

// Enabled reports whether a stamp cell is configured.
func (s StampConfig) Enabled() bool {
	return s.Table != "" && s.Cell != ""
}

// Config holds configuration options for the sync engine.
type Config struct {
	Location *time.Location
	Stamp    StampConfig
	DryRun   bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Location: time.Local,
		Stamp:    StampConfig{Table: "dashboard", Cell: "C9", Layout: "02-01 15:04"},
	}
}

// Deps are the collaborators of an Engine. Stamper and Runs are optional.
type Deps struct {
	Source     service.MessageSource
	Store      service.TableStore
	Stamper    service.Stamper
	Runs       service.RunStore
	Classifier Classifier
	Reconciler Reconciler
}

// Engine orchestrates load, classify, aggregate, read, reconcile, apply and stamp.
type Engine struct {
	deps   Deps
	now    func() time.Time
	logger *slog.Logger
	config Config
}

// New creates a sync engine.
func New(deps Deps, config Config, logger *slog.Logger) *Engine {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Stamp.Layout == "" {
		config.Stamp.Layout = DefaultConfig().Stamp.Layout
	}
	return &Engine{
		deps:   deps,
		config: config,
		now:    time.Now,
		logger: common.OrDiscard(logger),
	}
}

// Report describes one sync pass.
type Report struct {
	Reconcile reconcile.Result
	Updates   []model.AggregatedUpdate
	Run       model.Run
	Stamped   bool
}

// Run executes one sync pass. When some tables fail, the report is still
// returned together with an error wrapping common.ErrPartialApply.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	report := &Report{Run: model.Run{StartedAt: e.now(), DryRun: e.config.DryRun}}
	timer := newStageTimer(e.now)

	msgs, err := e.load(ctx, timer)
	if err != nil {
		return report, err
	}
	report.Run.Messages = len(msgs)

	timer.start(StageClassify)
	classified := e.deps.Classifier.ClassifyAll(msgs)
	report.Updates = aggregate.Latest(classified.Messages)
	timer.stop()
	report.Run.Classified = len(classified.Messages)
	report.Run.Skipped = classified.Skipped

	e.logger.Info("classified messages",
		"messages", len(msgs),
		"classified", len(classified.Messages),
		"updates", len(report.Updates),
		"skipped", classified.Skipped)

	if len(report.Updates) == 0 {
		e.logger.Info("no relevant messages, nothing to update")
		return report, e.finish(ctx, report, timer, nil)
	}

	timer.start(StageRead)
	snapshots, readFailures := e.readSnapshots(ctx)
	timer.stop()

	timer.start(StageReconcile)
	report.Reconcile = e.deps.Reconciler.Reconcile(report.Updates, snapshots)
	timer.stop()

	timer.start(StageApply)
	applyFailures := e.apply(ctx, report, readFailures)
	timer.stop()

	var runErr error
	failures := make([]error, 0, len(readFailures)+len(applyFailures))
	failures = append(failures, readFailures...)
	failures = append(failures, applyFailures...)
	if len(failures) > 0 {
		runErr = fmt.Errorf("%w: %s: %w", common.ErrPartialApply,
			strings.Join(report.Run.Failed(), ", "), errors.Join(failures...))
	} else if !e.config.DryRun {
		report.Stamped = e.stamp(ctx, timer)
	}

	return report, e.finish(ctx, report, timer, runErr)
}

func (e *Engine) load(ctx context.Context, timer *stageTimer) ([]model.RawMessage, error) {
	timer.start(StageLoad)
	defer timer.stop()

	msgs, err := e.deps.Source.Messages(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNoMessages) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return msgs, nil
}

// tableError carries the table a boundary failure belongs to.
type tableError struct {
	err   error
	table string
	op    string
}

func (t *tableError) Error() string {
	return fmt.Sprintf("%s %s: %v", t.op, t.table, t.err)
}

func (t *tableError) Unwrap() error {
	return t.err
}

// readSnapshots reads every configured table before anything is written.
func (e *Engine) readSnapshots(ctx context.Context) ([]model.TableSnapshot, []error) {
	var (
		snapshots []model.TableSnapshot
		failures  []error
	)
	for _, layout := range e.deps.Reconciler.Layouts() {
		snap, err := e.deps.Store.ReadTable(ctx, layout.Name)
		if err != nil {
			e.logger.Error("failed to read table", "table", layout.Name, "error", err)
			failures = append(failures, &tableError{op: "read", table: layout.Name, err: err})
			continue
		}
		e.logger.Debug("read table", "table", layout.Name, "rows", len(snap.Rows))
		snapshots = append(snapshots, snap)
	}
	return snapshots, failures
}

// apply sends each table's batch once and records per-table outcomes in
// layout order. Tables whose read failed are recorded as failed.
func (e *Engine) apply(ctx context.Context, report *Report, readFailures []error) []error {
	readErrs := make(map[string]error, len(readFailures))
	for _, f := range readFailures {
		var te *tableError
		if errors.As(f, &te) {
			readErrs[te.table] = te.err
		}
	}
	batches := make(map[string]model.TableWrites, len(report.Reconcile.Tables))
	for _, b := range report.Reconcile.Tables {
		batches[b.Table] = b
	}

	var failures []error
	for _, layout := range e.deps.Reconciler.Layouts() {
		if err, failed := readErrs[layout.Name]; failed {
			report.Run.Tables = append(report.Run.Tables, model.TableOutcome{Table: layout.Name, Error: err.Error()})
			continue
		}
		batch, ok := batches[layout.Name]
		if !ok {
			continue
		}

		outcome := model.TableOutcome{Table: batch.Table, Writes: len(batch.Writes)}
		switch {
		case len(batch.Writes) == 0:
			e.logger.Info("table already up to date", "table", batch.Table)
		case e.config.DryRun:
			e.logger.Info("dry run, not applying writes", "table", batch.Table, "writes", len(batch.Writes))
		default:
			if err := e.deps.Store.ApplyWrites(ctx, batch.Table, batch.Writes); err != nil {
				e.logger.Error("failed to apply writes", "table", batch.Table, "writes", len(batch.Writes), "error", err)
				outcome.Error = err.Error()
				failures = append(failures, &tableError{op: "apply", table: batch.Table, err: err})
			} else {
				e.logger.Info("applied writes", "table", batch.Table, "writes", len(batch.Writes))
			}
		}
		report.Run.Tables = append(report.Run.Tables, outcome)
	}
	return failures
}

// stamp writes the "last updated" cell. Failure is logged, not fatal.
func (e *Engine) stamp(ctx context.Context, timer *stageTimer) bool {
	if e.deps.Stamper == nil || !e.config.Stamp.Enabled() {
		return false
	}

	timer.start(StageStamp)
	defer timer.stop()

	value := e.now().In(e.config.Location).Format(e.config.Stamp.Layout)
	if err := e.deps.Stamper.StampUpdated(ctx, e.config.Stamp.Table, e.config.Stamp.Cell, value); err != nil {
		e.logger.Warn("failed to stamp last update", "table", e.config.Stamp.Table, "cell", e.config.Stamp.Cell, "error", err)
		return false
	}
	return true
}

// finish closes the run record and persists it.
func (e *Engine) finish(ctx context.Context, report *Report, timer *stageTimer, runErr error) error {
	report.Run.FinishedAt = e.now()
	report.Run.Stages = timer.timings()

	if e.deps.Runs == nil {
		return runErr
	}
	if err := e.deps.Runs.SaveRun(ctx, &report.Run); err != nil {
		e.logger.Warn("failed to record run", "error", err)
	}
	return runErr
}
