package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/tally/internal/model"
	"github.com/google/uuid"
)

// SaveRun stores run and its outcomes, assigning an ID when it has none.
// Saving an existing ID replaces the earlier record.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *model.Run) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var finished sql.NullTime
	if !run.FinishedAt.IsZero() {
		finished = sql.NullTime{Time: run.FinishedAt.UTC(), Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, started_at, finished_at, messages, classified, skipped, dry_run)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), finished, run.Messages, run.Classified, run.Skipped, run.DryRun,
	); err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	for _, table := range []string{"run_tables", "run_stages"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", run.ID); err != nil {
			return fmt.Errorf("failed to clear %s for run %s: %w", table, run.ID, err)
		}
	}

	for i, outcome := range run.Tables {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_tables (run_id, position, table_name, writes, error)
			VALUES (?, ?, ?, ?, ?)`,
			run.ID, i, outcome.Table, outcome.Writes, outcome.Error,
		); err != nil {
			return fmt.Errorf("failed to save outcome for table %s: %w", outcome.Table, err)
		}
	}

	for i, stage := range run.Stages {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_stages (run_id, position, name, duration_ns)
			VALUES (?, ?, ?, ?)`,
			run.ID, i, stage.Name, int64(stage.Duration),
		); err != nil {
			return fmt.Errorf("failed to save stage %s: %w", stage.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}

	s.logger.Debug("saved run", "run_id", run.ID, "tables", len(run.Tables))
	return nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, messages, classified, skipped, dry_run
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows", "error", closeErr)
		}
	}()

	var runs []model.Run
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	for i := range runs {
		if err := s.loadDetails(ctx, &runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// GetRun returns one run with its table outcomes and stage timings.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, messages, classified, skipped, dry_run
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadDetails(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.Run, error) {
	var (
		run      model.Run
		started  time.Time
		finished sql.NullTime
	)
	if err := row.Scan(&run.ID, &started, &finished, &run.Messages, &run.Classified, &run.Skipped, &run.DryRun); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.StartedAt = started
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

func (s *SQLiteStorage) loadDetails(ctx context.Context, run *model.Run) error {
	tables, err := s.db.QueryContext(ctx, `
		SELECT table_name, writes, error FROM run_tables
		WHERE run_id = ? ORDER BY position`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to load outcomes for run %s: %w", run.ID, err)
	}
	for tables.Next() {
		var outcome model.TableOutcome
		if err := tables.Scan(&outcome.Table, &outcome.Writes, &outcome.Error); err != nil {
			_ = tables.Close()
			return fmt.Errorf("failed to scan outcome: %w", err)
		}
		run.Tables = append(run.Tables, outcome)
	}
	if err := tables.Err(); err != nil {
		_ = tables.Close()
		return fmt.Errorf("error iterating outcomes: %w", err)
	}
	_ = tables.Close()

	stages, err := s.db.QueryContext(ctx, `
		SELECT name, duration_ns FROM run_stages
		WHERE run_id = ? ORDER BY position`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to load stages for run %s: %w", run.ID, err)
	}
	defer func() { _ = stages.Close() }()
	for stages.Next() {
		var (
			stage model.StageTiming
			ns    int64
		)
		if err := stages.Scan(&stage.Name, &ns); err != nil {
			return fmt.Errorf("failed to scan stage: %w", err)
		}
		stage.Duration = time.Duration(ns)
		run.Stages = append(run.Stages, stage)
	}
	return stages.Err()
}
