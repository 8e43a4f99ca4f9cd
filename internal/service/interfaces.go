// Package service defines the interfaces between the sync engine and its boundaries.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/tally/internal/model"
)

// MessageSource supplies the raw message batch for one run.
type MessageSource interface {
	Messages(ctx context.Context) ([]model.RawMessage, error)
}

// TableStore reads table snapshots and applies cell write batches.
type TableStore interface {
	// ReadTable returns the header row and every data row of the named table.
	ReadTable(ctx context.Context, table string) (model.TableSnapshot, error)
	// ApplyWrites executes the batch against the named table in one request.
	ApplyWrites(ctx context.Context, table string, writes []model.CellWrite) error
}

// Stamper records when the store was last synchronized.
type Stamper interface {
	StampUpdated(ctx context.Context, table, cell, value string) error
}

// RunStore persists run history.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.Run) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
	GetRun(ctx context.Context, id string) (*model.Run, error)
	Close() error
}

// RetryOptions configures retry behavior for operations. Zero fields take
// the defaults in package common.
type RetryOptions struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	RateLimitDelay time.Duration // wait after a rate-limited attempt
}
