package model

import "time"

// Run records one sync execution.
type Run struct {
	StartedAt  time.Time
	FinishedAt time.Time
	ID         string
	Tables     []TableOutcome
	Stages     []StageTiming
	Messages   int
	Classified int
	Skipped    int
	DryRun     bool
}

// TableOutcome records what happened to one table during a run.
type TableOutcome struct {
	Table  string
	Error  string
	Writes int
}

// Succeeded reports whether the table's batch was applied.
func (o TableOutcome) Succeeded() bool {
	return o.Error == ""
}

// StageTiming records how long one pipeline stage took.
type StageTiming struct {
	Name     string
	Duration time.Duration
}

// Duration returns the wall time of the run.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// TotalWrites sums the writes applied across all tables.
func (r *Run) TotalWrites() int {
	total := 0
	for _, t := range r.Tables {
		if t.Succeeded() {
			total += t.Writes
		}
	}
	return total
}

// Failed returns the names of tables whose batch failed.
func (r *Run) Failed() []string {
	var failed []string
	for _, t := range r.Tables {
		if !t.Succeeded() {
			failed = append(failed, t.Table)
		}
	}
	return failed
}
