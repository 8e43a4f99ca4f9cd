package engine

import (
	"time"

	"github.com/Veraticus/tally/internal/model"
)

// stageTimer records sequential, non-overlapping stages.
type stageTimer struct {
	now     func() time.Time
	started time.Time
	current string
	stages  []model.StageTiming
}

func newStageTimer(now func() time.Time) *stageTimer {
	return &stageTimer{now: now}
}

func (t *stageTimer) start(name string) {
	t.stop()
	t.current = name
	t.started = t.now()
}

func (t *stageTimer) stop() {
	if t.current == "" {
		return
	}
	t.stages = append(t.stages, model.StageTiming{Name: t.current, Duration: t.now().Sub(t.started)})
	t.current = ""
}

func (t *stageTimer) timings() []model.StageTiming {
	t.stop()
	return append([]model.StageTiming(nil), t.stages...)
}
