package engine

import (
	"github.com/Veraticus/tally/internal/classify"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/reconcile"
)

// Classifier tags a raw message batch with categories.
type Classifier interface {
	ClassifyAll(msgs []model.RawMessage) classify.Result
}

// Reconciler turns aggregated updates and table snapshots into write batches.
type Reconciler interface {
	Layouts() []reconcile.TableLayout
	Reconcile(updates []model.AggregatedUpdate, snapshots []model.TableSnapshot) reconcile.Result
}
