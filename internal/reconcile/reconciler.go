// Package reconcile computes the minimal cell writes that bring spreadsheet
// rows up to date with the latest classified messages.
//
// Reconciliation is pure: it reads snapshots and updates and returns write
// batches; applying them is the caller's job. A write is emitted only when
// the new value differs from the snapshot, so reconciling again against the
// updated rows yields nothing.
package reconcile

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/Veraticus/tally/internal/aggregate"
	"github.com/Veraticus/tally/internal/classify"
	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/phone"
	"github.com/Veraticus/tally/internal/timestamp"
)

// Config wires a Reconciler.
type Config struct {
	ClassLabel    *classify.ClassLabel
	ClassCategory model.Category
	Layouts       []TableLayout
}

// Reconciler turns aggregated updates into per-table cell write batches.
type Reconciler struct {
	normalizer *phone.Normalizer
	parser     *timestamp.Parser
	logger     *slog.Logger
	config     Config
}

// New creates a Reconciler.
func New(config Config, normalizer *phone.Normalizer, parser *timestamp.Parser, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		config:     config,
		normalizer: normalizer,
		parser:     parser,
		logger:     common.OrDiscard(logger),
	}
}

// Layouts returns the configured table layouts in order.
func (r *Reconciler) Layouts() []TableLayout {
	return r.config.Layouts
}

// Skip records a table, category or cell set whose writes were dropped.
type Skip struct {
	Table    string
	Category model.Category // empty when the whole table was skipped
	Reason   string
}

// TableStats summarizes one table's reconciliation.
type TableStats struct {
	Updated   map[model.Category]int
	Table     string
	Rows      int
	Matched   int
	Unchanged int
	Classes   int // class counters incremented
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	Tables    []model.TableWrites
	Skipped   []Skip
	Stats     []TableStats
	Unmatched []model.UpdateKey // updates that found no row in any table
}

// TotalWrites counts writes across all tables.
func (r Result) TotalWrites() int {
	n := 0
	for _, t := range r.Tables {
		n += len(t.Writes)
	}
	return n
}

// Reconcile computes writes for every configured table that has a snapshot.
//
// Category cells are reconciled table by table first. Class counters are
// written afterwards so a class matrix can follow the date decision made on
// another table: when the matrix table carries the class category's own
// datetime column its decision wins, otherwise the update must have been
// newer on some other table.
func (r *Reconciler) Reconcile(updates []model.AggregatedUpdate, snapshots []model.TableSnapshot) Result {
	updates = r.ResolveClassNumbers(updates, snapshots)
	byKey := aggregate.ByKey(updates)
	byName := make(map[string]model.TableSnapshot, len(snapshots))
	for _, s := range snapshots {
		byName[s.Name] = s
	}

	matched := make(map[model.UpdateKey]bool, len(byKey))
	newer := make(map[model.UpdateKey]bool, len(byKey))
	var plans []*tablePlan
	var result Result

	for _, layout := range r.config.Layouts {
		snapshot, ok := byName[layout.Name]
		if !ok {
			result.Skipped = append(result.Skipped, Skip{Table: layout.Name, Reason: "no snapshot"})
			r.logger.Warn("no snapshot for table, skipping", "table", layout.Name)
			continue
		}

		plan := r.planTable(layout, snapshot)
		r.reconcileCategories(plan, byKey, matched, newer)
		plans = append(plans, plan)
	}

	for _, plan := range plans {
		r.reconcileClasses(plan, byKey, matched, newer)
		plan.stats.Matched = len(plan.matchedRows)
		result.Tables = append(result.Tables, plan.out)
		result.Skipped = append(result.Skipped, plan.skips...)
		result.Stats = append(result.Stats, plan.stats)
	}

	for _, u := range updates {
		if !matched[u.Key()] {
			result.Unmatched = append(result.Unmatched, u.Key())
			r.logger.Info("no row for sender", "phone", u.Sender, "category", u.Category)
		}
	}

	return result
}

// ResolveClassNumbers returns a copy of updates where every class-category
// update carries the class number read from the class label of the first
// row, in layout order, that belongs to its sender. Updates without such a
// row keep a nil class number.
func (r *Reconciler) ResolveClassNumbers(updates []model.AggregatedUpdate, snapshots []model.TableSnapshot) []model.AggregatedUpdate {
	out := make([]model.AggregatedUpdate, len(updates))
	copy(out, updates)
	if r.config.ClassCategory == "" || r.config.ClassLabel == nil {
		return out
	}

	byName := make(map[string]model.TableSnapshot, len(snapshots))
	for _, s := range snapshots {
		byName[s.Name] = s
	}

	classes := make(map[model.PhoneIdentity]int)
	for _, layout := range r.config.Layouts {
		snapshot, ok := byName[layout.Name]
		if !ok || !layout.ClassLabel.Configured() {
			continue
		}
		phoneCol, ok := layout.Phone.Resolve(snapshot)
		if !ok {
			continue
		}
		labelCol, ok := layout.ClassLabel.Resolve(snapshot)
		if !ok {
			continue
		}
		for _, row := range snapshot.Rows {
			identity := r.normalizer.Normalize(strings.TrimSpace(row.Cell(phoneCol)))
			if identity == "" {
				continue
			}
			if _, seen := classes[identity]; seen {
				continue
			}
			if n := r.config.ClassLabel.Extract(row.Cell(labelCol)); n != nil {
				classes[identity] = *n
			}
		}
	}

	for i := range out {
		out[i].ClassNumber = nil
		if out[i].Category != r.config.ClassCategory {
			continue
		}
		if n, ok := classes[out[i].Sender]; ok {
			out[i].ClassNumber = &n
		}
	}

	return out
}

type resolvedCategory struct {
	category model.Category
	datetime int
	date     int // -1 when not configured or missing
	counter  int // -1 when not configured or missing
}

// tablePlan is one table's resolved columns and accumulated output.
type tablePlan struct {
	layout   TableLayout
	snapshot model.TableSnapshot
	out      model.TableWrites
	skips    []Skip
	stats    TableStats

	phone      int // -1 when the table is skipped
	categories []resolvedCategory
	label      int // -1 when class counting is off for this table

	// ownDecision is set when the table carries the class category's
	// datetime column; classNewer then holds its per-row decisions.
	ownDecision bool
	classNewer  map[int]bool
	matchedRows map[int]bool
}

func (r *Reconciler) planTable(layout TableLayout, snapshot model.TableSnapshot) *tablePlan {
	plan := &tablePlan{
		layout:      layout,
		snapshot:    snapshot,
		out:         model.TableWrites{Table: layout.Name},
		stats:       TableStats{Table: layout.Name, Rows: len(snapshot.Rows), Updated: make(map[model.Category]int)},
		phone:       -1,
		label:       -1,
		classNewer:  make(map[int]bool),
		matchedRows: make(map[int]bool),
	}

	phoneCol, ok := layout.Phone.Resolve(snapshot)
	if !ok {
		reason := fmt.Sprintf("%v: phone %s", common.ErrMissingColumn, layout.Phone)
		r.logger.Error("phone column not found, skipping table", "table", layout.Name, "column", layout.Phone.String())
		plan.skips = append(plan.skips, Skip{Table: layout.Name, Reason: reason})
		return plan
	}
	plan.phone = phoneCol

	plan.categories, plan.skips = r.resolveCategories(layout, snapshot)
	for _, rc := range plan.categories {
		if rc.category == r.config.ClassCategory {
			plan.ownDecision = true
		}
	}
	plan.label = r.resolveClassLabel(plan)

	return plan
}

// resolveCategories finds every category's columns. A missing datetime
// column drops the category; a missing date or counter column drops only
// that cell. Both are reported.
func (r *Reconciler) resolveCategories(layout TableLayout, snapshot model.TableSnapshot) ([]resolvedCategory, []Skip) {
	var resolved []resolvedCategory
	var skips []Skip

	for _, cc := range layout.Categories {
		rc := resolvedCategory{category: cc.Category, date: -1, counter: -1}
		var missing []string

		resolve := func(col Column, name string) int {
			if !col.Configured() {
				return -1
			}
			idx, ok := col.Resolve(snapshot)
			if !ok {
				missing = append(missing, name+" "+col.String())
				return -1
			}
			if col.Header != "" && snapshot.HeaderIndex(col.Header) < 0 {
				r.logger.Debug("header not found, using index fallback",
					"table", layout.Name, "header", col.Header, "index", idx)
			}
			return idx
		}

		rc.datetime = resolve(cc.DateTime, "datetime")
		if rc.datetime < 0 {
			if !cc.DateTime.Configured() {
				missing = append(missing, "datetime <unset>")
			}
			reason := fmt.Sprintf("%v: %s", common.ErrMissingColumn, strings.Join(missing, ", "))
			skips = append(skips, Skip{Table: layout.Name, Category: cc.Category, Reason: reason})
			r.logger.Error("skipping category writes",
				"table", layout.Name, "category", cc.Category, "reason", reason)
			continue
		}

		rc.date = resolve(cc.Date, "date")
		rc.counter = resolve(cc.Counter, "counter")
		if len(missing) > 0 {
			reason := fmt.Sprintf("%v: %s; other cells still written", common.ErrMissingColumn, strings.Join(missing, ", "))
			skips = append(skips, Skip{Table: layout.Name, Category: cc.Category, Reason: reason})
			r.logger.Warn("dropping category cells",
				"table", layout.Name, "category", cc.Category, "reason", reason)
		}

		resolved = append(resolved, rc)
	}

	return resolved, skips
}

// resolveClassLabel returns the class label column when class counting is
// on for the table, or -1. A matrix without a usable label column or base
// turns class counting off and is reported.
func (r *Reconciler) resolveClassLabel(plan *tablePlan) int {
	layout := plan.layout
	if r.config.ClassCategory == "" || r.config.ClassLabel == nil || !layout.ClassMatrix.Enabled() {
		return -1
	}

	off := func(reason string) int {
		reason = fmt.Sprintf("%v: %s; class counting off", common.ErrMissingColumn, reason)
		plan.skips = append(plan.skips, Skip{Table: layout.Name, Category: r.config.ClassCategory, Reason: reason})
		r.logger.Warn("class counting disabled for table", "table", layout.Name, "reason", reason)
		return -1
	}

	if _, err := ColumnIndex(layout.ClassMatrix.Base); err != nil {
		return off(fmt.Sprintf("class matrix base %q", layout.ClassMatrix.Base))
	}
	if !layout.ClassLabel.Configured() {
		return off("class label <unset>")
	}
	idx, ok := layout.ClassLabel.Resolve(plan.snapshot)
	if !ok {
		return off("class label " + layout.ClassLabel.String())
	}
	return idx
}

func (r *Reconciler) rowIdentity(plan *tablePlan, row model.Row) model.PhoneIdentity {
	raw := strings.TrimSpace(row.Cell(plan.phone))
	if raw == "" {
		return ""
	}
	identity := r.normalizer.Normalize(raw)
	if identity == "" {
		r.logger.Debug("row phone has no digits", "table", plan.layout.Name, "row", row.Index, "value", raw)
	}
	return identity
}

func (r *Reconciler) reconcileCategories(
	plan *tablePlan,
	byKey map[model.UpdateKey]model.AggregatedUpdate,
	matched, newer map[model.UpdateKey]bool,
) {
	if plan.phone < 0 {
		return
	}
	name := plan.layout.Name

	for _, row := range plan.snapshot.Rows {
		identity := r.rowIdentity(plan, row)
		if identity == "" {
			continue
		}

		rowMatched := false
		for _, rc := range plan.categories {
			key := model.UpdateKey{Sender: identity, Category: rc.category}
			update, found := byKey[key]
			if !found {
				continue
			}
			matched[key] = true
			rowMatched = true

			writes, isNewer := r.rowWrites(row, rc, update)
			if rc.category == r.config.ClassCategory {
				plan.classNewer[row.Index] = isNewer
			}
			if !isNewer {
				plan.stats.Unchanged++
				r.logger.Debug("row already current",
					"table", name, "row", row.Index, "category", rc.category, "datetime", update.DateTime)
				continue
			}

			newer[key] = true
			plan.stats.Updated[rc.category]++
			plan.out.Writes = append(plan.out.Writes, writes...)
			r.logger.Debug("row updated",
				"table", name, "row", row.Index, "category", rc.category,
				"from", row.Cell(rc.datetime), "to", update.DateTime)
		}
		if rowMatched {
			plan.matchedRows[row.Index] = true
		}
	}
}

// rowWrites applies the date-newer policy to one row and category. When
// the update is not newer nothing is written, including the counter.
func (r *Reconciler) rowWrites(row model.Row, rc resolvedCategory, update model.AggregatedUpdate) ([]model.CellWrite, bool) {
	current := row.Cell(rc.datetime)
	if !r.parser.IsNewer(current, update.DateTime) {
		return nil, false
	}

	var writes []model.CellWrite
	setIfChanged := func(col int, value string) {
		if col < 0 || timestamp.CleanCell(row.Cell(col)) == value {
			return
		}
		writes = append(writes, model.CellWrite{Range: CellRange(col, row.Index), Value: value})
	}

	setIfChanged(rc.datetime, update.DateTime)
	setIfChanged(rc.date, update.Date)

	if rc.counter >= 0 {
		writes = append(writes, model.CellWrite{
			Range: CellRange(rc.counter, row.Index),
			Value: ParseCounter(row.Cell(rc.counter)) + 1,
		})
	}

	return writes, true
}

func (r *Reconciler) reconcileClasses(
	plan *tablePlan,
	byKey map[model.UpdateKey]model.AggregatedUpdate,
	matched, newer map[model.UpdateKey]bool,
) {
	if plan.phone < 0 || plan.label < 0 {
		return
	}

	for _, row := range plan.snapshot.Rows {
		identity := r.rowIdentity(plan, row)
		if identity == "" {
			continue
		}
		key := model.UpdateKey{Sender: identity, Category: r.config.ClassCategory}
		update, found := byKey[key]
		if !found {
			continue
		}
		matched[key] = true
		plan.matchedRows[row.Index] = true

		accepted := newer[key]
		if plan.ownDecision {
			accepted = plan.classNewer[row.Index]
		}
		if !accepted {
			continue
		}

		col, ok := r.classColumn(row, plan, update)
		if !ok {
			continue
		}
		plan.out.Writes = append(plan.out.Writes, model.CellWrite{
			Range: CellRange(col, row.Index),
			Value: ParseCounter(row.Cell(col)) + 1,
		})
		plan.stats.Classes++
	}
}

// classColumn returns the class-counter column when the update's class
// number equals the row's own class number and is within the matrix.
func (r *Reconciler) classColumn(row model.Row, plan *tablePlan, update model.AggregatedUpdate) (int, bool) {
	rowClass := r.config.ClassLabel.Extract(row.Cell(plan.label))
	if update.ClassNumber == nil || rowClass == nil || *rowClass != *update.ClassNumber {
		r.logger.Debug("class number mismatch, no class counter",
			"table", plan.layout.Name, "row", row.Index, "row_label", row.Cell(plan.label))
		return -1, false
	}
	return plan.layout.ClassMatrix.Column(*rowClass)
}

// ParseCounter reads a counter cell leniently: empty or non-numeric is 0.
func ParseCounter(value string) int {
	value = strings.TrimSpace(timestamp.CleanCell(value))
	if value == "" {
		return 0
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int(f)
	}
	return 0
}
