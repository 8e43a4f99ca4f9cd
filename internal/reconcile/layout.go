package reconcile

import (
	"errors"
	"fmt"

	"github.com/Veraticus/tally/internal/model"
)

// Column locates a sheet column by header name, with an optional 0-based
// index used when the header is not found.
type Column struct {
	Index  *int   `mapstructure:"index" yaml:"index"`
	Header string `mapstructure:"header" yaml:"header"`
}

// Configured reports whether the column was set at all.
func (c Column) Configured() bool {
	return c.Header != "" || c.Index != nil
}

// Resolve finds the column in the snapshot. The boolean is false when the
// header is absent and there is no index fallback.
func (c Column) Resolve(snapshot model.TableSnapshot) (int, bool) {
	if c.Header != "" {
		if idx := snapshot.HeaderIndex(c.Header); idx >= 0 {
			return idx, true
		}
	}
	if c.Index != nil && *c.Index >= 0 {
		return *c.Index, true
	}
	return -1, false
}

func (c Column) String() string {
	switch {
	case c.Header != "" && c.Index != nil:
		return fmt.Sprintf("%q (index %d)", c.Header, *c.Index)
	case c.Header != "":
		return fmt.Sprintf("%q", c.Header)
	case c.Index != nil:
		return fmt.Sprintf("index %d", *c.Index)
	default:
		return "<unset>"
	}
}

// CategoryColumns are the cells one category updates on a row.
// DateTime is required; Date and Counter are optional.
type CategoryColumns struct {
	Category model.Category `mapstructure:"category" yaml:"category"`
	DateTime Column         `mapstructure:"datetime" yaml:"datetime"`
	Date     Column         `mapstructure:"date" yaml:"date"`
	Counter  Column         `mapstructure:"counter" yaml:"counter"`
}

// ClassMatrix lays out one counter column per class number: class n lives
// at column Base+n for 1 <= n <= Count.
type ClassMatrix struct {
	Base  string `mapstructure:"base" yaml:"base"`
	Count int    `mapstructure:"count" yaml:"count"`
}

// Enabled reports whether the matrix is configured.
func (m ClassMatrix) Enabled() bool {
	return m.Base != "" && m.Count > 0
}

// Column returns the 0-based column for a class number, or false when the
// number is out of range.
func (m ClassMatrix) Column(class int) (int, bool) {
	if !m.Enabled() || class < 1 || class > m.Count {
		return -1, false
	}
	base, err := ColumnIndex(m.Base)
	if err != nil {
		return -1, false
	}
	return base + class, true
}

// TableLayout describes where a table keeps its per-row state. A table may
// hold only a class matrix, in which case its class counters follow the
// date decisions made on the tables that carry the class category.
type TableLayout struct {
	Name        string            `mapstructure:"name" yaml:"name"`
	Phone       Column            `mapstructure:"phone" yaml:"phone"`
	ClassLabel  Column            `mapstructure:"class_label" yaml:"class_label"`
	ClassMatrix ClassMatrix       `mapstructure:"class_matrix" yaml:"class_matrix"`
	Categories  []CategoryColumns `mapstructure:"categories" yaml:"categories"`
}

// Validate checks the layout for configuration mistakes.
func (l TableLayout) Validate() error {
	var errs []error
	if l.Name == "" {
		errs = append(errs, errors.New("table name is required"))
	}
	if !l.Phone.Configured() {
		errs = append(errs, fmt.Errorf("table %q: phone column is required", l.Name))
	}
	if len(l.Categories) == 0 && !l.ClassMatrix.Enabled() {
		errs = append(errs, fmt.Errorf("table %q: at least one category or a class matrix is required", l.Name))
	}

	seen := make(map[model.Category]bool, len(l.Categories))
	for _, c := range l.Categories {
		if c.Category == "" {
			errs = append(errs, fmt.Errorf("table %q: category name is required", l.Name))
			continue
		}
		if seen[c.Category] {
			errs = append(errs, fmt.Errorf("table %q: category %q listed twice", l.Name, c.Category))
		}
		seen[c.Category] = true
		if !c.DateTime.Configured() {
			errs = append(errs, fmt.Errorf("table %q: category %q needs a datetime column", l.Name, c.Category))
		}
	}

	if l.ClassMatrix.Base != "" {
		if _, err := ColumnIndex(l.ClassMatrix.Base); err != nil {
			errs = append(errs, fmt.Errorf("table %q: class matrix: %w", l.Name, err))
		}
	}
	if l.ClassMatrix.Enabled() && !l.ClassLabel.Configured() {
		errs = append(errs, fmt.Errorf("table %q: class matrix needs a class label column", l.Name))
	}
	if l.ClassMatrix.Count < 0 {
		errs = append(errs, fmt.Errorf("table %q: class matrix count cannot be negative", l.Name))
	}

	return errors.Join(errs...)
}

// IntPtr is a convenience for building Column index fallbacks.
func IntPtr(n int) *int {
	return &n
}
