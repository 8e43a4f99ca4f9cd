package config

import (
	"errors"
	"fmt"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/reconcile"
	"github.com/spf13/viper"
)

// DefaultTables is used when no tables are configured. The "data" sheet
// keeps the timestamps and the message counter; the "main" sheet keeps each
// row's class and the class counter matrix, class n in column G+n.
func DefaultTables() []reconcile.TableLayout {
	idx := reconcile.IntPtr
	return []reconcile.TableLayout{
		{
			Name:  "data",
			Phone: reconcile.Column{Header: "phone number", Index: idx(0)},
			Categories: []reconcile.CategoryColumns{
				{
					Category: model.CategoryPractice,
					DateTime: reconcile.Column{Header: "practice_updates_datetime", Index: idx(3)},
					Date:     reconcile.Column{Header: "practice_updates_date", Index: idx(4)},
				},
				{
					Category: model.CategorySent,
					DateTime: reconcile.Column{Header: "message_updates_datetime", Index: idx(1)},
					Date:     reconcile.Column{Header: "message_updates_date", Index: idx(2)},
					Counter:  reconcile.Column{Header: "message_counter", Index: idx(5)},
				},
			},
		},
		{
			Name:        "main",
			Phone:       reconcile.Column{Header: "phone number", Index: idx(0)},
			ClassLabel:  reconcile.Column{Header: "class", Index: idx(1)},
			ClassMatrix: reconcile.ClassMatrix{Base: "G", Count: 12},
		},
	}
}

// LoadTables reads and validates the table layouts in order.
func LoadTables(v *viper.Viper) ([]reconcile.TableLayout, error) {
	if !v.IsSet("tables") {
		return DefaultTables(), nil
	}

	var layouts []reconcile.TableLayout
	if err := v.UnmarshalKey("tables", &layouts); err != nil {
		return nil, fmt.Errorf("%w: tables: %w", common.ErrInvalidConfig, err)
	}
	if len(layouts) == 0 {
		return DefaultTables(), nil
	}

	var errs []error
	seen := make(map[string]bool, len(layouts))
	for _, l := range layouts {
		if err := l.Validate(); err != nil {
			errs = append(errs, err)
		}
		if seen[l.Name] {
			errs = append(errs, fmt.Errorf("table %q configured twice", l.Name))
		}
		seen[l.Name] = true
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	return layouts, nil
}
