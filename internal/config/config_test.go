package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/tally/internal/classify"
	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/phone"
	"github.com/Veraticus/tally/internal/reconcile"
	"github.com/Veraticus/tally/internal/timestamp"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, yamlConfig string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetEnvPrefix("TALLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yamlConfig)))
	return v
}

func clearSheetsEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GOOGLE_SHEETS_CLIENT_ID", "GOOGLE_SHEETS_CLIENT_SECRET", "GOOGLE_SHEETS_REFRESH_TOKEN",
		"GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "KEY_PATH", "GOOGLE_SHEETS_SPREADSHEET_ID", "SHEET_ID",
	} {
		t.Setenv(k, "")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("TALLY_TEST_DIR", "/srv/tally")

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "~", want: home},
		{in: "~/creds.json", want: filepath.Join(home, "creds.json")},
		{in: "$TALLY_TEST_DIR/tally.db", want: "/srv/tally/tally.db"},
		{in: "/abs/path", want: "/abs/path"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandPath(tt.in), tt.in)
	}
}

func TestLoadSheetsConfig(t *testing.T) {
	t.Run("from config file", func(t *testing.T) {
		clearSheetsEnv(t)
		v := newViper(t, `
sheets:
  service_account_path: /keys/sa.json
  spreadsheet_id: sheet-123
  force_text: true
  retry_attempts: 5
  retry_delay: 2s
  retry_max_delay: 10s
  retry_multiplier: 1.5
  rate_limit_delay: 20s
`)
		cfg, err := LoadSheetsConfig(v)
		require.NoError(t, err)
		assert.Equal(t, "/keys/sa.json", cfg.ServiceAccountPath)
		assert.Equal(t, "sheet-123", cfg.SpreadsheetID)
		assert.True(t, cfg.ForceText)
		assert.Equal(t, 5, cfg.RetryAttempts)
		assert.Equal(t, 2*time.Second, cfg.RetryDelay)
		assert.Equal(t, 10*time.Second, cfg.RetryMaxDelay)
		assert.InDelta(t, 1.5, cfg.RetryMultiplier, 0)
		assert.Equal(t, 20*time.Second, cfg.RateLimitDelay)
	})

	t.Run("env aliases fill gaps", func(t *testing.T) {
		clearSheetsEnv(t)
		t.Setenv("KEY_PATH", "/keys/env.json")
		t.Setenv("SHEET_ID", "env-sheet")

		cfg, err := LoadSheetsConfig(newViper(t, "{}"))
		require.NoError(t, err)
		assert.Equal(t, "/keys/env.json", cfg.ServiceAccountPath)
		assert.Equal(t, "env-sheet", cfg.SpreadsheetID)
		assert.Equal(t, 3, cfg.RetryAttempts)
	})

	t.Run("missing auth", func(t *testing.T) {
		clearSheetsEnv(t)
		_, err := LoadSheetsConfig(newViper(t, "sheets: {spreadsheet_id: x}"))
		assert.Error(t, err)
	})
}

func TestLoadStampConfig(t *testing.T) {
	stamp := LoadStampConfig(newViper(t, "{}"))
	assert.Equal(t, "dashboard", stamp.Table)
	assert.Equal(t, "C9", stamp.Cell)
	assert.Equal(t, "02-01 15:04", stamp.Layout)

	stamp = LoadStampConfig(newViper(t, `sheets: {stamp: {table: "", cell: D1}}`))
	assert.False(t, stamp.Enabled())
}

func TestLoadClassifyConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := LoadClassifyConfig(newViper(t, "{}"), nil)
		assert.Equal(t, classify.DefaultCategories(), cfg.Categories)
		assert.Len(t, cfg.Rules, 2)
		assert.Equal(t, model.CategoryPractice, cfg.ClassCategory)
		n := cfg.ClassLabel.Extract("עלה תרגול שיעור 4")
		require.NotNil(t, n)
		assert.Equal(t, 4, *n)
	})

	t.Run("config file", func(t *testing.T) {
		cfg := LoadClassifyConfig(newViper(t, `
classify:
  class_category: sent
  class_label: lesson
  categories:
    - {name: sent, phrases: ["sent it"]}
    - {name: practice, match: regex, phrases: ["^uploaded"]}
`), nil)
		require.Len(t, cfg.Rules, 2)
		assert.Equal(t, model.CategorySent, cfg.ClassCategory)
		assert.Equal(t, model.Category("sent"), cfg.Rules[0].Category)
		assert.True(t, cfg.Rules[1].Rule.Match("uploaded today"))
		assert.False(t, cfg.Rules[1].Rule.Match("I uploaded"))
		n := cfg.ClassLabel.Extract("lesson 7")
		require.NotNil(t, n)
		assert.Equal(t, 7, *n)
		assert.Equal(t, cfg.Rules, cfg.Classifier().Rules)
	})

	t.Run("env override as JSON", func(t *testing.T) {
		t.Setenv("TALLY_CLASSIFY_CATEGORIES", `[{"name": "practice", "phrases": ["done"]}]`)
		cfg := LoadClassifyConfig(newViper(t, "{}"), nil)
		require.Len(t, cfg.Rules, 1)
		assert.True(t, cfg.Rules[0].Rule.Match("all done"))
	})

	t.Run("malformed falls back to defaults", func(t *testing.T) {
		tests := []string{
			`{name: [unclosed`,
			`[{"name": "practice", "phrases": []}]`,
			`[{"name": "practice", "match": "regex", "phrases": ["("]}]`,
		}
		for _, raw := range tests {
			t.Setenv("TALLY_CLASSIFY_CATEGORIES", raw)
			cfg := LoadClassifyConfig(newViper(t, "{}"), nil)
			assert.Equal(t, classify.DefaultCategories(), cfg.Categories, raw)
			assert.Len(t, cfg.Rules, 2, raw)
		}
	})
}

func TestLoadTables(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		layouts, err := LoadTables(newViper(t, "{}"))
		require.NoError(t, err)
		assert.Equal(t, DefaultTables(), layouts)
		for _, l := range layouts {
			assert.NoError(t, l.Validate())
		}
	})

	t.Run("configured", func(t *testing.T) {
		layouts, err := LoadTables(newViper(t, `
tables:
  - name: data
    phone: {header: phone number, index: 0}
    class_label: {header: lesson}
    class_matrix: {base: J, count: 12}
    categories:
      - category: practice
        datetime: {header: practice_updates_datetime, index: 3}
        counter: {header: practice_counter}
  - name: archive
    phone: {index: 1}
    categories:
      - category: sent
        datetime: {index: 2}
`))
		require.NoError(t, err)
		require.Len(t, layouts, 2)

		data := layouts[0]
		assert.Equal(t, "data", data.Name)
		assert.Equal(t, reconcile.Column{Header: "phone number", Index: reconcile.IntPtr(0)}, data.Phone)
		assert.Equal(t, reconcile.ClassMatrix{Base: "J", Count: 12}, data.ClassMatrix)
		require.Len(t, data.Categories, 1)
		assert.Equal(t, model.CategoryPractice, data.Categories[0].Category)
		assert.Equal(t, 3, *data.Categories[0].DateTime.Index)
		assert.False(t, data.Categories[0].Date.Configured())

		assert.Equal(t, "archive", layouts[1].Name)
		assert.Equal(t, 1, *layouts[1].Phone.Index)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := LoadTables(newViper(t, `
tables:
  - name: data
    categories:
      - category: practice
  - name: data
    phone: {index: 0}
    categories:
      - category: sent
        datetime: {index: 1}
`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrInvalidConfig))
		assert.Contains(t, err.Error(), "phone column is required")
		assert.Contains(t, err.Error(), "configured twice")
	})
}

func TestDefaultTables_Reconcile(t *testing.T) {
	normalizer := phone.NewNormalizer(phone.DefaultConfig())
	parser := timestamp.NewParser(timestamp.WithLocation(time.UTC))
	r := reconcile.New(reconcile.Config{
		ClassCategory: DefaultClassCategory,
		ClassLabel:    classify.NewClassLabel(DefaultClassLabel),
		Layouts:       DefaultTables(),
	}, normalizer, parser, nil)

	data := model.TableSnapshot{
		Name: "data",
		Header: []string{
			"phone number", "message_updates_datetime", "message_updates_date",
			"practice_updates_datetime", "practice_updates_date", "message_counter",
		},
		Rows: []model.Row{
			{Index: 2, Cells: []string{"972501234567", "08:00, 10/01/24", "10/01/24", "09:00, 10/01/24", "10/01/24", "5"}},
			{Index: 3, Cells: []string{"972509876543", "", "", "", "", "0"}},
		},
	}
	main := model.TableSnapshot{
		Name:   "main",
		Header: []string{"phone number", "class", "C", "D", "E", "F", "G", "שיעור 1", "שיעור 2", "שיעור 3"},
		Rows: []model.Row{
			{Index: 2, Cells: []string{"972501234567", "שיעור 1", "", "", "", "", "", "10", "0", "0"}},
			{Index: 3, Cells: []string{"972509876543", "שיעור 2", "", "", "", "", "", "0", "5", "0"}},
		},
	}

	at := time.Date(2025, 8, 24, 22, 6, 0, 0, time.UTC)
	update := func(sender string, category model.Category) model.AggregatedUpdate {
		return model.AggregatedUpdate{
			Sender:   model.PhoneIdentity(sender),
			Category: category,
			Instant:  at,
			Date:     at.Format(timestamp.DateLayout),
			DateTime: at.Format(timestamp.DateTimeLayout),
		}
	}

	result := r.Reconcile([]model.AggregatedUpdate{
		update("972501234567", model.CategoryPractice),
		update("972509876543", model.CategorySent),
	}, []model.TableSnapshot{data, main})

	assert.Empty(t, result.Skipped)
	assert.Empty(t, result.Unmatched)
	require.Len(t, result.Tables, 2)
	assert.Equal(t, []model.CellWrite{
		{Range: "D2", Value: "22:06, 24/08/25"},
		{Range: "E2", Value: "24/08/25"},
		{Range: "B3", Value: "22:06, 24/08/25"},
		{Range: "C3", Value: "24/08/25"},
		{Range: "F3", Value: 1},
	}, result.Tables[0].Writes)
	assert.Equal(t, []model.CellWrite{{Range: "H2", Value: 11}}, result.Tables[1].Writes)
}

func TestLoadPhoneConfig(t *testing.T) {
	cfg := LoadPhoneConfig(newViper(t, "{}"))
	assert.Equal(t, "972", cfg.CountryPrefix)

	cfg = LoadPhoneConfig(newViper(t, `phone: {country_prefix: "44", trunk_prefix: "0", subscriber_lengths: [10]}`))
	assert.Equal(t, "44", cfg.CountryPrefix)
	assert.Equal(t, []int{10}, cfg.SubscriberLengths)
}

func TestLoadTimestampConfig(t *testing.T) {
	cfg, err := LoadTimestampConfig(newViper(t, "timestamp: {timezone: UTC}"))
	require.NoError(t, err)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Len(t, cfg.Options(), 2)

	_, err = LoadTimestampConfig(newViper(t, "timestamp: {timezone: Nowhere/Special}"))
	assert.True(t, errors.Is(err, common.ErrInvalidConfig))
}

func TestDatabaseAndBackupPaths(t *testing.T) {
	v := newViper(t, "database: {path: /data/tally.db}\nbackup: {dir: /data/backups}")
	assert.Equal(t, "/data/tally.db", DatabasePath(v))
	assert.Equal(t, "/data/backups", BackupDir(v))

	t.Setenv("CSV_DOWNLOAD", "/env/downloads")
	v = newViper(t, "{}")
	assert.Equal(t, "/env/downloads", BackupDir(v))
	assert.True(t, strings.HasSuffix(DatabasePath(v), filepath.Join("tally", "tally.db")))
}
