package timestamp

import (
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/tally/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Parse(t *testing.T) {
	p := NewParser(WithLocation(time.UTC))

	tests := []struct {
		name         string
		raw          string
		wantInstant  time.Time
		wantDate     string
		wantDateTime string
	}{
		{
			name:         "month first",
			raw:          "22:06, 8/24/2025",
			wantInstant:  time.Date(2025, 8, 24, 22, 6, 0, 0, time.UTC),
			wantDate:     "24/08/25",
			wantDateTime: "22:06, 24/08/25",
		},
		{
			name:         "day first when month first fails",
			raw:          "20:15, 25/08/2025",
			wantInstant:  time.Date(2025, 8, 25, 20, 15, 0, 0, time.UTC),
			wantDate:     "25/08/25",
			wantDateTime: "20:15, 25/08/25",
		},
		{
			name:         "ambiguous resolves month first",
			raw:          "09:00, 3/4/2025",
			wantInstant:  time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC),
			wantDate:     "04/03/25",
			wantDateTime: "09:00, 04/03/25",
		},
		{
			name:         "collector brackets and padding",
			raw:          " [07:30, 1/15/2025] ",
			wantInstant:  time.Date(2025, 1, 15, 7, 30, 0, 0, time.UTC),
			wantDate:     "15/01/25",
			wantDateTime: "07:30, 15/01/25",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.raw)
			require.NoError(t, err)
			assert.True(t, tt.wantInstant.Equal(got.Instant), "instant %v", got.Instant)
			assert.Equal(t, tt.wantDate, got.Date)
			assert.Equal(t, tt.wantDateTime, got.DateTime)
		})
	}
}

func TestParser_ParseFailure(t *testing.T) {
	p := NewParser()

	for _, raw := range []string{"", "?", "yesterday", "22:06 8/24/2025", "25:00, 13/13/2025"} {
		_, err := p.Parse(raw)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, common.ErrUnparseableTimestamp))
	}
}

func TestParser_WithLayouts(t *testing.T) {
	p := NewParser(WithLocation(time.UTC), WithLayouts("15:04, 2/1/2006"))

	got, err := p.Parse("09:00, 3/4/2025")
	require.NoError(t, err)
	assert.Equal(t, "03/04/25", got.Date)
}

func TestParser_IsNewer(t *testing.T) {
	p := NewParser(WithLocation(time.UTC))

	tests := []struct {
		name      string
		current   string
		candidate string
		want      bool
	}{
		{name: "empty current", current: "", candidate: "22:06, 24/08/25", want: true},
		{name: "whitespace current", current: "  ", candidate: "22:06, 24/08/25", want: true},
		{name: "equal", current: "22:06, 24/08/25", candidate: "22:06, 24/08/25", want: false},
		{name: "later", current: "22:06, 24/08/25", candidate: "08:00, 25/08/25", want: true},
		{name: "earlier", current: "08:00, 25/08/25", candidate: "22:06, 24/08/25", want: false},
		{name: "quoted equal", current: "'22:06, 24/08/25", candidate: "22:06, 24/08/25", want: false},
		{name: "tagged equal", current: "<b>22:06, 24/08/25</b>", candidate: "22:06, 24/08/25", want: false},
		{name: "iso stored older", current: "2025-08-01 09:00:00", candidate: "22:06, 24/08/25", want: true},
		{name: "iso stored newer", current: "2025-09-01 09:00:00", candidate: "22:06, 24/08/25", want: false},
		{name: "unparseable differs", current: "last week", candidate: "22:06, 24/08/25", want: true},
		{name: "unparseable equal", current: "soon", candidate: "soon", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsNewer(tt.current, tt.candidate))
		})
	}
}

func TestCleanCell(t *testing.T) {
	assert.Equal(t, "24/08/25", CleanCell(` "24/08/25" `))
	assert.Equal(t, "24/08/25", CleanCell("<span>'24/08/25'</span>"))
	assert.Equal(t, "", CleanCell(""))
}
