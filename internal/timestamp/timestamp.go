// Package timestamp parses chat timestamp text and compares stored sheet dates.
//
// Chat timestamps arrive as "HH:MM, M/D/YYYY" or "HH:MM, D/M/YYYY" with no
// signal saying which. Layouts are tried in a fixed order and the first one
// that parses wins. When both day and month are <= 12 the month-first
// reading is taken, which can be wrong; there is no locale signal to do
// better.
package timestamp

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Veraticus/tally/internal/common"
)

// Display layouts written to the sheet.
const (
	DateLayout     = "02/01/06"
	DateTimeLayout = "15:04, 02/01/06"
)

// DefaultLayouts is the ordered list tried by Parse.
var DefaultLayouts = []string{
	"15:04, 1/2/2006", // month first
	"15:04, 2/1/2006", // day first
}

// StoredLayouts are the formats accepted when reading an existing sheet cell.
var StoredLayouts = []string{
	DateTimeLayout,
	"15:04, 2/1/2006",
	"15:04, 1/2/2006",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DateLayout,
	"2006-01-02",
}

// Parsed is a successfully parsed chat timestamp.
type Parsed struct {
	Instant  time.Time
	Date     string
	DateTime string
}

// Parser converts chat timestamp text into Parsed values.
type Parser struct {
	location *time.Location
	layouts  []string
	stored   []string
}

// Option configures a Parser.
type Option func(*Parser)

// WithLocation sets the zone timestamps are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.location = loc
		}
	}
}

// WithLayouts replaces the ordered chat layouts.
func WithLayouts(layouts ...string) Option {
	return func(p *Parser) {
		if len(layouts) > 0 {
			p.layouts = layouts
		}
	}
}

// NewParser creates a Parser using DefaultLayouts in time.Local.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		location: time.Local,
		layouts:  DefaultLayouts,
		stored:   StoredLayouts,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse tries each layout in order and returns the first success.
func (p *Parser) Parse(raw string) (Parsed, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimSpace(strings.Trim(text, "[]"))

	for _, layout := range p.layouts {
		t, err := time.ParseInLocation(layout, text, p.location)
		if err != nil {
			continue
		}
		return Parsed{
			Instant:  t,
			Date:     t.Format(DateLayout),
			DateTime: t.Format(DateTimeLayout),
		}, nil
	}

	return Parsed{}, fmt.Errorf("%w: %q", common.ErrUnparseableTimestamp, raw)
}

// IsNewer reports whether candidate should replace the current cell value.
// An empty cell is always replaced. Otherwise both sides are parsed with the
// stored layouts and compared as instants; if either fails to parse, any
// difference in the raw text counts as newer.
func (p *Parser) IsNewer(current, candidate string) bool {
	current = CleanCell(current)
	candidate = CleanCell(candidate)

	if current == "" {
		return true
	}

	cur, curErr := p.parseStored(current)
	cand, candErr := p.parseStored(candidate)
	if curErr != nil || candErr != nil {
		return current != candidate
	}

	return cand.After(cur)
}

func (p *Parser) parseStored(value string) (time.Time, error) {
	for _, layout := range p.stored {
		if t, err := time.ParseInLocation(layout, value, p.location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", common.ErrUnparseableTimestamp, value)
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// CleanCell strips markup tags, surrounding whitespace and quote characters
// from a stored cell value.
func CleanCell(value string) string {
	cleaned := tagPattern.ReplaceAllString(value, "")
	cleaned = strings.TrimSpace(cleaned)
	return strings.Trim(cleaned, `'"`)
}
