// Package classify tags chat messages with categories by keyword rules.
package classify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Veraticus/tally/internal/model"
)

// Rule decides whether message text belongs to a category.
type Rule interface {
	Match(text string) bool
}

// PhraseRule matches when any phrase is a substring of the text.
// Matching is case-sensitive and untokenized, so multi-word phrases must
// appear exactly as configured.
type PhraseRule struct {
	Phrases []string
}

// Match implements Rule.
func (r PhraseRule) Match(text string) bool {
	for _, phrase := range r.Phrases {
		if phrase != "" && strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// RegexRule matches when any pattern matches the text.
type RegexRule struct {
	patterns []*regexp.Regexp
}

// NewRegexRule compiles every pattern. An invalid pattern is an error.
func NewRegexRule(patterns ...string) (*RegexRule, error) {
	r := &RegexRule{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// Match implements Rule.
func (r *RegexRule) Match(text string) bool {
	for _, re := range r.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// CategoryRule binds a Rule to the category it assigns.
type CategoryRule struct {
	Rule     Rule
	Category model.Category
}

// Match modes accepted in configuration.
const (
	MatchSubstring = "substring"
	MatchRegex     = "regex"
)

// CategorySpec is the configured form of one category's keyword set.
type CategorySpec struct {
	Name    string   `yaml:"name" mapstructure:"name"`
	Match   string   `yaml:"match" mapstructure:"match"`
	Phrases []string `yaml:"phrases" mapstructure:"phrases"`
}

// DefaultCategories are used when no keyword configuration is present or it
// cannot be parsed.
func DefaultCategories() []CategorySpec {
	return []CategorySpec{
		{Name: string(model.CategoryPractice), Match: MatchSubstring, Phrases: []string{"עלה תרגול"}},
		{Name: string(model.CategorySent), Match: MatchSubstring, Phrases: []string{"שלחתי", "נשלח"}},
	}
}

// BuildRules turns category specs into ordered rules.
func BuildRules(specs []CategorySpec) ([]CategoryRule, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no categories configured")
	}

	rules := make([]CategoryRule, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, fmt.Errorf("category without a name")
		}
		if seen[name] {
			return nil, fmt.Errorf("category %q configured twice", name)
		}
		seen[name] = true

		if len(spec.Phrases) == 0 {
			return nil, fmt.Errorf("category %q has no phrases", name)
		}

		var rule Rule
		switch spec.Match {
		case MatchSubstring, "":
			rule = PhraseRule{Phrases: spec.Phrases}
		case MatchRegex:
			re, err := NewRegexRule(spec.Phrases...)
			if err != nil {
				return nil, fmt.Errorf("category %q: %w", name, err)
			}
			rule = re
		default:
			return nil, fmt.Errorf("category %q: unknown match mode %q", name, spec.Match)
		}

		rules = append(rules, CategoryRule{Category: model.Category(name), Rule: rule})
	}

	return rules, nil
}

// ClassLabel extracts the class number following a label word,
// e.g. "שיעור 3" with label "שיעור".
type ClassLabel struct {
	re *regexp.Regexp
}

// NewClassLabel builds the `<label>\s*(\d+)` extractor. The label is quoted.
func NewClassLabel(label string) *ClassLabel {
	return &ClassLabel{re: regexp.MustCompile(regexp.QuoteMeta(label) + `\s*(\d+)`)}
}

// Extract returns the first class number in text, or nil.
func (c *ClassLabel) Extract(text string) *int {
	if c == nil {
		return nil
	}
	m := c.re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}
