// Package phone canonicalizes phone-number text into a comparable identity.
package phone

import (
	"strings"

	"github.com/Veraticus/tally/internal/model"
)

// Config controls how bare local numbers are promoted to international form.
type Config struct {
	CountryPrefix     string
	TrunkPrefix       string
	SubscriberLengths []int
}

// DefaultConfig returns the Israeli numbering defaults.
func DefaultConfig() Config {
	return Config{
		CountryPrefix:     "972",
		TrunkPrefix:       "0",
		SubscriberLengths: []int{9, 10},
	}
}

// Normalizer turns phone text into a model.PhoneIdentity.
type Normalizer struct {
	config Config
}

// NewNormalizer creates a Normalizer. Empty fields fall back to DefaultConfig.
func NewNormalizer(config Config) *Normalizer {
	def := DefaultConfig()
	if config.CountryPrefix == "" {
		config.CountryPrefix = def.CountryPrefix
	}
	if config.TrunkPrefix == "" {
		config.TrunkPrefix = def.TrunkPrefix
	}
	if len(config.SubscriberLengths) == 0 {
		config.SubscriberLengths = def.SubscriberLengths
	}
	return &Normalizer{config: config}
}

// Normalize strips every non-digit and resolves the country prefix.
// Input that fits no rule comes back as bare digits; it will simply not
// match any row.
func (n *Normalizer) Normalize(raw string) model.PhoneIdentity {
	digits := Digits(raw)
	if digits == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(digits, n.config.CountryPrefix):
		return model.PhoneIdentity(digits)
	case strings.HasPrefix(digits, n.config.TrunkPrefix):
		return model.PhoneIdentity(n.config.CountryPrefix + digits[len(n.config.TrunkPrefix):])
	}

	for _, l := range n.config.SubscriberLengths {
		if len(digits) == l {
			return model.PhoneIdentity(n.config.CountryPrefix + digits)
		}
	}

	return model.PhoneIdentity(digits)
}

// Digits returns only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
