package config

import (
	"fmt"
	"time"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/phone"
	"github.com/Veraticus/tally/internal/timestamp"
	"github.com/spf13/viper"
)

// LoadPhoneConfig reads the phone.* keys over the numbering defaults.
func LoadPhoneConfig(v *viper.Viper) phone.Config {
	cfg := phone.DefaultConfig()
	if p := v.GetString("phone.country_prefix"); p != "" {
		cfg.CountryPrefix = p
	}
	if v.IsSet("phone.trunk_prefix") {
		cfg.TrunkPrefix = v.GetString("phone.trunk_prefix")
	}
	if lengths := v.GetIntSlice("phone.subscriber_lengths"); len(lengths) > 0 {
		cfg.SubscriberLengths = lengths
	}
	return cfg
}

// TimestampConfig holds the zone and layouts chat timestamps are read with.
type TimestampConfig struct {
	Location *time.Location
	Layouts  []string
}

// Options returns the timestamp.Parser options for this configuration.
func (c TimestampConfig) Options() []timestamp.Option {
	return []timestamp.Option{
		timestamp.WithLocation(c.Location),
		timestamp.WithLayouts(c.Layouts...),
	}
}

// LoadTimestampConfig reads timestamp.timezone and timestamp.layouts.
func LoadTimestampConfig(v *viper.Viper) (TimestampConfig, error) {
	cfg := TimestampConfig{Location: time.Local}

	if tz := v.GetString("timestamp.timezone"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("%w: timestamp.timezone %q: %w", common.ErrInvalidConfig, tz, err)
		}
		cfg.Location = loc
	}
	cfg.Layouts = v.GetStringSlice("timestamp.layouts")

	return cfg, nil
}
