package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/tally/internal/classify"
	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Classification defaults.
const (
	DefaultClassCategory = model.CategoryPractice
	DefaultClassLabel    = "שיעור"
)

// ClassifyConfig is the keyword configuration shared by the classifier and
// the reconciler.
type ClassifyConfig struct {
	ClassLabel    *classify.ClassLabel
	ClassCategory model.Category
	Categories    []classify.CategorySpec
	Rules         []classify.CategoryRule
}

// Classifier returns the classify.Config view.
func (c ClassifyConfig) Classifier() classify.Config {
	return classify.Config{Rules: c.Rules}
}

// LoadClassifyConfig reads classify.categories, which may be a YAML list in
// the config file or a YAML/JSON string in TALLY_CLASSIFY_CATEGORIES.
// Missing or malformed keyword sets fall back to the defaults with a warning.
func LoadClassifyConfig(v *viper.Viper, logger *slog.Logger) ClassifyConfig {
	logger = common.OrDiscard(logger)

	cfg := ClassifyConfig{
		ClassCategory: DefaultClassCategory,
		ClassLabel:    classify.NewClassLabel(DefaultClassLabel),
	}
	if c := strings.TrimSpace(v.GetString("classify.class_category")); c != "" {
		cfg.ClassCategory = model.Category(c)
	}
	if l := strings.TrimSpace(v.GetString("classify.class_label")); l != "" {
		cfg.ClassLabel = classify.NewClassLabel(l)
	}

	specs, err := categorySpecs(v)
	if err == nil {
		cfg.Rules, err = classify.BuildRules(specs)
	}
	if err != nil {
		if v.IsSet("classify.categories") {
			logger.Warn("invalid keyword configuration, using defaults", "error", err)
		} else {
			logger.Debug("no keyword configuration, using defaults")
		}
		specs = classify.DefaultCategories()
		cfg.Rules, _ = classify.BuildRules(specs)
	}
	cfg.Categories = specs

	return cfg
}

func categorySpecs(v *viper.Viper) ([]classify.CategorySpec, error) {
	if !v.IsSet("classify.categories") {
		return nil, fmt.Errorf("%w: classify.categories", common.ErrMissingConfig)
	}

	var specs []classify.CategorySpec
	if raw, ok := v.Get("classify.categories").(string); ok {
		if err := yaml.Unmarshal([]byte(raw), &specs); err != nil {
			return nil, fmt.Errorf("%w: classify.categories: %w", common.ErrInvalidConfig, err)
		}
		return specs, nil
	}

	if err := v.UnmarshalKey("classify.categories", &specs); err != nil {
		return nil, fmt.Errorf("%w: classify.categories: %w", common.ErrInvalidConfig, err)
	}
	return specs, nil
}
