package classify

import (
	"log/slog"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/phone"
	"github.com/Veraticus/tally/internal/timestamp"
)

// Config wires a Classifier.
type Config struct {
	Rules []CategoryRule
}

// Classifier tags raw messages with every category whose rule matches.
type Classifier struct {
	normalizer *phone.Normalizer
	parser     *timestamp.Parser
	logger     *slog.Logger
	config     Config
}

// New creates a Classifier.
func New(config Config, normalizer *phone.Normalizer, parser *timestamp.Parser, logger *slog.Logger) *Classifier {
	return &Classifier{
		config:     config,
		normalizer: normalizer,
		parser:     parser,
		logger:     common.OrDiscard(logger),
	}
}

// Result is the outcome of classifying a batch.
type Result struct {
	Messages []model.ClassifiedMessage
	// Skipped counts matched messages dropped for an unparseable timestamp.
	Skipped int
}

// Classify returns one ClassifiedMessage per matched category. A message
// matching nothing yields nil. The timestamp is only parsed once something
// matched; a parse failure is returned as an error.
func (c *Classifier) Classify(msg model.RawMessage) ([]model.ClassifiedMessage, error) {
	var matched []model.Category
	for _, rule := range c.config.Rules {
		if rule.Rule.Match(msg.Text) {
			matched = append(matched, rule.Category)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}

	parsed, err := c.parser.Parse(msg.Timestamp)
	if err != nil {
		return nil, err
	}

	sender := c.normalizer.Normalize(msg.Sender)
	out := make([]model.ClassifiedMessage, 0, len(matched))
	for _, category := range matched {
		out = append(out, model.ClassifiedMessage{
			Sender:   sender,
			Category: category,
			Date:     parsed.Date,
			DateTime: parsed.DateTime,
			Instant:  parsed.Instant,
		})
	}

	return out, nil
}

// ClassifyAll classifies a batch in order, skipping and logging messages
// whose timestamp cannot be parsed.
func (c *Classifier) ClassifyAll(msgs []model.RawMessage) Result {
	var result Result
	for i, msg := range msgs {
		classified, err := c.Classify(msg)
		if err != nil {
			c.logger.Warn("skipping message",
				"index", i,
				"sender", msg.Sender,
				"timestamp", msg.Timestamp,
				"error", err)
			result.Skipped++
			continue
		}
		result.Messages = append(result.Messages, classified...)
	}

	c.logger.Debug("classified messages",
		"input", len(msgs),
		"classified", len(result.Messages),
		"skipped", result.Skipped)

	return result
}
