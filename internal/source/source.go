// Package source loads the raw message batch produced by the chat collector.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"gopkg.in/yaml.v3"
)

// record is one entry of a batch file. Either Sender and Timestamp are set,
// or Meta carries the collector's "[HH:MM, D/M/YYYY] sender: " prefix.
type record struct {
	Sender    string `yaml:"sender"`
	Timestamp string `yaml:"timestamp"`
	Meta      string `yaml:"meta"`
	Text      string `yaml:"text"`
}

// FileSource reads a YAML or JSON list of messages from a file, or from
// Stdin when Path is "-".
type FileSource struct {
	Stdin  io.Reader
	Logger *slog.Logger
	Path   string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	return &FileSource{Path: path, Stdin: os.Stdin, Logger: logger}
}

// Messages implements service.MessageSource.
func (s *FileSource) Messages(ctx context.Context) ([]model.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var r io.Reader
	if s.Path == "-" {
		r = s.Stdin
	} else {
		f, err := os.Open(s.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open messages: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	return Decode(r, s.Logger)
}

// Decode parses a message batch. Entries whose sender or timestamp cannot be
// recovered are dropped with a warning; an empty result is ErrNoMessages.
func Decode(r io.Reader, logger *slog.Logger) ([]model.RawMessage, error) {
	logger = common.OrDiscard(logger)

	var records []record
	if err := yaml.NewDecoder(r).Decode(&records); err != nil {
		if err == io.EOF {
			return nil, common.ErrNoMessages
		}
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	msgs := make([]model.RawMessage, 0, len(records))
	for i, rec := range records {
		msg := model.RawMessage{Sender: rec.Sender, Timestamp: rec.Timestamp, Text: rec.Text}
		if rec.Meta != "" && (msg.Sender == "" || msg.Timestamp == "") {
			ts, sender, ok := ParseMeta(rec.Meta)
			if !ok {
				logger.Warn("dropping message with unreadable meta", "index", i, "meta", rec.Meta)
				continue
			}
			msg.Timestamp, msg.Sender = ts, sender
		}
		if strings.TrimSpace(msg.Sender) == "" || strings.TrimSpace(msg.Timestamp) == "" {
			logger.Warn("dropping message without sender or timestamp", "index", i)
			continue
		}
		msgs = append(msgs, msg)
	}

	if len(msgs) == 0 {
		return nil, common.ErrNoMessages
	}
	return msgs, nil
}

var metaPattern = regexp.MustCompile(`^\s*\[([^\]]+)\]\s*(.*?):?\s*$`)

// ParseMeta splits "[20:15, 25/08/2025] +972 50-123-4567: " into its
// timestamp and sender.
func ParseMeta(meta string) (timestamp, sender string, ok bool) {
	m := metaPattern.FindStringSubmatch(meta)
	if m == nil {
		return "", "", false
	}
	timestamp = strings.TrimSpace(m[1])
	sender = strings.TrimSpace(m[2])
	if timestamp == "" || sender == "" {
		return "", "", false
	}
	return timestamp, sender, true
}
