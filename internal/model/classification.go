// Package model defines the core domain models used throughout the application.
package model

import "time"

// PhoneIdentity is a normalized phone number: digits only, international
// convention, no separators and no leading plus. It joins message senders
// to spreadsheet rows.
type PhoneIdentity string

// RawMessage is a chat message as delivered by the collector.
type RawMessage struct {
	Sender    string `yaml:"sender" json:"sender"`
	Timestamp string `yaml:"timestamp" json:"timestamp"`
	Text      string `yaml:"text" json:"text"`
}

// ClassifiedMessage is a RawMessage that matched one category.
// A message matching several categories yields one ClassifiedMessage each.
type ClassifiedMessage struct {
	Instant  time.Time
	Sender   PhoneIdentity
	Category Category
	Date     string // dd/mm/yy
	DateTime string // HH:MM, dd/mm/yy
}

// AggregatedUpdate is the latest ClassifiedMessage for one (sender, category).
// ClassNumber is never taken from the message: the reconciler fills it from
// the class label of the sender's own row.
type AggregatedUpdate struct {
	Instant     time.Time
	ClassNumber *int
	Sender      PhoneIdentity
	Category    Category
	Date        string
	DateTime    string
}

// UpdateKey identifies an AggregatedUpdate.
type UpdateKey struct {
	Sender   PhoneIdentity
	Category Category
}

// Key returns the grouping key of the message.
func (m ClassifiedMessage) Key() UpdateKey {
	return UpdateKey{Sender: m.Sender, Category: m.Category}
}

// Key returns the grouping key of the update.
func (u AggregatedUpdate) Key() UpdateKey {
	return UpdateKey{Sender: u.Sender, Category: u.Category}
}
