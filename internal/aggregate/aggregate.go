// Package aggregate reduces classified messages to the latest one per
// sender and category.
package aggregate

import "github.com/Veraticus/tally/internal/model"

// Latest keeps, for every (sender, category), the message with the latest
// instant. Equal instants keep the first one seen. Output is ordered by the
// first appearance of each key.
func Latest(classified []model.ClassifiedMessage) []model.AggregatedUpdate {
	index := make(map[model.UpdateKey]int, len(classified))
	updates := make([]model.AggregatedUpdate, 0, len(classified))

	for _, msg := range classified {
		key := msg.Key()
		i, ok := index[key]
		if !ok {
			index[key] = len(updates)
			updates = append(updates, fromMessage(msg))
			continue
		}
		if msg.Instant.After(updates[i].Instant) {
			updates[i] = fromMessage(msg)
		}
	}

	return updates
}

// ByKey indexes updates for lookup during reconciliation.
func ByKey(updates []model.AggregatedUpdate) map[model.UpdateKey]model.AggregatedUpdate {
	out := make(map[model.UpdateKey]model.AggregatedUpdate, len(updates))
	for _, u := range updates {
		if _, ok := out[u.Key()]; !ok {
			out[u.Key()] = u
		}
	}
	return out
}

func fromMessage(msg model.ClassifiedMessage) model.AggregatedUpdate {
	return model.AggregatedUpdate{
		Sender:   msg.Sender,
		Category: msg.Category,
		Date:     msg.Date,
		DateTime: msg.DateTime,
		Instant:  msg.Instant,
	}
}
