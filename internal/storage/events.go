package storage

import (
	"sort"
	"sputnikchat/backend/internal/models"
	"time"
)

// TrimEvents keeps the limit newest events across both event kinds.
func TrimEvents(events *models.RoomEvents, limit int) {
	if limit < 0 {
		limit = 0
	}
	total := len(events.Messages) + len(events.Systems)
	if total <= limit {
		return
	}

	stamps := make([]time.Time, 0, total)
	for _, m := range events.Messages {
		stamps = append(stamps, m.CreatedAt)
	}
	for _, e := range events.Systems {
		stamps = append(stamps, e.CreatedAt)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].After(stamps[j]) })

	if limit == 0 {
		events.Messages = events.Messages[:0]
		events.Systems = events.Systems[:0]
		return
	}
	cutoff := stamps[limit-1]

	// Events strictly newer than the cutoff always stay; ties at the cutoff
	// fill the remaining slots in message-then-system order.
	remaining := limit
	for _, ts := range stamps[:limit] {
		if ts.After(cutoff) {
			remaining--
		}
	}

	keepMessages := events.Messages[:0]
	for _, m := range events.Messages {
		switch {
		case m.CreatedAt.After(cutoff):
			keepMessages = append(keepMessages, m)
		case m.CreatedAt.Equal(cutoff) && remaining > 0:
			keepMessages = append(keepMessages, m)
			remaining--
		}
	}
	keepSystems := events.Systems[:0]
	for _, e := range events.Systems {
		switch {
		case e.CreatedAt.After(cutoff):
			keepSystems = append(keepSystems, e)
		case e.CreatedAt.Equal(cutoff) && remaining > 0:
			keepSystems = append(keepSystems, e)
			remaining--
		}
	}
	events.Messages = keepMessages
	events.Systems = keepSystems
}
