// Package stats builds the historical-event filter behind the count tokens.
package stats

import (
	"context"
	"strings"

	"sioux/internal/journal"
	"sioux/internal/message"
)

// Counter answers how many recorded events match a filter.
type Counter interface {
	CountEvents(ctx context.Context, f journal.Filter) (int, error)
}

// BuildFilter always sets the event kind. Commander is set only when
// filterOnCommander is true; each other dimension only when a token names
// it and a value is known, preferring the event's own value.
func BuildFilter(tokenNames []string, ev journal.Event, world journal.WorldState, filterOnCommander bool) journal.Filter {
	f := journal.Filter{Kind: ev.Kind}
	if filterOnCommander {
		f.Commander = strings.TrimSpace(world.Commander)
	}
	for _, d := range journal.Dimensions {
		if !message.HasName(tokenNames, string(d)) {
			continue
		}
		v := journal.DimensionValue(d, ev, world)
		if v == "" {
			continue
		}
		if f.Fields == nil {
			f.Fields = map[journal.Dimension]string{}
		}
		f.Fields[d] = v
	}
	return f
}

// Count builds the filter and asks c for the matching total.
func Count(ctx context.Context, c Counter, tokenNames []string, ev journal.Event, world journal.WorldState, filterOnCommander bool) (int, error) {
	n, err := c.CountEvents(ctx, BuildFilter(tokenNames, ev, world, filterOnCommander))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}
