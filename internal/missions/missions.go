// Package missions renders the open-mission summary behind {MissionList}.
package missions

import (
	"fmt"
	"sort"
	"strings"

	"sioux/internal/journal"
	"sioux/internal/message"
)

const (
	None           = "None"
	unknownSystem  = "(Unknown Star System)"
	unknownStation = "(Unknown Station)"
)

// Summarize filters objectives by the star system and station in effect
// when those tokens appear in the same format, and renders one line per
// group. Lines are separated by "\n" with no trailing newline.
func Summarize(tokenNames []string, ev *journal.Event, world journal.WorldState, objectives []journal.Objective) string {
	system := effective(ev, "StarSystem", world.StarSystem)
	station := effective(ev, "StationName", world.StationName)
	bySystem := message.HasName(tokenNames, "starsystem")
	byStation := message.HasName(tokenNames, "stationname")

	kept := make([]journal.Objective, 0, len(objectives))
	for _, o := range objectives {
		if bySystem && !sameName(o.DestinationSystem, system) {
			continue
		}
		if byStation && !sameName(o.DestinationStation, station) {
			continue
		}
		kept = append(kept, o)
	}

	switch {
	case len(kept) == 0:
		return None
	case !bySystem && !byStation:
		return grouped(kept, func(o journal.Objective) string { return o.DestinationSystem }, unknownSystem)
	case bySystem:
		return grouped(kept, func(o journal.Objective) string { return o.DestinationStation }, unknownStation)
	default:
		return fmt.Sprintf("%d mission(s) at this station)", len(kept))
	}
}

func effective(ev *journal.Event, field, fallback string) string {
	if ev != nil {
		if v := strings.TrimSpace(ev.String(field)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(fallback)
}

// sameName never matches a blank destination.
func sameName(dest, want string) bool {
	dest = strings.TrimSpace(dest)
	return dest != "" && strings.EqualFold(dest, want)
}

func grouped(objs []journal.Objective, key func(journal.Objective) string, placeholder string) string {
	counts := map[string]int{}
	for _, o := range objs {
		k := strings.TrimSpace(key(o))
		if k == "" {
			k = placeholder
		}
		counts[k]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("%s (%d)", k, counts[k])
	}
	return strings.Join(lines, "\n")
}
