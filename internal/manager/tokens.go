package manager

import (
	"fmt"
	"sort"
	"strings"

	"sioux/internal/journal"
	"sioux/internal/style"
)

// TokenReference describes the tokens a format string may use and the
// configured event kinds.
func (m *Service) TokenReference() string {
	m.mu.Lock()
	events := append([]EventFormat(nil), m.settings.Events...)
	m.mu.Unlock()

	var b strings.Builder
	section := func(title string) {
		rule := strings.Repeat("-", len(title))
		fmt.Fprintf(&b, "%s\n%s\n%s\n", rule, title, rule)
	}

	section("Tokens available for all events")
	b.WriteString("Count        (example output: 1, 2, 3, etc.)\n")
	b.WriteString("OrdinalCount (example output: 1st, 2nd, 3rd, etc.)\n")
	b.WriteString("MissionList  (open missions grouped by destination)\n")
	for _, name := range journal.WorldFields {
		b.WriteString(name + "\n")
	}
	for _, name := range journal.SessionFields {
		b.WriteString(name + "\n")
	}
	b.WriteString("\n")

	section("Event specific tokens")
	b.WriteString("Any field of the journal event (e.g. StarSystem, LocalisedName)\n\n")

	section("Styles ({token:Style})")
	b.WriteString(strings.Join(style.Names(), ", ") + "\n\n")

	section("Configured events")
	sort.SliceStable(events, func(i, j int) bool { return events[i].Type < events[j].Type })
	for _, ef := range events {
		fmt.Fprintf(&b, "%s - %s\n", ef.Type, Header(ef.Type))
	}
	return b.String()
}
