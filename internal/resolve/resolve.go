// Package resolve turns one token into a styled message part by asking an
// ordered chain of providers.
package resolve

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"sioux/internal/journal"
	"sioux/internal/message"
	"sioux/internal/style"
)

// Provider answers token names it knows. Names arrive lower-case.
type Provider interface {
	Lookup(name string) (string, bool)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(name string) (string, bool)

func (f ProviderFunc) Lookup(name string) (string, bool) { return f(name) }

// Resolver consults Providers in order; the first hit wins.
type Resolver struct {
	Providers  []Provider
	TokenStyle style.Tag
}

// Unresolved is the visible text for a token no provider answered.
func Unresolved(name string) string {
	return fmt.Sprintf("(no value found for %s)", strings.ToLower(name))
}

// Resolve never fails: unknown tokens become an error-styled marker.
func (r Resolver) Resolve(tok message.Token) message.Part {
	key := tok.Key()
	for _, p := range r.Providers {
		if p == nil {
			continue
		}
		if v, ok := p.Lookup(key); ok {
			return message.Part{Text: v, Style: r.styleFor(tok)}
		}
	}
	return message.Part{Text: Unresolved(key), Style: style.Error}
}

func (r Resolver) styleFor(tok message.Token) style.Tag {
	if tok.Style != "" {
		if t, ok := style.Lookup(tok.Style); ok {
			return t
		}
	}
	if r.TokenStyle == "" {
		return style.Default
	}
	return r.TokenStyle
}

// Ordinal renders n with its English suffix: 1st, 2nd, 3rd, 4th, 11th, 21st.
func Ordinal(n int) string {
	return strconv.Itoa(n) + ordinalSuffix(n)
}

func ordinalSuffix(n int) string {
	if n < 0 {
		n = -n
	}
	if m := n % 100; m >= 11 && m <= 19 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

// Count answers {Count} and {OrdinalCount}.
type Count struct {
	N int
}

func (c Count) Lookup(name string) (string, bool) {
	switch name {
	case "count":
		return strconv.Itoa(c.N), true
	case "ordinalcount":
		return Ordinal(c.N), true
	}
	return "", false
}

// Missions answers {MissionList} with a precomputed summary.
type Missions struct {
	Summary string
}

func (m Missions) Lookup(name string) (string, bool) {
	if name == "missionlist" {
		return m.Summary, true
	}
	return "", false
}

// Session answers the play-time counters.
type Session struct {
	Counters journal.SessionCounters
}

func (s Session) Lookup(name string) (string, bool) {
	switch name {
	case "sessionsplayed":
		return strconv.Itoa(s.Counters.SessionsPlayed), true
	case "totaltimeplayed":
		d := s.Counters.TotalTimePlayed
		return FormatPlayTime(&d), true
	case "currentsessionplayed":
		return FormatPlayTime(s.Counters.CurrentSessionPlayed), true
	}
	return "", false
}

// IsSessionField reports whether name is answered by Session.
func IsSessionField(name string) bool {
	switch strings.ToLower(name) {
	case "sessionsplayed", "totaltimeplayed", "currentsessionplayed":
		return true
	}
	return false
}

// FormatPlayTime renders "{d} days {h} hours {m} minutes". A nil duration
// leaves the numbers blank.
func FormatPlayTime(d *time.Duration) string {
	if d == nil {
		return " days  hours  minutes"
	}
	total := int64(*d / time.Minute)
	days := total / (24 * 60)
	hours := total / 60 % 24
	mins := total % 60
	return fmt.Sprintf("%d days %d hours %d minutes", days, hours, mins)
}

// EventFields answers any non-empty field of the triggering event.
type EventFields struct {
	Event *journal.Event
}

func (e EventFields) Lookup(name string) (string, bool) {
	if e.Event == nil {
		return "", false
	}
	v := e.Event.Text(name)
	return v, v != ""
}

// WorldFields answers the world-state snapshot.
type WorldFields struct {
	World journal.WorldState
}

func (w WorldFields) Lookup(name string) (string, bool) { return w.World.Lookup(name) }
