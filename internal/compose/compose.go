// Package compose walks a format string and produces the styled parts of a
// notification body.
package compose

import (
	"context"
	"fmt"

	"sioux/internal/journal"
	"sioux/internal/message"
	"sioux/internal/missions"
	"sioux/internal/resolve"
	"sioux/internal/stats"
	"sioux/internal/style"
)

// Source is the read side of the journal collaborator.
type Source interface {
	WorldState() journal.WorldState
	CountEvents(ctx context.Context, f journal.Filter) (int, error)
	SessionCounters(ctx context.Context) (journal.SessionCounters, error)
	OpenObjectives(ctx context.Context) ([]journal.Objective, error)
}

// Styles are the defaults for literal text and for tokens without an
// explicit annotation.
type Styles struct {
	Text  style.Tag
	Token style.Tag
}

type Composer struct {
	src    Source
	styles Styles
}

func New(src Source, styles Styles) *Composer {
	if styles.Text == "" {
		styles.Text = style.Default
	}
	if styles.Token == "" {
		styles.Token = style.Default
	}
	return &Composer{src: src, styles: styles}
}

func (c *Composer) Styles() Styles { return c.styles }

// Compose resolves every token of format against ev (nil for synthetic
// messages) and a single world-state snapshot. Literal text is kept byte
// for byte. Errors come only from the collaborator queries.
func (c *Composer) Compose(ctx context.Context, ev *journal.Event, filterOnCommander bool, format string) ([]message.Part, error) {
	tokens := message.ParseTokens(format)
	if len(tokens) == 0 {
		if format == "" {
			return nil, nil
		}
		return []message.Part{{Text: format, Style: c.styles.Text}}, nil
	}
	names := message.TokenNames(tokens)
	world := c.src.WorldState()

	providers, err := c.providers(ctx, names, ev, world, filterOnCommander)
	if err != nil {
		return nil, err
	}
	r := resolve.Resolver{Providers: providers, TokenStyle: c.styles.Token}

	parts := make([]message.Part, 0, 2*len(tokens)+1)
	pos := 0
	for _, tok := range tokens {
		if tok.Start > pos {
			parts = append(parts, message.Part{Text: format[pos:tok.Start], Style: c.styles.Text})
		}
		parts = append(parts, r.Resolve(tok))
		pos = tok.End
	}
	if pos < len(format) {
		parts = append(parts, message.Part{Text: format[pos:], Style: c.styles.Text})
	}
	return parts, nil
}

// providers queries each collaborator at most once, and only when a token
// needs it.
func (c *Composer) providers(ctx context.Context, names []string, ev *journal.Event, world journal.WorldState, filterOnCommander bool) ([]resolve.Provider, error) {
	var out []resolve.Provider

	if ev != nil && (message.HasName(names, "count") || message.HasName(names, "ordinalcount")) {
		n, err := stats.Count(ctx, c.src, names, *ev, world, filterOnCommander)
		if err != nil {
			return nil, fmt.Errorf("compose: count: %w", err)
		}
		out = append(out, resolve.Count{N: n})
	}

	if message.HasName(names, "missionlist") {
		objs, err := c.src.OpenObjectives(ctx)
		if err != nil {
			return nil, fmt.Errorf("compose: objectives: %w", err)
		}
		out = append(out, resolve.Missions{Summary: missions.Summarize(names, ev, world, objs)})
	}

	for _, n := range names {
		if !resolve.IsSessionField(n) {
			continue
		}
		counters, err := c.src.SessionCounters(ctx)
		if err != nil {
			return nil, fmt.Errorf("compose: session counters: %w", err)
		}
		out = append(out, resolve.Session{Counters: counters})
		break
	}

	out = append(out, resolve.EventFields{Event: ev}, resolve.WorldFields{World: world})
	return out, nil
}
