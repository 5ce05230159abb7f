// Package message holds format-string tokens and the composed notification
// they resolve into.
package message

import (
	"regexp"
	"strings"

	"sioux/internal/style"
)

var tokenRe = regexp.MustCompile(`\{([A-Za-z]+)(?::([A-Za-z]+))?\}`)

// Token is one placeholder occurrence in a format string.
// Start and End delimit the braces, End exclusive.
type Token struct {
	Name  string
	Style string
	Start int
	End   int
}

// Key is the case-folded name used for lookups.
func (t Token) Key() string { return strings.ToLower(t.Name) }

// ParseTokens returns every placeholder in occurrence order. Anything that
// is not a well-formed placeholder stays literal text.
func ParseTokens(format string) []Token {
	idx := tokenRe.FindAllStringSubmatchIndex(format, -1)
	if len(idx) == 0 {
		return nil
	}
	out := make([]Token, 0, len(idx))
	for _, m := range idx {
		tok := Token{Name: format[m[2]:m[3]], Start: m[0], End: m[1]}
		if m[4] >= 0 {
			tok.Style = format[m[4]:m[5]]
		}
		out = append(out, tok)
	}
	return out
}

// TokenNames returns the distinct lower-case names in first-occurrence order.
func TokenNames(tokens []Token) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		k := t.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// HasName reports whether name (any case) is among names.
func HasName(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Part is one styled run of text.
type Part struct {
	Text  string
	Style style.Tag
}

// Notification is a composed message ready for the dispatch queue.
type Notification struct {
	ID              string
	Header          string
	Parts           []Part
	DisplayDuration int // seconds; zero means the configured default
}

// Text concatenates the parts without styling.
func (n Notification) Text() string {
	var b strings.Builder
	for _, p := range n.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}
