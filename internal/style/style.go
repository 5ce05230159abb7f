// Package style names the display styles a notification segment can carry.
package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Tag identifies a display style.
type Tag string

const (
	Default      Tag = "Default"
	Information  Tag = "Information"
	NotAvailable Tag = "NotAvailable"
	Name         Tag = "Name"
	Warning      Tag = "Warning"
	Headline     Tag = "Headline"
	Friendly     Tag = "Friendly"

	// Error marks unresolved tokens. It cannot be selected from a format string.
	Error Tag = "Error"
)

var selectable = []Tag{Default, Information, NotAvailable, Name, Warning, Headline, Friendly}

var palette = map[Tag]string{
	Default:      "#FF7000",
	Information:  "#70B0F0",
	NotAvailable: "#FFCF00",
	Name:         "#F6CBFF",
	Warning:      "#FF0000",
	Headline:     "#FFFFFF",
	Friendly:     "#46CB30",
	Error:        "#FF4500",
}

// Lookup resolves a style annotation case-insensitively.
func Lookup(name string) (Tag, bool) {
	name = strings.TrimSpace(name)
	for _, t := range selectable {
		if strings.EqualFold(string(t), name) {
			return t, true
		}
	}
	return "", false
}

// Names lists the selectable style names.
func Names() []string {
	out := make([]string, len(selectable))
	for i, t := range selectable {
		out[i] = string(t)
	}
	return out
}

// Hex returns the RGB color for t, falling back to Default.
func (t Tag) Hex() string {
	if c, ok := palette[t]; ok {
		return c
	}
	return palette[Default]
}

func (t Tag) Color() lipgloss.Color { return lipgloss.Color(t.Hex()) }

// Render returns a lipgloss style for t. Headline and Error segments are bold.
func (t Tag) Render() lipgloss.Style {
	s := lipgloss.NewStyle().Foreground(t.Color())
	if t == Headline || t == Error {
		s = s.Bold(true)
	}
	return s
}
