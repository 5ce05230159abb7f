package journal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrMissingKind = errors.New("journal: event has no kind")

// Event is one journal line: a kind, a timestamp and a bag of fields.
type Event struct {
	Kind      string
	Timestamp time.Time
	Fields    map[string]any
}

// ParseEvent decodes one JSON journal line.
func ParseEvent(line []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Event{}, fmt.Errorf("journal: decode: %w", err)
	}
	ev := Event{Fields: fields}
	ev.Kind, _ = fields["event"].(string)
	if strings.TrimSpace(ev.Kind) == "" {
		return Event{}, ErrMissingKind
	}
	if ts, ok := fields["timestamp"].(string); ok && ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return Event{}, fmt.Errorf("journal: timestamp %q: %w", ts, err)
		}
		ev.Timestamp = t
	}
	return ev, nil
}

// NewEvent builds a synthetic event (for example the hourly GamePlayed tick).
func NewEvent(kind string, at time.Time, fields map[string]any) Event {
	if fields == nil {
		fields = map[string]any{}
	}
	return Event{Kind: kind, Timestamp: at, Fields: fields}
}

// Raw returns the field value whose name equals name ignoring case.
func (e Event) Raw(name string) (any, bool) {
	if v, ok := e.Fields[name]; ok {
		return v, true
	}
	for k, v := range e.Fields {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// String returns the raw identifier of a scalar field, or "".
func (e Event) String(name string) string {
	v, ok := e.Raw(name)
	if !ok {
		return ""
	}
	return scalar(v)
}

// Text renders a field for display: the game's localised variant when
// present, then a registered enum description, then the raw identifier.
// Nested objects and arrays render empty.
func (e Event) Text(name string) string {
	if loc := strings.TrimSpace(e.String(name + "_Localised")); loc != "" {
		return loc
	}
	raw := e.String(name)
	if raw == "" {
		return ""
	}
	if kind, ok := EnumField(name); ok {
		return Describe(kind, raw)
	}
	return raw
}

func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return ""
	}
}

// Int64 returns a numeric field; ok is false when absent or not a number.
func (e Event) Int64(name string) (int64, bool) {
	v, ok := e.Raw(name)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case float64:
		return int64(x), true
	case int:
		return int64(x), true
	case int64:
		return x, true
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// Bool returns a boolean field, false when absent.
func (e Event) Bool(name string) bool {
	v, _ := e.Raw(name)
	b, _ := v.(bool)
	return b
}

// Entry is an event delivered by the Reader.
type Entry struct {
	Event Event
	Live  bool
	File  string
	Line  int
}
