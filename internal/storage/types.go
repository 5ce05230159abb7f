package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"sioux/internal/journal"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the historical event service.
type Store interface {
	AppendEvent(ctx context.Context, r Record) error
	CountEvents(ctx context.Context, f journal.Filter) (int, error)
	Close() error
}

// Record is one stored journal event reduced to its filterable dimensions.
type Record struct {
	Source      string    `json:"source" db:"source"`
	Line        int       `json:"line" db:"line"`
	At          time.Time `json:"at" db:"at"`
	Kind        string    `json:"kind" db:"kind"`
	Commander   string    `json:"commander,omitempty" db:"commander"`
	StarSystem  string    `json:"star_system,omitempty" db:"star_system"`
	StationName string    `json:"station_name,omitempty" db:"station_name"`
	Body        string    `json:"body,omitempty" db:"body"`
	BodyType    string    `json:"body_type,omitempty" db:"body_type"`
	Ship        string    `json:"ship,omitempty" db:"ship"`
}

// NewRecord captures e with every dimension resolved against world, the
// state after e was applied.
func NewRecord(e journal.Entry, world journal.WorldState) Record {
	ev := e.Event
	r := Record{
		Source:    e.File,
		Line:      e.Line,
		At:        ev.Timestamp,
		Kind:      ev.Kind,
		Commander: strings.TrimSpace(world.Commander),
	}
	for _, d := range journal.Dimensions {
		r.set(d, journal.DimensionValue(d, ev, world))
	}
	return r
}

func (r *Record) set(d journal.Dimension, v string) {
	switch d {
	case journal.DimStarSystem:
		r.StarSystem = v
	case journal.DimStationName:
		r.StationName = v
	case journal.DimBody:
		r.Body = v
	case journal.DimBodyType:
		r.BodyType = v
	case journal.DimShip:
		r.Ship = v
	}
}

func (r Record) get(d journal.Dimension) string {
	switch d {
	case journal.DimStarSystem:
		return r.StarSystem
	case journal.DimStationName:
		return r.StationName
	case journal.DimBody:
		return r.Body
	case journal.DimBodyType:
		return r.BodyType
	case journal.DimShip:
		return r.Ship
	}
	return ""
}

// Matches applies f with case-insensitive equality; unset criteria match anything.
func (r Record) Matches(f journal.Filter) bool {
	if !strings.EqualFold(r.Kind, f.Kind) {
		return false
	}
	if f.Commander != "" && !strings.EqualFold(r.Commander, f.Commander) {
		return false
	}
	for d, want := range f.Fields {
		if !strings.EqualFold(r.get(d), want) {
			return false
		}
	}
	return true
}

type recordKey struct {
	source string
	line   int
}

func (r Record) key() recordKey { return recordKey{source: r.Source, line: r.Line} }
