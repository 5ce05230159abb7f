package journal

import (
	"strings"
	"time"
)

// WorldState is a point-in-time copy of the commander's context.
// Ship holds the game identifier; lookups render its description.
type WorldState struct {
	Commander   string
	Ship        string
	StarSystem  string
	StationName string
	Body        string
	BodyType    string
}

// WorldFields lists the token names a WorldState answers, in display order.
var WorldFields = []string{"Commander", "Ship", "StarSystem", "StationName", "Body", "BodyType"}

// Raw returns the stored identifier for a field name (any case).
func (w WorldState) Raw(name string) (string, bool) {
	switch strings.ToLower(name) {
	case "commander":
		return w.Commander, true
	case "ship":
		return w.Ship, true
	case "starsystem":
		return w.StarSystem, true
	case "stationname":
		return w.StationName, true
	case "body":
		return w.Body, true
	case "bodytype":
		return w.BodyType, true
	}
	return "", false
}

// Lookup renders a field for display. Empty values do not count as found.
func (w WorldState) Lookup(name string) (string, bool) {
	v, ok := w.Raw(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	if kind, isEnum := EnumField(name); isEnum {
		v = Describe(kind, v)
	}
	return v, true
}

// SessionCounters are lifetime and current-session play statistics.
// CurrentSessionPlayed is nil when no session is open.
type SessionCounters struct {
	SessionsPlayed       int
	TotalTimePlayed      time.Duration
	CurrentSessionPlayed *time.Duration
}

// SessionFields lists the token names answered by SessionCounters.
var SessionFields = []string{"SessionsPlayed", "TotalTimePlayed", "CurrentSessionPlayed"}

// Objective is an open mission.
type Objective struct {
	ID                 int64
	Name               string
	DestinationSystem  string
	DestinationStation string
	Expiry             time.Time
}

// Dimension is a filterable property of a recorded event.
type Dimension string

const (
	DimStarSystem  Dimension = "starsystem"
	DimStationName Dimension = "stationname"
	DimBody        Dimension = "body"
	DimBodyType    Dimension = "bodytype"
	DimShip        Dimension = "ship"
)

// Dimensions are the optional statistics filter dimensions.
var Dimensions = []Dimension{DimStarSystem, DimStationName, DimBody, DimBodyType, DimShip}

// Filter selects recorded events. Kind is always set; an empty Commander
// and absent Fields match anything.
type Filter struct {
	Kind      string
	Commander string
	Fields    map[Dimension]string
}

// DimensionValue resolves d for a recorded event: the event's own raw value
// first, then the world state.
func DimensionValue(d Dimension, ev Event, world WorldState) string {
	if v := strings.TrimSpace(ev.String(string(d))); v != "" {
		return v
	}
	v, _ := world.Raw(string(d))
	return strings.TrimSpace(v)
}
