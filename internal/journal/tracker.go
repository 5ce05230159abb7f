package journal

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Tracker folds journal events into world state, session counters and the
// open mission list. Safe for concurrent use; readers get copies.
type Tracker struct {
	mu sync.RWMutex

	world    WorldState
	missions map[int64]Objective

	sessions     int
	closedPlay   time.Duration
	sessionStart time.Time // zero when no session is open
	lastSeen     time.Time
	live         bool

	now func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{missions: map[int64]Objective{}, now: time.Now}
}

// Apply updates the tracked state from one event.
func (t *Tracker) Apply(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.lastSeen
	if !ev.Timestamp.IsZero() && ev.Timestamp.After(t.lastSeen) {
		t.lastSeen = ev.Timestamp
	}

	switch ev.Kind {
	case "Commander", "NewCommander":
		t.setIf(&t.world.Commander, ev.String("Name"))
	case "LoadGame":
		t.closeSession(crashEnd(prev, ev.Timestamp))
		t.setIf(&t.world.Commander, ev.String("Commander"))
		t.setIf(&t.world.Ship, ev.String("Ship"))
		t.sessions++
		t.sessionStart = ev.Timestamp
	case "Shutdown":
		t.closeSession(ev.Timestamp)
	case "Location", "CarrierJump":
		t.world.StarSystem = ev.String("StarSystem")
		t.world.Body = ev.String("Body")
		t.world.BodyType = ev.String("BodyType")
		if ev.Bool("Docked") {
			t.world.StationName = ev.String("StationName")
		} else {
			t.world.StationName = ""
		}
	case "FSDJump":
		t.world.StarSystem = ev.String("StarSystem")
		t.world.Body = ev.String("Body")
		t.world.BodyType = ev.String("BodyType")
		t.world.StationName = ""
	case "Docked":
		t.setIf(&t.world.StarSystem, ev.String("StarSystem"))
		t.world.StationName = ev.String("StationName")
	case "Undocked":
		t.world.StationName = ""
	case "ApproachBody":
		t.setIf(&t.world.StarSystem, ev.String("StarSystem"))
		t.world.Body = ev.String("Body")
		t.world.BodyType = "Planet"
	case "LeaveBody":
		t.world.Body = ""
		t.world.BodyType = ""
	case "Loadout":
		t.setIf(&t.world.Ship, ev.String("Ship"))
	case "ShipyardSwap", "ShipyardNew":
		t.setIf(&t.world.Ship, ev.String("ShipType"))
	case "MissionAccepted":
		id, ok := ev.Int64("MissionID")
		if !ok {
			return
		}
		obj := Objective{
			ID:                 id,
			Name:               ev.Text("LocalisedName"),
			DestinationSystem:  ev.String("DestinationSystem"),
			DestinationStation: ev.String("DestinationStation"),
		}
		if obj.Name == "" {
			obj.Name = ev.Text("Name")
		}
		if exp := ev.String("Expiry"); exp != "" {
			obj.Expiry, _ = time.Parse(time.RFC3339, exp)
		}
		t.missions[id] = obj
	case "MissionRedirected":
		id, ok := ev.Int64("MissionID")
		if !ok {
			return
		}
		if obj, found := t.missions[id]; found {
			obj.DestinationSystem = ev.String("NewDestinationSystem")
			obj.DestinationStation = ev.String("NewDestinationStation")
			t.missions[id] = obj
		}
	case "MissionCompleted", "MissionAbandoned", "MissionFailed":
		if id, ok := ev.Int64("MissionID"); ok {
			delete(t.missions, id)
		}
	}
}

// crashEnd is where a session left open without Shutdown ends: the newest
// timestamp seen before the next LoadGame.
func crashEnd(prev, next time.Time) time.Time {
	if prev.IsZero() || prev.After(next) {
		return next
	}
	return prev
}

func (t *Tracker) closeSession(end time.Time) {
	if t.sessionStart.IsZero() {
		return
	}
	if end.After(t.sessionStart) {
		t.closedPlay += end.Sub(t.sessionStart)
	}
	t.sessionStart = time.Time{}
}

func (t *Tracker) setIf(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

// MarkLive switches open-session accounting from the last replayed
// timestamp to the wall clock.
func (t *Tracker) MarkLive() {
	t.mu.Lock()
	t.live = true
	t.mu.Unlock()
}

// World returns a copy of the current world state.
func (t *Tracker) World() WorldState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.world
}

// Counters returns the session statistics at this moment.
func (t *Tracker) Counters() SessionCounters {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c := SessionCounters{SessionsPlayed: t.sessions, TotalTimePlayed: t.closedPlay}
	if t.sessionStart.IsZero() {
		return c
	}
	end := t.lastSeen
	if t.live {
		if now := t.now(); now.After(end) {
			end = now
		}
	}
	cur := time.Duration(0)
	if end.After(t.sessionStart) {
		cur = end.Sub(t.sessionStart)
	}
	c.TotalTimePlayed += cur
	c.CurrentSessionPlayed = &cur
	return c
}

// Objectives returns the open missions ordered by ID.
func (t *Tracker) Objectives() []Objective {
	t.mu.RLock()
	out := make([]Objective, 0, len(t.missions))
	for _, o := range t.missions {
		out = append(out, o)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
