// Package manager turns journal activity into notifications: live events
// with a configured format, the startup greeting and the hourly update.
package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"sioux/internal/compose"
	"sioux/internal/eventbus"
	"sioux/internal/gameinfo"
	"sioux/internal/journal"
	"sioux/internal/message"
	"sioux/internal/scheduler"
	logx "sioux/pkg/logx"
)

const (
	GreetingHeader   = "SIOUX Online"
	UpdateHeader     = "SIOUX Update"
	GreetingDuration = 15

	// GamePlayedKind is the synthetic event behind the hourly update.
	GamePlayedKind = "GamePlayed"

	GreetingFormat = "Hello Cmdr {commander:Name}!\nCurrent ship: {ship}\nCurrent star system: {starSystem}\nSessions played: {SessionsPlayed}\nTime played: {TotalTimePlayed}"

	hourlyName = "sioux.update"

	EventComposeFailed = "manager.compose_failed"
	EventNotified      = "manager.notified"
)

// EventFormat is the notification configured for one event kind.
type EventFormat struct {
	Type            string
	Format          string
	DisplayDuration int // seconds; zero uses the queue default
}

type Settings struct {
	FilterOnCurrentCommander bool
	Styles                   compose.Styles
	Events                   []EventFormat
	// HourlySchedule drives the GamePlayed update; empty means "@hourly".
	HourlySchedule string
}

// Journal is the collaborator the manager reads from and drives.
type Journal interface {
	compose.Source
	Start(ctx context.Context, hooks gameinfo.Hooks) error
	Stop(ctx context.Context) error
}

type Scheduler interface {
	AddSchedule(name, schedule string, timeout time.Duration, job scheduler.Job) error
	Remove(name string) bool
}

type Enqueuer interface {
	Enqueue(n message.Notification) string
}

type Service struct {
	log      logx.Logger
	bus      eventbus.Bus
	journal  Journal
	sched    Scheduler
	queue    Enqueuer
	progress func(percent int)

	mu       sync.Mutex
	settings Settings
	events   map[string]EventFormat
	composer *compose.Composer
	running  bool
}

// Options carries the optional collaborators.
type Options struct {
	Scheduler Scheduler
	Bus       eventbus.Bus
	// Progress receives replay progress in percent.
	Progress func(percent int)
	Log      logx.Logger
}

func New(settings Settings, j Journal, queue Enqueuer, opts Options) (*Service, error) {
	if j == nil {
		return nil, errors.New("manager: journal required")
	}
	if queue == nil {
		return nil, errors.New("manager: queue required")
	}
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Service{
		log:      log,
		bus:      opts.Bus,
		journal:  j,
		sched:    opts.Scheduler,
		queue:    queue,
		progress: opts.Progress,
	}
	m.applyLocked(settings)
	return m, nil
}

// Apply swaps the notification settings. A running service re-registers
// the hourly update so a changed schedule takes effect.
func (m *Service) Apply(settings Settings) error {
	m.mu.Lock()
	m.applyLocked(settings)
	running := m.running
	m.mu.Unlock()
	if running {
		return m.registerHourly()
	}
	return nil
}

func (m *Service) applyLocked(settings Settings) {
	if strings.TrimSpace(settings.HourlySchedule) == "" {
		settings.HourlySchedule = "@hourly"
	}
	m.settings = settings
	m.events = make(map[string]EventFormat, len(settings.Events))
	for _, ef := range settings.Events {
		key := strings.ToLower(strings.TrimSpace(ef.Type))
		if _, dup := m.events[key]; !dup {
			m.events[key] = ef
		}
	}
	m.composer = compose.New(m.journal, settings.Styles)
}

// Start stops any previous run, then starts the journal. The greeting and
// the hourly update follow once history has been replayed.
func (m *Service) Start(ctx context.Context) error {
	if err := m.Stop(ctx); err != nil {
		return err
	}
	err := m.journal.Start(ctx, gameinfo.Hooks{
		OnEntry:    m.HandleEntry,
		OnProgress: m.progress,
		OnReplayed: m.online,
	})
	if err != nil {
		return fmt.Errorf("manager: start journal: %w", err)
	}
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()
	return nil
}

// Stop joins the journal reader before dropping the hourly update, so a
// replay finishing concurrently cannot register it again.
func (m *Service) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	err := m.journal.Stop(ctx)
	if m.sched != nil {
		m.sched.Remove(hourlyName)
	}
	return err
}

func (m *Service) online(ctx context.Context) {
	if err := m.Greet(ctx); err != nil {
		m.log.Warn("greeting skipped", logx.Err(err))
	}
	if ctx.Err() != nil {
		return
	}
	if err := m.registerHourly(); err != nil {
		m.log.Error("hourly update not scheduled", logx.Err(err))
	}
}

// Greet queues the startup greeting.
func (m *Service) Greet(ctx context.Context) error {
	return m.notify(ctx, GreetingHeader, nil, false, GreetingFormat, GreetingDuration)
}

func (m *Service) registerHourly() error {
	if m.sched == nil {
		return nil
	}
	m.mu.Lock()
	spec := m.settings.HourlySchedule
	m.mu.Unlock()
	return m.sched.AddSchedule(hourlyName, spec, 0, m.Hourly)
}

// Hourly composes the GamePlayed format, when one is configured.
func (m *Service) Hourly(ctx context.Context) error {
	ef, ok := m.lookup(GamePlayedKind)
	if !ok {
		return nil
	}
	ev := journal.NewEvent(GamePlayedKind, time.Now().UTC(), nil)
	return m.notify(ctx, UpdateHeader, &ev, m.filterOnCommander(), ef.Format, ef.DisplayDuration)
}

// HandleEntry notifies about live events that have a configured format.
// Replayed entries only feed state.
func (m *Service) HandleEntry(ctx context.Context, e journal.Entry) {
	if !e.Live {
		return
	}
	ef, ok := m.lookup(e.Event.Kind)
	if !ok {
		return
	}
	ev := e.Event
	if err := m.notify(ctx, Header(ev.Kind), &ev, m.filterOnCommander(), ef.Format, ef.DisplayDuration); err != nil {
		m.log.Warn("notification skipped", logx.String("kind", ev.Kind), logx.Err(err))
	}
}

func (m *Service) notify(ctx context.Context, header string, ev *journal.Event, filterOnCommander bool, format string, duration int) error {
	m.mu.Lock()
	composer := m.composer
	m.mu.Unlock()

	parts, err := composer.Compose(ctx, ev, filterOnCommander, format)
	if err != nil {
		m.publish(EventComposeFailed, header)
		return err
	}
	id := m.queue.Enqueue(message.Notification{Header: header, Parts: parts, DisplayDuration: duration})
	m.log.Debug("notification queued", logx.String("id", id), logx.String("header", header))
	m.publish(EventNotified, header)
	return nil
}

func (m *Service) lookup(kind string) (EventFormat, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ef, ok := m.events[strings.ToLower(kind)]
	return ef, ok
}

func (m *Service) filterOnCommander() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.FilterOnCurrentCommander
}

func (m *Service) publish(typ, header string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: header})
}

// Header splits an event kind into words: "FSDJump" becomes "FSD Jump".
func Header(kind string) string {
	rs := []rune(kind)
	var b strings.Builder
	for i, r := range rs {
		if i > 0 && unicode.IsUpper(r) {
			prev := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
