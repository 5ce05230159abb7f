package manager

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"sioux/internal/compose"
	"sioux/internal/eventbus"
	"sioux/internal/gameinfo"
	"sioux/internal/journal"
	"sioux/internal/message"
	"sioux/internal/scheduler"
	"sioux/internal/style"
	logx "sioux/pkg/logx"
)

type fakeJournal struct {
	world    journal.WorldState
	count    int
	countErr error
	filters  []journal.Filter
	hooks    gameinfo.Hooks
	starts   int
	stops    int
}

func (f *fakeJournal) WorldState() journal.WorldState { return f.world }
func (f *fakeJournal) CountEvents(_ context.Context, flt journal.Filter) (int, error) {
	f.filters = append(f.filters, flt)
	return f.count, f.countErr
}
func (f *fakeJournal) SessionCounters(context.Context) (journal.SessionCounters, error) {
	return journal.SessionCounters{SessionsPlayed: 3, TotalTimePlayed: 26*time.Hour + 5*time.Minute}, nil
}
func (f *fakeJournal) OpenObjectives(context.Context) ([]journal.Objective, error) { return nil, nil }
func (f *fakeJournal) Start(_ context.Context, h gameinfo.Hooks) error {
	f.starts++
	f.hooks = h
	return nil
}
func (f *fakeJournal) Stop(context.Context) error {
	f.stops++
	return nil
}

type fakeQueue struct {
	mu  sync.Mutex
	got []message.Notification
}

func (q *fakeQueue) Enqueue(n message.Notification) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.got = append(q.got, n)
	return "id"
}

type fakeScheduler struct {
	mu    sync.Mutex
	specs map[string]string
	jobs  map[string]scheduler.Job
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{specs: map[string]string{}, jobs: map[string]scheduler.Job{}}
}

func (s *fakeScheduler) AddSchedule(name, spec string, _ time.Duration, job scheduler.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specs[name] = spec
	s.jobs[name] = job
	return nil
}

func (s *fakeScheduler) has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.specs[name]
	return ok
}

func (s *fakeScheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.specs[name]
	delete(s.specs, name)
	delete(s.jobs, name)
	return ok
}

func settings() Settings {
	return Settings{
		FilterOnCurrentCommander: true,
		Styles:                   compose.Styles{Text: style.Default, Token: style.Information},
		Events: []EventFormat{
			{Type: "Bounty", Format: "Bounty number {count} for Cmdr {commander}", DisplayDuration: 4},
			{Type: "GamePlayed", Format: "Played {TotalTimePlayed}"},
		},
	}
}

func TestHeader(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"FSDJump":         "FSD Jump",
		"MissionAccepted": "Mission Accepted",
		"Bounty":          "Bounty",
		"USSDrop":         "USS Drop",
		"":                "",
	}
	for in, want := range tests {
		if got := Header(in); got != want {
			t.Fatalf("Header(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLifecycleGreetingAndHourly(t *testing.T) {
	t.Parallel()
	j := &fakeJournal{world: journal.WorldState{Commander: "Jameson", Ship: "anaconda", StarSystem: "Lave"}}
	q := &fakeQueue{}
	sched := newFakeScheduler()
	var progress []int
	m, err := New(settings(), j, q, Options{Scheduler: sched, Progress: func(p int) { progress = append(progress, p) }, Log: logx.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if j.stops != 1 || j.starts != 1 {
		t.Fatalf("starts=%d stops=%d; Start must stop first", j.starts, j.stops)
	}

	j.hooks.OnProgress(50)
	j.hooks.OnReplayed(ctx)
	if len(progress) != 1 || progress[0] != 50 {
		t.Fatalf("progress = %v", progress)
	}
	if len(q.got) != 1 {
		t.Fatalf("queued %d notifications after replay", len(q.got))
	}
	greeting := q.got[0]
	if greeting.Header != GreetingHeader || greeting.DisplayDuration != GreetingDuration {
		t.Fatalf("greeting = %+v", greeting)
	}
	want := "Hello Cmdr Jameson!\nCurrent ship: Anaconda\nCurrent star system: Lave\nSessions played: 3\nTime played: 1 days 2 hours 5 minutes"
	if got := greeting.Text(); got != want {
		t.Fatalf("greeting text = %q", got)
	}
	if greeting.Parts[1].Style != style.Name {
		t.Fatalf("commander style = %q", greeting.Parts[1].Style)
	}

	if sched.specs[hourlyName] != "@hourly" {
		t.Fatalf("hourly spec = %q", sched.specs[hourlyName])
	}
	if err := sched.jobs[hourlyName](ctx); err != nil {
		t.Fatalf("hourly: %v", err)
	}
	update := q.got[1]
	if update.Header != UpdateHeader || update.Text() != "Played 1 days 2 hours 5 minutes" {
		t.Fatalf("update = %+v", update)
	}

	if err := m.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := sched.specs[hourlyName]; ok {
		t.Fatal("hourly update still scheduled after Stop")
	}
}

func TestStopLeavesNoHourlyUpdate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name         string
		waitForTimer bool
	}{
		{name: "stop right after start"},
		{name: "stop after replay", waitForTimer: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			for i := 0; i < 20; i++ {
				reader := journal.NewReader(journal.ReaderConfig{Dir: t.TempDir(), PollInterval: 10 * time.Millisecond}, logx.Nop())
				j := gameinfo.New(reader, nil, eventbus.New(), logx.Nop())
				sched := newFakeScheduler()
				m, err := New(settings(), j, &fakeQueue{}, Options{Scheduler: sched, Log: logx.Nop()})
				if err != nil {
					t.Fatal(err)
				}
				ctx := context.Background()
				if err := m.Start(ctx); err != nil {
					t.Fatalf("Start: %v", err)
				}
				if tc.waitForTimer {
					deadline := time.Now().Add(2 * time.Second)
					for !sched.has(hourlyName) {
						if time.Now().After(deadline) {
							t.Fatal("hourly update never scheduled")
						}
						time.Sleep(5 * time.Millisecond)
					}
				}
				if err := m.Stop(ctx); err != nil {
					t.Fatalf("Stop: %v", err)
				}
				time.Sleep(20 * time.Millisecond)
				if sched.has(hourlyName) {
					t.Fatalf("run %d: hourly update still scheduled after Stop", i)
				}
			}
		})
	}
}

func TestHandleEntry(t *testing.T) {
	t.Parallel()
	j := &fakeJournal{world: journal.WorldState{Commander: "Jameson"}, count: 7}
	q := &fakeQueue{}
	bus := eventbus.New()
	failed, unsub := bus.Subscribe(4, EventComposeFailed)
	defer unsub()
	m, err := New(settings(), j, q, Options{Bus: bus})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	at := time.Date(2017, 10, 1, 12, 0, 0, 0, time.UTC)

	m.HandleEntry(ctx, journal.Entry{Event: journal.NewEvent("Bounty", at, nil), Live: false})
	m.HandleEntry(ctx, journal.Entry{Event: journal.NewEvent("Docked", at, nil), Live: true})
	if len(q.got) != 0 {
		t.Fatalf("replayed or unconfigured events notified: %+v", q.got)
	}

	m.HandleEntry(ctx, journal.Entry{Event: journal.NewEvent("bounty", at, nil), Live: true})
	if len(q.got) != 1 {
		t.Fatalf("queued = %d", len(q.got))
	}
	n := q.got[0]
	if n.Header != "bounty" || n.DisplayDuration != 4 || n.Text() != "Bounty number 7 for Cmdr Jameson" {
		t.Fatalf("notification = %+v", n)
	}
	if len(j.filters) != 1 || j.filters[0].Commander != "Jameson" {
		t.Fatalf("filters = %+v", j.filters)
	}

	j.countErr = errors.New("store offline")
	m.HandleEntry(ctx, journal.Entry{Event: journal.NewEvent("Bounty", at, nil), Live: true})
	if len(q.got) != 1 {
		t.Fatal("failed composition was queued")
	}
	select {
	case e := <-failed:
		if e.Data.(string) != "Bounty" {
			t.Fatalf("failure event = %+v", e)
		}
	default:
		t.Fatal("no compose failure published")
	}
}

func TestApplyReschedulesAndFiltersCommander(t *testing.T) {
	t.Parallel()
	j := &fakeJournal{world: journal.WorldState{Commander: "Jameson"}}
	q := &fakeQueue{}
	sched := newFakeScheduler()
	m, err := New(settings(), j, q, Options{Scheduler: sched})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}
	s := settings()
	s.FilterOnCurrentCommander = false
	s.HourlySchedule = "0 */2 * * *"
	if err := m.Apply(s); err != nil {
		t.Fatal(err)
	}
	if sched.specs[hourlyName] != "0 */2 * * *" {
		t.Fatalf("spec = %q", sched.specs[hourlyName])
	}
	m.HandleEntry(ctx, journal.Entry{Event: journal.NewEvent("Bounty", time.Now(), nil), Live: true})
	if len(j.filters) != 1 || j.filters[0].Commander != "" {
		t.Fatalf("filters = %+v", j.filters)
	}
}

func TestHourlyWithoutGamePlayedFormat(t *testing.T) {
	t.Parallel()
	q := &fakeQueue{}
	m, err := New(Settings{}, &fakeJournal{}, q, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Hourly(context.Background()); err != nil || len(q.got) != 0 {
		t.Fatalf("Hourly = %v, queued %d", err, len(q.got))
	}
	if _, err := New(Settings{}, nil, q, Options{}); err == nil {
		t.Fatal("expected error without journal")
	}
}

func TestTokenReference(t *testing.T) {
	t.Parallel()
	m, err := New(settings(), &fakeJournal{}, &fakeQueue{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	ref := m.TokenReference()
	for _, want := range []string{"OrdinalCount", "MissionList", "StarSystem", "TotalTimePlayed", "Bounty - Bounty", "GamePlayed - Game Played", "Information", "Event specific tokens", "LocalisedName"} {
		if !strings.Contains(ref, want) {
			t.Fatalf("reference misses %q:\n%s", want, ref)
		}
	}
}
