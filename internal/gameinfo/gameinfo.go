// Package gameinfo is the journal collaborator: it replays and tails the
// journal, folds events into the tracker, records them in the event store
// and answers the queries the composer needs.
package gameinfo

import (
	"context"
	"errors"
	"sync"
	"time"

	"sioux/internal/eventbus"
	"sioux/internal/journal"
	rtsup "sioux/internal/runtime/supervisor"
	"sioux/internal/storage"
	logx "sioux/pkg/logx"
)

const (
	EventEntry    = "journal.entry"
	EventReplayed = "journal.replayed"
	EventFailed   = "journal.failed"
)

var ErrNotStarted = errors.New("gameinfo: not started")

// Hooks receive journal activity. Every hook is optional and runs on the
// reader goroutine.
type Hooks struct {
	// OnEntry sees each entry after the tracker and store were updated.
	OnEntry func(ctx context.Context, e journal.Entry)
	// OnProgress reports replay progress in percent.
	OnProgress func(percent int)
	// OnReplayed runs once history has been replayed, before tailing.
	OnReplayed func(ctx context.Context)
}

// EntryStats is published with every EventEntry.
type EntryStats struct {
	Kind string
	Live bool
}

type Service struct {
	log     logx.Logger
	reader  *journal.Reader
	tracker *journal.Tracker
	store   storage.Store
	bus     eventbus.Bus

	mu  sync.Mutex
	sup *rtsup.Supervisor
}

func New(reader *journal.Reader, store storage.Store, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if store == nil {
		store = storage.NewMemory()
	}
	return &Service{
		log:     log,
		reader:  reader,
		tracker: journal.NewTracker(),
		store:   store,
		bus:     bus,
	}
}

// Start launches the reader. A running reader is stopped first and the
// tracked state starts over, since history is replayed again.
func (s *Service) Start(ctx context.Context, hooks Hooks) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.Stop(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader == nil {
		return errors.New("gameinfo: no journal reader")
	}
	s.tracker = journal.NewTracker()
	sup := rtsup.New(ctx, rtsup.WithLogger(s.log), rtsup.WithBus(s.bus))
	s.sup = sup

	reader := s.reader
	sup.Go("journal.reader", func(c context.Context) error {
		err := reader.Run(c,
			func(e journal.Entry) { s.Ingest(c, e, hooks.OnEntry) },
			func(index, total int, file string) {
				s.log.Debug("journal replay", logx.String("file", file), logx.Int("index", index), logx.Int("total", total))
				if hooks.OnProgress != nil && total > 0 {
					hooks.OnProgress(index * 100 / total)
				}
			},
			func() {
				tracker := s.currentTracker()
				tracker.MarkLive()
				if hooks.OnProgress != nil {
					hooks.OnProgress(100)
				}
				s.publish(EventReplayed, nil)
				s.log.Info("journal replayed", logx.Int("open_missions", len(tracker.Objectives())))
				if hooks.OnReplayed != nil {
					hooks.OnReplayed(c)
				}
			},
		)
		if err != nil {
			s.publish(EventFailed, err.Error())
		}
		return err
	})
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	sup.Cancel()
	if err := sup.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Err is the reader's terminal error, if it failed.
func (s *Service) Err() error {
	s.mu.Lock()
	sup := s.sup
	s.mu.Unlock()
	if sup == nil {
		return ErrNotStarted
	}
	return sup.Err()
}

// Close releases the event store.
func (s *Service) Close() error { return s.store.Close() }

// Ingest applies one entry: tracker first, so the stored record carries
// the state the event produced, then the store, then the hook.
func (s *Service) Ingest(ctx context.Context, e journal.Entry, onEntry func(context.Context, journal.Entry)) {
	tracker := s.currentTracker()
	tracker.Apply(e.Event)
	if err := s.store.AppendEvent(ctx, storage.NewRecord(e, tracker.World())); err != nil {
		s.log.Warn("event not recorded", logx.Err(err), logx.String("kind", e.Event.Kind), logx.String("file", e.File), logx.Int("line", e.Line))
	}
	s.publish(EventEntry, EntryStats{Kind: e.Event.Kind, Live: e.Live})
	if onEntry != nil {
		onEntry(ctx, e)
	}
}

func (s *Service) currentTracker() *journal.Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker
}

func (s *Service) WorldState() journal.WorldState { return s.currentTracker().World() }

func (s *Service) CountEvents(ctx context.Context, f journal.Filter) (int, error) {
	return s.store.CountEvents(ctx, f)
}

func (s *Service) SessionCounters(ctx context.Context) (journal.SessionCounters, error) {
	if err := ctx.Err(); err != nil {
		return journal.SessionCounters{}, err
	}
	return s.currentTracker().Counters(), nil
}

func (s *Service) OpenObjectives(ctx context.Context) ([]journal.Objective, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.currentTracker().Objectives(), nil
}

func (s *Service) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: data})
}
