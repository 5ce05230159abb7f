package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"sioux/internal/eventbus"
	"sioux/internal/message"
	rtsup "sioux/internal/runtime/supervisor"
	logx "sioux/pkg/logx"
)

const fallbackDisplayDuration = 5

var ErrNoPresenter = errors.New("dispatch: no presenter")

// Presenter is the display boundary. Present hands the notification over
// and returns; the display later calls p.Ack.
type Presenter interface {
	Present(ctx context.Context, p Presentation) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, p Presentation) error

func (f PresenterFunc) Present(ctx context.Context, p Presentation) error { return f(ctx, p) }

// Queue accepts notifications from any goroutine and shows them one at a
// time: the next notification is not presented until the current one is
// acknowledged or the queue is stopped.
type Queue struct {
	lifecycle sync.Mutex // serializes Start/Stop

	mu        sync.Mutex
	log       logx.Logger
	bus       eventbus.Bus
	presenter Presenter
	cfg       Config

	items   []message.Notification
	signal  chan struct{}
	sup     *rtsup.Supervisor
	current *inflight
}

type inflight struct {
	id   string
	once sync.Once
	done chan struct{}
}

func (f *inflight) ack() { f.once.Do(func() { close(f.done) }) }

func New(cfg Config, presenter Presenter, log logx.Logger, bus eventbus.Bus) *Queue {
	if log.IsZero() {
		log = logx.Nop()
	}
	q := &Queue{
		log:       log,
		bus:       bus,
		presenter: presenter,
		signal:    make(chan struct{}, 1),
	}
	q.applyLocked(cfg)
	return q
}

func (q *Queue) Apply(cfg Config) {
	q.mu.Lock()
	q.applyLocked(cfg)
	q.mu.Unlock()
}

func (q *Queue) applyLocked(cfg Config) {
	if cfg.DefaultDisplayDuration <= 0 {
		cfg.DefaultDisplayDuration = fallbackDisplayDuration
	}
	q.cfg = cfg
}

// Enqueue never blocks. The notification gets an ID if it has none.
func (q *Queue) Enqueue(n message.Notification) string {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	q.mu.Lock()
	q.items = append(q.items, n)
	pending := len(q.items)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	q.publish(EventQueued, n, pending, nil)
	return n.ID
}

// Pending is the number of notifications waiting to be presented.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sup != nil
}

// Start launches the worker. A running worker is stopped first so only one
// ever drains the queue.
func (q *Queue) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	q.lifecycle.Lock()
	defer q.lifecycle.Unlock()

	if err := q.stopLocked(ctx); err != nil {
		return err
	}

	q.mu.Lock()
	if q.presenter == nil {
		q.mu.Unlock()
		return ErrNoPresenter
	}
	sup := rtsup.New(ctx, rtsup.WithLogger(q.log), rtsup.WithBus(q.bus))
	q.sup = sup
	q.mu.Unlock()

	sup.Go0("dispatch.worker", q.run)
	q.log.Debug("dispatch worker started")
	return nil
}

// Stop cancels the wait for the current acknowledgement and joins the
// worker. Notifications still queued stay queued for the next Start.
func (q *Queue) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	q.lifecycle.Lock()
	defer q.lifecycle.Unlock()
	return q.stopLocked(ctx)
}

func (q *Queue) stopLocked(ctx context.Context) error {
	q.mu.Lock()
	sup := q.sup
	q.mu.Unlock()
	if sup == nil {
		return nil
	}
	sup.Cancel()
	if err := sup.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	q.mu.Lock()
	q.sup = nil
	q.mu.Unlock()
	q.log.Debug("dispatch worker stopped", logx.Int("pending", q.Pending()))
	return nil
}

// Acknowledge releases the notification currently on display.
func (q *Queue) Acknowledge() {
	q.mu.Lock()
	cur := q.current
	q.mu.Unlock()
	if cur != nil {
		cur.ack()
	}
}

func (q *Queue) run(ctx context.Context) {
	for {
		n, ok := q.next(ctx)
		if !ok {
			return
		}
		q.show(ctx, n)
	}
}

// next blocks until a notification is available or ctx is done.
func (q *Queue) next(ctx context.Context) (message.Notification, bool) {
	for {
		if ctx.Err() != nil {
			return message.Notification{}, false
		}
		q.mu.Lock()
		if len(q.items) > 0 {
			n := q.items[0]
			q.items[0] = message.Notification{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return n, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return message.Notification{}, false
		case <-q.signal:
		}
	}
}

func (q *Queue) show(ctx context.Context, n message.Notification) {
	q.mu.Lock()
	secs := n.DisplayDuration
	if secs <= 0 {
		secs = q.cfg.DefaultDisplayDuration
	}
	presenter := q.presenter
	f := &inflight{id: n.ID, done: make(chan struct{})}
	q.current = f
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		if q.current == f {
			q.current = nil
		}
		q.mu.Unlock()
	}()

	visible, closeAfter := Timing(secs)
	p := Presentation{
		ID:         n.ID,
		Header:     n.Header,
		Parts:      n.Parts,
		Visible:    visible,
		CloseAfter: closeAfter,
		Ack:        f.ack,
	}
	started := time.Now()
	if err := presenter.Present(ctx, p); err != nil {
		q.log.Warn("presentation failed", logx.String("id", n.ID), logx.String("header", n.Header), logx.Err(err))
		q.publish(EventFailed, n, q.Pending(), err)
		return
	}
	q.publish(EventPresented, n, q.Pending(), nil)

	select {
	case <-f.done:
		q.log.Debug("notification acknowledged", logx.String("id", n.ID), logx.Duration("shown", time.Since(started)))
		q.publish(EventAcknowledged, n, q.Pending(), nil)
	case <-ctx.Done():
		q.publish(EventAbandoned, n, q.Pending(), ctx.Err())
	}
}

func (q *Queue) publish(typ string, n message.Notification, pending int, err error) {
	if q.bus == nil {
		return
	}
	now := time.Now()
	e := Event{ID: n.ID, Header: n.Header, Pending: pending, At: now}
	if err != nil {
		e.Error = err.Error()
	}
	q.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: e})
}
