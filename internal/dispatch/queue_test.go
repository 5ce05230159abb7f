package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"sioux/internal/eventbus"
	"sioux/internal/message"
	logx "sioux/pkg/logx"
)

type recordingPresenter struct {
	mu      sync.Mutex
	active  int
	overlap bool
	shown   chan Presentation
	fail    map[string]error
}

func newRecordingPresenter() *recordingPresenter {
	return &recordingPresenter{shown: make(chan Presentation, 256), fail: map[string]error{}}
}

func (r *recordingPresenter) Present(_ context.Context, p Presentation) error {
	r.mu.Lock()
	if err := r.fail[p.Header]; err != nil {
		r.mu.Unlock()
		return err
	}
	r.active++
	if r.active > 1 {
		r.overlap = true
	}
	r.mu.Unlock()
	r.shown <- p
	return nil
}

func (r *recordingPresenter) finish(p Presentation) {
	r.mu.Lock()
	r.active--
	r.mu.Unlock()
	p.Ack()
}

func waitShown(t *testing.T, r *recordingPresenter) Presentation {
	t.Helper()
	select {
	case p := <-r.shown:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("nothing presented")
		return Presentation{}
	}
}

func assertQuiet(t *testing.T, r *recordingPresenter, d time.Duration) {
	t.Helper()
	select {
	case p := <-r.shown:
		t.Fatalf("unexpected presentation %q", p.Header)
	case <-time.After(d):
	}
}

func TestTiming(t *testing.T) {
	t.Parallel()
	v, c := Timing(5)
	if v != 6*time.Second || c != 7*time.Second {
		t.Fatalf("Timing(5) = %v, %v", v, c)
	}
}

func TestFIFOWithConcurrentProducers(t *testing.T) {
	t.Parallel()
	rp := newRecordingPresenter()
	q := New(Config{DefaultDisplayDuration: 3}, rp, logx.Nop(), eventbus.New())

	const producers, perProducer = 8, 25
	var (
		orderMu sync.Mutex
		order   []string
		wg      sync.WaitGroup
	)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				header := fmt.Sprintf("p%d-%d", p, i)
				orderMu.Lock()
				order = append(order, header)
				q.Enqueue(message.Notification{Header: header})
				orderMu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer q.Stop(context.Background())

	for i, want := range order {
		p := waitShown(t, rp)
		if p.Header != want {
			t.Fatalf("presentation %d = %q, want %q", i, p.Header, want)
		}
		if p.Visible != 4*time.Second || p.CloseAfter != 5*time.Second {
			t.Fatalf("timing = %v/%v", p.Visible, p.CloseAfter)
		}
		rp.finish(p)
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if rp.overlap {
		t.Fatal("two notifications were on display at once")
	}
}

func TestNextWaitsForAcknowledgement(t *testing.T) {
	t.Parallel()
	rp := newRecordingPresenter()
	q := New(Config{}, rp, logx.Nop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer q.Stop(context.Background())

	q.Enqueue(message.Notification{Header: "first", DisplayDuration: 1})
	q.Enqueue(message.Notification{Header: "second"})

	first := waitShown(t, rp)
	assertQuiet(t, rp, 100*time.Millisecond)

	first.Ack()
	first.Ack() // repeated acks are harmless
	second := waitShown(t, rp)
	if second.Header != "second" {
		t.Fatalf("got %q", second.Header)
	}
	// Default display duration falls back when config leaves it unset.
	if want, _ := Timing(fallbackDisplayDuration); second.Visible != want {
		t.Fatalf("Visible = %v, want %v", second.Visible, want)
	}
	q.Acknowledge()
}

func TestStopWhileAwaitingAck(t *testing.T) {
	t.Parallel()
	rp := newRecordingPresenter()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16, EventAbandoned)
	defer unsub()
	q := New(Config{DefaultDisplayDuration: 60}, rp, logx.Nop(), bus)
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 3; i++ {
		q.Enqueue(message.Notification{Header: fmt.Sprintf("n%d", i)})
	}
	waitShown(t, rp)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	if err := q.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if took := time.Since(start); took > 500*time.Millisecond {
		t.Fatalf("Stop took %v", took)
	}
	if q.Running() {
		t.Fatal("still running after Stop")
	}
	if got := q.Pending(); got != 2 {
		t.Fatalf("Pending = %d, want 2", got)
	}
	assertQuiet(t, rp, 50*time.Millisecond)
	select {
	case e := <-events:
		if e.Data.(Event).Header != "n0" {
			t.Fatalf("abandoned = %+v", e.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("no abandoned event")
	}
}

func TestStartRestartsSingleWorker(t *testing.T) {
	t.Parallel()
	rp := newRecordingPresenter()
	q := New(Config{}, rp, logx.Nop(), nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := q.Start(ctx); err != nil {
			t.Fatalf("Start %d: %v", i, err)
		}
	}
	defer q.Stop(ctx)

	q.Enqueue(message.Notification{Header: "only"})
	q.Enqueue(message.Notification{Header: "next"})
	p := waitShown(t, rp)
	if p.Header != "only" {
		t.Fatalf("got %q", p.Header)
	}
	assertQuiet(t, rp, 100*time.Millisecond)
}

func TestPresentFailureDoesNotStall(t *testing.T) {
	t.Parallel()
	rp := newRecordingPresenter()
	rp.fail["broken"] = errors.New("display gone")
	q := New(Config{}, rp, logx.Nop(), nil)
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer q.Stop(context.Background())

	q.Enqueue(message.Notification{Header: "broken"})
	q.Enqueue(message.Notification{Header: "fine"})
	if p := waitShown(t, rp); p.Header != "fine" {
		t.Fatalf("got %q", p.Header)
	}
}

func TestStartWithoutPresenter(t *testing.T) {
	t.Parallel()
	q := New(Config{}, nil, logx.Nop(), nil)
	if err := q.Start(context.Background()); !errors.Is(err, ErrNoPresenter) {
		t.Fatalf("Start err = %v", err)
	}
	if id := q.Enqueue(message.Notification{Header: "kept"}); id == "" {
		t.Fatal("Enqueue assigned no ID")
	}
	if q.Pending() != 1 {
		t.Fatalf("Pending = %d", q.Pending())
	}
}
