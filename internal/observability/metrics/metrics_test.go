package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"sioux/internal/dispatch"
	"sioux/internal/eventbus"
	"sioux/internal/gameinfo"
	"sioux/internal/manager"
	rtsup "sioux/internal/runtime/supervisor"
	logx "sioux/pkg/logx"
)

func TestCollectorObserve(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	c.Observe(eventbus.Event{Type: dispatch.EventQueued, Data: dispatch.Event{Pending: 3}})
	c.Observe(eventbus.Event{Type: dispatch.EventQueued, Data: dispatch.Event{Pending: 4}})
	c.Observe(eventbus.Event{Type: dispatch.EventPresented, Data: dispatch.Event{Pending: 2}})
	c.Observe(eventbus.Event{Type: manager.EventComposeFailed, Data: "Bounty"})
	c.Observe(eventbus.Event{Type: gameinfo.EventEntry, Data: gameinfo.EntryStats{Kind: "Bounty", Live: true}})
	c.Observe(eventbus.Event{Type: gameinfo.EventEntry, Data: gameinfo.EntryStats{Kind: "Bounty"}})
	c.Observe(eventbus.Event{Type: gameinfo.EventReplayed})
	c.Observe(eventbus.Event{Type: rtsup.EventRestart, Data: rtsup.Incident{Name: "journal.reader", Restarts: 1}})
	c.Observe(eventbus.Event{Type: "unrelated"})

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"queued", testutil.ToFloat64(c.notifications.WithLabelValues("queued")), 2},
		{"presented", testutil.ToFloat64(c.notifications.WithLabelValues("presented")), 1},
		{"pending", testutil.ToFloat64(c.pending), 2},
		{"compose failures", testutil.ToFloat64(c.composeFailed), 1},
		{"live entries", testutil.ToFloat64(c.journalEntries.WithLabelValues("true")), 1},
		{"replayed entries", testutil.ToFloat64(c.journalEntries.WithLabelValues("false")), 1},
		{"replays", testutil.ToFloat64(c.replays), 1},
		{"restarts", testutil.ToFloat64(c.incidents.WithLabelValues("restart", "journal.reader")), 1},
	}
	for _, tc := range checks {
		if tc.got != tc.want {
			t.Fatalf("%s = %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}

func TestCollectorRunFromBus(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, bus)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(c.replays) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event never observed")
		}
		bus.Publish(eventbus.Event{Type: gameinfo.EventReplayed})
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestHandlerAuth(t *testing.T) {
	t.Parallel()
	s := New(Config{}, nil, logx.Nop())
	h := s.Handler(Config{Token: "secret"})

	tests := []struct {
		name   string
		target string
		header string
		status int
	}{
		{name: "no token", target: "/metrics", status: http.StatusUnauthorized},
		{name: "bad query token", target: "/metrics?token=nope", status: http.StatusUnauthorized},
		{name: "query token", target: "/metrics?token=secret", status: http.StatusOK},
		{name: "bearer", target: "/healthz", header: "Bearer secret", status: http.StatusOK},
		{name: "pprof off", target: "/debug/pprof/?token=secret", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.target, nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.status {
			t.Fatalf("%s: status = %d, want %d", tt.name, rec.Code, tt.status)
		}
	}
}

func TestServiceServesMetrics(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	c.Observe(eventbus.Event{Type: dispatch.EventAcknowledged, Data: dispatch.Event{}})
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, c, logx.Nop())
	s.Start(context.Background())
	defer s.Stop(context.Background())

	var addr string
	deadline := time.Now().Add(2 * time.Second)
	for addr = s.Addr(); addr == ""; addr = s.Addr() {
		if time.Now().After(deadline) {
			t.Fatal("listener never bound")
		}
		time.Sleep(10 * time.Millisecond)
	}
	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `sioux_notifications_total{stage="acknowledged"} 1`) {
		t.Fatalf("metrics body missing counter:\n%s", body)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestRefusesPublicBindWithoutToken(t *testing.T) {
	t.Parallel()
	if isLoopbackAddr("0.0.0.0:9464") || isLoopbackAddr(":9464") {
		t.Fatal("wildcard treated as loopback")
	}
	if !isLoopbackAddr("localhost:9464") || !isLoopbackAddr("[::1]:1") {
		t.Fatal("loopback not recognised")
	}
}
