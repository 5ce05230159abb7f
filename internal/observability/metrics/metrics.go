// Package metrics exports notification and journal counters to Prometheus
// and serves them, together with pprof, on a small HTTP listener.
package metrics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sioux/internal/dispatch"
	"sioux/internal/eventbus"
	"sioux/internal/gameinfo"
	"sioux/internal/manager"
	rtsup "sioux/internal/runtime/supervisor"
)

// Collector turns bus events into Prometheus series.
type Collector struct {
	reg *prometheus.Registry

	notifications  *prometheus.CounterVec
	pending        prometheus.Gauge
	composeFailed  prometheus.Counter
	journalEntries *prometheus.CounterVec
	replays        prometheus.Counter
	incidents      *prometheus.CounterVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Collector{
		reg: reg,
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sioux_notifications_total",
			Help: "Notifications by dispatch stage.",
		}, []string{"stage"}),
		pending: f.NewGauge(prometheus.GaugeOpts{
			Name: "sioux_queue_pending",
			Help: "Notifications waiting to be presented.",
		}),
		composeFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "sioux_compose_failures_total",
			Help: "Notifications dropped because a query failed.",
		}),
		journalEntries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sioux_journal_entries_total",
			Help: "Journal entries read.",
		}, []string{"live"}),
		replays: f.NewCounter(prometheus.CounterOpts{
			Name: "sioux_journal_replays_total",
			Help: "Completed journal replays.",
		}),
		incidents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sioux_goroutine_incidents_total",
			Help: "Background goroutine panics, restarts and give-ups.",
		}, []string{"kind", "name"}),
	}
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Run consumes bus events until ctx is done.
func (c *Collector) Run(ctx context.Context, bus eventbus.Bus) {
	events, unsub := bus.Subscribe(256, "dispatch.", "journal.", "manager.", "supervisor.")
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			c.Observe(e)
		}
	}
}

// Observe updates the series for one event.
func (c *Collector) Observe(e eventbus.Event) {
	switch e.Type {
	case dispatch.EventQueued, dispatch.EventPresented, dispatch.EventAcknowledged, dispatch.EventFailed, dispatch.EventAbandoned:
		c.notifications.WithLabelValues(e.Type[len("dispatch."):]).Inc()
		if d, ok := e.Data.(dispatch.Event); ok {
			c.pending.Set(float64(d.Pending))
		}
	case manager.EventComposeFailed:
		c.composeFailed.Inc()
	case gameinfo.EventEntry:
		if s, ok := e.Data.(gameinfo.EntryStats); ok {
			c.journalEntries.WithLabelValues(strconv.FormatBool(s.Live)).Inc()
		}
	case gameinfo.EventReplayed:
		c.replays.Inc()
	case rtsup.EventPanic, rtsup.EventRestart, rtsup.EventGaveUp:
		if in, ok := e.Data.(rtsup.Incident); ok {
			c.incidents.WithLabelValues(e.Type[len("supervisor."):], in.Name).Inc()
		}
	}
}
