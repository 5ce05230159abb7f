package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"sioux/internal/config"
	"sioux/internal/dispatch"
	"sioux/internal/eventbus"
	"sioux/internal/gameinfo"
	"sioux/internal/journal"
	"sioux/internal/manager"
	"sioux/internal/observability/metrics"
	"sioux/internal/present"
	rtsup "sioux/internal/runtime/supervisor"
	"sioux/internal/scheduler"
	"sioux/internal/storage"
	logx "sioux/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	journal   *gameinfo.Service
	queue     *dispatch.Queue
	sched     *scheduler.Service
	manager   *manager.Service
	displays  displays
	collector *metrics.Collector
	metrics   *metrics.Service

	// applied is only touched by New and the reload goroutine.
	applied *config.Config
}

type options struct {
	out    io.Writer
	sender present.Sender
}

type Option func(*options)

// WithOutput redirects the terminal display (stdout by default).
func WithOutput(w io.Writer) Option { return func(o *options) { o.out = w } }

// WithTelegramSender replaces the telebot client of the Telegram mirror.
func WithTelegramSender(s present.Sender) Option { return func(o *options) { o.sender = s } }

// New loads cfgPath and wires every component. A configuration problem is
// returned as *config.ValidationError and nothing is opened.
func New(cfgPath string, opts ...Option) (*App, error) {
	o := options{out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	cfgm := config.NewManager(cfgPath, logx.NewConsole("INFO").With(logx.String("comp", "config")))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := check(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(loggingConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	sc := storageConfig(cfg)
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", sc.Driver))

	jc, _ := journalConfig(cfg)
	reader := journal.NewReader(jc, log.With(logx.String("comp", "journal")))
	journalSvc := gameinfo.New(reader, store, bus, log.With(logx.String("comp", "gameinfo")))

	disp, err := buildDisplays(cfg, o, log)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	queue := dispatch.New(queueConfig(cfg), disp.presenter, log.With(logx.String("comp", "dispatch")), bus)
	sched := scheduler.New(schedulerConfig(cfg), log.With(logx.String("comp", "scheduler")))

	mopts := manager.Options{
		Scheduler: sched,
		Bus:       bus,
		Log:       log.With(logx.String("comp", "manager")),
	}
	if disp.terminal != nil {
		mopts.Progress = disp.terminal.Progress
	}
	mgr, err := manager.New(managerSettings(cfg), journalSvc, queue, mopts)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}

	collector := metrics.NewCollector()
	metricsSvc := metrics.New(metricsConfig(cfg), collector, log.With(logx.String("comp", "metrics")))

	return &App{
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		journal:   journalSvc,
		queue:     queue,
		sched:     sched,
		manager:   mgr,
		displays:  disp,
		collector: collector,
		metrics:   metricsSvc,
		applied:   cfg,
	}, nil
}

// Metrics exposes the collector, mainly for tests.
func (a *App) Metrics() *metrics.Collector { return a.collector }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	if err := a.sup.Err(); err != nil {
		return err
	}
	return a.journal.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true), rtsup.WithBus(a.bus))
	run := a.sup.Context()

	// Reloads are committed only when the dry run passes.
	a.cfgm.SetCheck(func(_ context.Context, cfg *config.Config) error { return check(cfg) })

	a.sup.Go0("metrics.collect", func(c context.Context) { a.collector.Run(c, a.bus) })
	a.metrics.Start(run)
	if a.displays.telegram != nil {
		a.displays.telegram.Start(run)
	}
	a.sched.Start(run)
	if err := a.queue.Start(run); err != nil {
		return fmt.Errorf("start dispatch: %w", err)
	}
	if err := a.manager.Start(run); err != nil {
		return fmt.Errorf("start manager: %w", err)
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Trace("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started", logx.String("config", a.cfgm.Path()))
	return nil
}

// applyConfig pushes a committed config into the running components.
func (a *App) applyConfig(ctx context.Context, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(a.applied, newCfg)
	if config.RequiresRestart(a.applied, newCfg) {
		a.log.Warn("journal, storage or display config changed; restart required for changes to take effect")
	}
	a.applied = newCfg

	a.logs.Apply(loggingConfig(newCfg))
	a.sched.Apply(schedulerConfig(newCfg))
	a.queue.Apply(queueConfig(newCfg))
	if err := a.manager.Apply(managerSettings(newCfg)); err != nil {
		a.log.Warn("notification settings not fully applied", logx.Err(err))
	}
	a.metrics.Reconfigure(ctx, metricsConfig(newCfg))

	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	// Each step is bounded so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max <= 0 {
			a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	// Producers first, then the queue, then the sinks.
	step("manager", 2*time.Second, a.manager.Stop)
	step("scheduler", 2*time.Second, a.sched.Stop)
	step("dispatch", 2*time.Second, a.queue.Stop)
	step("telegram", 2*time.Second, func(c context.Context) error {
		if a.displays.telegram == nil {
			return nil
		}
		return a.displays.telegram.Stop(c)
	})
	step("metrics", 1*time.Second, a.metrics.Stop)
	step("storage", 1*time.Second, func(context.Context) error { return a.journal.Close() })
	step("supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped", logx.Int("pending", a.queue.Pending()))
	_ = a.logs.Close()
	return nil
}

// TokenReference lists the format tokens, styles and configured events.
func (a *App) TokenReference() string { return a.manager.TokenReference() }

// Close releases what New opened, for an app that was never started.
func (a *App) Close() error {
	err := a.journal.Close()
	_ = a.logs.Close()
	return err
}
