package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "sioux/pkg/logx"
)

type Config struct {
	Timezone string // IANA TZ, e.g. "Europe/London"; empty means Local
}

// Job runs on the cron goroutine. Errors are logged.
type Job func(ctx context.Context) error

type scheduleDef struct {
	name    string
	spec    string
	timeout time.Duration
	job     Job
	entry   cron.EntryID
}

// Service registers named wall-clock schedules on a robfig/cron instance.
// Definitions survive Stop and are re-registered by the next Start.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	cfg    Config
	loc    *time.Location
	parser cron.Parser

	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	defs   map[string]*scheduleDef
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		defs:   map[string]*scheduleDef{},
	}
}

// Apply switches timezone, restarting cron when it is running.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg
	if s.c != nil && oldTZ != strings.TrimSpace(cfg.Timezone) {
		s.stopCronLocked()
		s.startCronLocked()
		s.log.Info("scheduler restarted", logx.String("tz", s.loc.String()))
	}
}

func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c != nil
}

func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.startCronLocked()
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.defs)))
}

// Stop halts cron and waits for running jobs, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.c == nil {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	done := s.stopCronLocked()
	s.mu.Unlock()

	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddSchedule parses schedule (see ParseSchedule) and upserts it by name.
func (s *Service) AddSchedule(name, schedule string, timeout time.Duration, job Job) error {
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}
	return s.AddCron(name, ps.CronExpr(), timeout, job)
}

// AddCron upserts a cron schedule by name. The expression is validated even
// when the scheduler is not running.
func (s *Service) AddCron(name, spec string, timeout time.Duration, job Job) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name required")
	}
	if job == nil {
		return errors.New("job required")
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("schedule %q: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	d := &scheduleDef{name: name, spec: spec, timeout: timeout, job: job}
	s.defs[name] = d
	if s.c != nil {
		if err := s.registerLocked(d); err != nil {
			return err
		}
		s.log.Debug("schedule registered", logx.String("name", name), logx.String("spec", spec), logx.Time("next", s.c.Entry(d.entry).Next))
	}
	return nil
}

// Remove drops a schedule. It reports whether one existed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(name)
}

// Next returns the next activation of name, zero when unknown or stopped.
func (s *Service) Next(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[name]
	if !ok || s.c == nil || d.entry == 0 {
		return time.Time{}
	}
	return s.c.Entry(d.entry).Next
}

func (s *Service) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.defs))
	for name := range s.defs {
		out = append(out, name)
	}
	return out
}

func (s *Service) removeLocked(name string) bool {
	d, ok := s.defs[name]
	if !ok {
		return false
	}
	if s.c != nil && d.entry != 0 {
		s.c.Remove(d.entry)
	}
	delete(s.defs, name)
	return true
}

func (s *Service) startCronLocked() {
	s.loc = s.loadLocationLocked()
	s.c = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})),
	)
	for _, d := range s.defs {
		if err := s.registerLocked(d); err != nil {
			s.log.Error("schedule register failed", logx.String("name", d.name), logx.String("spec", d.spec), logx.Err(err))
		}
	}
	s.c.Start()
}

func (s *Service) stopCronLocked() context.Context {
	done := s.c.Stop()
	s.c = nil
	for _, d := range s.defs {
		d.entry = 0
	}
	return done
}

func (s *Service) registerLocked(d *scheduleDef) error {
	ctx := s.ctx
	id, err := s.c.AddFunc(d.spec, func() { s.exec(ctx, d) })
	if err != nil {
		return err
	}
	d.entry = id
	return nil
}

func (s *Service) exec(ctx context.Context, d *scheduleDef) {
	if ctx.Err() != nil {
		return
	}
	runCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := d.job(runCtx); err != nil {
		s.log.Warn("schedule failed", logx.String("name", d.name), logx.Err(err))
		return
	}
	s.log.Debug("schedule ok", logx.String("name", d.name), logx.Duration("took", time.Since(start)))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
