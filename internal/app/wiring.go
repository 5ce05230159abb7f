package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sioux/internal/compose"
	"sioux/internal/config"
	"sioux/internal/dispatch"
	"sioux/internal/journal"
	"sioux/internal/manager"
	"sioux/internal/observability/metrics"
	"sioux/internal/present"
	"sioux/internal/scheduler"
	"sioux/internal/storage"
	"sioux/internal/style"
	logx "sioux/pkg/logx"
)

// defaultJournalDir is where the game writes its journal on Windows,
// relative to the user's home.
var defaultJournalDir = filepath.Join("Saved Games", "Frontier Developments", "Elite Dangerous")

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func storageConfig(cfg *config.Config) storage.Config {
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: cfg.Durations().StorageBusy,
	}
}

func journalConfig(cfg *config.Config) (journal.ReaderConfig, error) {
	dir := strings.TrimSpace(cfg.Journal.Dir)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return journal.ReaderConfig{}, fmt.Errorf("journal.dir: no default without a home directory: %w", err)
		}
		dir = filepath.Join(home, defaultJournalDir)
	}
	return journal.ReaderConfig{
		Dir:          dir,
		Pattern:      strings.TrimSpace(cfg.Journal.Pattern),
		PollInterval: cfg.Durations().JournalPoll,
	}, nil
}

func queueConfig(cfg *config.Config) dispatch.Config {
	return dispatch.Config{DefaultDisplayDuration: cfg.Notifications.DefaultDisplayDuration}
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{Timezone: cfg.Scheduler.Timezone}
}

func metricsConfig(cfg *config.Config) metrics.Config {
	d := cfg.Durations()
	return metrics.Config{
		Enabled:       cfg.Metrics.Enabled,
		Addr:          strings.TrimSpace(cfg.Metrics.Addr),
		Token:         strings.TrimSpace(cfg.Metrics.Token),
		AllowInsecure: cfg.Metrics.AllowInsecure,
		Pprof:         cfg.Metrics.Pprof,
		ReadTimeout:   d.MetricsRead,
		WriteTimeout:  d.MetricsWrite,
	}
}

// managerSettings maps the notifications section. Style names were
// checked by validation; an unknown one falls back to the default style.
func managerSettings(cfg *config.Config) manager.Settings {
	n := cfg.Notifications
	text, ok := style.Lookup(n.DefaultTextStyle)
	if !ok {
		text = style.Default
	}
	token, ok := style.Lookup(n.DefaultTokenStyle)
	if !ok {
		token = style.Default
	}
	events := make([]manager.EventFormat, 0, len(n.Events))
	for _, e := range n.Events {
		events = append(events, manager.EventFormat{
			Type:            strings.TrimSpace(e.Type),
			Format:          e.Format,
			DisplayDuration: e.DisplayDuration,
		})
	}
	return manager.Settings{
		FilterOnCurrentCommander: n.FilterOnCurrentCommander,
		Styles:                   compose.Styles{Text: text, Token: token},
		Events:                   events,
		HourlySchedule:           cfg.Scheduler.Hourly,
	}
}

// displays builds the presenter chain: the terminal (or an auto-closing
// sink when it is off) owns acknowledgement, Telegram only mirrors.
type displays struct {
	presenter dispatch.Presenter
	terminal  *present.Terminal
	telegram  *present.Telegram
}

func buildDisplays(cfg *config.Config, o options, log logx.Logger) (displays, error) {
	var d displays
	var primary dispatch.Presenter = present.Closer{}
	if cfg.Display.Terminal.Enabled {
		d.terminal = present.NewTerminal(o.out, cfg.Display.Terminal.Color)
		primary = d.terminal
	}

	var mirrors []dispatch.Presenter
	if tg := cfg.Display.Telegram; tg.Enabled {
		sender := o.sender
		if sender == nil {
			s, err := present.NewBotSender(tg.Token)
			if err != nil {
				return displays{}, fmt.Errorf("display.telegram: %w", err)
			}
			sender = s
		}
		d.telegram = present.NewTelegram(present.TelegramConfig{
			Token:      tg.Token,
			ChatID:     tg.ChatID,
			ThreadID:   tg.ThreadID,
			RatePerSec: tg.RatePerSec,
		}, sender, log.With(logx.String("comp", "telegram")))
		mirrors = append(mirrors, d.telegram)
	}

	if len(mirrors) == 0 {
		d.presenter = primary
		return d, nil
	}
	d.presenter = present.Fanout{Primary: primary, Mirrors: mirrors, Log: log.With(logx.String("comp", "display"))}
	return d, nil
}

// check is the dry run a reloaded config must pass before it is
// committed.
func check(cfg *config.Config) error {
	if _, err := journalConfig(cfg); err != nil {
		return err
	}
	if _, err := scheduler.ParseSchedule(cfg.Scheduler.Hourly); err != nil {
		return fmt.Errorf("scheduler.hourly: %w", err)
	}
	return nil
}
