package config

import (
	"reflect"
	"strings"

	logx "sioux/pkg/logx"
)

// SummarizeChange lists the sections that differ between two configs and
// log-safe attributes for them. Tokens are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		attrs   []logx.Field
	)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Journal != newCfg.Journal {
		changed = append(changed, "journal")
		attrs = append(attrs, logx.String("journal.dir", newCfg.Journal.Dir))
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
			logx.String("scheduler.hourly", newCfg.Scheduler.Hourly),
		)
	}
	if oldCfg.Display != newCfg.Display {
		changed = append(changed, "display")
		attrs = append(attrs,
			logx.Bool("display.terminal", newCfg.Display.Terminal.Enabled),
			logx.Bool("display.telegram", newCfg.Display.Telegram.Enabled),
			logx.Bool("display.telegram_token_set", strings.TrimSpace(newCfg.Display.Telegram.Token) != ""),
		)
	}
	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		attrs = append(attrs,
			logx.Bool("metrics.enabled", newCfg.Metrics.Enabled),
			logx.String("metrics.addr", newCfg.Metrics.Addr),
			logx.Bool("metrics.token_set", strings.TrimSpace(newCfg.Metrics.Token) != ""),
		)
	}
	if !reflect.DeepEqual(oldCfg.Notifications, newCfg.Notifications) {
		changed = append(changed, "notifications")
		attrs = append(attrs,
			logx.Int("notifications.events", len(newCfg.Notifications.Events)),
			logx.Int("notifications.default_display_duration", newCfg.Notifications.DefaultDisplayDuration),
		)
	}
	return changed, attrs
}

// RequiresRestart reports whether the change touches a section that is only
// read at startup: the journal, the store or the displays.
func RequiresRestart(oldCfg, newCfg *Config) bool {
	if oldCfg == nil || newCfg == nil {
		return false
	}
	return oldCfg.Journal != newCfg.Journal || oldCfg.Storage != newCfg.Storage ||
		oldCfg.Display != newCfg.Display
}
