package config

// Config is the whole sioux configuration file.
type Config struct {
	Logging       LoggingConfig       `json:"logging"`
	Journal       JournalConfig       `json:"journal"`
	Storage       StorageConfig       `json:"storage"`
	Scheduler     SchedulerConfig     `json:"scheduler"`
	Display       DisplayConfig       `json:"display"`
	Metrics       MetricsConfig       `json:"metrics"`
	Notifications NotificationsConfig `json:"notifications"`
}

type LoggingConfig struct {
	Level   string      `json:"level" validate:"omitempty,loglevel"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// JournalConfig locates the game's journal files. An empty Dir means the
// game's default Saved Games folder.
type JournalConfig struct {
	Dir          string `json:"dir,omitempty"`
	Pattern      string `json:"pattern,omitempty"`
	PollInterval string `json:"poll_interval,omitempty" validate:"omitempty,duration"`
}

// StorageConfig selects the event store.
//
// Example:
//
//	storage: { driver: sqlite, path: ./sioux.db }
type StorageConfig struct {
	Driver      string `json:"driver" validate:"omitempty,oneof=memory file sqlite sqlite3"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty" validate:"omitempty,duration"` // sqlite only
}

type SchedulerConfig struct {
	Timezone string `json:"timezone,omitempty" validate:"omitempty,timezone"`
	// Hourly drives the GamePlayed update (cron, "@hourly", or an interval).
	Hourly string `json:"hourly,omitempty" validate:"omitempty,schedule"`
}

type DisplayConfig struct {
	Terminal TerminalConfig        `json:"terminal"`
	Telegram TelegramDisplayConfig `json:"telegram"`
}

type TerminalConfig struct {
	Enabled bool `json:"enabled"`
	Color   bool `json:"color"`
}

// TelegramDisplayConfig mirrors notifications to a chat.
type TelegramDisplayConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty" validate:"required_if=Enabled true"`
	ChatID     int64  `json:"chat_id,omitempty" validate:"required_if=Enabled true"`
	ThreadID   int    `json:"thread_id,omitempty" validate:"gte=0"`
	RatePerSec int    `json:"rate_per_sec,omitempty" validate:"gte=0,lte=30"`
}

// MetricsConfig controls the optional Prometheus listener. A non-loopback
// addr needs a token or allow_insecure.
type MetricsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty" validate:"omitempty,hostname_port"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty" validate:"omitempty,duration"`
	WriteTimeout  string `json:"write_timeout,omitempty" validate:"omitempty,duration"`
}

type NotificationsConfig struct {
	FilterOnCurrentCommander bool          `json:"filter_on_current_commander"`
	DefaultDisplayDuration   int           `json:"default_display_duration" validate:"gte=1,lte=300"`
	DefaultTextStyle         string        `json:"default_text_style" validate:"required,style"`
	DefaultTokenStyle        string        `json:"default_token_style" validate:"required,style"`
	Events                   []EventConfig `json:"events" validate:"dive"`
}

// EventConfig is the notification for one journal event kind.
type EventConfig struct {
	Type            string `json:"type" validate:"required,alphanum"`
	Format          string `json:"format" validate:"required"`
	DisplayDuration int    `json:"display_duration,omitempty" validate:"gte=0,lte=300"`
	Image           string `json:"image,omitempty"`
}
