package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "sioux/pkg/logx"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if len(cfg.Notifications.Events) == 0 || cfg.Scheduler.Hourly != "@hourly" {
		t.Fatalf("default = %+v", cfg)
	}
	if d := cfg.Durations(); d.JournalPoll != time.Second || d.StorageBusy != 5*time.Second {
		t.Fatalf("durations = %+v", d)
	}
}

func TestEnsureFileThenLoad(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"sioux.yaml", "sioux.json"} {
		path := filepath.Join(t.TempDir(), "nested", name)
		created, err := EnsureFile(path)
		if err != nil || !created {
			t.Fatalf("%s: EnsureFile = %v, %v", name, created, err)
		}
		if created, _ := EnsureFile(path); created {
			t.Fatalf("%s: existing file overwritten", name)
		}
		cfg, err := NewManager(path, logx.Nop()).Load()
		if err != nil {
			t.Fatalf("%s: Load: %v", name, err)
		}
		if cfg.Notifications.DefaultTokenStyle != "Information" {
			t.Fatalf("%s: token style = %q", name, cfg.Notifications.DefaultTokenStyle)
		}
	}
}

func TestValidateListsEveryProblem(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Logging.Level = "LOUD"
	cfg.Storage = StorageConfig{Driver: "sqlite"}
	cfg.Scheduler.Timezone = "Mars/Olympus"
	cfg.Display.Telegram = TelegramDisplayConfig{Enabled: true}
	cfg.Notifications.DefaultTextStyle = "Plaid"
	cfg.Notifications.Events = append(cfg.Notifications.Events,
		EventConfig{Type: "fsdjump", Format: "again"},
		EventConfig{Type: "", Format: ""},
	)

	err := Validate(cfg)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v", err)
	}
	want := []string{
		"logging.level",
		"storage.path",
		"scheduler.timezone",
		"display.telegram.token",
		"display.telegram.chat_id",
		"notifications.default_text_style",
		"already configured",
		".type: required",
		".format: required",
	}
	msg := verr.Error()
	for _, w := range want {
		if !strings.Contains(msg, w) {
			t.Fatalf("error misses %q:\n%s", w, msg)
		}
	}
	if len(verr.Problems) != len(want) {
		t.Fatalf("problems = %d, want %d:\n%s", len(verr.Problems), len(want), msg)
	}
}

func TestDecodeStrict(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		path string
		data string
	}{
		{name: "unknown yaml key", path: "c.yaml", data: "logging:\n  colour: true\n"},
		{name: "unknown json key", path: "c.json", data: `{"nope": 1}`},
		{name: "trailing json", path: "c.json", data: `{} {}`},
		{name: "broken yaml", path: "c.yml", data: "logging: [\n"},
	}
	for _, tt := range tests {
		if _, err := Decode(tt.path, []byte(tt.data)); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}
	cfg, err := Decode("c.yaml", []byte("notifications:\n  events:\n    - type: Bounty\n      format: \"{count}\"\n"))
	if err != nil || len(cfg.Notifications.Events) != 1 {
		t.Fatalf("Decode = %+v, %v", cfg, err)
	}
}

func TestReloadPublishesOnlyChanges(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sioux.yaml")
	if _, err := EnsureFile(path); err != nil {
		t.Fatal(err)
	}
	m := NewManager(path, logx.Nop())
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)
	ctx := context.Background()

	if changed, err := m.Reload(ctx); err != nil || changed {
		t.Fatalf("unchanged reload = %v, %v", changed, err)
	}

	data, _ := os.ReadFile(path)
	data = []byte(strings.Replace(string(data), "default_display_duration: 5", "default_display_duration: 9", 1))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	m.SetCheck(func(context.Context, *Config) error { return errors.New("dry run failed") })
	if changed, err := m.Reload(ctx); err == nil || changed {
		t.Fatalf("rejected reload = %v, %v", changed, err)
	}
	if m.Get().Notifications.DefaultDisplayDuration != 5 {
		t.Fatal("rejected config was committed")
	}

	m.SetCheck(nil)
	if changed, err := m.Reload(ctx); err != nil || !changed {
		t.Fatalf("reload = %v, %v", changed, err)
	}
	select {
	case cfg := <-sub:
		if cfg.Notifications.DefaultDisplayDuration != 9 {
			t.Fatalf("published = %d", cfg.Notifications.DefaultDisplayDuration)
		}
	default:
		t.Fatal("nothing published")
	}

	if err := os.WriteFile(path, []byte("notifications:\n  default_text_style: Plaid\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Reload(ctx); err == nil {
		t.Fatal("invalid file accepted")
	}
}

func TestWatchPicksUpEdits(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sioux.yaml")
	if _, err := EnsureFile(path); err != nil {
		t.Fatal(err)
	}
	m := NewManager(path, logx.Nop())
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	sub := m.Subscribe(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()

	data, _ := os.ReadFile(path)
	edited := []byte(strings.Replace(string(data), "level: INFO", "level: DEBUG", 1))
	deadline := time.After(5 * time.Second)
	for {
		if err := os.WriteFile(path, edited, 0o644); err != nil {
			t.Fatal(err)
		}
		select {
		case cfg := <-sub:
			if cfg.Logging.Level != "DEBUG" {
				t.Fatalf("level = %q", cfg.Logging.Level)
			}
			return
		case <-time.After(500 * time.Millisecond):
		case <-deadline:
			t.Fatal("edit never published")
		}
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	a := Default()
	b := Default()
	b.Metrics.Token = "secret"
	b.Notifications.Events = b.Notifications.Events[:1]
	changed, attrs := SummarizeChange(a, b)
	if strings.Join(changed, ",") != "metrics,notifications" || len(attrs) != 5 {
		t.Fatalf("changed = %v attrs = %d", changed, len(attrs))
	}
	if RequiresRestart(a, b) {
		t.Fatal("metrics/notifications change needs no restart")
	}
	b.Storage.Path = "./other.db"
	if !RequiresRestart(a, b) {
		t.Fatal("storage change needs restart")
	}
}
