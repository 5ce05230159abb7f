package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"sioux/internal/scheduler"
	"sioux/internal/style"
)

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration:\n  " + strings.Join(e.Problems, "\n  ")
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("style", func(fl validator.FieldLevel) bool {
			_, ok := style.Lookup(fl.Field().String())
			return ok
		})
		_ = v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
			switch strings.ToUpper(strings.TrimSpace(fl.Field().String())) {
			case "TRACE", "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
				return true
			}
			return false
		})
		_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
			_, err := ParseDurationField("", fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("schedule", func(fl validator.FieldLevel) bool {
			_, err := scheduler.ParseSchedule(fl.Field().String())
			return err == nil
		})
		validate = v
	})
	return validate
}

// ApplyDefaults fills optional fields left empty.
func ApplyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "INFO"
	}
	if strings.TrimSpace(cfg.Storage.Driver) == "" {
		cfg.Storage.Driver = "memory"
	}
	if strings.TrimSpace(cfg.Scheduler.Hourly) == "" {
		cfg.Scheduler.Hourly = "@hourly"
	}
	n := &cfg.Notifications
	if n.DefaultDisplayDuration == 0 {
		n.DefaultDisplayDuration = 5
	}
	if strings.TrimSpace(n.DefaultTextStyle) == "" {
		n.DefaultTextStyle = string(style.Default)
	}
	if strings.TrimSpace(n.DefaultTokenStyle) == "" {
		n.DefaultTokenStyle = string(style.Information)
	}
}

// Validate checks cfg and returns a *ValidationError naming every problem.
func Validate(cfg *Config) error {
	if cfg == nil {
		return &ValidationError{Problems: []string{"config is empty"}}
	}
	var problems []string

	if err := validatorInstance().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	switch cfg.Storage.Driver {
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			problems = append(problems, fmt.Sprintf("storage.path: required for driver %q", cfg.Storage.Driver))
		}
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		problems = append(problems, "logging.file.path: required when file logging is enabled")
	}
	seen := map[string]int{}
	for i, ev := range cfg.Notifications.Events {
		key := strings.ToLower(strings.TrimSpace(ev.Type))
		if key == "" {
			continue
		}
		if first, dup := seen[key]; dup {
			problems = append(problems, fmt.Sprintf("notifications.events[%d].type: %q already configured at events[%d]", i, ev.Type, first))
			continue
		}
		seen[key] = i
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	path := fe.Namespace()
	if _, rest, ok := strings.Cut(path, "."); ok {
		path = rest
	}
	switch fe.Tag() {
	case "required":
		return path + ": required"
	case "required_if":
		return fmt.Sprintf("%s: required when %s", path, strings.Replace(fe.Param(), " ", " is ", 1))
	case "style":
		return fmt.Sprintf("%s: unknown style %q (use one of %s)", path, fe.Value(), strings.Join(style.Names(), ", "))
	case "loglevel":
		return fmt.Sprintf("%s: unknown level %q", path, fe.Value())
	case "duration":
		return fmt.Sprintf("%s: invalid duration %q", path, fe.Value())
	case "schedule":
		return fmt.Sprintf("%s: invalid schedule %q", path, fe.Value())
	case "timezone":
		return fmt.Sprintf("%s: unknown timezone %q", path, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s: %q is not one of [%s]", path, fe.Value(), fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s: must be %s %s", path, map[string]string{"gte": ">=", "lte": "<="}[fe.Tag()], fe.Param())
	default:
		return fmt.Sprintf("%s: failed %s validation", path, fe.Tag())
	}
}

// Durations resolved from a validated config.
type Durations struct {
	JournalPoll  time.Duration
	StorageBusy  time.Duration
	MetricsRead  time.Duration
	MetricsWrite time.Duration
}

func (c *Config) Durations() Durations {
	return Durations{
		JournalPoll:  DurationOr(c.Journal.PollInterval, time.Second),
		StorageBusy:  DurationOr(c.Storage.BusyTimeout, 5*time.Second),
		MetricsRead:  DurationOr(c.Metrics.ReadTimeout, 10*time.Second),
		MetricsWrite: DurationOr(c.Metrics.WriteTimeout, 0),
	}
}
