package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const defaultLogFile = "./sioux.log"

var stderr io.Writer = os.Stderr

type Config struct {
	Level string
	// Console writes human-readable lines to ConsoleOut (stderr when nil).
	Console    bool
	ConsoleOut io.Writer
	File       FileConfig
}

// FileConfig is an append-only JSON-lines sink.
type FileConfig struct {
	Enabled bool
	Path    string
}

// Service owns the sinks. Apply rebuilds them while loggers keep working.
type Service struct {
	mu       sync.Mutex
	file     *os.File
	filePath string

	root atomic.Pointer[zerolog.Logger]
}

func New(cfg Config) (*Service, Logger) {
	setGlobals()
	s := &Service{}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

// Apply swaps level and sinks. The log file stays open while its path is
// unchanged. With no sink configured, console output goes to stderr.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, consoleWriter(consoleOut(cfg)))
	}
	if cfg.File.Enabled {
		if f, err := s.openFileLocked(cfg.File.Path); err != nil {
			fmt.Fprintf(stderr, "logx: %v\n", err)
		} else {
			writers = append(writers, zerolog.SyncWriter(f))
		}
	} else {
		s.closeFileLocked()
	}
	if len(writers) == 0 {
		writers = append(writers, consoleWriter(consoleOut(cfg)))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseLevel(cfg.Level, LevelInfo)).
		With().Timestamp().Logger()
	s.root.Store(&zl)
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeFileLocked()
}

func (s *Service) openFileLocked(path string) (*os.File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultLogFile
	}
	if s.file != nil && s.filePath == path {
		return s.file, nil
	}
	s.closeFileLocked()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir %q: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	s.file, s.filePath = f, path
	return f, nil
}

func (s *Service) closeFileLocked() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file, s.filePath = nil, ""
	return err
}

func consoleOut(cfg Config) io.Writer {
	if cfg.ConsoleOut != nil {
		return cfg.ConsoleOut
	}
	return stderr
}
