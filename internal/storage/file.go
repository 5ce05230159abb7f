package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"sioux/internal/journal"
	logx "sioux/pkg/logx"
)

// fileStore appends records to a JSON Lines file and answers counts from
// an in-memory copy loaded on open.
type fileStore struct {
	log logx.Logger

	mu  sync.Mutex
	f   *os.File
	mem *Memory
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	mem := NewMemory()
	loaded, skipped, err := loadRecords(path, mem)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if skipped > 0 {
		log.Warn("event log lines skipped", logx.String("path", path), logx.Int("skipped", skipped))
	}
	log.Debug("event log loaded", logx.String("path", path), logx.Int("records", loaded))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, f: f, mem: mem}, nil
}

func (s *fileStore) AppendEvent(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrClosed
	}
	if s.mem.has(r.key()) {
		return nil
	}
	// mem only holds records whose line reached the file.
	if err := json.NewEncoder(s.f).Encode(r); err != nil {
		return fmt.Errorf("storage: append %s:%d: %w", r.Source, r.Line, err)
	}
	_, err := s.mem.add(r)
	return err
}

func (s *fileStore) CountEvents(ctx context.Context, f journal.Filter) (int, error) {
	return s.mem.CountEvents(ctx, f)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.mem.Close()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func loadRecords(path string, into *Memory) (loaded, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.Kind == "" {
			skipped++
			continue
		}
		if added, _ := into.add(r); added {
			loaded++
		}
	}
	return loaded, skipped, sc.Err()
}
