package storage

import (
	"context"
	"sync"

	"sioux/internal/journal"
)

// Memory keeps records in process memory.
type Memory struct {
	mu      sync.RWMutex
	records []Record
	seen    map[recordKey]struct{}
	closed  bool
}

func NewMemory() *Memory {
	return &Memory{seen: map[recordKey]struct{}{}}
}

func (m *Memory) AppendEvent(ctx context.Context, r Record) error {
	_, err := m.add(r)
	return err
}

// add reports whether r was new.
func (m *Memory) add(r Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	k := r.key()
	if _, dup := m.seen[k]; dup {
		return false, nil
	}
	m.seen[k] = struct{}{}
	m.records = append(m.records, r)
	return true, nil
}

func (m *Memory) has(k recordKey) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.seen[k]
	return ok
}

func (m *Memory) CountEvents(ctx context.Context, f journal.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	n := 0
	for _, r := range m.records {
		if r.Matches(f) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
