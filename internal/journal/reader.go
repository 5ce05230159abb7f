package journal

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "sioux/pkg/logx"
)

const DefaultPattern = "Journal.*.log"

type ReaderConfig struct {
	Dir          string
	Pattern      string
	PollInterval time.Duration
}

// Progress is told about each journal file as replay reaches it.
type Progress func(index, total int, file string)

// Reader replays the journal directory and then tails the newest file.
type Reader struct {
	cfg ReaderConfig
	log logx.Logger
}

func NewReader(cfg ReaderConfig, log logx.Logger) *Reader {
	if strings.TrimSpace(cfg.Pattern) == "" {
		cfg.Pattern = DefaultPattern
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Reader{cfg: cfg, log: log}
}

// ListFiles returns the journal files in chronological (name) order.
func (r *Reader) ListFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(r.cfg.Dir, r.cfg.Pattern))
	if err != nil {
		return nil, fmt.Errorf("journal: list %s: %w", r.cfg.Dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// cursor is the read position in the file being tailed.
type cursor struct {
	path   string
	offset int64
	line   int
}

// Replay delivers every existing event with Live=false and returns the
// position to tail from.
func (r *Reader) Replay(ctx context.Context, handle func(Entry), progress Progress) (cursor, error) {
	files, err := r.ListFiles()
	if err != nil {
		return cursor{}, err
	}
	var cur cursor
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return cur, err
		}
		if progress != nil {
			progress(i, len(files), filepath.Base(f))
		}
		cur = cursor{path: f}
		if cur, err = r.drain(cur, false, handle); err != nil {
			return cur, err
		}
	}
	return cur, nil
}

// Run replays history, calls replayed, then tails until ctx is done.
// replayed is not called when ctx ends during the replay.
func (r *Reader) Run(ctx context.Context, handle func(Entry), progress Progress, replayed func()) error {
	cur, err := r.Replay(ctx, handle, progress)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	// Replay can finish on a canceled context; a stopped reader never goes live.
	if ctx.Err() != nil {
		return nil
	}
	if replayed != nil {
		replayed()
	}
	return r.tail(ctx, cur, handle)
}

func (r *Reader) tail(ctx context.Context, cur cursor, handle func(Entry)) error {
	var events <-chan fsnotify.Event
	w, err := fsnotify.NewWatcher()
	if err == nil {
		if err = w.Add(r.cfg.Dir); err != nil {
			_ = w.Close()
			w = nil
		}
	}
	if err != nil {
		r.log.Warn("journal watch unavailable; polling only", logx.Err(err), logx.String("dir", r.cfg.Dir))
	} else {
		defer w.Close()
		events = w.Events
	}

	tick := time.NewTicker(r.cfg.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				r.log.Warn("journal watcher closed; polling only", logx.String("dir", r.cfg.Dir))
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if match, _ := filepath.Match(r.cfg.Pattern, filepath.Base(ev.Name)); !match {
				continue
			}
		case <-tick.C:
		}
		cur = r.advance(cur, handle)
	}
}

// advance drains the current file and moves to a newer one when it appears.
func (r *Reader) advance(cur cursor, handle func(Entry)) cursor {
	if cur.path != "" {
		next, err := r.drain(cur, true, handle)
		if err != nil {
			r.log.Warn("journal read failed", logx.Err(err), logx.String("file", cur.path))
		}
		cur = next
	}
	files, err := r.ListFiles()
	if err != nil || len(files) == 0 {
		return cur
	}
	newest := files[len(files)-1]
	if newest <= cur.path {
		return cur
	}
	r.log.Info("journal file switched", logx.String("file", filepath.Base(newest)))
	next, err := r.drain(cursor{path: newest}, true, handle)
	if err != nil {
		r.log.Warn("journal read failed", logx.Err(err), logx.String("file", newest))
	}
	return next
}

// drain reads complete lines after cur. A trailing partial line is left for
// the next call.
func (r *Reader) drain(cur cursor, live bool, handle func(Entry)) (cursor, error) {
	f, err := os.Open(cur.path)
	if err != nil {
		return cur, fmt.Errorf("journal: open: %w", err)
	}
	defer f.Close()
	if _, err := f.Seek(cur.offset, io.SeekStart); err != nil {
		return cur, fmt.Errorf("journal: seek: %w", err)
	}

	br := bufio.NewReaderSize(f, 64*1024)
	name := filepath.Base(cur.path)
	for {
		line, err := br.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return cur, nil
			}
			return cur, fmt.Errorf("journal: read: %w", err)
		}
		cur.offset += int64(len(line))
		cur.line++

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		ev, perr := ParseEvent(line)
		if perr != nil {
			r.log.Warn("journal line skipped", logx.Err(perr), logx.String("file", name), logx.Int("line", cur.line))
			continue
		}
		handle(Entry{Event: ev, Live: live, File: name, Line: cur.line})
	}
}
