package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"sioux/internal/journal"
	logx "sioux/pkg/logx"
)

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	source       TEXT NOT NULL,
	line         INTEGER NOT NULL,
	at           TEXT NOT NULL,
	kind         TEXT NOT NULL COLLATE NOCASE,
	commander    TEXT NOT NULL DEFAULT '' COLLATE NOCASE,
	star_system  TEXT NOT NULL DEFAULT '' COLLATE NOCASE,
	station_name TEXT NOT NULL DEFAULT '' COLLATE NOCASE,
	body         TEXT NOT NULL DEFAULT '' COLLATE NOCASE,
	body_type    TEXT NOT NULL DEFAULT '' COLLATE NOCASE,
	ship         TEXT NOT NULL DEFAULT '' COLLATE NOCASE,
	UNIQUE(source, line)
);

CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind, commander);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

// Filter dimensions map to fixed column names; nothing user supplied is
// ever spliced into SQL.
var dimensionColumns = map[journal.Dimension]string{
	journal.DimStarSystem:  "star_system",
	journal.DimStationName: "station_name",
	journal.DimBody:        "body",
	journal.DimBodyType:    "body_type",
	journal.DimShip:        "ship",
}

type sqliteStore struct {
	db  *sqlx.DB
	log logx.Logger
}

type sqliteRow struct {
	Record
	AtText string `db:"at_text"`
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate() error {
	current := 0
	var tables int
	if err := s.db.Get(&tables, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'"); err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tables > 0 {
		if err := s.db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
		s.log.Debug("sqlite migration applied", logx.Int("version", m.version))
	}
	return nil
}

func (s *sqliteStore) AppendEvent(ctx context.Context, r Record) error {
	if s.db == nil {
		return ErrClosed
	}
	row := sqliteRow{Record: r, AtText: r.At.UTC().Format(time.RFC3339Nano)}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT OR IGNORE INTO events (source, line, at, kind, commander, star_system, station_name, body, body_type, ship)
		 VALUES (:source, :line, :at_text, :kind, :commander, :star_system, :station_name, :body, :body_type, :ship)`,
		row,
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func (s *sqliteStore) CountEvents(ctx context.Context, f journal.Filter) (int, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	q, args := countQuery(f)
	var n int
	if err := s.db.GetContext(ctx, &n, q, args...); err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

func countQuery(f journal.Filter) (string, []any) {
	where := []string{"kind = ?"}
	args := []any{f.Kind}
	if f.Commander != "" {
		where = append(where, "commander = ?")
		args = append(args, f.Commander)
	}
	dims := make([]journal.Dimension, 0, len(f.Fields))
	for d := range f.Fields {
		if _, ok := dimensionColumns[d]; ok {
			dims = append(dims, d)
		}
	}
	sort.Slice(dims, func(i, j int) bool { return dims[i] < dims[j] })
	for _, d := range dims {
		where = append(where, dimensionColumns[d]+" = ?")
		args = append(args, f.Fields[d])
	}
	return "SELECT COUNT(*) FROM events WHERE " + strings.Join(where, " AND "), args
}

func (s *sqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
