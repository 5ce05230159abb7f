package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sioux/internal/journal"
	logx "sioux/pkg/logx"
)

func sampleRecords() []Record {
	at := time.Date(2017, 10, 1, 12, 0, 0, 0, time.UTC)
	return []Record{
		{Source: "a.log", Line: 1, At: at, Kind: "Bounty", Commander: "Jameson", StarSystem: "Lave", Ship: "anaconda"},
		{Source: "a.log", Line: 2, At: at, Kind: "Bounty", Commander: "Jameson", StarSystem: "Diso", Ship: "anaconda"},
		{Source: "a.log", Line: 3, At: at, Kind: "Bounty", Commander: "Other", StarSystem: "Lave", Ship: "viper"},
		{Source: "a.log", Line: 4, At: at, Kind: "FSDJump", Commander: "Jameson", StarSystem: "Lave"},
		{Source: "a.log", Line: 1, At: at, Kind: "Bounty", Commander: "Jameson", StarSystem: "Lave"}, // duplicate position
	}
}

func countCases() []struct {
	name   string
	filter journal.Filter
	want   int
} {
	return []struct {
		name   string
		filter journal.Filter
		want   int
	}{
		{name: "kind only", filter: journal.Filter{Kind: "Bounty"}, want: 3},
		{name: "kind case-insensitive", filter: journal.Filter{Kind: "bounty"}, want: 3},
		{name: "commander", filter: journal.Filter{Kind: "Bounty", Commander: "jameson"}, want: 2},
		{name: "system", filter: journal.Filter{Kind: "Bounty", Fields: map[journal.Dimension]string{journal.DimStarSystem: "LAVE"}}, want: 2},
		{
			name: "commander system ship",
			filter: journal.Filter{Kind: "Bounty", Commander: "Jameson", Fields: map[journal.Dimension]string{
				journal.DimStarSystem: "Lave",
				journal.DimShip:       "Anaconda",
			}},
			want: 1,
		},
		{name: "no match", filter: journal.Filter{Kind: "Died"}, want: 0},
	}
}

func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()
	for _, r := range sampleRecords() {
		if err := st.AppendEvent(ctx, r); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}
	for _, tc := range countCases() {
		got, err := st.CountEvents(ctx, tc.filter)
		if err != nil {
			t.Fatalf("%s: CountEvents: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: count = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	st := NewMemory()
	exerciseStore(t, st)
	if st.Len() != 4 {
		t.Fatalf("Len = %d, want 4", st.Len())
	}
	_ = st.Close()
	if _, err := st.CountEvents(context.Background(), journal.Filter{Kind: "Bounty"}); err != ErrClosed {
		t.Fatalf("err after close = %v", err)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	exerciseStore(t, st)
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	// Replaying the same positions must not double count.
	exerciseStore(t, st)
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.db")
	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	exerciseStore(t, st)
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err = Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	exerciseStore(t, st)
}

func TestCountQueryWhitelistsColumns(t *testing.T) {
	t.Parallel()
	q, args := countQuery(journal.Filter{Kind: "Bounty", Fields: map[journal.Dimension]string{
		journal.DimShip:              "viper",
		journal.Dimension("x; DROP"): "y",
	}})
	if strings.Contains(q, "DROP") {
		t.Fatalf("query contains unknown dimension: %s", q)
	}
	if !strings.HasSuffix(q, "WHERE kind = ? AND ship = ?") || len(args) != 2 {
		t.Fatalf("query = %s args = %v", q, args)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewRecordPrefersEventValues(t *testing.T) {
	t.Parallel()
	ev, err := journal.ParseEvent([]byte(`{"timestamp":"2017-10-01T12:00:00Z","event":"Docked","StarSystem":"Diso","StationName":"Shifnalport"}`))
	if err != nil {
		t.Fatal(err)
	}
	world := journal.WorldState{Commander: "Jameson", Ship: "viper", StarSystem: "Lave", Body: "Lave 1"}
	r := NewRecord(journal.Entry{Event: ev, File: "j.log", Line: 7}, world)
	if r.StarSystem != "Diso" || r.StationName != "Shifnalport" || r.Ship != "viper" || r.Body != "Lave 1" || r.Commander != "Jameson" {
		t.Fatalf("record = %+v", r)
	}
	if r.Source != "j.log" || r.Line != 7 || r.Kind != "Docked" {
		t.Fatalf("position = %+v", r)
	}
}

func TestFileStoreFailedWriteCanBeRetried(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	fs := st.(*fileStore)
	writable := fs.f
	readOnly, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer readOnly.Close()

	r := sampleRecords()[0]
	ctx := context.Background()
	fs.f = readOnly
	if err := st.AppendEvent(ctx, r); err == nil {
		t.Fatal("append to a read-only file succeeded")
	}
	if n := fs.mem.Len(); n != 0 {
		t.Fatalf("failed write indexed %d records", n)
	}

	fs.f = writable
	if err := st.AppendEvent(ctx, r); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	got, err := st.CountEvents(ctx, journal.Filter{Kind: "Bounty"})
	if err != nil || got != 1 {
		t.Fatalf("persisted count = %d, %v; want 1", got, err)
	}
}
