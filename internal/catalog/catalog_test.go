package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/ultrasplit/internal/race"
	"github.com/verte-zerg/ultrasplit/internal/store"
)

const raceJSON = `{
  "participants": {"iscritti": [{"pettorale": 1, "nome": "A", "cognome": "B", "sesso": true}]},
  "results": [{"result": [{"bib": 1, "posizione": 1, "total_time": "01:00:00", "crono": [
    {"postazione": 1, "tempo": "2024-09-08T10:00:00Z"},
    {"postazione": 2, "tempo": "2024-09-08T11:00:00Z"}
  ]}]}],
  "checkpoints": {"postazioni": [{"rank": 1, "text": "Start"}, {"rank": 2, "text": "Finish"}]}
}`

func writeRace(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write race: %v", err)
	}
	return path
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "races.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestRaceFromStoreIsCached(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	data, err := race.Decode([]byte(raceJSON), race.FormatJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := st.Import(ctx, "tor", "Tor", "tor.json", data); err != nil {
		t.Fatalf("import: %v", err)
	}

	c := New(st, nil)
	first, err := c.Race(ctx, "tor")
	if err != nil {
		t.Fatalf("race: %v", err)
	}
	if len(first.Rows) != 1 || first.Finishers() != 1 {
		t.Fatalf("unexpected race: %+v", first.Rows)
	}
	second, err := c.Race(ctx, "tor")
	if err != nil {
		t.Fatalf("race: %v", err)
	}
	if first != second {
		t.Fatalf("expected cached race to be reused")
	}

	if _, err := st.Import(ctx, "tor", "Tor", "tor.json", data); err != nil {
		t.Fatalf("reimport: %v", err)
	}
	third, err := c.Race(ctx, "tor")
	if err != nil {
		t.Fatalf("race: %v", err)
	}
	if third == first {
		t.Fatalf("expected reimport to invalidate the cache")
	}
	if len(c.Loaded()) != 1 {
		t.Fatalf("expected one loaded race")
	}
}

func TestRaceErrors(t *testing.T) {
	dir := t.TempDir()
	c := New(openStore(t), nil)
	ctx := context.Background()
	if _, err := c.Race(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	bad := writeRace(t, dir, "bad.json", `{"participants": {"iscritti": []}}`)
	if err := c.AddFile("bad", bad); err != nil {
		t.Fatalf("add file: %v", err)
	}
	if _, err := c.Race(ctx, "bad"); !errors.Is(err, race.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}

	if _, err := New(nil, nil).Race(ctx, "any"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound without a store, got %v", err)
	}
}

func TestListMergesFilesAndStore(t *testing.T) {
	dir := t.TempDir()
	st := openStore(t)
	ctx := context.Background()
	data, err := race.Decode([]byte(raceJSON), race.FormatJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := st.Import(ctx, "b", "", "b.json", data); err != nil {
		t.Fatalf("import: %v", err)
	}

	c := New(st, nil)
	path := writeRace(t, dir, "a.json", raceJSON)
	if err := c.AddFile(IDFromPath(path), path); err != nil {
		t.Fatalf("add file: %v", err)
	}
	if _, err := c.Race(ctx, "a"); err != nil {
		t.Fatalf("race: %v", err)
	}
	races, err := c.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(races) != 2 || races[0].ID != "a" || races[1].ID != "b" {
		t.Fatalf("unexpected races: %+v", races)
	}
	if races[0].Source != path || races[0].Participants != 1 || races[0].Checkpoints != 2 {
		t.Fatalf("unexpected file entry: %+v", races[0])
	}
	if err := c.AddFile("bad id", path); err == nil {
		t.Fatalf("expected invalid id to be rejected")
	}
}

func TestIDFromPath(t *testing.T) {
	cases := map[string]string{
		"/data/tor330.json": "tor330",
		"races/tds.yaml":    "tds",
		"/data/utmb/":       "utmb",
	}
	for in, want := range cases {
		if got := IDFromPath(in); got != want {
			t.Fatalf("IDFromPath(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestDirectoryRaceReloadsWhenSectionChanges(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tor")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeRace(t, dir, "participants.json", `{"iscritti": [
    {"pettorale": 1, "nome": "A", "cognome": "B", "sesso": true},
    {"pettorale": 2, "nome": "C", "cognome": "D", "sesso": false}
  ]}`)
	writeRace(t, dir, "checkpoints.json", `{"postazioni": [{"rank": 1, "text": "Start"}, {"rank": 2, "text": "Finish"}]}`)
	results := writeRace(t, dir, "results.json", `[{"result": [{"bib": 1, "crono": [{"postazione": 1, "tempo": "2024-09-08T10:00:00Z"}]}]}]`)

	c := New(nil, nil)
	if err := c.AddFile("tor", dir); err != nil {
		t.Fatalf("add file: %v", err)
	}
	ctx := context.Background()
	first, err := c.Race(ctx, "tor")
	if err != nil {
		t.Fatalf("race: %v", err)
	}
	if len(first.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(first.Rows))
	}
	again, err := c.Race(ctx, "tor")
	if err != nil {
		t.Fatalf("race: %v", err)
	}
	if again != first {
		t.Fatalf("expected unchanged directory to stay cached")
	}

	writeRace(t, dir, "results.json", `[{"result": [
    {"bib": 1, "crono": [{"postazione": 1, "tempo": "2024-09-08T10:00:00Z"}]},
    {"bib": 2, "crono": [{"postazione": 1, "tempo": "2024-09-08T10:05:00Z"}]}
  ]}]`)
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(results, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	second, err := c.Race(ctx, "tor")
	if err != nil {
		t.Fatalf("race: %v", err)
	}
	if second == first || len(second.Rows) != 2 {
		t.Fatalf("expected rewritten results to be reloaded, got %d rows", len(second.Rows))
	}
}
