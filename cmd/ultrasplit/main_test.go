package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const raceYAML = `participants:
  iscritti:
    - {pettorale: 101, nome: A, cognome: B, categoria: M, sesso: true, nazionalita: it}
    - {pettorale: 42, nome: Eva, cognome: Neri, categoria: F, sesso: false, nazionalita: fr}
    - {pettorale: 7, nome: John42smith, cognome: "", categoria: M, sesso: true, nazionalita: it}
results:
  - result:
      - bib: 101
        posizione: 1
        total_time: "02:00:00"
        crono:
          - {postazione: 1, tempo: "2024-09-08T10:00:00Z"}
          - {postazione: 2, tempo: "2024-09-08T11:00:00Z"}
          - {postazione: 5, tempo: "2024-09-08T12:00:00Z"}
      - bib: 42
        crono:
          - {postazione: 1, tempo: "2024-09-08T10:00:00Z"}
          - {postazione: 2, tempo: "2024-09-08T10:30:00Z"}
      - bib: 7
        posizione: 2
        total_time: "03:00:00"
        crono:
          - {postazione: 1, tempo: "2024-09-08T10:00:00Z"}
          - {postazione: 2, tempo: "2024-09-08T10:20:00Z"}
          - {postazione: 5, tempo: "2024-09-08T13:00:00Z"}
checkpoints:
  postazioni:
    - {rank: 1, text: Start}
    - {rank: 2, text: Rifugio OUT}
    - {rank: 5, text: Finish}
`

func writeRaceFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "tor.yaml")
	if err := os.WriteFile(path, []byte(raceYAML), 0o644); err != nil {
		t.Fatalf("write race: %v", err)
	}
	return path
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	base := []string{
		"--config", filepath.Join(dir, "config.toml"),
		"--db", filepath.Join(dir, "races.db"),
		"--log-level", "error",
	}
	cmd.SetArgs(append(args, base...))
	err := cmd.Execute()
	return out.String(), err
}

func TestReportFromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeRaceFile(t, dir)
	out, err := run(t, dir, "report", "--file", path, "--search", "42", "--timezone", "UTC")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	for _, want := range []string{"Showing 2 of 3 participants", "2. John42smith (7)", "Eva Neri (42) DNF", "13:00:00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "A B (101)") {
		t.Fatalf("expected 101 to be filtered out:\n%s", out)
	}
}

func TestReportFocusAndYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeRaceFile(t, dir)
	out, err := run(t, dir, "report", "--file", path, "--focus", "2", "--format", "yaml")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	first := strings.Index(out, "bib: \"7\"")
	last := strings.Index(out, "bib: \"101\"")
	if first < 0 || last < 0 || first > last {
		t.Fatalf("expected 7 ranked before 101 when focused on checkpoint 2:\n%s", out)
	}
	if !strings.Contains(out, "focus: 2") {
		t.Fatalf("expected focus in YAML:\n%s", out)
	}

	if _, err := run(t, dir, "report", "--file", path, "--format", "xml"); err == nil {
		t.Fatalf("expected unknown format to fail")
	}
}

func TestImportListAndDelete(t *testing.T) {
	dir := t.TempDir()
	path := writeRaceFile(t, dir)
	out, err := run(t, dir, "import", "--name", "Tor des Geants", path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "Imported tor: 3 participants, 3 results, 3 checkpoints") {
		t.Fatalf("unexpected import output: %s", out)
	}

	out, err = run(t, dir, "races")
	if err != nil {
		t.Fatalf("races: %v", err)
	}
	if !strings.Contains(out, "tor") || !strings.Contains(out, "Tor des Geants") {
		t.Fatalf("expected imported race in listing:\n%s", out)
	}

	out, err = run(t, dir, "report", "--race", "tor")
	if err != nil {
		t.Fatalf("report from catalog: %v", err)
	}
	if !strings.Contains(out, "Showing 3 of 3 participants") {
		t.Fatalf("unexpected report:\n%s", out)
	}

	if _, err := run(t, dir, "races", "--delete", "tor"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := run(t, dir, "report", "--race", "tor"); err == nil {
		t.Fatalf("expected deleted race to be missing")
	}
}

func TestReportRequiresRace(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, dir, "report"); err == nil || !strings.Contains(err.Error(), "no race selected") {
		t.Fatalf("expected missing race error, got %v", err)
	}
}

func TestConfigSuppliesDefaultRace(t *testing.T) {
	dir := t.TempDir()
	path := writeRaceFile(t, dir)
	cfg := "[race]\nfile = " + `"` + filepath.ToSlash(path) + `"` + "\n"
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	out, err := run(t, dir, "report", "--sex", "Female")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(out, "Showing 1 of 3 participants") {
		t.Fatalf("expected config race with sex filter:\n%s", out)
	}
}

func TestMalformedRaceFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`{"results": []}`), 0o644); err != nil {
		t.Fatalf("write race: %v", err)
	}
	if _, err := run(t, dir, "report", "--file", path); err == nil {
		t.Fatalf("expected malformed race to fail")
	}
	if _, err := run(t, dir, "import", path); err == nil {
		t.Fatalf("expected malformed race import to fail")
	}
}
