package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/ultrasplit/internal/model"
)

var t0 = time.Date(2024, 9, 8, 10, 0, 0, 0, time.UTC)

func sampleReport() Report {
	first := 1
	focus := 2
	return Report{
		Checkpoints: []model.Checkpoint{{Rank: 1, Label: "Start"}, {Rank: 2, Label: "Rifugio OUT"}},
		Total:       3,
		Focus:       &focus,
		Filters:     model.Filters{Country: "it"},
		Rows: []model.RankedRow{
			{
				Timeline: model.Timeline{
					Participant: model.Participant{Bib: "101", Name: "A B", Category: "M", Sex: model.SexMale, Country: "it"},
					Position:    &first,
				},
				Splits: []model.Split{
					{Checkpoint: 1, Timestamp: t0},
					{Checkpoint: 2, Duration: time.Hour, Cumulative: time.Hour, Timestamp: t0.Add(time.Hour)},
					{Checkpoint: 3, Duration: time.Hour, Cumulative: 2 * time.Hour, Timestamp: t0.Add(2 * time.Hour)},
				},
				TotalElapsed:    2 * time.Hour,
				CheckpointCount: 3,
				MaxCheckpoint:   3,
			},
			{
				Timeline: model.Timeline{
					Participant: model.Participant{Bib: "7", Name: "C D", Category: "F", Sex: model.SexFemale, Country: "it"},
				},
				Splits:          []model.Split{{Checkpoint: 1, Timestamp: t0}},
				CheckpointCount: 1,
				MaxCheckpoint:   1,
			},
		},
		Histogram: []model.HistogramBucket{{Hour: 0, Count: 0}, {Hour: 1, Count: 0}, {Hour: 2, Count: 1}},
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		0:                          NotAvailable,
		-time.Second:               NotAvailable,
		1500 * time.Millisecond:    "00:00:01",
		time.Hour + 61*time.Second: "01:01:01",
		50 * time.Hour:             "50:00:00",
	}
	for in, want := range cases {
		if got := FormatDuration(in); got != want {
			t.Fatalf("FormatDuration(%v): expected %q, got %q", in, want, got)
		}
	}
}

func TestFormatTimeOfDay(t *testing.T) {
	if got := FormatTimeOfDay(t0, nil); got != "11:00:00" {
		t.Fatalf("expected race time 11:00:00, got %q", got)
	}
	if got := FormatTimeOfDay(t0, time.UTC); got != "10:00:00" {
		t.Fatalf("expected 10:00:00, got %q", got)
	}
	if got := FormatTimeOfDay(time.Time{}, nil); got != NotAvailable {
		t.Fatalf("expected N/A, got %q", got)
	}
}

func TestParseLocation(t *testing.T) {
	cases := map[string]int{
		"":       3600,
		"+02:00": 7200,
		"-0530":  -19800,
		"UTC":    0,
	}
	for in, want := range cases {
		loc, err := ParseLocation(in)
		if err != nil {
			t.Fatalf("ParseLocation(%q) failed: %v", in, err)
		}
		if _, offset := t0.In(loc).Zone(); offset != want {
			t.Fatalf("ParseLocation(%q): expected offset %d, got %d", in, want, offset)
		}
	}
	if _, err := ParseLocation("Mars/Olympus"); err == nil {
		t.Fatalf("expected error for unknown zone")
	}
}

func TestCheckpointName(t *testing.T) {
	cps := []model.Checkpoint{{Rank: 1, Label: "Start"}, {Rank: 2, Label: " "}}
	if got := CheckpointName(cps, 1); got != "Start" {
		t.Fatalf("expected Start, got %q", got)
	}
	if got := CheckpointName(cps, 2); got != "CP2" {
		t.Fatalf("expected CP2 for blank label, got %q", got)
	}
	if got := CheckpointName(nil, 9); got != "CP9" {
		t.Fatalf("expected CP9, got %q", got)
	}
	if !IsRestSection("Rifugio OUT") || IsRestSection("Rifugio IN") {
		t.Fatalf("unexpected rest section detection")
	}
}

func TestParticipantLabel(t *testing.T) {
	rep := sampleReport()
	if got := ParticipantLabel(rep.Rows[0]); got != "1. A B (101)" {
		t.Fatalf("unexpected finisher label %q", got)
	}
	if got := ParticipantLabel(rep.Rows[1]); got != "C D (7) DNF" {
		t.Fatalf("unexpected dnf label %q", got)
	}
}

func TestTableWideRunes(t *testing.T) {
	lines := Table([]string{"Name", "Bib"}, [][]string{
		{"山田 太郎", "7"},
		{"Anna", "101"},
	}, map[int]bool{1: true})
	want := []string{
		"Name      Bib",
		"山田 太郎   7",
		"Anna      101",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestRowTableFocusColumn(t *testing.T) {
	lines := RowTable(sampleReport(), time.UTC)
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(lines))
	}
	if !strings.HasSuffix(lines[0], "Split Rifugio OUT") {
		t.Fatalf("expected focus column header, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "1. A B (101)") || !strings.HasSuffix(lines[1], "01:00:00") {
		t.Fatalf("unexpected first row %q", lines[1])
	}
	if !strings.Contains(lines[1], "Italy") || !strings.Contains(lines[1], "12:00:00") {
		t.Fatalf("expected country name and last scan time, got %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], NotAvailable) {
		t.Fatalf("expected N/A split for row without focus split, got %q", lines[2])
	}
}

func TestSplitTableMarksRest(t *testing.T) {
	rep := sampleReport()
	lines := SplitTable(rep.Rows[0], rep.Checkpoints, time.UTC)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if !strings.HasSuffix(lines[2], "rest") {
		t.Fatalf("expected rest marker, got %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "CP3") {
		t.Fatalf("expected label fallback, got %q", lines[3])
	}
}

func TestPlotHistogram(t *testing.T) {
	var buf bytes.Buffer
	buckets := []model.HistogramBucket{{Hour: 0, Count: 0}, {Hour: 1, Count: 2}, {Hour: 2, Count: 4}}
	if err := PlotHistogram(&buf, "", buckets, 30, false); err != nil {
		t.Fatalf("plot: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", lines)
	}
	if lines[0] != "0h │ " {
		t.Fatalf("unexpected empty bucket line %q", lines[0])
	}
	if want := "1h │ " + strings.Repeat(barRune, 12) + " 2"; lines[1] != want {
		t.Fatalf("expected %q, got %q", want, lines[1])
	}
	if want := "2h │ " + strings.Repeat(barRune, 23) + " 4"; lines[2] != want {
		t.Fatalf("expected %q, got %q", want, lines[2])
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected no color for non-terminal writer")
	}
}

func TestPlotHistogramEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := PlotHistogram(&buf, "Finish times", nil, 40, false); err != nil {
		t.Fatalf("plot: %v", err)
	}
	if buf.String() != "Finish times\nNo finishers.\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestBarWidthFor(t *testing.T) {
	if got := BarWidthFor(80, 3, 2); got != 80-3-3-2-1 {
		t.Fatalf("unexpected bar width %d", got)
	}
	if got := BarWidthFor(0, 3, 2); got != minBarWidth {
		t.Fatalf("expected min width, got %d", got)
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	err := WriteText(&buf, sampleReport(), Options{Location: time.UTC, Histogram: true, Splits: true, Width: 40})
	if err != nil {
		t.Fatalf("write text: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "Showing 2 of 3 participants, country=Italy, sorted by split at Rifugio OUT\n") {
		t.Fatalf("unexpected summary: %q", strings.SplitN(out, "\n", 2)[0])
	}
	for _, want := range []string{"\n1. A B (101)\n", "Finish times (hours)", "2h │ "} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteYAML(&buf, sampleReport(), Options{Location: time.UTC}); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"shown: 2\n", "total: 3\n", "focus: 2\n", "country: it\n", "country_name: Italy\n", "label: 1. A B (101)\n", "rest: true\n", "split_seconds: 3600\n", "- hour: 2\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in yaml:\n%s", want, out)
		}
	}
}
