package timeline

import (
	"testing"
	"time"

	"github.com/verte-zerg/ultrasplit/internal/model"
	"github.com/verte-zerg/ultrasplit/internal/race"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int { return &i }

func TestBuildMergesRoster(t *testing.T) {
	data := race.Data{
		Roster: []race.RosterRecord{
			{Bib: "101", GivenName: "A", FamilyName: "B", Category: strPtr("M"), Sex: boolPtr(true), Nationality: strPtr("IT")},
		},
		Results: []race.ResultRecord{
			{
				Bib:      "101",
				Position: intPtr(1),
				Scans: []race.Scan{
					{Checkpoint: 1, Timestamp: "2024-09-08T10:00:00Z"},
					{Checkpoint: 2, Timestamp: "2024-09-08T11:00:00Z"},
					{Checkpoint: 5, Timestamp: "2024-09-08T12:00:00.500Z"},
				},
			},
		},
	}
	res := Build(data)
	if len(res.Timelines) != 1 {
		t.Fatalf("expected 1 timeline, got %d", len(res.Timelines))
	}
	tl := res.Timelines[0]
	want := model.Participant{Bib: "101", Name: "A B", Category: "M", Sex: model.SexMale, Country: "it"}
	if tl.Participant != want {
		t.Fatalf("unexpected participant: %+v", tl.Participant)
	}
	if tl.Position == nil || *tl.Position != 1 {
		t.Fatalf("expected position 1")
	}
	elapsed := []time.Duration{0, time.Hour, 2*time.Hour + 500*time.Millisecond}
	for i, r := range tl.Readings {
		if r.Elapsed != elapsed[i] {
			t.Fatalf("reading %d: expected elapsed %v, got %v", i, elapsed[i], r.Elapsed)
		}
	}
	if len(res.Diagnostics) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", res.Diagnostics)
	}
}

func TestBuildPlaceholderForUnknownBib(t *testing.T) {
	data := race.Data{
		Results: []race.ResultRecord{
			{Bib: "77", Scans: []race.Scan{{Checkpoint: 1, Timestamp: "2024-09-08T10:00:00Z"}}},
		},
	}
	res := Build(data)
	if len(res.Timelines) != 1 {
		t.Fatalf("expected 1 timeline, got %d", len(res.Timelines))
	}
	p := res.Timelines[0].Participant
	if p.Name != "Participant 77" || p.Category != model.Unknown || p.Sex != model.SexUnknown || p.Country != "unknown" {
		t.Fatalf("unexpected placeholder: %+v", p)
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != model.DiagUnmatchedBib {
		t.Fatalf("expected unmatched-bib diagnostic, got %+v", res.Diagnostics)
	}
}

func TestBuildSkipsEmptyScans(t *testing.T) {
	data := race.Data{
		Roster: []race.RosterRecord{{Bib: "1", GivenName: "X"}},
		Results: []race.ResultRecord{
			{Bib: "1"},
			{Bib: "2", Scans: []race.Scan{}},
			{Bib: "3", Scans: []race.Scan{{Checkpoint: 1, Timestamp: "not a time"}}},
		},
	}
	res := Build(data)
	if len(res.Timelines) != 0 {
		t.Fatalf("expected no timelines, got %d", len(res.Timelines))
	}
}

func TestBuildRosterDefaults(t *testing.T) {
	data := race.Data{
		Roster: []race.RosterRecord{
			{Bib: "5", GivenName: "Ann", FamilyName: "Lee", Sex: boolPtr(false), Nation: strPtr("FR")},
			{Bib: "6", GivenName: "Bo", FamilyName: "Ng"},
			{Bib: "6", GivenName: "Dup", FamilyName: "Entry"},
		},
		Results: []race.ResultRecord{
			{Bib: "5", Scans: []race.Scan{{Checkpoint: 1, Timestamp: "2024-09-08 10:00:00"}}},
			{Bib: "6", Scans: []race.Scan{{Checkpoint: 1, Timestamp: "2024-09-08T10:00:00+02:00"}}},
		},
	}
	res := Build(data)
	if len(res.Timelines) != 2 {
		t.Fatalf("expected 2 timelines, got %d", len(res.Timelines))
	}
	ann := res.Timelines[0].Participant
	if ann.Sex != model.SexFemale || ann.Country != "fr" || ann.Category != model.Unknown {
		t.Fatalf("unexpected defaults: %+v", ann)
	}
	bo := res.Timelines[1].Participant
	if bo.Name != "Bo Ng" || bo.Sex != model.SexUnknown || bo.Country != "unknown" {
		t.Fatalf("unexpected defaults: %+v", bo)
	}
	kinds := map[model.DiagnosticKind]int{}
	for _, d := range res.Diagnostics {
		kinds[d.Kind]++
	}
	if kinds[model.DiagDuplicateBib] != 1 {
		t.Fatalf("expected duplicate bib diagnostic, got %+v", res.Diagnostics)
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("2024-09-08T10:00:00.250Z")
	if err != nil {
		t.Fatalf("ParseTimestamp failed: %v", err)
	}
	if ts.Nanosecond() != 250000000 {
		t.Fatalf("expected fractional seconds to be kept, got %v", ts)
	}
	if _, err := ParseTimestamp(""); err == nil {
		t.Fatalf("expected error for empty timestamp")
	}
}
