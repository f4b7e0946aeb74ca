package ranking

import (
	"testing"
	"time"

	"github.com/verte-zerg/ultrasplit/internal/model"
)

func row(bib string, position *int, maxCP int, total time.Duration, splits ...model.Split) model.RankedRow {
	return model.RankedRow{
		Timeline:      model.Timeline{Participant: model.Participant{Bib: bib}, Position: position},
		Splits:        splits,
		TotalElapsed:  total,
		MaxCheckpoint: maxCP,
	}
}

func pos(i int) *int { return &i }

func order(rows []model.RankedRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Timeline.Participant.Bib)
	}
	return out
}

func assertOrder(t *testing.T, got []model.RankedRow, want ...string) {
	t.Helper()
	bibs := order(got)
	if len(bibs) != len(want) {
		t.Fatalf("expected %v, got %v", want, bibs)
	}
	for i := range want {
		if bibs[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, bibs)
		}
	}
}

func TestSortDefault(t *testing.T) {
	rows := []model.RankedRow{
		row("dnf-far", nil, 9, 50*time.Hour),
		row("slow", pos(2), 10, 40*time.Hour),
		row("dnf-near", nil, 3, 5*time.Hour),
		row("fast", pos(1), 10, 30*time.Hour),
		row("short", pos(3), 8, 20*time.Hour),
	}
	assertOrder(t, Sort(rows, nil), "fast", "slow", "short", "dnf-far", "dnf-near")
	if rows[0].Timeline.Participant.Bib != "dnf-far" {
		t.Fatalf("expected input to stay untouched")
	}
}

func TestSortDefaultIsTotalOrder(t *testing.T) {
	a := row("2", pos(1), 5, time.Hour)
	b := row("1", pos(2), 5, time.Hour)
	if !Less(b, a) || Less(a, b) {
		t.Fatalf("expected bib to break ties")
	}
	if Less(a, a) {
		t.Fatalf("expected irreflexive order")
	}
}

func TestSortFocus(t *testing.T) {
	focus := 3
	rows := []model.RankedRow{
		row("a", pos(1), 5, 10*time.Hour, model.Split{Checkpoint: 3, Duration: 50 * time.Minute}),
		row("b", pos(2), 5, 11*time.Hour),
		row("c", pos(3), 5, 12*time.Hour, model.Split{Checkpoint: 3, Duration: 20 * time.Minute}),
		row("d", nil, 2, 3*time.Hour),
		row("e", pos(4), 5, 13*time.Hour, model.Split{Checkpoint: 3, Duration: 20 * time.Minute}),
	}
	// c and e tie on the split and keep default order; b and d lack the
	// split and keep default order after the others.
	assertOrder(t, Sort(rows, &focus), "c", "e", "a", "b", "d")
}

func TestToggleFocus(t *testing.T) {
	f := ToggleFocus(nil, 4)
	if f == nil || *f != 4 {
		t.Fatalf("expected focus 4, got %v", f)
	}
	g := ToggleFocus(f, 6)
	if g == nil || *g != 6 {
		t.Fatalf("expected focus 6, got %v", g)
	}
	if ToggleFocus(g, 6) != nil {
		t.Fatalf("expected focus to be cleared")
	}
}
