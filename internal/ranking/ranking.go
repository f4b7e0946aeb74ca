// Package ranking orders ranked rows for display.
package ranking

import (
	"sort"
	"time"

	"github.com/verte-zerg/ultrasplit/internal/model"
)

// ToggleFocus returns the focus checkpoint after a checkpoint is selected.
// Selecting the focused checkpoint again clears the focus.
func ToggleFocus(current *int, clicked int) *int {
	if current != nil && *current == clicked {
		return nil
	}
	next := clicked
	return &next
}

// Less reports whether a ranks before b in default order: finishers before
// DNF, then farther checkpoint first, then faster elapsed time. Bib breaks
// remaining ties so the order is total.
func Less(a, b model.RankedRow) bool {
	aFinished, bFinished := a.Timeline.Finished(), b.Timeline.Finished()
	if aFinished != bFinished {
		return aFinished
	}
	if a.MaxCheckpoint != b.MaxCheckpoint {
		return a.MaxCheckpoint > b.MaxCheckpoint
	}
	if a.TotalElapsed != b.TotalElapsed {
		return a.TotalElapsed < b.TotalElapsed
	}
	return a.Timeline.Participant.Bib < b.Timeline.Participant.Bib
}

// Sort returns a sorted copy of rows. With a nil focus rows are in default
// order. With a focus checkpoint, rows holding a split at that checkpoint come
// first ordered by split duration; rows without it follow. Ties and rows
// without the split keep their default-order position.
func Sort(rows []model.RankedRow, focus *int) []model.RankedRow {
	out := make([]model.RankedRow, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		return Less(out[i], out[j])
	})
	if focus == nil {
		return out
	}

	type focusKey struct {
		ok       bool
		duration time.Duration
	}
	keys := make([]focusKey, len(out))
	order := make([]int, len(out))
	for i := range out {
		s, ok := out[i].SplitAt(*focus)
		keys[i] = focusKey{ok: ok, duration: s.Duration}
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := keys[order[i]], keys[order[j]]
		if a.ok != b.ok {
			return a.ok
		}
		return a.ok && a.duration < b.duration
	})
	focused := make([]model.RankedRow, len(out))
	for i, k := range order {
		focused[i] = out[k]
	}
	return focused
}
