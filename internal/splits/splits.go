// Package splits reconciles raw checkpoint readings into monotonic splits.
package splits

import (
	"fmt"
	"sort"
	"time"

	"github.com/verte-zerg/ultrasplit/internal/model"
)

// Calculate converts a timeline into a ranked row.
//
// Readings are ordered by absolute timestamp. The walk accepts a reading when
// its elapsed time does not go backwards, and stops at the first reading of
// the highest checkpoint present in the timeline: anything scanned after the
// finish is not a race event. Backward readings are dropped and reported.
func Calculate(tl model.Timeline) (model.RankedRow, []model.Diagnostic) {
	row := model.RankedRow{Timeline: tl}
	if len(tl.Readings) == 0 {
		return row, nil
	}

	finishRank := tl.Readings[0].Checkpoint
	for _, r := range tl.Readings[1:] {
		if r.Checkpoint > finishRank {
			finishRank = r.Checkpoint
		}
	}

	sorted := make([]model.CheckpointReading, len(tl.Readings))
	copy(sorted, tl.Readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var diags []model.Diagnostic
	accepted := make([]model.CheckpointReading, 0, len(sorted))
	var lastAccepted time.Duration
	for i, r := range sorted {
		if r.Checkpoint == finishRank {
			accepted = append(accepted, r)
			for _, dropped := range sorted[i+1:] {
				diags = append(diags, anomaly(tl.Participant.Bib, dropped, "scan after finish"))
			}
			break
		}
		if r.Elapsed >= lastAccepted {
			accepted = append(accepted, r)
			lastAccepted = r.Elapsed
			continue
		}
		diags = append(diags, anomaly(tl.Participant.Bib, r, "elapsed time goes backwards"))
	}

	row.Splits = make([]model.Split, 0, len(accepted))
	for i, r := range accepted {
		var prev time.Duration
		if i > 0 {
			prev = accepted[i-1].Elapsed
		}
		d := r.Elapsed - prev
		if d < 0 {
			d = 0
		}
		row.Splits = append(row.Splits, model.Split{
			Checkpoint: r.Checkpoint,
			Duration:   d,
			Cumulative: r.Elapsed,
			Timestamp:  r.Timestamp,
		})
		if r.Checkpoint > row.MaxCheckpoint {
			row.MaxCheckpoint = r.Checkpoint
		}
	}
	row.CheckpointCount = len(accepted)
	if len(accepted) > 0 {
		row.TotalElapsed = accepted[len(accepted)-1].Elapsed
	}
	return row, diags
}

// CalculateAll converts every timeline, keeping input order.
func CalculateAll(timelines []model.Timeline) ([]model.RankedRow, []model.Diagnostic) {
	rows := make([]model.RankedRow, 0, len(timelines))
	var diags []model.Diagnostic
	for _, tl := range timelines {
		row, d := Calculate(tl)
		rows = append(rows, row)
		diags = append(diags, d...)
	}
	return rows, diags
}

func anomaly(bib string, r model.CheckpointReading, reason string) model.Diagnostic {
	return model.Diagnostic{
		Kind:       model.DiagAnomalousScan,
		Bib:        bib,
		Checkpoint: r.Checkpoint,
		Timestamp:  r.Timestamp,
		Message:    fmt.Sprintf("CP%d at %s discarded: %s", r.Checkpoint, r.Timestamp.Format("2006-01-02T15:04:05Z07:00"), reason),
	}
}
