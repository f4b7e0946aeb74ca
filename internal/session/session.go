// Package session holds the state of one viewing session over a loaded race.
package session

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/verte-zerg/ultrasplit/internal/filter"
	"github.com/verte-zerg/ultrasplit/internal/histogram"
	"github.com/verte-zerg/ultrasplit/internal/model"
	"github.com/verte-zerg/ultrasplit/internal/race"
	"github.com/verte-zerg/ultrasplit/internal/ranking"
	"github.com/verte-zerg/ultrasplit/internal/splits"
	"github.com/verte-zerg/ultrasplit/internal/timeline"
)

// Race is the processed, read-only form of a loaded race. It is safe to share
// between sessions.
type Race struct {
	Checkpoints []model.Checkpoint
	Timelines   []model.Timeline
	Rows        []model.RankedRow
	Facets      model.Facets
	Histogram   []model.HistogramBucket
	Diagnostics []model.Diagnostic
}

// Prepare runs the timeline, split and histogram stages once.
func Prepare(data race.Data) *Race {
	built := timeline.Build(data)
	rows, splitDiags := splits.CalculateAll(built.Timelines)
	buckets, histDiags := histogram.Build(built.Timelines)

	diags := make([]model.Diagnostic, 0, len(built.Diagnostics)+len(splitDiags)+len(histDiags))
	diags = append(diags, built.Diagnostics...)
	diags = append(diags, splitDiags...)
	diags = append(diags, histDiags...)

	checkpoints := append([]model.Checkpoint(nil), data.Checkpoints...)
	sort.SliceStable(checkpoints, func(i, j int) bool {
		return checkpoints[i].Rank < checkpoints[j].Rank
	})

	return &Race{
		Checkpoints: checkpoints,
		Timelines:   built.Timelines,
		Rows:        rows,
		Facets:      filter.BuildFacets(built.Timelines),
		Histogram:   buckets,
		Diagnostics: diags,
	}
}

// Load reads a race file or directory and prepares it.
func Load(path string) (*Race, error) {
	data, err := race.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load race %s: %w", path, err)
	}
	return Prepare(data), nil
}

// Finishers counts rows with a finishing position.
func (r *Race) Finishers() int {
	n := 0
	for _, row := range r.Rows {
		if row.Timeline.Finished() {
			n++
		}
	}
	return n
}

// DiagnosticCounts groups diagnostics by kind.
func (r *Race) DiagnosticCounts() map[model.DiagnosticKind]int {
	counts := map[model.DiagnosticKind]int{}
	for _, d := range r.Diagnostics {
		counts[d.Kind]++
	}
	return counts
}

// Session carries the filters, focus and the cached view for one consumer.
type Session struct {
	race    *Race
	logger  *slog.Logger
	filters model.Filters
	focus   *int
	view    []model.RankedRow
}

// New starts a session over a prepared race with no filters and no focus.
func New(r *Race, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{race: r, logger: logger}
	s.recompute()
	return s
}

// Race returns the shared race data.
func (s *Session) Race() *Race {
	return s.race
}

// Filters returns the active filters.
func (s *Session) Filters() model.Filters {
	return s.filters
}

// Focus returns the focused checkpoint rank, or nil.
func (s *Session) Focus() *int {
	if s.focus == nil {
		return nil
	}
	v := *s.focus
	return &v
}

// View returns the filtered, ranked rows for the current state.
func (s *Session) View() []model.RankedRow {
	return s.view
}

// SetFilters replaces the filters and recomputes the view.
func (s *Session) SetFilters(f model.Filters) []model.RankedRow {
	s.filters = f
	s.recompute()
	return s.view
}

// ResetFilters clears every filter. Focus is kept.
func (s *Session) ResetFilters() []model.RankedRow {
	return s.SetFilters(model.Filters{})
}

// SetFocus sets the focused checkpoint directly. Nil clears it.
func (s *Session) SetFocus(focus *int) []model.RankedRow {
	if focus == nil {
		s.focus = nil
	} else {
		v := *focus
		s.focus = &v
	}
	s.recompute()
	return s.view
}

// ToggleFocus applies a click on a checkpoint.
func (s *Session) ToggleFocus(checkpoint int) []model.RankedRow {
	s.focus = ranking.ToggleFocus(s.focus, checkpoint)
	s.recompute()
	return s.view
}

func (s *Session) recompute() {
	filtered := filter.Apply(s.race.Rows, s.filters)
	s.view = ranking.Sort(filtered, s.focus)
	s.logger.Debug("view recomputed",
		"rows", len(s.view),
		"total", len(s.race.Rows),
		"search", s.filters.Search,
		"category", s.filters.Category,
		"sex", s.filters.Sex,
		"country", s.filters.Country,
		"focus", focusAttr(s.focus),
	)
}

func focusAttr(focus *int) any {
	if focus == nil {
		return "none"
	}
	return *focus
}

// LogDiagnostics writes every diagnostic at debug level and a warn summary
// with the count of each kind.
func LogDiagnostics(logger *slog.Logger, diags []model.Diagnostic) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(diags) == 0 {
		return
	}
	counts := map[model.DiagnosticKind]int{}
	for _, d := range diags {
		counts[d.Kind]++
		attrs := []any{"kind", string(d.Kind), "bib", d.Bib}
		if d.Checkpoint != 0 {
			attrs = append(attrs, "checkpoint", d.Checkpoint)
		}
		if !d.Timestamp.IsZero() {
			attrs = append(attrs, "timestamp", d.Timestamp)
		}
		logger.Debug(d.Message, attrs...)
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	attrs := make([]any, 0, len(kinds)*2+2)
	attrs = append(attrs, "total", len(diags))
	for _, k := range kinds {
		attrs = append(attrs, k, counts[model.DiagnosticKind(k)])
	}
	logger.Warn("race data diagnostics", attrs...)
}
