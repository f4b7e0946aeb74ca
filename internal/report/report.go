package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/ultrasplit/internal/filter"
	"github.com/verte-zerg/ultrasplit/internal/model"
	"github.com/verte-zerg/ultrasplit/internal/session"
)

// Report contains the data rendered for one session state.
type Report struct {
	Checkpoints []model.Checkpoint
	Rows        []model.RankedRow
	Total       int
	Focus       *int
	Filters     model.Filters
	Histogram   []model.HistogramBucket
}

// Options control text and YAML rendering.
type Options struct {
	Location   *time.Location
	Histogram  bool
	Splits     bool
	Width      int
	ForceColor bool
}

// BuildReport captures the current view of a session.
func BuildReport(s *session.Session, withHistogram bool) Report {
	r := s.Race()
	rep := Report{
		Checkpoints: r.Checkpoints,
		Rows:        s.View(),
		Total:       len(r.Rows),
		Focus:       s.Focus(),
		Filters:     s.Filters(),
	}
	if withHistogram {
		rep.Histogram = r.Histogram
	}
	return rep
}

// WriteText prints the ranked table, optional split details and the
// optional histogram.
func WriteText(w io.Writer, rep Report, opts Options) error {
	if _, err := fmt.Fprintln(w, Summary(rep)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	for _, line := range RowTable(rep, opts.Location) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if opts.Splits {
		for _, row := range rep.Rows {
			if _, err := fmt.Fprintf(w, "\n%s\n", ParticipantLabel(row)); err != nil {
				return err
			}
			for _, line := range SplitTable(row, rep.Checkpoints, opts.Location) {
				if _, err := fmt.Fprintln(w, "  "+line); err != nil {
					return err
				}
			}
		}
	}
	if opts.Histogram {
		if _, err := fmt.Fprintln(w, ""); err != nil {
			return err
		}
		if err := PlotHistogram(w, "Finish times (hours)", rep.Histogram, opts.Width, opts.ForceColor); err != nil {
			return err
		}
	}
	return nil
}

// WriteYAML prints the report as a YAML document.
func WriteYAML(w io.Writer, rep Report, opts Options) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewDocument(rep, opts.Location)); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// Summary describes how many rows are shown and which filters and focus
// produced them.
func Summary(rep Report) string {
	parts := []string{fmt.Sprintf("Showing %d of %d participants", len(rep.Rows), rep.Total)}
	f := rep.Filters
	if f.Search != "" {
		parts = append(parts, fmt.Sprintf("search=%q", f.Search))
	}
	if f.Category != "" {
		parts = append(parts, "category="+f.Category)
	}
	if f.Sex != "" {
		parts = append(parts, "sex="+f.Sex)
	}
	if f.Country != "" {
		parts = append(parts, "country="+filter.CountryName(f.Country))
	}
	if rep.Focus != nil {
		parts = append(parts, "sorted by split at "+CheckpointName(rep.Checkpoints, *rep.Focus))
	}
	return strings.Join(parts, ", ")
}

// RowTable renders one line per ranked row plus a header.
func RowTable(rep Report, loc *time.Location) []string {
	headers, rows := RowCells(rep, loc)
	rightAlign := map[int]bool{4: true, 6: true, 7: true, 8: true}
	return Table(headers, rows, rightAlign)
}

// RowCells returns the column headers and unpadded cells of the ranked table.
// A focus column is appended when the report is focused on a checkpoint.
func RowCells(rep Report, loc *time.Location) ([]string, [][]string) {
	headers := []string{"Participant", "Cat", "Sex", "Country", "CPs", "Reached", "Last scan", "Elapsed"}
	if rep.Focus != nil {
		headers = append(headers, "Split "+CheckpointName(rep.Checkpoints, *rep.Focus))
	}
	rows := make([][]string, 0, len(rep.Rows))
	for _, row := range rep.Rows {
		p := row.Timeline.Participant
		reached := ""
		lastScan := NotAvailable
		if len(row.Splits) > 0 {
			reached = CheckpointName(rep.Checkpoints, row.MaxCheckpoint)
			lastScan = FormatTimeOfDay(row.Splits[len(row.Splits)-1].Timestamp, loc)
		}
		cells := []string{
			ParticipantLabel(row),
			p.Category,
			p.Sex,
			filter.CountryName(p.Country),
			strconv.Itoa(row.CheckpointCount),
			reached,
			lastScan,
			FormatDuration(row.TotalElapsed),
		}
		if rep.Focus != nil {
			split := NotAvailable
			if s, ok := row.SplitAt(*rep.Focus); ok {
				split = FormatDuration(s.Duration)
			}
			cells = append(cells, split)
		}
		rows = append(rows, cells)
	}
	return headers, rows
}

// SplitTable renders the splits of one row.
func SplitTable(row model.RankedRow, checkpoints []model.Checkpoint, loc *time.Location) []string {
	headers := []string{"Checkpoint", "Time", "Split", "Cumulative", ""}
	rows := make([][]string, 0, len(row.Splits))
	for _, s := range row.Splits {
		label := CheckpointName(checkpoints, s.Checkpoint)
		note := ""
		if IsRestSection(label) {
			note = "rest"
		}
		rows = append(rows, []string{
			label,
			FormatTimeOfDay(s.Timestamp, loc),
			FormatDuration(s.Duration),
			FormatDuration(s.Cumulative),
			note,
		})
	}
	return Table(headers, rows, map[int]bool{2: true, 3: true})
}
