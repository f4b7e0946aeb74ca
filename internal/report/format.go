// Package report renders race views as text tables, histograms and YAML.
package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/ultrasplit/internal/model"
)

// NotAvailable is shown for missing durations and times.
const NotAvailable = "N/A"

// RaceTime is the default display zone for scan times.
var RaceTime = time.FixedZone("race time", 3600)

var offsetPattern = regexp.MustCompile(`^([+-])(\d{1,2}):?(\d{2})$`)

// ParseLocation resolves a display zone: an offset such as "+01:00", "UTC",
// or an IANA name. Empty means RaceTime.
func ParseLocation(value string) (*time.Location, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return RaceTime, nil
	}
	if m := offsetPattern.FindStringSubmatch(value); m != nil {
		hours, _ := strconv.Atoi(m[2])
		minutes, _ := strconv.Atoi(m[3])
		if hours > 14 || minutes > 59 {
			return nil, fmt.Errorf("invalid utc offset %q", value)
		}
		offset := hours*3600 + minutes*60
		if m[1] == "-" {
			offset = -offset
		}
		return time.FixedZone("UTC"+value, offset), nil
	}
	loc, err := time.LoadLocation(value)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", value, err)
	}
	return loc, nil
}

// FormatDuration renders a duration as HH:MM:SS with unbounded hours.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return NotAvailable
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// FormatTimeOfDay renders the wall-clock time of a scan in loc.
func FormatTimeOfDay(ts time.Time, loc *time.Location) string {
	if ts.IsZero() {
		return NotAvailable
	}
	if loc == nil {
		loc = RaceTime
	}
	return ts.In(loc).Format("15:04:05")
}

// CheckpointName returns the label of a checkpoint rank, or CP{rank}.
func CheckpointName(checkpoints []model.Checkpoint, rank int) string {
	for _, cp := range checkpoints {
		if cp.Rank == rank && strings.TrimSpace(cp.Label) != "" {
			return cp.Label
		}
	}
	return fmt.Sprintf("CP%d", rank)
}

// IsRestSection reports whether the split ending at a checkpoint is spent
// resting, which is the case for stations labelled as exits.
func IsRestSection(label string) bool {
	return strings.Contains(label, "OUT")
}

// ParticipantLabel is the row label: "3. Name (bib)" or "Name (bib) DNF".
func ParticipantLabel(row model.RankedRow) string {
	p := row.Timeline.Participant
	if row.Timeline.Position == nil {
		return fmt.Sprintf("%s (%s) DNF", p.Name, p.Bib)
	}
	return fmt.Sprintf("%d. %s (%s)", *row.Timeline.Position, p.Name, p.Bib)
}
