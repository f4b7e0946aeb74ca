// Package histogram buckets finish times into hourly bins.
package histogram

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/verte-zerg/ultrasplit/internal/model"
)

var (
	daysPattern  = regexp.MustCompile(`(\d+)\s+days?`)
	clockPattern = regexp.MustCompile(`(\d+):(\d+):(\d+)`)
)

// MaxTotalTime is the longest total time accepted, in seconds (30 days).
const MaxTotalTime int64 = 30 * 86400

// ParseTotalTime converts an official total time to whole seconds.
// Text values look like "2 days 03:15:30.500" or "27:10:05"; fractional
// seconds are truncated. Numeric values are already seconds. Values above
// MaxTotalTime are rejected.
func ParseTotalTime(tt model.TotalTime) (int64, error) {
	if !tt.Present {
		return 0, fmt.Errorf("total time missing")
	}
	if tt.IsNumber {
		if tt.Seconds < 0 || math.IsNaN(tt.Seconds) || math.IsInf(tt.Seconds, 0) {
			return 0, fmt.Errorf("invalid total time %v", tt.Seconds)
		}
		if tt.Seconds > float64(MaxTotalTime) {
			return 0, fmt.Errorf("total time %v out of range", tt.Seconds)
		}
		return int64(tt.Seconds), nil
	}
	text := strings.TrimSpace(tt.Text)

	var days int64
	if m := daysPattern.FindStringSubmatch(text); m != nil {
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid total time %q: %w", text, err)
		}
		if v > MaxTotalTime/86400 {
			return 0, fmt.Errorf("total time %q out of range", text)
		}
		days = v
	}
	m := clockPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("invalid total time %q", text)
	}
	parts := make([]int64, 3)
	for i := range parts {
		v, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid total time %q: %w", text, err)
		}
		if v > MaxTotalTime {
			return 0, fmt.Errorf("total time %q out of range", text)
		}
		parts[i] = v
	}
	total := days*86400 + parts[0]*3600 + parts[1]*60 + parts[2]
	if total > MaxTotalTime {
		return 0, fmt.Errorf("total time %q out of range", text)
	}
	return total, nil
}

// Qualifies reports whether a timeline counts as a finisher: it needs both a
// total time and a finishing position.
func Qualifies(tl model.Timeline) bool {
	return tl.TotalTime.Present && tl.Position != nil
}

// Build returns a dense hourly histogram of finisher total times covering
// every hour from 0 through the slowest finisher. Unparsable or out-of-range
// total times are counted at 0 seconds and reported.
func Build(timelines []model.Timeline) ([]model.HistogramBucket, []model.Diagnostic) {
	counts := map[int]int{}
	maxHour := -1
	var diags []model.Diagnostic
	for _, tl := range timelines {
		if !Qualifies(tl) {
			continue
		}
		seconds, err := ParseTotalTime(tl.TotalTime)
		if err != nil {
			diags = append(diags, model.Diagnostic{
				Kind:    model.DiagBadTotalTime,
				Bib:     tl.Participant.Bib,
				Message: err.Error(),
			})
			seconds = 0
		}
		hour := int(seconds / 3600)
		counts[hour]++
		if hour > maxHour {
			maxHour = hour
		}
	}
	if maxHour < 0 {
		return []model.HistogramBucket{}, diags
	}
	buckets := make([]model.HistogramBucket, maxHour+1)
	for h := range buckets {
		buckets[h] = model.HistogramBucket{Hour: h, Count: counts[h]}
	}
	return buckets, diags
}
