// Package timeline merges roster entries with scan results.
package timeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/verte-zerg/ultrasplit/internal/model"
	"github.com/verte-zerg/ultrasplit/internal/race"
)

// timestampLayouts are tried in order when parsing scan timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Result holds the timelines built from a race and the problems found on the way.
type Result struct {
	Timelines   []model.Timeline
	Diagnostics []model.Diagnostic
}

// Build produces one timeline per result record with at least one usable scan.
// Results are kept in feed order.
func Build(data race.Data) Result {
	var res Result
	roster := indexRoster(data.Roster, &res.Diagnostics)

	res.Timelines = make([]model.Timeline, 0, len(data.Results))
	for _, rec := range data.Results {
		bib := string(rec.Bib)
		if len(rec.Scans) == 0 {
			continue
		}
		readings := buildReadings(bib, rec.Scans, &res.Diagnostics)
		if len(readings) == 0 {
			res.Diagnostics = append(res.Diagnostics, model.Diagnostic{
				Kind:    model.DiagEmptyScanList,
				Bib:     bib,
				Message: "no scan with a valid timestamp",
			})
			continue
		}

		participant, ok := roster[bib]
		if !ok {
			participant = placeholder(bib)
			res.Diagnostics = append(res.Diagnostics, model.Diagnostic{
				Kind:    model.DiagUnmatchedBib,
				Bib:     bib,
				Message: "bib not found in roster",
			})
		}

		res.Timelines = append(res.Timelines, model.Timeline{
			Participant: participant,
			Readings:    readings,
			Position:    rec.Position,
			TotalTime:   rec.TotalTime.TotalTime,
		})
	}
	return res
}

func indexRoster(records []race.RosterRecord, diags *[]model.Diagnostic) map[string]model.Participant {
	roster := make(map[string]model.Participant, len(records))
	for _, rec := range records {
		bib := string(rec.Bib)
		if _, exists := roster[bib]; exists {
			*diags = append(*diags, model.Diagnostic{
				Kind:    model.DiagDuplicateBib,
				Bib:     bib,
				Message: "duplicate roster entry ignored",
			})
			continue
		}
		roster[bib] = participantFromRoster(rec, diags)
	}
	return roster
}

func participantFromRoster(rec race.RosterRecord, diags *[]model.Diagnostic) model.Participant {
	bib := string(rec.Bib)
	missing := func(attr string) {
		*diags = append(*diags, model.Diagnostic{
			Kind:    model.DiagMissingAttr,
			Bib:     bib,
			Message: attr + " missing",
		})
	}

	category := model.Unknown
	if rec.Category != nil && strings.TrimSpace(*rec.Category) != "" {
		category = *rec.Category
	} else {
		missing("category")
	}

	sex := model.SexUnknown
	switch {
	case rec.Sex == nil:
		missing("sex")
	case *rec.Sex:
		sex = model.SexMale
	default:
		sex = model.SexFemale
	}

	country := ""
	for _, v := range []*string{rec.Nationality, rec.Nation} {
		if v != nil && strings.TrimSpace(*v) != "" {
			country = strings.TrimSpace(*v)
			break
		}
	}
	if country == "" {
		missing("country")
		country = model.Unknown
	}

	return model.Participant{
		Bib:      bib,
		Name:     strings.TrimSpace(rec.GivenName + " " + rec.FamilyName),
		Category: category,
		Sex:      sex,
		Country:  strings.ToLower(country),
	}
}

func placeholder(bib string) model.Participant {
	return model.Participant{
		Bib:      bib,
		Name:     fmt.Sprintf("Participant %s", bib),
		Category: model.Unknown,
		Sex:      model.SexUnknown,
		Country:  strings.ToLower(model.Unknown),
	}
}

// buildReadings computes elapsed times relative to the first usable scan in
// feed order. Scans with unparsable timestamps are dropped.
func buildReadings(bib string, scans []race.Scan, diags *[]model.Diagnostic) []model.CheckpointReading {
	readings := make([]model.CheckpointReading, 0, len(scans))
	var start time.Time
	for _, scan := range scans {
		ts, err := ParseTimestamp(scan.Timestamp)
		if err != nil {
			*diags = append(*diags, model.Diagnostic{
				Kind:       model.DiagBadTimestamp,
				Bib:        bib,
				Checkpoint: scan.Checkpoint,
				Message:    err.Error(),
			})
			continue
		}
		if len(readings) == 0 {
			start = ts
		}
		readings = append(readings, model.CheckpointReading{
			Checkpoint: scan.Checkpoint,
			Timestamp:  ts,
			Elapsed:    ts.Sub(start),
		})
	}
	return readings
}

// ParseTimestamp parses a scan timestamp. Values without a zone are read as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}
