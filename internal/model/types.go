// Package model defines shared data structures.
package model

import "time"

// Sex labels used for participants.
const (
	SexMale    = "Male"
	SexFemale  = "Female"
	SexUnknown = "Unknown"
)

// Unknown is the fallback value for missing participant attributes.
const Unknown = "Unknown"

// Participant is a roster entry resolved at load time.
type Participant struct {
	Bib      string
	Name     string
	Category string
	Sex      string
	Country  string
}

// CheckpointReading is a single scan of a participant at a checkpoint.
type CheckpointReading struct {
	Checkpoint int
	Timestamp  time.Time
	Elapsed    time.Duration
}

// TotalTime holds the official total time as provided by the results feed.
// Either Text or Seconds is meaningful depending on IsNumber.
type TotalTime struct {
	Text     string
	Seconds  float64
	IsNumber bool
	Present  bool
}

// Timeline is a participant with its readings in ingestion order.
type Timeline struct {
	Participant Participant
	Readings    []CheckpointReading
	Position    *int
	TotalTime   TotalTime
}

// Finished reports whether the participant has a finishing position.
func (t Timeline) Finished() bool {
	return t.Position != nil
}

// Split is the time spent reaching a checkpoint from the previous accepted one.
type Split struct {
	Checkpoint int
	Duration   time.Duration
	Cumulative time.Duration
	Timestamp  time.Time
}

// RankedRow is a timeline decorated with reconciled splits.
type RankedRow struct {
	Timeline        Timeline
	Splits          []Split
	TotalElapsed    time.Duration
	CheckpointCount int
	MaxCheckpoint   int
}

// SplitAt returns the split recorded at the given checkpoint rank.
func (r RankedRow) SplitAt(checkpoint int) (Split, bool) {
	for _, s := range r.Splits {
		if s.Checkpoint == checkpoint {
			return s, true
		}
	}
	return Split{}, false
}

// HistogramBucket counts finishers whose total time falls in an hour.
type HistogramBucket struct {
	Hour  int
	Count int
}

// Checkpoint describes a timing station.
type Checkpoint struct {
	Rank  int
	Label string
}

// Filters holds the active facet selections.
type Filters struct {
	Search   string
	Category string
	Sex      string
	Country  string
}

// IsZero reports whether no facet is selected.
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// CountryOption pairs a country code with its display name.
type CountryOption struct {
	Code string
	Name string
}

// Facets lists the distinct values available for each filter.
type Facets struct {
	Categories []string
	Sexes      []string
	Countries  []CountryOption
}

// DiagnosticKind classifies non-fatal data problems.
type DiagnosticKind string

// Diagnostic kinds.
const (
	DiagUnmatchedBib  DiagnosticKind = "unmatched-bib"
	DiagDuplicateBib  DiagnosticKind = "duplicate-bib"
	DiagMissingAttr   DiagnosticKind = "missing-attribute"
	DiagBadTimestamp  DiagnosticKind = "bad-timestamp"
	DiagAnomalousScan DiagnosticKind = "anomalous-scan"
	DiagBadTotalTime  DiagnosticKind = "bad-total-time"
	DiagEmptyScanList DiagnosticKind = "empty-scan-list"
)

// Diagnostic reports a data problem that was resolved with a fallback.
type Diagnostic struct {
	Kind       DiagnosticKind
	Bib        string
	Checkpoint int
	Timestamp  time.Time
	Message    string
}

// RaceInfo describes a race stored in the catalog.
type RaceInfo struct {
	ID           string
	Name         string
	Source       string
	Participants int
	Results      int
	Checkpoints  int
	ImportedAt   time.Time
}
