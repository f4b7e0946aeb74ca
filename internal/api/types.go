package api

import (
	"time"

	"github.com/verte-zerg/ultrasplit/internal/report"
)

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status      string `json:"status"`
	DefaultRace string `json:"default_race,omitempty"`
	LoadedRaces int    `json:"loaded_races"`
}

// RaceResponse is one catalog entry.
type RaceResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Source       string     `json:"source"`
	Participants int        `json:"participants"`
	Results      int        `json:"results"`
	Checkpoints  int        `json:"checkpoints"`
	ImportedAt   *time.Time `json:"imported_at,omitempty"`
	Default      bool       `json:"default"`
}

// RowsResponse is the body of GET /api/v1/rows.
type RowsResponse struct {
	Race string `json:"race"`
	report.Document
}

// CountryResponse is a country facet option.
type CountryResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// FacetsResponse is the body of GET /api/v1/facets.
type FacetsResponse struct {
	Race       string            `json:"race"`
	Categories []string          `json:"categories"`
	Sexes      []string          `json:"sexes"`
	Countries  []CountryResponse `json:"countries"`
}

// HistogramResponse is the body of GET /api/v1/histogram.
type HistogramResponse struct {
	Race      string              `json:"race"`
	Finishers int                 `json:"finishers"`
	Buckets   []report.BucketView `json:"buckets"`
}

// CheckpointResponse is one timing station.
type CheckpointResponse struct {
	Rank  int    `json:"rank"`
	Label string `json:"label"`
	Rest  bool   `json:"rest"`
}

// DiagnosticResponse is one data problem found while loading a race.
type DiagnosticResponse struct {
	Kind       string     `json:"kind"`
	Bib        string     `json:"bib,omitempty"`
	Checkpoint int        `json:"checkpoint,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	Message    string     `json:"message"`
}

// optionalTime leaves zero times out of responses.
func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

type errorResponse struct {
	Error string `json:"error"`
}
