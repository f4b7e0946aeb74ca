package report

import (
	"time"

	"github.com/verte-zerg/ultrasplit/internal/filter"
	"github.com/verte-zerg/ultrasplit/internal/model"
)

// SplitView is the serialized form of a split.
type SplitView struct {
	Checkpoint        int       `json:"checkpoint" yaml:"checkpoint"`
	Label             string    `json:"label" yaml:"label"`
	Rest              bool      `json:"rest,omitempty" yaml:"rest,omitempty"`
	Timestamp         time.Time `json:"timestamp" yaml:"timestamp"`
	Time              string    `json:"time" yaml:"time"`
	SplitSeconds      int64     `json:"split_seconds" yaml:"split_seconds"`
	CumulativeSeconds int64     `json:"cumulative_seconds" yaml:"cumulative_seconds"`
}

// RowView is the serialized form of a ranked row.
type RowView struct {
	Label           string      `json:"label" yaml:"label"`
	Position        *int        `json:"position" yaml:"position,omitempty"`
	Bib             string      `json:"bib" yaml:"bib"`
	Name            string      `json:"name" yaml:"name"`
	Category        string      `json:"category" yaml:"category"`
	Sex             string      `json:"sex" yaml:"sex"`
	Country         string      `json:"country" yaml:"country"`
	CountryName     string      `json:"country_name" yaml:"country_name"`
	Finished        bool        `json:"finished" yaml:"finished"`
	CheckpointCount int         `json:"checkpoint_count" yaml:"checkpoint_count"`
	MaxCheckpoint   int         `json:"max_checkpoint" yaml:"max_checkpoint"`
	ElapsedSeconds  int64       `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	Elapsed         string      `json:"elapsed" yaml:"elapsed"`
	Splits          []SplitView `json:"splits" yaml:"splits"`
}

// BucketView is the serialized form of a histogram bucket.
type BucketView struct {
	Hour  int `json:"hour" yaml:"hour"`
	Count int `json:"count" yaml:"count"`
}

// FiltersView is the serialized form of the active filters.
type FiltersView struct {
	Search   string `json:"search,omitempty" yaml:"search,omitempty"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Sex      string `json:"sex,omitempty" yaml:"sex,omitempty"`
	Country  string `json:"country,omitempty" yaml:"country,omitempty"`
}

// Document is a complete serialized view.
type Document struct {
	Shown     int          `json:"shown" yaml:"shown"`
	Total     int          `json:"total" yaml:"total"`
	Focus     *int         `json:"focus" yaml:"focus,omitempty"`
	Filters   FiltersView  `json:"filters" yaml:"filters,omitempty"`
	Rows      []RowView    `json:"rows" yaml:"rows"`
	Histogram []BucketView `json:"histogram,omitempty" yaml:"histogram,omitempty"`
}

// NewRowView converts a row, resolving checkpoint labels and display times.
func NewRowView(row model.RankedRow, checkpoints []model.Checkpoint, loc *time.Location) RowView {
	p := row.Timeline.Participant
	view := RowView{
		Label:           ParticipantLabel(row),
		Position:        row.Timeline.Position,
		Bib:             p.Bib,
		Name:            p.Name,
		Category:        p.Category,
		Sex:             p.Sex,
		Country:         p.Country,
		CountryName:     filter.CountryName(p.Country),
		Finished:        row.Timeline.Finished(),
		CheckpointCount: row.CheckpointCount,
		MaxCheckpoint:   row.MaxCheckpoint,
		ElapsedSeconds:  int64(row.TotalElapsed / time.Second),
		Elapsed:         FormatDuration(row.TotalElapsed),
		Splits:          make([]SplitView, 0, len(row.Splits)),
	}
	for _, s := range row.Splits {
		label := CheckpointName(checkpoints, s.Checkpoint)
		view.Splits = append(view.Splits, SplitView{
			Checkpoint:        s.Checkpoint,
			Label:             label,
			Rest:              IsRestSection(label),
			Timestamp:         s.Timestamp,
			Time:              FormatTimeOfDay(s.Timestamp, loc),
			SplitSeconds:      int64(s.Duration / time.Second),
			CumulativeSeconds: int64(s.Cumulative / time.Second),
		})
	}
	return view
}

// NewDocument converts a report.
func NewDocument(rep Report, loc *time.Location) Document {
	doc := Document{
		Shown: len(rep.Rows),
		Total: rep.Total,
		Focus: rep.Focus,
		Filters: FiltersView{
			Search:   rep.Filters.Search,
			Category: rep.Filters.Category,
			Sex:      rep.Filters.Sex,
			Country:  rep.Filters.Country,
		},
		Rows: make([]RowView, 0, len(rep.Rows)),
	}
	for _, row := range rep.Rows {
		doc.Rows = append(doc.Rows, NewRowView(row, rep.Checkpoints, loc))
	}
	for _, b := range rep.Histogram {
		doc.Histogram = append(doc.Histogram, BucketView{Hour: b.Hour, Count: b.Count})
	}
	return doc
}
