// Package race decodes race documents into validated raw records.
package race

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/ultrasplit/internal/model"
)

// ErrMalformed marks a race document whose roster, results or checkpoint
// sections cannot be located.
var ErrMalformed = errors.New("malformed race document")

// Format identifies a race document encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Data is a decoded race: roster, results and checkpoint metadata.
type Data struct {
	Roster      []RosterRecord
	Results     []ResultRecord
	Checkpoints []model.Checkpoint
}

// RosterRecord is one registered participant.
type RosterRecord struct {
	Bib         Bib     `json:"pettorale" yaml:"pettorale"`
	GivenName   string  `json:"nome" yaml:"nome"`
	FamilyName  string  `json:"cognome" yaml:"cognome"`
	Category    *string `json:"categoria" yaml:"categoria"`
	Sex         *bool   `json:"sesso" yaml:"sesso"`
	Nationality *string `json:"nazionalita" yaml:"nazionalita"`
	Nation      *string `json:"nazione" yaml:"nazione"`
}

// ResultRecord is the timing record of one bib.
type ResultRecord struct {
	Bib       Bib       `json:"bib" yaml:"bib"`
	Position  *int      `json:"posizione" yaml:"posizione"`
	TotalTime TotalTime `json:"total_time" yaml:"total_time"`
	Scans     []Scan    `json:"crono" yaml:"crono"`
}

// Scan is a raw checkpoint timestamp.
type Scan struct {
	Checkpoint int    `json:"postazione" yaml:"postazione"`
	Timestamp  string `json:"tempo" yaml:"tempo"`
}

type checkpointRecord struct {
	Rank  int    `json:"rank" yaml:"rank"`
	Label string `json:"text" yaml:"text"`
}

type document struct {
	Participants *struct {
		Entries []RosterRecord `json:"iscritti" yaml:"iscritti"`
	} `json:"participants" yaml:"participants"`
	Results []struct {
		Entries []ResultRecord `json:"result" yaml:"result"`
	} `json:"results" yaml:"results"`
	Checkpoints *struct {
		Entries []checkpointRecord `json:"postazioni" yaml:"postazioni"`
	} `json:"checkpoints" yaml:"checkpoints"`
}

// Bib is a race number. Feeds carry it either as a string or a number.
type Bib string

// UnmarshalJSON accepts string and numeric bibs.
func (b *Bib) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*b = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = Bib(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid bib %s", raw)
	}
	*b = Bib(n.String())
	return nil
}

// UnmarshalYAML accepts any scalar bib.
func (b *Bib) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid bib at line %d", node.Line)
	}
	if node.Tag == "!!null" {
		*b = ""
		return nil
	}
	*b = Bib(strings.TrimSpace(node.Value))
	return nil
}

// TotalTime is the official total time: text, seconds, or absent.
type TotalTime struct {
	model.TotalTime
}

// UnmarshalJSON accepts a string, a number or null.
func (t *TotalTime) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		t.TotalTime = model.TotalTime{}
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		t.TotalTime = model.TotalTime{Text: s, Present: strings.TrimSpace(s) != ""}
	default:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid total_time %s", raw)
		}
		t.TotalTime = model.TotalTime{Seconds: v, IsNumber: true, Present: true}
	}
	return nil
}

// MarshalJSON writes the value back in its feed form.
func (t TotalTime) MarshalJSON() ([]byte, error) {
	switch {
	case !t.Present:
		return []byte("null"), nil
	case t.IsNumber:
		return json.Marshal(t.Seconds)
	default:
		return json.Marshal(t.Text)
	}
}

// UnmarshalYAML accepts a string, a number or null.
func (t *TotalTime) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid total_time at line %d", node.Line)
	}
	switch node.Tag {
	case "!!null":
		t.TotalTime = model.TotalTime{}
	case "!!int", "!!float":
		v, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return fmt.Errorf("invalid total_time at line %d: %w", node.Line, err)
		}
		t.TotalTime = model.TotalTime{Seconds: v, IsNumber: true, Present: true}
	default:
		t.TotalTime = model.TotalTime{Text: node.Value, Present: strings.TrimSpace(node.Value) != ""}
	}
	return nil
}

// FormatFromPath infers a format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported race file extension %q", filepath.Ext(path))
	}
}

// LoadFile reads a race from a single document or a race directory.
func LoadFile(path string) (Data, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Data{}, fmt.Errorf("failed to stat race file: %w", err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return Data{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, fmt.Errorf("failed to read race file: %w", err)
	}
	return Decode(raw, format)
}

// Decode parses a single race document.
func Decode(raw []byte, format Format) (Data, error) {
	var doc document
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(raw, &doc); err != nil {
			return Data{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return Data{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	default:
		return Data{}, fmt.Errorf("unsupported race format %q", format)
	}
	return doc.data()
}

// LoadDir reads a race split across participants, results and checkpoints
// documents in one directory. JSON files take precedence over YAML ones.
func LoadDir(dir string) (Data, error) {
	var doc document
	sections := []struct {
		name   string
		target any
	}{
		{name: "participants", target: &doc.Participants},
		{name: "results", target: &doc.Results},
		{name: "checkpoints", target: &doc.Checkpoints},
	}
	for _, section := range sections {
		path, format, err := findSection(dir, section.name)
		if err != nil {
			return Data{}, err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return Data{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if format == FormatJSON {
			err = json.Unmarshal(raw, section.target)
		} else {
			err = yaml.Unmarshal(raw, section.target)
		}
		if err != nil {
			return Data{}, fmt.Errorf("%w: %s: %v", ErrMalformed, filepath.Base(path), err)
		}
	}
	return doc.data()
}

// EncodeJSON writes data back as a single JSON race document.
func EncodeJSON(data Data) ([]byte, error) {
	var doc document
	doc.Participants = &struct {
		Entries []RosterRecord `json:"iscritti" yaml:"iscritti"`
	}{Entries: nonNil(data.Roster)}
	doc.Results = []struct {
		Entries []ResultRecord `json:"result" yaml:"result"`
	}{{Entries: nonNil(data.Results)}}
	checkpoints := make([]checkpointRecord, 0, len(data.Checkpoints))
	for _, cp := range data.Checkpoints {
		checkpoints = append(checkpoints, checkpointRecord{Rank: cp.Rank, Label: cp.Label})
	}
	doc.Checkpoints = &struct {
		Entries []checkpointRecord `json:"postazioni" yaml:"postazioni"`
	}{Entries: checkpoints}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode race: %w", err)
	}
	return raw, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func findSection(dir, name string) (string, Format, error) {
	candidates := []struct {
		ext    string
		format Format
	}{
		{ext: ".json", format: FormatJSON},
		{ext: ".yaml", format: FormatYAML},
		{ext: ".yml", format: FormatYAML},
	}
	for _, c := range candidates {
		path := filepath.Join(dir, name+c.ext)
		if _, err := os.Stat(path); err == nil {
			return path, c.format, nil
		} else if !os.IsNotExist(err) {
			return "", "", fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}
	return "", "", fmt.Errorf("%w: no %s document in %s", ErrMalformed, name, dir)
}

func (d document) data() (Data, error) {
	if d.Participants == nil {
		return Data{}, fmt.Errorf("%w: participants section not found", ErrMalformed)
	}
	if d.Results == nil {
		return Data{}, fmt.Errorf("%w: results section not found", ErrMalformed)
	}
	if d.Checkpoints == nil {
		return Data{}, fmt.Errorf("%w: checkpoints section not found", ErrMalformed)
	}
	out := Data{
		Roster: d.Participants.Entries,
	}
	if len(d.Results) > 0 {
		out.Results = d.Results[0].Entries
	}
	out.Checkpoints = make([]model.Checkpoint, 0, len(d.Checkpoints.Entries))
	for _, cp := range d.Checkpoints.Entries {
		out.Checkpoints = append(out.Checkpoints, model.Checkpoint{Rank: cp.Rank, Label: cp.Label})
	}
	return out, nil
}
