// Package metrics exposes race and server counters in the Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/verte-zerg/ultrasplit/internal/model"
	"github.com/verte-zerg/ultrasplit/internal/session"
)

const namespace = "ultrasplit"

// Format is the exposition format served by Write.
var Format = expfmt.NewFormat(expfmt.TypeTextPlain)

// RaceStats are the per-race gauges.
type RaceStats struct {
	ID           string
	Participants int
	Finishers    int
	Checkpoints  int
	Diagnostics  map[model.DiagnosticKind]int
}

// StatsFor summarizes a prepared race.
func StatsFor(id string, r *session.Race) RaceStats {
	return RaceStats{
		ID:           id,
		Participants: len(r.Rows),
		Finishers:    r.Finishers(),
		Checkpoints:  len(r.Checkpoints),
		Diagnostics:  r.DiagnosticCounts(),
	}
}

type requestKey struct {
	path string
	code int
}

// Registry counts served requests. It is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	requests map[requestKey]uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{requests: map[requestKey]uint64{}}
}

// ObserveRequest records one response.
func (r *Registry) ObserveRequest(path string, code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[requestKey{path: path, code: code}]++
}

// Families builds the metric families for the given races plus the request
// counters, sorted by name.
func (r *Registry) Families(races []RaceStats) []*dto.MetricFamily {
	participants := gaugeFamily("race_participants", "Participants with at least one scan.")
	finishers := gaugeFamily("race_finishers", "Participants with a finishing position.")
	dnf := gaugeFamily("race_dnf", "Participants without a finishing position.")
	checkpoints := gaugeFamily("race_checkpoints", "Timing stations declared by the race.")
	diagnostics := gaugeFamily("race_diagnostics", "Data problems resolved with a fallback, by kind.")

	sorted := append([]RaceStats(nil), races...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, rs := range sorted {
		raceLabel := label("race", rs.ID)
		participants.Metric = append(participants.Metric, gauge(float64(rs.Participants), raceLabel))
		finishers.Metric = append(finishers.Metric, gauge(float64(rs.Finishers), raceLabel))
		dnf.Metric = append(dnf.Metric, gauge(float64(rs.Participants-rs.Finishers), raceLabel))
		checkpoints.Metric = append(checkpoints.Metric, gauge(float64(rs.Checkpoints), raceLabel))

		kinds := make([]string, 0, len(rs.Diagnostics))
		for k := range rs.Diagnostics {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			count := rs.Diagnostics[model.DiagnosticKind(k)]
			diagnostics.Metric = append(diagnostics.Metric, gauge(float64(count), label("kind", k), raceLabel))
		}
	}

	requests := &dto.MetricFamily{
		Name: ptr(namespace + "_http_requests_total"),
		Help: ptr("API responses by path and status code."),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	r.mu.Lock()
	keys := make([]requestKey, 0, len(r.requests))
	for k := range r.requests {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].path == keys[j].path {
			return keys[i].code < keys[j].code
		}
		return keys[i].path < keys[j].path
	})
	for _, k := range keys {
		requests.Metric = append(requests.Metric, &dto.Metric{
			Label:   []*dto.LabelPair{label("code", strconv.Itoa(k.code)), label("path", k.path)},
			Counter: &dto.Counter{Value: ptr(float64(r.requests[k]))},
		})
	}
	r.mu.Unlock()

	families := []*dto.MetricFamily{participants, finishers, dnf, checkpoints, diagnostics, requests}
	out := families[:0]
	for _, f := range families {
		if len(f.Metric) > 0 {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

// Write encodes families in the text exposition format.
func Write(w io.Writer, families []*dto.MetricFamily) error {
	enc := expfmt.NewEncoder(w, Format)
	for _, f := range families {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("failed to encode %s: %w", f.GetName(), err)
		}
	}
	return nil
}

func gaugeFamily(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: ptr(namespace + "_" + name),
		Help: ptr(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func gauge(value float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Gauge: &dto.Gauge{Value: ptr(value)}}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: ptr(name), Value: ptr(value)}
}

func ptr[T any](v T) *T {
	return &v
}
