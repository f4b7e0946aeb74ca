package metrics

import (
	"bytes"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/verte-zerg/ultrasplit/internal/model"
)

func parse(t *testing.T, text string) map[string]*dto.MetricFamily {
	t.Helper()
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(strings.NewReader(text))
	if err != nil {
		t.Fatalf("parse exposition: %v\n%s", err, text)
	}
	return mfs
}

func valueFor(mf *dto.MetricFamily, labels map[string]string) (float64, bool) {
	for _, m := range mf.GetMetric() {
		match := true
		for _, lp := range m.GetLabel() {
			if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
				match = false
			}
		}
		if !match {
			continue
		}
		switch {
		case m.Gauge != nil:
			return m.Gauge.GetValue(), true
		case m.Counter != nil:
			return m.Counter.GetValue(), true
		}
	}
	return 0, false
}

func TestWriteRaceAndRequestMetrics(t *testing.T) {
	reg := NewRegistry()
	reg.ObserveRequest("/api/v1/rows", 200)
	reg.ObserveRequest("/api/v1/rows", 200)
	reg.ObserveRequest("/api/v1/rows", 404)

	races := []RaceStats{
		{ID: "tor330", Participants: 10, Finishers: 7, Checkpoints: 40, Diagnostics: map[model.DiagnosticKind]int{model.DiagAnomalousScan: 3}},
		{ID: "tds", Participants: 4, Finishers: 4, Checkpoints: 20},
	}
	var buf bytes.Buffer
	if err := Write(&buf, reg.Families(races)); err != nil {
		t.Fatalf("write: %v", err)
	}
	mfs := parse(t, buf.String())

	checks := []struct {
		family string
		labels map[string]string
		want   float64
	}{
		{"ultrasplit_race_participants", map[string]string{"race": "tor330"}, 10},
		{"ultrasplit_race_finishers", map[string]string{"race": "tds"}, 4},
		{"ultrasplit_race_dnf", map[string]string{"race": "tor330"}, 3},
		{"ultrasplit_race_checkpoints", map[string]string{"race": "tds"}, 20},
		{"ultrasplit_race_diagnostics", map[string]string{"race": "tor330", "kind": "anomalous-scan"}, 3},
		{"ultrasplit_http_requests_total", map[string]string{"path": "/api/v1/rows", "code": "200"}, 2},
		{"ultrasplit_http_requests_total", map[string]string{"path": "/api/v1/rows", "code": "404"}, 1},
	}
	for _, c := range checks {
		mf, ok := mfs[c.family]
		if !ok {
			t.Fatalf("missing family %s in:\n%s", c.family, buf.String())
		}
		got, ok := valueFor(mf, c.labels)
		if !ok || got != c.want {
			t.Fatalf("%s%v: expected %v, got %v (found=%v)", c.family, c.labels, c.want, got, ok)
		}
	}
	if mfs["ultrasplit_http_requests_total"].GetType() != dto.MetricType_COUNTER {
		t.Fatalf("expected request counter type")
	}
}

func TestFamiliesSkipEmpty(t *testing.T) {
	families := NewRegistry().Families(nil)
	if len(families) != 0 {
		t.Fatalf("expected no families, got %d", len(families))
	}
}
