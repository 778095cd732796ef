package models

import (
	"encoding/json"
	"errors"
	"testing"
)

// TestHAEPayloadUnmarshal verifies parsing a complete REST automation payload.
// Samples stay raw until the pipeline decodes them one by one.
func TestHAEPayloadUnmarshal(t *testing.T) {
	raw := `{
		"data": {
			"metrics": [
				{
					"name": "heart_rate",
					"units": "count/min",
					"data": [
						{"date": "2024-02-06 14:30:00 -0800", "Min": 65, "Avg": 72, "Max": 85, "source": "Apple Watch"}
					]
				}
			]
		}
	}`
	var p HAEPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(p.Data.Metrics) != 1 {
		t.Fatalf("metrics count = %d, want 1", len(p.Data.Metrics))
	}
	m := p.Data.Metrics[0]
	if m.Name != "heart_rate" || m.Units != "count/min" {
		t.Errorf("metric = %q/%q", m.Name, m.Units)
	}
	if len(m.Data) != 1 {
		t.Fatalf("data points = %d, want 1", len(m.Data))
	}

	s, err := ParseHAESample(m.Data[0])
	if err != nil {
		t.Fatalf("ParseHAESample: %v", err)
	}
	if s.Min == nil || *s.Min != 65 || s.Avg == nil || *s.Avg != 72 || s.Max == nil || *s.Max != 85 {
		t.Errorf("min/avg/max = %v/%v/%v", s.Min, s.Avg, s.Max)
	}
	if s.Qty != nil {
		t.Errorf("qty = %v, want nil", *s.Qty)
	}
	if s.Source != "Apple Watch" {
		t.Errorf("source = %q", s.Source)
	}
}

// TestHAEPayloadLegacyShape verifies the flat array form is refused with
// ErrLegacyShape instead of being silently accepted.
func TestHAEPayloadLegacyShape(t *testing.T) {
	raw := `{"data": [ {"metrics": [{"name": "step_count", "data": []}]} ]}`
	var p HAEPayload
	err := json.Unmarshal([]byte(raw), &p)
	if !errors.Is(err, ErrLegacyShape) {
		t.Fatalf("error = %v, want ErrLegacyShape", err)
	}
}

// TestHAEPayloadMissingMetrics verifies a payload without metrics decodes to
// an empty batch list rather than an error.
func TestHAEPayloadMissingMetrics(t *testing.T) {
	var p HAEPayload
	if err := json.Unmarshal([]byte(`{"data": {}}`), &p); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(p.Data.Metrics) != 0 {
		t.Errorf("metrics = %d, want 0", len(p.Data.Metrics))
	}
}

// TestHAEMetricMalformedIsolated verifies a metric with fields of the wrong
// kind decodes with Err set instead of failing the whole payload.
func TestHAEMetricMalformedIsolated(t *testing.T) {
	raw := `{"data": {"metrics": [
		{"name": "heart_rate", "units": "count/min", "data": [{"date": "2024-01-01", "qty": 1}]},
		{"name": "step_count", "data": "oops"},
		{"name": 42},
		"not a metric",
		{"name": "body_mass"}
	]}}`
	var p HAEPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(p.Data.Metrics) != 5 {
		t.Fatalf("metrics count = %d, want 5", len(p.Data.Metrics))
	}

	good := p.Data.Metrics[0]
	if good.Err != nil || good.Name != "heart_rate" || len(good.Data) != 1 {
		t.Errorf("heart_rate = %+v", good)
	}
	if m := p.Data.Metrics[1]; m.Err == nil || m.Name != "step_count" || m.Data != nil {
		t.Errorf("step_count = %+v, want Err with name kept", m)
	}
	for _, i := range []int{2, 3} {
		if p.Data.Metrics[i].Err == nil {
			t.Errorf("metric %d decoded without Err", i)
		}
	}
	if m := p.Data.Metrics[4]; m.Err != nil || m.Data != nil {
		t.Errorf("body_mass without data = %+v, want empty batch", m)
	}
}

// TestParseHAESampleQty verifies a standard quantity sample.
func TestParseHAESampleQty(t *testing.T) {
	s, err := ParseHAESample(json.RawMessage(`{"date": "2024-01-01 08:00:00 +0200", "qty": 62}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Date != "2024-01-01 08:00:00 +0200" {
		t.Errorf("date = %q", s.Date)
	}
	if s.Qty == nil || *s.Qty != 62 {
		t.Errorf("qty = %v, want 62", s.Qty)
	}
	if s.Sleep != nil {
		t.Errorf("sleep = %v, want nil", s.Sleep)
	}
}

// TestParseHAESampleSleepAliases verifies snake_case and camelCase sleep keys
// both land on the snake_case name.
func TestParseHAESampleSleepAliases(t *testing.T) {
	s, err := ParseHAESample(json.RawMessage(`{
		"date": "2024-01-02",
		"asleep": 120,
		"inBed": 130.5,
		"sleepStart": "2024-01-01 23:00:00 +0200",
		"inbed_end": "2024-01-02 07:00:00 +0200",
		"rem": null
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Sleep["asleep"]; got != 120.0 {
		t.Errorf("asleep = %v", got)
	}
	if got := s.Sleep["inbed"]; got != 130.5 {
		t.Errorf("inbed = %v", got)
	}
	if got := s.Sleep["sleep_start"]; got != "2024-01-01 23:00:00 +0200" {
		t.Errorf("sleep_start = %v", got)
	}
	if got := s.Sleep["inbed_end"]; got != "2024-01-02 07:00:00 +0200" {
		t.Errorf("inbed_end = %v", got)
	}
	if _, ok := s.Sleep["rem"]; ok {
		t.Error("null rem should be absent")
	}
}

// TestParseHAESampleMalformed verifies type errors surface so the pipeline
// can skip just this sample.
func TestParseHAESampleMalformed(t *testing.T) {
	for _, raw := range []string{
		`[]`,
		`{"date": 20240101}`,
		`{"date": "2024-01-01", "qty": "many"}`,
	} {
		if _, err := ParseHAESample(json.RawMessage(raw)); err == nil {
			t.Errorf("ParseHAESample(%s) = nil error", raw)
		}
	}
}

// TestParseHAESampleSleepOtherKinds verifies a sleep field of an unexpected
// JSON kind does not fail the sample; the value is kept for the mapper to drop.
func TestParseHAESampleSleepOtherKinds(t *testing.T) {
	s, err := ParseHAESample(json.RawMessage(`{
		"date": "2024-01-02",
		"asleep": 7.5,
		"awake": true,
		"deep": {"h": 1}
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Sleep["asleep"]; got != 7.5 {
		t.Errorf("asleep = %v", got)
	}
	if got := s.Sleep["awake"]; got != true {
		t.Errorf("awake = %#v, want true", got)
	}
	if _, ok := s.Sleep["deep"].(map[string]any); !ok {
		t.Errorf("deep = %#v, want decoded object", s.Sleep["deep"])
	}
}

// TestParseHAESampleSleepSpellingPrecedence verifies the snake_case key wins
// when both spellings of a sleep field are present, on every decode.
func TestParseHAESampleSleepSpellingPrecedence(t *testing.T) {
	raw := json.RawMessage(`{
		"date": "2024-01-02",
		"inBed": 1,
		"inbed": 2,
		"sleepStart": "2024-01-01 22:00:00 +0000",
		"sleep_start": "2024-01-01 23:00:00 +0000"
	}`)
	for i := 0; i < 50; i++ {
		s, err := ParseHAESample(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := s.Sleep["inbed"]; got != 2.0 {
			t.Fatalf("decode %d: inbed = %v, want 2", i, got)
		}
		if got := s.Sleep["sleep_start"]; got != "2024-01-01 23:00:00 +0000" {
			t.Fatalf("decode %d: sleep_start = %v", i, got)
		}
	}
}
