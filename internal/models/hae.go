package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// HAEPayload is the top-level REST automation JSON structure.
//
// Only the nested shape {"data": {"metrics": [...]}} is accepted. The older
// flat form, where "data" is an array of entries that each carry "metrics",
// is detected by HAEData.UnmarshalJSON and reported via ErrLegacyShape.
type HAEPayload struct {
	Data HAEData `json:"data"`
}

// HAEData contains the metric batches of one delivery.
type HAEData struct {
	Metrics []HAEMetric `json:"metrics"`
}

// ErrLegacyShape is returned when "data" is a JSON array instead of an object.
var ErrLegacyShape = errors.New("payload uses the flat array shape")

func (d *HAEData) UnmarshalJSON(b []byte) error {
	if first := firstByte(b); first == '[' {
		return ErrLegacyShape
	}
	type plain HAEData
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*d = HAEData(p)
	return nil
}

func firstByte(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return c
	}
	return 0
}

// HAEMetric is a single metric batch with name, units and samples. Samples
// stay raw so a malformed point can be skipped without failing the batch.
//
// A batch whose own fields have the wrong JSON kind does not fail the
// payload: decoding records the problem in Err and the pipeline rejects
// just that batch.
type HAEMetric struct {
	Name  string            `json:"name"`
	Units string            `json:"units"`
	Data  []json.RawMessage `json:"data"`

	Err error `json:"-"`
}

func (m *HAEMetric) UnmarshalJSON(b []byte) error {
	*m = HAEMetric{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil || raw == nil {
		m.Err = fmt.Errorf("metric is not an object: %s", truncate(b, 64))
		return nil
	}
	fields := []struct {
		key string
		dst any
	}{
		{"name", &m.Name},
		{"units", &m.Units},
		{"data", &m.Data},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok || string(v) == "null" {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			name := m.Name
			*m = HAEMetric{Name: name, Err: fmt.Errorf("%s: %w", f.key, err)}
			return nil
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// ParseHAESample decodes one raw data point.
func ParseHAESample(raw json.RawMessage) (HAESample, error) {
	var s HAESample
	if err := json.Unmarshal(raw, &s); err != nil {
		return HAESample{}, fmt.Errorf("parsing sample: %w", err)
	}
	return s, nil
}

// HAESample is one data point of a metric. Optional fields are nil when the
// export omitted them.
type HAESample struct {
	Date   string
	Qty    *float64
	Source string

	Min *float64
	Max *float64
	Avg *float64

	// Sleep holds sleep-stage values keyed by their snake_case name
	// (asleep, inbed, sleep_start, ...). Durations are float64 and
	// timestamps string; other JSON kinds are kept as decoded.
	Sleep map[string]any
}

// sampleKeys lists the accepted JSON keys per field. HAE capitalizes
// Min/Avg/Max for heart rate and uses camelCase for aggregated sleep.
var sampleKeys = struct {
	min, max, avg []string
}{
	min: []string{"min", "Min"},
	max: []string{"max", "Max"},
	avg: []string{"avg", "Avg"},
}

// sleepKeys lists the accepted sleep keys with their snake_case name. When
// both spellings of a field are present the earlier entry wins.
var sleepKeys = []struct{ key, name string }{
	{"asleep", "asleep"},
	{"inbed", "inbed"},
	{"inBed", "inbed"},
	{"awake", "awake"},
	{"core", "core"},
	{"deep", "deep"},
	{"rem", "rem"},
	{"sleep_start", "sleep_start"},
	{"sleepStart", "sleep_start"},
	{"sleep_end", "sleep_end"},
	{"sleepEnd", "sleep_end"},
	{"inbed_start", "inbed_start"},
	{"inBedStart", "inbed_start"},
	{"inbed_end", "inbed_end"},
	{"inBedEnd", "inbed_end"},
}

func (s *HAESample) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*s = HAESample{}
	if v, ok := raw["date"]; ok {
		if err := json.Unmarshal(v, &s.Date); err != nil {
			return fmt.Errorf("date: %w", err)
		}
	}
	if v, ok := raw["source"]; ok {
		if err := json.Unmarshal(v, &s.Source); err != nil {
			return fmt.Errorf("source: %w", err)
		}
	}

	var err error
	if s.Qty, err = numberField(raw, "qty"); err != nil {
		return err
	}
	if s.Min, err = numberField(raw, sampleKeys.min...); err != nil {
		return err
	}
	if s.Max, err = numberField(raw, sampleKeys.max...); err != nil {
		return err
	}
	if s.Avg, err = numberField(raw, sampleKeys.avg...); err != nil {
		return err
	}

	for _, k := range sleepKeys {
		v, ok := raw[k.key]
		if !ok || string(v) == "null" {
			continue
		}
		if _, seen := s.Sleep[k.name]; seen {
			continue
		}
		// Values of any other kind are kept as decoded and dropped by the
		// mapper, so one odd field does not reject the whole sample.
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("%s: %w", k.key, err)
		}
		if s.Sleep == nil {
			s.Sleep = make(map[string]any)
		}
		s.Sleep[k.name] = val
	}
	return nil
}

// numberField returns the first present key as a float, nil when none is set.
func numberField(raw map[string]json.RawMessage, keys ...string) (*float64, error) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || string(v) == "null" {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		return &f, nil
	}
	return nil, nil
}
