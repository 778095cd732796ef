package hae

import (
	"fmt"
	"sort"

	"github.com/meltforce/haetable/internal/airtable"
)

// Column names of every metric table.
const (
	ColDate     = "Date"
	ColQuantity = "Quantity"
	ColUnits    = "Units"
	ColSource   = "Source"
	ColMin      = "Min"
	ColMax      = "Max"
	ColAvg      = "Avg"
)

const numberPrecision = 2

// sleepMetrics is the fixed set of metric names whose tables carry sleep
// columns.
var sleepMetrics = map[string]struct{}{
	"sleep_analysis_asleep_in_bed":     {},
	"apple_sleeping_wrist_temperature": {},
	"resting_heart_rate":               {},
}

// IsSleepMetric reports exact membership in the sleep metric set.
func IsSleepMetric(name string) bool {
	_, ok := sleepMetrics[name]
	return ok
}

// SleepMetrics returns the sleep metric names, sorted.
func SleepMetrics() []string {
	out := make([]string, 0, len(sleepMetrics))
	for n := range sleepMetrics {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// sleepColumn maps a sample key onto its table column.
type sleepColumn struct {
	Key       string
	Column    string
	Timestamp bool
}

// sleepColumns is the static key to column mapping for sleep tables, in
// write order.
var sleepColumns = []sleepColumn{
	{Key: "asleep", Column: "Asleep"},
	{Key: "inbed", Column: "InBed"},
	{Key: "awake", Column: "Awake"},
	{Key: "core", Column: "Core"},
	{Key: "deep", Column: "Deep"},
	{Key: "rem", Column: "Rem"},
	{Key: "sleep_start", Column: "Sleep Start", Timestamp: true},
	{Key: "sleep_end", Column: "Sleep End", Timestamp: true},
	{Key: "inbed_start", Column: "InBed Start", Timestamp: true},
	{Key: "inbed_end", Column: "InBed End", Timestamp: true},
}

// BaseFields returns the columns every metric table is created with. Date
// comes first so it becomes the primary field.
func BaseFields() []airtable.Field {
	return []airtable.Field{
		airtable.DateTimeField(ColDate),
		airtable.NumberField(ColQuantity, numberPrecision),
		airtable.TextField(ColUnits),
		airtable.TextField(ColSource),
		airtable.NumberField(ColMin, numberPrecision),
		airtable.NumberField(ColMax, numberPrecision),
		airtable.NumberField(ColAvg, numberPrecision),
	}
}

// SleepFields returns the extra columns of a sleep metric table.
func SleepFields() []airtable.Field {
	return []airtable.Field{
		airtable.NumberField("Asleep", numberPrecision),
		airtable.NumberField("InBed", numberPrecision),
		airtable.NumberField("Awake", numberPrecision),
		airtable.NumberField("Core", numberPrecision),
		airtable.NumberField("Deep", numberPrecision),
		airtable.NumberField("Rem", numberPrecision),
		airtable.DateTimeField("Sleep Start"),
		airtable.DateTimeField("Sleep End"),
		airtable.DateTimeField("InBed Start"),
		airtable.DateTimeField("InBed End"),
	}
}

// TableFields returns the full create-table schema for a metric.
func TableFields(isSleep bool) []airtable.Field {
	fields := BaseFields()
	if isSleep {
		fields = append(fields, SleepFields()...)
	}
	return fields
}

func init() {
	if err := validateSleepColumns(); err != nil {
		panic(err)
	}
}

// validateSleepColumns checks sleepColumns against SleepFields: same column
// set, timestamps on dateTime columns and durations on number columns.
func validateSleepColumns() error {
	schema := make(map[string]string)
	for _, f := range SleepFields() {
		schema[f.Name] = f.Type
	}
	if len(schema) != len(sleepColumns) {
		return fmt.Errorf("hae: %d sleep columns mapped, schema has %d", len(sleepColumns), len(schema))
	}
	for _, c := range sleepColumns {
		typ, ok := schema[c.Column]
		if !ok {
			return fmt.Errorf("hae: sleep key %q maps to unknown column %q", c.Key, c.Column)
		}
		want := airtable.TypeNumber
		if c.Timestamp {
			want = airtable.TypeDateTime
		}
		if typ != want {
			return fmt.Errorf("hae: column %q is %s, mapping expects %s", c.Column, typ, want)
		}
	}
	return nil
}
