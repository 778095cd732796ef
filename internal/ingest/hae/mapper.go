package hae

import (
	"errors"
	"strconv"

	"github.com/meltforce/haetable/internal/airtable"
	"github.com/meltforce/haetable/internal/ingest"
	"github.com/meltforce/haetable/internal/models"
)

// SkipReason says why a sample produced no row.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipMissingDate
	SkipInvalidDate
	SkipDuplicate
	SkipMalformed
)

func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "none"
	case SkipMissingDate:
		return "missing_date"
	case SkipInvalidDate:
		return "invalid_date"
	case SkipDuplicate:
		return "duplicate"
	case SkipMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// MapSample converts one sample into an outgoing row. It returns SkipNone
// with the row, or a nil row with the reason it was skipped. existing is
// only read; the caller records accepted dates.
func MapSample(s models.HAESample, units string, isSleep bool, existing DateSet, log ingest.Logger) (airtable.Fields, SkipReason) {
	if s.Date == "" {
		log.Warn("skipping sample without date")
		return nil, SkipMissingDate
	}

	date, err := models.NormalizeHAEDate(s.Date)
	if err != nil {
		log.Warn("skipping sample with invalid date", "date", s.Date, "error", err)
		return nil, SkipInvalidDate
	}

	if existing.Has(date) {
		log.Info("skipping duplicate sample", "date", date)
		return nil, SkipDuplicate
	}

	row := airtable.Fields{
		ColDate:   date,
		ColUnits:  units,
		ColSource: s.Source,
	}
	if s.Qty != nil {
		row[ColQuantity] = *s.Qty
	}
	if s.Min != nil {
		row[ColMin] = *s.Min
	}
	if s.Max != nil {
		row[ColMax] = *s.Max
	}
	if s.Avg != nil {
		row[ColAvg] = *s.Avg
	}

	if isSleep {
		addSleepFields(row, s.Sleep, log)
	}
	return row, SkipNone
}

func addSleepFields(row airtable.Fields, values map[string]any, log ingest.Logger) {
	for _, c := range sleepColumns {
		v, ok := values[c.Key]
		if !ok {
			continue
		}
		var (
			out any
			err error
		)
		if c.Timestamp {
			out, err = sleepTimestamp(v)
		} else {
			out, err = sleepDuration(v)
		}
		if err != nil {
			log.Warn("dropping sleep field", "field", c.Column, "value", v, "error", err)
			continue
		}
		row[c.Column] = out
	}
}

var errWrongKind = errors.New("unexpected value kind")

func sleepTimestamp(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errWrongKind
	}
	return models.NormalizeHAEDate(s)
}

func sleepDuration(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(x, 64)
	default:
		return 0, errWrongKind
	}
}
