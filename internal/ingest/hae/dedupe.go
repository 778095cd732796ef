package hae

import (
	"context"

	"github.com/meltforce/haetable/internal/airtable"
	"github.com/meltforce/haetable/internal/models"
)

const existingPageSize = 100

// DateSet holds canonical timestamps already present in a table.
type DateSet map[string]struct{}

// Has reports membership.
func (s DateSet) Has(date string) bool {
	_, ok := s[date]
	return ok
}

// Add inserts date.
func (s DateSet) Add(date string) {
	s[date] = struct{}{}
}

// Len returns the number of distinct dates.
func (s DateSet) Len() int {
	return len(s)
}

// DateLoad is the result of loading existing dates. On a mid-pagination
// failure Dates holds everything read before the error.
type DateLoad struct {
	Dates   DateSet
	Pages   int
	Outcome Outcome
	Err     error
}

// LoadExistingDates pages through table requesting only the Date column and
// collects every non-empty value. It never returns an error.
func (p *Provider) LoadExistingDates(ctx context.Context, table string) DateLoad {
	load := DateLoad{Dates: make(DateSet)}
	q := airtable.ListQuery{Fields: []string{ColDate}, PageSize: existingPageSize}

	p.log.Info("fetching existing dates", "table", table)
	for {
		page, err := p.remote.ListRecords(ctx, table, q)
		if err != nil {
			load.Err = err
			load.Outcome = OutcomePartial
			if load.Pages == 0 {
				load.Outcome = OutcomeEmpty
			}
			p.log.Error("failed to fetch existing records, continuing with what was read",
				"table", table, "pages", load.Pages, "dates", load.Dates.Len(), "error", err)
			return load
		}
		load.Pages++

		for _, rec := range page.Records {
			v, ok := rec.Fields[ColDate].(string)
			if !ok || v == "" {
				continue
			}
			load.Dates.Add(models.CanonicalizeStored(v))
		}
		p.log.Debug("fetched page of records", "table", table, "page", load.Pages, "records", len(page.Records))

		if page.Offset == "" {
			break
		}
		q.Offset = page.Offset
	}

	p.log.Info("existing dates fetched", "table", table, "pages", load.Pages, "dates", load.Dates.Len())
	return load
}
