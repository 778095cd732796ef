package mcp

import (
	"context"
	"sort"

	"github.com/meltforce/haetable/internal/ingest/hae"
	"github.com/meltforce/haetable/internal/storage"
)

// TableList is the set of tables in the Airtable base.
type TableList struct {
	Tables  []string `json:"tables"`
	Listing string   `json:"listing"`
	Error   string   `json:"error,omitempty"`
}

// TableDates summarizes the timestamps stored in one table.
type TableDates struct {
	Table   string   `json:"table"`
	Count   int      `json:"count"`
	Pages   int      `json:"pages"`
	Outcome string   `json:"outcome"`
	Latest  []string `json:"latest"`
	Error   string   `json:"error,omitempty"`
}

// DataSource abstracts the data layer for MCP tools. Local (in-process)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ListTables(ctx context.Context) (*TableList, error)
	TableDates(ctx context.Context, table string, latest int) (*TableDates, error)
	RecentDeliveries(ctx context.Context, limit int) ([]storage.Delivery, error)
}

// Local answers from the ingest provider and the delivery journal.
type Local struct {
	provider *hae.Provider
	journal  storage.Journal
}

// Compile-time check: Local satisfies DataSource.
var _ DataSource = (*Local)(nil)

// NewLocal creates a DataSource backed by the running service.
func NewLocal(provider *hae.Provider, journal storage.Journal) *Local {
	return &Local{provider: provider, journal: journal}
}

func (l *Local) ListTables(ctx context.Context) (*TableList, error) {
	listing := l.provider.ListTables(ctx)
	out := &TableList{Tables: listing.Names(), Listing: listing.Outcome.String()}
	if listing.Err != nil {
		out.Error = listing.Err.Error()
	}
	return out, nil
}

func (l *Local) TableDates(ctx context.Context, table string, latest int) (*TableDates, error) {
	load := l.provider.LoadExistingDates(ctx, table)

	dates := make([]string, 0, load.Dates.Len())
	for d := range load.Dates {
		dates = append(dates, d)
	}
	// Canonical timestamps sort chronologically as strings.
	sort.Strings(dates)
	if latest > 0 && len(dates) > latest {
		dates = dates[len(dates)-latest:]
	}

	out := &TableDates{
		Table:   table,
		Count:   load.Dates.Len(),
		Pages:   load.Pages,
		Outcome: load.Outcome.String(),
		Latest:  dates,
	}
	if load.Err != nil {
		out.Error = load.Err.Error()
	}
	return out, nil
}

func (l *Local) RecentDeliveries(ctx context.Context, limit int) ([]storage.Delivery, error) {
	return l.journal.Recent(ctx, limit)
}
