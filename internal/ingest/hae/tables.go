package hae

import (
	"context"
	"sort"
)

// Outcome describes how much of a remote read succeeded. Partial and Empty
// are successful results of a failed read; Err carries the cause.
type Outcome int

const (
	OutcomeComplete Outcome = iota
	OutcomePartial
	OutcomeEmpty
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomePartial:
		return "partial"
	case OutcomeEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// TableListing is the set of table names known for one pipeline run.
type TableListing struct {
	names   map[string]struct{}
	Outcome Outcome
	Err     error
}

func newTableListing() *TableListing {
	return &TableListing{names: make(map[string]struct{})}
}

// Has reports whether name is known to exist (or was just created).
func (l *TableListing) Has(name string) bool {
	_, ok := l.names[name]
	return ok
}

func (l *TableListing) add(name string) {
	l.names[name] = struct{}{}
}

// Names returns the known table names, sorted.
func (l *TableListing) Names() []string {
	out := make([]string, 0, len(l.names))
	for n := range l.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ListTables fetches the table names of the base. A failed call yields an
// empty listing with OutcomeEmpty; it never returns an error.
func (p *Provider) ListTables(ctx context.Context) *TableListing {
	listing := newTableListing()

	p.log.Info("fetching existing tables")
	tables, err := p.remote.ListTables(ctx)
	if err != nil {
		p.log.Error("failed to list tables, treating base as empty", "error", err)
		listing.Outcome = OutcomeEmpty
		listing.Err = err
		return listing
	}

	for _, t := range tables {
		listing.add(t.Name)
	}
	p.log.Info("existing tables retrieved", "count", len(tables))
	return listing
}

// ensureTable creates name when the listing does not contain it. It reports
// whether a table was created. The name is marked known even when creation
// fails so the run does not retry.
func (p *Provider) ensureTable(ctx context.Context, listing *TableListing, name string, isSleep bool) (created bool, err error) {
	if listing.Has(name) {
		p.log.Debug("table exists", "table", name)
		return false, nil
	}
	defer listing.add(name)

	if p.dryRun {
		p.log.Info("dry run: would create table", "table", name, "sleep", isSleep)
		return false, nil
	}

	p.log.Info("table does not exist, creating", "table", name, "sleep", isSleep)
	if _, err := p.remote.CreateTable(ctx, name, TableFields(isSleep)); err != nil {
		p.log.Error("failed to create table", "table", name, "error", err)
		return false, err
	}
	p.rec.TableCreated(name)
	p.log.Info("table created", "table", name)
	return true, nil
}
