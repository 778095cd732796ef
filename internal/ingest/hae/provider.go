package hae

import (
	"context"
	"fmt"

	"github.com/meltforce/haetable/internal/airtable"
	"github.com/meltforce/haetable/internal/ingest"
	"github.com/meltforce/haetable/internal/lock"
	"github.com/meltforce/haetable/internal/models"
)

// Remote is the subset of the Airtable API the pipeline talks to.
// *airtable.Client implements it.
type Remote interface {
	ListTables(ctx context.Context) ([]airtable.Table, error)
	CreateTable(ctx context.Context, name string, fields []airtable.Field) (*airtable.Table, error)
	ListRecords(ctx context.Context, table string, q airtable.ListQuery) (*airtable.RecordPage, error)
	CreateRecords(ctx context.Context, table string, rows []airtable.Fields) ([]airtable.Record, error)
}

// Recorder receives pipeline events for metrics.
type Recorder interface {
	TableCreated(table string)
	SampleSkipped(table string, reason SkipReason)
	RowsWritten(table string, n int)
	BatchFailed(table string)
}

type nopRecorder struct{}

func (nopRecorder) TableCreated(string)              {}
func (nopRecorder) SampleSkipped(string, SkipReason) {}
func (nopRecorder) RowsWritten(string, int)          {}
func (nopRecorder) BatchFailed(string)               {}

// Provider runs Health Auto Export payloads into an Airtable base.
type Provider struct {
	remote Remote
	locker lock.Locker
	rec    Recorder
	log    ingest.Logger
	dryRun bool
}

// Option configures a Provider.
type Option func(*Provider)

// WithLocker replaces the default in-process per-table lock.
func WithLocker(l lock.Locker) Option {
	return func(p *Provider) { p.locker = l }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Provider) { p.rec = r }
}

// WithDryRun maps samples and reports what would be written without
// creating tables or records.
func WithDryRun(dry bool) Option {
	return func(p *Provider) { p.dryRun = dry }
}

// NewProvider creates a new HAE ingest provider.
func NewProvider(remote Remote, log ingest.Logger, opts ...Option) *Provider {
	p := &Provider{
		remote: remote,
		locker: lock.NewKeyed(),
		rec:    nopRecorder{},
		log:    log,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Ingest processes every metric of payload in order. Remote failures are
// logged and counted; the returned result is always non-nil.
func (p *Provider) Ingest(ctx context.Context, payload *models.HAEPayload) *ingest.Result {
	result := &ingest.Result{DryRun: p.dryRun}

	metrics := payload.Data.Metrics
	result.MetricsReceived = len(metrics)
	if len(metrics) == 0 {
		p.log.Warn("payload contains no metrics")
		result.Message = "no metrics in payload"
		return result
	}

	listing := p.ListTables(ctx)
	result.TableListing = listing.Outcome.String()

	for _, m := range metrics {
		p.IngestMetric(ctx, listing, m, result)
	}

	if result.MetricsRejected > 0 {
		result.Message = fmt.Sprintf("%d malformed or unnamed metric(s) were skipped", result.MetricsRejected)
	}
	p.log.Info("payload processed",
		"metrics", result.MetricsReceived,
		"samples", result.SamplesReceived,
		"written", result.RowsWritten,
		"duplicate", result.RowsDuplicate,
		"invalid", result.RowsInvalid,
		"failed", result.RowsFailed,
	)
	return result
}

// IngestMetric runs one metric batch into its table and folds the outcome
// into result.
func (p *Provider) IngestMetric(ctx context.Context, listing *TableListing, m models.HAEMetric, result *ingest.Result) {
	if m.Err != nil {
		p.log.Warn("skipping malformed metric", "metric", m.Name, "error", m.Err)
		result.MetricsRejected++
		return
	}
	if m.Name == "" {
		p.log.Warn("skipping metric without name", "samples", len(m.Data))
		result.MetricsRejected++
		return
	}

	isSleep := IsSleepMetric(m.Name)
	tr := ingest.TableResult{Name: m.Name, Sleep: isSleep, Samples: len(m.Data)}
	defer func() { result.Add(tr) }()

	p.log.Info("processing metric", "metric", m.Name, "samples", len(m.Data), "sleep", isSleep)

	unlock, err := p.locker.Lock(ctx, m.Name)
	if err != nil {
		p.log.Warn("could not acquire table lock, continuing unlocked", "table", m.Name, "error", err)
	} else {
		defer unlock()
	}

	created, err := p.ensureTable(ctx, listing, m.Name, isSleep)
	tr.Created = created
	if err != nil {
		tr.Errors = append(tr.Errors, fmt.Sprintf("creating table: %v", err))
	}

	load := p.LoadExistingDates(ctx, m.Name)
	tr.ExistingDates = load.Dates.Len()
	tr.DatesOutcome = load.Outcome.String()
	if load.Err != nil {
		tr.Errors = append(tr.Errors, fmt.Sprintf("loading existing dates: %v", load.Err))
	}

	rows := p.mapSamples(m, isSleep, load.Dates, &tr)
	if len(rows) == 0 {
		p.log.Info("no new rows to write", "table", m.Name)
		return
	}

	if p.dryRun {
		p.log.Info("dry run: would write rows", "table", m.Name, "rows", len(rows))
		tr.Written = len(rows)
		return
	}
	p.writeRows(ctx, m.Name, rows, &tr)
}

// mapSamples maps samples in input order. Accepted dates are added to
// existing so a repeated timestamp within the batch is a duplicate.
func (p *Provider) mapSamples(m models.HAEMetric, isSleep bool, existing DateSet, tr *ingest.TableResult) []airtable.Fields {
	var rows []airtable.Fields
	for _, raw := range m.Data {
		sample, err := models.ParseHAESample(raw)
		if err != nil {
			p.log.Warn("skipping data point", "metric", m.Name, "error", err)
			tr.Invalid++
			p.rec.SampleSkipped(m.Name, SkipMalformed)
			continue
		}

		row, reason := MapSample(sample, m.Units, isSleep, existing, p.log)
		switch reason {
		case SkipNone:
			existing.Add(row[ColDate].(string))
			rows = append(rows, row)
			continue
		case SkipDuplicate:
			tr.Duplicate++
		default:
			tr.Invalid++
		}
		p.rec.SampleSkipped(m.Name, reason)
	}
	return rows
}

// writeRows sends rows in order, at most airtable.MaxRecordsPerRequest per
// request. A failed batch is counted and the next one is still attempted.
func (p *Provider) writeRows(ctx context.Context, table string, rows []airtable.Fields, tr *ingest.TableResult) {
	total := (len(rows) + airtable.MaxRecordsPerRequest - 1) / airtable.MaxRecordsPerRequest
	for i := 0; i < len(rows); i += airtable.MaxRecordsPerRequest {
		end := min(i+airtable.MaxRecordsPerRequest, len(rows))
		batch := rows[i:end]
		n := i/airtable.MaxRecordsPerRequest + 1

		if err := ctx.Err(); err != nil {
			p.log.Error("stopping writes", "table", table, "batch", n, "of", total, "error", err)
			tr.FailedRows += len(rows) - i
			tr.FailedBatches += total - n + 1
			tr.Errors = append(tr.Errors, fmt.Sprintf("writing batch %d: %v", n, err))
			return
		}

		if _, err := p.remote.CreateRecords(ctx, table, batch); err != nil {
			p.log.Error("failed to write batch", "table", table, "batch", n, "of", total, "rows", len(batch), "error", err)
			tr.FailedRows += len(batch)
			tr.FailedBatches++
			tr.Errors = append(tr.Errors, fmt.Sprintf("writing batch %d: %v", n, err))
			p.rec.BatchFailed(table)
			continue
		}
		tr.Written += len(batch)
		p.rec.RowsWritten(table, len(batch))
		p.log.Debug("batch written", "table", table, "batch", n, "of", total, "rows", len(batch))
	}
	p.log.Info("rows written", "table", table, "written", tr.Written, "failed", tr.FailedRows)
}
