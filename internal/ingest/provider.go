package ingest

// Logger is the logging collaborator injected into ingest components.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Result holds the outcome of one delivery. It is informational: the webhook
// answers success regardless of what it contains.
type Result struct {
	MetricsReceived int `json:"metrics_received"`
	MetricsRejected int `json:"metrics_rejected"`

	SamplesReceived int `json:"samples_received"`
	RowsWritten     int `json:"rows_written"`
	RowsDuplicate   int `json:"rows_duplicate"`
	RowsInvalid     int `json:"rows_invalid"`
	RowsFailed      int `json:"rows_failed"`

	TablesCreated int    `json:"tables_created"`
	TableListing  string `json:"table_listing"`

	Tables []TableResult `json:"tables,omitempty"`

	DryRun  bool   `json:"dry_run,omitempty"`
	Message string `json:"message,omitempty"`
}

// TableResult is the per-metric breakdown of a delivery.
type TableResult struct {
	Name    string `json:"name"`
	Sleep   bool   `json:"sleep,omitempty"`
	Created bool   `json:"created,omitempty"`

	ExistingDates int    `json:"existing_dates"`
	DatesOutcome  string `json:"dates_outcome"`

	Samples       int `json:"samples"`
	Written       int `json:"written"`
	Duplicate     int `json:"duplicate"`
	Invalid       int `json:"invalid"`
	FailedRows    int `json:"failed_rows,omitempty"`
	FailedBatches int `json:"failed_batches,omitempty"`

	Errors []string `json:"errors,omitempty"`
}

// Add folds a table breakdown into the delivery totals.
func (r *Result) Add(t TableResult) {
	r.SamplesReceived += t.Samples
	r.RowsWritten += t.Written
	r.RowsDuplicate += t.Duplicate
	r.RowsInvalid += t.Invalid
	r.RowsFailed += t.FailedRows
	if t.Created {
		r.TablesCreated++
	}
	r.Tables = append(r.Tables, t)
}

// Failed reports whether any part of the delivery could not be completed.
func (r *Result) Failed() bool {
	if r.RowsFailed > 0 {
		return true
	}
	for _, t := range r.Tables {
		if len(t.Errors) > 0 {
			return true
		}
	}
	return false
}
