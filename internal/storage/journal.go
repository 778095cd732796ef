package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/haetable/internal/ingest"
)

// Delivery statuses.
const (
	StatusSuccess   = "success"
	StatusPartial   = "partial"
	StatusMalformed = "malformed"
)

const defaultLimit = 50

// Delivery is one journaled webhook delivery or replay.
type Delivery struct {
	ID              string           `json:"id"`
	ReceivedAt      time.Time        `json:"received_at"`
	Source          string           `json:"source"`
	Status          string           `json:"status"`
	MetricsReceived int              `json:"metrics_received"`
	SamplesReceived int              `json:"samples_received"`
	RowsWritten     int              `json:"rows_written"`
	RowsDuplicate   int              `json:"rows_duplicate"`
	RowsInvalid     int              `json:"rows_invalid"`
	RowsFailed      int              `json:"rows_failed"`
	TablesCreated   int              `json:"tables_created"`
	DurationMs      int              `json:"duration_ms"`
	ErrorMessage    *string          `json:"error_message,omitempty"`
	Result          *json.RawMessage `json:"result,omitempty"`
}

// Journal records deliveries for auditing. It is never read by the
// ingestion pipeline.
type Journal interface {
	Record(ctx context.Context, d Delivery) error
	Recent(ctx context.Context, limit int) ([]Delivery, error)
	Close() error
}

// NewDeliveryID returns a fresh delivery identifier.
func NewDeliveryID() string {
	return uuid.NewString()
}

// NewDelivery builds a journal entry from a pipeline result. res may be nil
// when the payload could not be processed; errMsg is then recorded.
func NewDelivery(id, source string, receivedAt time.Time, elapsed time.Duration, res *ingest.Result, errMsg string) Delivery {
	d := Delivery{
		ID:         id,
		ReceivedAt: receivedAt.UTC(),
		Source:     source,
		DurationMs: int(elapsed.Milliseconds()),
	}
	if errMsg != "" {
		d.ErrorMessage = &errMsg
	}
	if res == nil {
		d.Status = StatusMalformed
		return d
	}

	d.Status = StatusSuccess
	if res.Failed() {
		d.Status = StatusPartial
	}
	d.MetricsReceived = res.MetricsReceived
	d.SamplesReceived = res.SamplesReceived
	d.RowsWritten = res.RowsWritten
	d.RowsDuplicate = res.RowsDuplicate
	d.RowsInvalid = res.RowsInvalid
	d.RowsFailed = res.RowsFailed
	d.TablesCreated = res.TablesCreated
	if b, err := json.Marshal(res); err == nil {
		raw := json.RawMessage(b)
		d.Result = &raw
	}
	return d
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > 500 {
		return 500
	}
	return limit
}

// Nop is the journal used when journaling is disabled.
type Nop struct{}

func (Nop) Record(context.Context, Delivery) error          { return nil }
func (Nop) Recent(context.Context, int) ([]Delivery, error) { return nil, nil }
func (Nop) Close() error                                    { return nil }
