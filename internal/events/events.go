// Package events publishes a summary of every processed delivery.
package events

import (
	"context"
	"time"

	"github.com/meltforce/haetable/internal/ingest"
)

// Delivery is the message published after a webhook delivery ran.
type Delivery struct {
	ID         string         `json:"delivery_id"`
	ReceivedAt time.Time      `json:"received_at"`
	Status     string         `json:"status"`
	Result     *ingest.Result `json:"result"`
}

// Publisher sends delivery summaries to a downstream consumer.
type Publisher interface {
	Publish(ctx context.Context, d Delivery) error
	Close()
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Delivery) error { return nil }
func (Nop) Close()                                  {}
