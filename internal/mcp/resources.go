package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/haetable/internal/airtable"
	"github.com/meltforce/haetable/internal/ingest/hae"
)

type tableSchema struct {
	SleepMetrics []string         `json:"sleep_metrics"`
	Regular      []airtable.Field `json:"regular_columns"`
	Sleep        []airtable.Field `json:"sleep_columns"`
}

func (h *handlers) tableSchema(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(tableSchema{
		SleepMetrics: hae.SleepMetrics(),
		Regular:      hae.TableFields(false),
		Sleep:        hae.TableFields(true),
	})
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (h *handlers) recentDeliveriesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	deliveries, err := h.ds.RecentDeliveries(ctx, defaultDeliveries)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(deliveries)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
