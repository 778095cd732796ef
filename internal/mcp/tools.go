package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultLatestDates = 10
	defaultDeliveries  = 20
)

// --- Tool definitions ---

var toolListTables = mcp.NewTool("list_tables",
	mcp.WithDescription("List the tables in the Airtable base. Each Health Auto Export metric is stored in a table named after it (e.g. heart_rate, step_count)."),
)

var toolTableDates = mcp.NewTool("table_dates",
	mcp.WithDescription("Count the timestamps stored in a metric table and return the most recent ones. Timestamps are canonical UTC strings; a sample with a stored timestamp is skipped on ingest."),
	mcp.WithString("table", mcp.Required(), mcp.Description("Table (metric) name, e.g. resting_heart_rate")),
	mcp.WithNumber("latest", mcp.Description("How many of the newest timestamps to return. Defaults to 10.")),
)

var toolRecentDeliveries = mcp.NewTool("recent_deliveries",
	mcp.WithDescription("List recent webhook deliveries with their status and row counters (written, duplicate, invalid, failed), newest first."),
	mcp.WithNumber("limit", mcp.Description("Maximum number of deliveries. Defaults to 20.")),
)

// --- Tool handlers ---

func (h *handlers) listTables(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := h.ds.ListTables(ctx)
	if err != nil {
		h.log.Error("mcp list_tables", "error", err)
		return mcp.NewToolResultError("listing tables failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(list)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) tableDates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table, err := req.RequireString("table")
	if err != nil {
		return mcp.NewToolResultError("table parameter is required"), nil
	}
	latest := req.GetInt("latest", defaultLatestDates)

	dates, err := h.ds.TableDates(ctx, table, latest)
	if err != nil {
		h.log.Error("mcp table_dates", "table", table, "error", err)
		return mcp.NewToolResultError("loading dates failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(dates)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) recentDeliveries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultDeliveries)

	deliveries, err := h.ds.RecentDeliveries(ctx, limit)
	if err != nil {
		h.log.Error("mcp recent_deliveries", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(deliveries)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
