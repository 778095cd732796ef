package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("haetable", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("haetable forwards Health Auto Export deliveries into an Airtable base, one table per metric. Inspect the tables, the timestamps already stored in a table, and the recent delivery journal."),
	)

	h := &handlers{ds: ds, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolListTables, Handler: h.listTables},
		server.ServerTool{Tool: toolTableDates, Handler: h.tableDates},
		server.ServerTool{Tool: toolRecentDeliveries, Handler: h.recentDeliveries},
	)

	s.AddResources(
		server.ServerResource{Resource: resTableSchema, Handler: h.tableSchema},
		server.ServerResource{Resource: resRecentDeliveries, Handler: h.recentDeliveriesResource},
	)

	return s
}

// NewHTTPHandler serves s over the streamable HTTP transport.
func NewHTTPHandler(s *server.MCPServer) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s, server.WithStateLess(true))
}

// --- Resource definitions ---

var resTableSchema = mcp.NewResource(
	"haetable://table_schema",
	"Table Schema",
	mcp.WithResourceDescription("Columns every metric table is created with, the extra sleep columns, and the metrics that get them"),
	mcp.WithMIMEType("application/json"),
)

var resRecentDeliveries = mcp.NewResource(
	"haetable://recent_deliveries",
	"Recent Deliveries",
	mcp.WithResourceDescription("The 20 most recent webhook deliveries with their row counters"),
	mcp.WithMIMEType("application/json"),
)

// handlers holds dependencies for MCP tool handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}
