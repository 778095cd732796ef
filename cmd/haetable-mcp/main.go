package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/meltforce/haetable/internal/mcp"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// haetable-mcp serves the MCP tools over stdio against a running haetable
// service, typically reached over Tailscale.
func main() {
	baseURL := flag.String("url", os.Getenv("HAETABLE_URL"), "haetable base URL (e.g. http://haetable.tail1234.ts.net)")
	apiKey := flag.String("api-key", os.Getenv("HAETABLE_AUTH_WEBHOOK_KEY"), "X-API-Key for the haetable API")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("haetable-mcp", Version)
		return
	}
	if *baseURL == "" {
		fmt.Fprintln(os.Stderr, "Usage: haetable-mcp -url <haetable URL> [-api-key KEY]")
		os.Exit(1)
	}

	// stdout carries the protocol; log to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	s := mcp.New(mcp.NewHTTPClient(*baseURL, *apiKey), Version, log)
	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp stdio server failed", "error", err)
		os.Exit(1)
	}
}
