package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meltforce/haetable/internal/airtable"
	"github.com/meltforce/haetable/internal/config"
	"github.com/meltforce/haetable/internal/ingest/hae"
	"github.com/meltforce/haetable/internal/lock"
	"github.com/meltforce/haetable/internal/replay"
	"github.com/meltforce/haetable/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "map and report samples without creating tables or rows")
	haeHost := flag.String("hae-host", "", "Health Auto Export TCP server host (queries HAE instead of reading files)")
	haePort := flag.Int("hae-port", 9000, "Health Auto Export TCP server port")
	startStr := flag.String("start", "", "start date YYYY-MM-DD (TCP mode)")
	endStr := flag.String("end", "", "end date YYYY-MM-DD, exclusive (TCP mode, default tomorrow)")
	chunkDays := flag.Int("chunk-days", 7, "days per HAE query (TCP mode)")
	metricFilter := flag.String("metrics", "", "comma-separated metric filter (TCP mode, default all)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("haetable-replay", Version)
		return
	}

	files := flag.Args()
	if *haeHost == "" && len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: haetable-replay [-dry-run] <export.json[.gz|.zst]>...\n")
		fmt.Fprintf(os.Stderr, "       haetable-replay [-dry-run] -hae-host <host> -start YYYY-MM-DD [-end YYYY-MM-DD]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := cfg.Log.NewLogger(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	journal, err := storage.Open(ctx, cfg.Journal.Driver, cfg.Journal.Path, cfg.Journal.DSN)
	if err != nil {
		log.Error("failed to open journal", "driver", cfg.Journal.Driver, "error", err)
		os.Exit(1)
	}
	defer journal.Close()

	// Share the server's table lock when Redis is configured.
	var locker lock.Locker = lock.NewKeyed()
	if cfg.Lock.Redis.Addr != "" {
		rl, err := lock.NewRedis(cfg.Lock.Redis.Addr, cfg.Lock.Redis.Password, cfg.Lock.Redis.DB, cfg.Lock.TTL, log)
		if err != nil {
			log.Error("failed to connect redis", "error", err)
			os.Exit(1)
		}
		defer rl.Close()
		locker = rl
	}

	client := airtable.NewClient(airtable.Config{
		BaseURL: cfg.Airtable.BaseURL,
		BaseID:  cfg.Airtable.BaseID,
		APIKey:  cfg.Airtable.APIKey,
		Timeout: cfg.Airtable.Timeout,
	})
	provider := hae.NewProvider(client, log, hae.WithLocker(locker), hae.WithDryRun(*dryRun))
	r := replay.New(provider, journal, log)

	if *dryRun {
		log.Info("DRY RUN mode: samples are mapped and counted but nothing is written")
	}

	if *haeHost != "" {
		start, end, err := parseRange(*startStr, *endStr)
		if err != nil {
			log.Error("invalid date range", "error", err)
			os.Exit(1)
		}
		hc := replay.NewHAEClient(*haeHost, *haePort)
		chunk := time.Duration(*chunkDays) * 24 * time.Hour
		if err := r.ReplayHAE(ctx, hc, start, end, chunk, *metricFilter); err != nil {
			log.Error("replay failed", "error", err)
			printStats(r.Stats(), *dryRun)
			os.Exit(1)
		}
	} else {
		for _, f := range files {
			if _, err := r.ReplayFile(ctx, f); err != nil {
				log.Error("replaying file failed", "file", f, "error", err)
			}
		}
	}

	stats := r.Stats()
	printStats(stats, *dryRun)
	if stats.Errors > 0 || stats.Total.RowsFailed > 0 {
		os.Exit(1)
	}
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	if startStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("-start is required with -hae-host")
	}
	start, err := time.ParseInLocation(time.DateOnly, startStr, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing -start: %w", err)
	}
	end := time.Now().Truncate(24*time.Hour).AddDate(0, 0, 1)
	if endStr != "" {
		end, err = time.ParseInLocation(time.DateOnly, endStr, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing -end: %w", err)
		}
	}
	return start, end, nil
}

func printStats(stats replay.Stats, dryRun bool) {
	fmt.Println()
	fmt.Println("=== Replay Summary ===")
	if dryRun {
		fmt.Println("  (dry run: rows counted as written were not sent)")
	}
	fmt.Printf("  Payloads:         %d\n", stats.Payloads)
	fmt.Printf("  Errors:           %d\n", stats.Errors)
	fmt.Println()
	fmt.Printf("  Metrics:          %d (%d rejected)\n", stats.Total.MetricsReceived, stats.Total.MetricsRejected)
	fmt.Printf("  Samples:          %d\n", stats.Total.SamplesReceived)
	fmt.Printf("  Rows written:     %d\n", stats.Total.RowsWritten)
	fmt.Printf("  Duplicates:       %d\n", stats.Total.RowsDuplicate)
	fmt.Printf("  Invalid:          %d\n", stats.Total.RowsInvalid)
	fmt.Printf("  Failed:           %d\n", stats.Total.RowsFailed)
	fmt.Printf("  Tables created:   %d\n", stats.Total.TablesCreated)
	fmt.Println()
}
