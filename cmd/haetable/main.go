package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meltforce/haetable/internal/airtable"
	"github.com/meltforce/haetable/internal/config"
	"github.com/meltforce/haetable/internal/events"
	"github.com/meltforce/haetable/internal/ingest/hae"
	"github.com/meltforce/haetable/internal/lock"
	"github.com/meltforce/haetable/internal/mcp"
	"github.com/meltforce/haetable/internal/metrics"
	"github.com/meltforce/haetable/internal/server"
	"github.com/meltforce/haetable/internal/storage"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "map and report samples without creating tables or rows")
	migrateOnly := flag.Bool("migrate-only", false, "run journal migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := cfg.Log.NewLogger(os.Stdout)
	log.Info("haetable starting", "version", Version, "dry_run", *dryRun)

	if *migrateOnly {
		if cfg.Journal.Driver != config.JournalPostgres {
			log.Info("migrate-only: journal driver has no migrations", "driver", cfg.Journal.Driver)
			return
		}
		if err := storage.RunMigrations(cfg.Journal.DSN); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")
		return
	}

	ctx := context.Background()
	m := metrics.New()

	// Journal
	journal, err := storage.Open(ctx, cfg.Journal.Driver, cfg.Journal.Path, cfg.Journal.DSN)
	if err != nil {
		log.Error("failed to open journal", "driver", cfg.Journal.Driver, "error", err)
		os.Exit(1)
	}
	defer journal.Close()
	log.Info("journal ready", "driver", cfg.Journal.Driver)

	// Table lock: Redis when configured so several instances share it.
	var locker lock.Locker = lock.NewKeyed()
	if cfg.Lock.Redis.Addr != "" {
		rl, err := lock.NewRedis(cfg.Lock.Redis.Addr, cfg.Lock.Redis.Password, cfg.Lock.Redis.DB, cfg.Lock.TTL, log)
		if err != nil {
			log.Error("failed to connect redis", "error", err)
			os.Exit(1)
		}
		defer rl.Close()
		locker = rl
		log.Info("redis table lock enabled", "addr", cfg.Lock.Redis.Addr)
	}

	// Delivery events
	var publisher events.Publisher = events.Nop{}
	if cfg.MQTT.Broker != "" {
		p, err := events.NewMQTT(events.MQTTOptions{
			BrokerURL: cfg.MQTT.Broker,
			ClientID:  cfg.MQTT.ClientID,
			Topic:     cfg.MQTT.Topic,
		}, log)
		if err != nil {
			log.Error("failed to connect mqtt", "error", err)
			os.Exit(1)
		}
		defer p.Close()
		publisher = p
		log.Info("mqtt events enabled", "broker", cfg.MQTT.Broker, "topic", cfg.MQTT.Topic)
	}

	client := airtable.NewClient(airtable.Config{
		BaseURL: cfg.Airtable.BaseURL,
		BaseID:  cfg.Airtable.BaseID,
		APIKey:  cfg.Airtable.APIKey,
		Timeout: cfg.Airtable.Timeout,
	}, airtable.WithObserver(m))

	haeProvider := hae.NewProvider(client, log,
		hae.WithLocker(locker),
		hae.WithRecorder(m),
		hae.WithDryRun(*dryRun),
	)

	inspect := mcp.NewLocal(haeProvider, journal)
	mcpServer := mcp.New(inspect, Version, log)

	srv := server.New(haeProvider, journal, log,
		server.WithWebhookKey(cfg.Auth.WebhookKey),
		server.WithPublisher(publisher),
		server.WithMetrics(m, m.Handler()),
		server.WithInspector(inspect),
		server.WithMCP(mcp.NewHTTPHandler(mcpServer)),
	)

	// Start server: tsnet or plain HTTP
	var listener net.Listener

	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := cfg.Server.Addr()
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr)
	}

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
