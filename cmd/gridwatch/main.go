package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gridwatch/gridwatch/internal/announce"
	"github.com/gridwatch/gridwatch/internal/config"
	"github.com/gridwatch/gridwatch/internal/grid"
	"github.com/gridwatch/gridwatch/internal/health"
	"github.com/gridwatch/gridwatch/internal/journal"
	"github.com/gridwatch/gridwatch/internal/poller"
	"github.com/gridwatch/gridwatch/internal/probe"
	"github.com/gridwatch/gridwatch/internal/quorum"
	"github.com/gridwatch/gridwatch/internal/server"
	"github.com/gridwatch/gridwatch/internal/silence"
	"github.com/gridwatch/gridwatch/internal/ws"
	"github.com/gridwatch/gridwatch/pkg/wire"
)

// version is stamped by the build: -ldflags "-X main.version=v1.2.3".
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve the dashboard static files from this directory; leave empty to disable")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("gridwatch starting", "version", version, "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"name", cfg.Name,
		"peers", len(cfg.Peers),
		"poll_interval", cfg.PollInterval,
		"announce_mode", cfg.Announce.Mode,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	peers := make([]grid.Peer, 0, len(cfg.Peers))
	for _, p := range cfg.Peers {
		peers = append(peers, grid.Peer{
			Name:         p.Name,
			Address:      p.Address,
			NotifyHandle: p.NotifyHandle,
		})
	}
	roster := grid.New(cfg.Name, peers)
	if len(roster.Others()) < 2 {
		slog.Warn("fewer than two watched peers — a down peer can never gather a confirming majority",
			"peers", len(roster.Others()))
	}

	engine := health.NewEngine(roster)

	prober, err := probe.New(cfg.Client, cfg.Secret(), cfg.Name, version, cfg.ProbeTimeout)
	if err != nil {
		slog.Error("failed to build probe client", "err", err)
		os.Exit(1)
	}

	var jnl *journal.Journal
	if cfg.Journal.Path != "" {
		jnl, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			slog.Error("failed to open journal", "path", cfg.Journal.Path, "err", err)
			os.Exit(1)
		}
		defer jnl.Close()
		slog.Info("journal open", "path", cfg.Journal.Path)
	}

	silences := silence.NewBook()

	// Watch config file for changes. Peers and intervals are fixed at
	// startup, so a change only logs a restart reminder.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			slog.Info("config file changed — restart to apply", "peers", len(updated.Peers))
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// WebSocket hub — pushes the grid view to dashboards every 5 seconds.
	hub := ws.New(func() wire.GridResponse {
		return server.BuildGrid(engine.Snapshot())
	}, 5*time.Second)
	go hub.Run(ctx)

	// Poll loop — probes peers, seeks corroboration, announces.
	p := poller.New(poller.Deps{
		Roster:    roster,
		Engine:    engine,
		Prober:    prober,
		Confirmer: quorum.New(roster, prober),
		Announcer: announce.New(cfg.Announce, cfg.Name),
		Silences:  silences,
		Journal:   jnl,
	}, cfg.PollInterval, cfg.ConnectivityCheckURL)
	go p.Run(ctx)

	handler := server.New(server.Deps{
		Roster:   roster,
		Engine:   engine,
		Silences: silences,
		Journal:  jnl,
		Stream:   hub,
		Secret:   cfg.Secret(),
		Version:  version,
		UIDir:    *uiDir,
	})

	httpSrv := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: handler,
	}
	go func() {
		var err error
		if cfg.Server.TLS.Enabled() {
			slog.Info("HTTPS server listening", "addr", cfg.Server.Listen)
			err = httpSrv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			slog.Info("HTTP server listening", "addr", cfg.Server.Listen)
			err = httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("gridwatch shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}
