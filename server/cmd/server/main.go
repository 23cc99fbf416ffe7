package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/cardiowatch/cardiowatch/pkg/wire"
	"github.com/cardiowatch/cardiowatch/server/internal/alerts"
	"github.com/cardiowatch/cardiowatch/server/internal/api"
	"github.com/cardiowatch/cardiowatch/server/internal/config"
	"github.com/cardiowatch/cardiowatch/server/internal/ingest"
	"github.com/cardiowatch/cardiowatch/server/internal/scheduler"
	"github.com/cardiowatch/cardiowatch/server/internal/store"
	"github.com/cardiowatch/cardiowatch/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("cardiowatch-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Server.Level())

	slog.Info("config loaded",
		"grpc_port", cfg.Server.GRPCPort,
		"http_port", cfg.Server.HTTPPort,
		"storage", cfg.Server.Storage.Backend,
		"eval_interval", cfg.Server.Evaluation.Interval,
		"on_append", cfg.Server.Evaluation.OnAppend,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Only the log level is hot-reloadable; everything else needs a restart.
	go func() {
		err := config.Watch(ctx, *configPath, func(c *config.Config) {
			level.Set(c.Server.Level())
			slog.Info("log level reloaded", "level", c.Server.Level())
		})
		if err != nil {
			slog.Warn("config watch disabled", "err", err)
		}
	}()

	st, err := openStore(cfg.Server.Storage)
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.Server.Storage.Backend, "err", err)
		os.Exit(1)
	}
	defer st.Close()
	go store.NewRetainer(st, cfg.Server.Storage.Retention).Run(ctx)

	engine := alerts.NewEngine(st)
	dispatcher := alerts.NewDispatcher(cfg.Server.Alerts.Cooldown, alerts.LogSink{})
	if len(cfg.Server.Alerts.Webhooks) > 0 {
		dispatcher.AddSink(alerts.NewWebhookSink(cfg.Server.Alerts.Webhooks))
	}
	if url := cfg.Server.Alerts.NATS.URL; url != "" {
		nc, err := alerts.DialNATS(url)
		if err != nil {
			slog.Warn("NATS unavailable, alerts will not be published", "url", url, "err", err)
		} else {
			defer nc.Drain() //nolint:errcheck
			dispatcher.AddSink(alerts.NewNATSSink(nc, cfg.Server.Alerts.NATS.Subject))
		}
	}

	// Evaluation loop, plus per-record evaluation when on_append is set.
	ev := cfg.Server.Evaluation
	sched := scheduler.New(engine, st, dispatcher, ev.Interval, ev.PerPatientRate)
	go sched.Run(ctx)

	var rec *ingest.Recorder
	if ev.OnAppend {
		rec = ingest.NewRecorder(st, sched)
	} else {
		rec = ingest.NewRecorder(st, nil)
	}

	// Simulator file output is a one-shot backfill.
	if dir := cfg.Server.Ingest.FileDir; dir != "" {
		stats, err := ingest.NewFileReader(rec).ReadDir(dir)
		if err != nil {
			slog.Error("file ingest failed", "dir", dir, "err", err)
		} else {
			slog.Info("file ingest complete",
				"dir", dir,
				"files", stats.Files,
				"stored", stats.Stored,
				"rejected", stats.Rejected,
			)
		}
	}

	in := cfg.Server.Ingest
	for _, url := range in.WebSocket {
		c := ingest.NewClient(url, ingest.WebSocketDialer(url), rec, in.ReconnectInitial, in.ReconnectMax)
		go c.Run(ctx)
	}
	for _, addr := range in.TCP {
		c := ingest.NewClient(addr, ingest.TCPDialer(addr), rec, in.ReconnectInitial, in.ReconnectMax)
		go c.Run(ctx)
	}

	var grpcSrv *grpc.Server
	if cfg.Server.GRPCPort > 0 {
		grpcSrv = grpc.NewServer()
		wire.RegisterIngestServer(grpcSrv, ingest.NewReceiver(rec))

		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
		if err != nil {
			slog.Error("failed to listen on gRPC port",
				"port", cfg.Server.GRPCPort, "err", err)
			os.Exit(1)
		}
		go func() {
			slog.Info("gRPC receiver listening", "port", cfg.Server.GRPCPort)
			if err := grpcSrv.Serve(lis); err != nil {
				slog.Error("gRPC server stopped", "err", err)
			}
		}()
	}

	// WebSocket hub: pushes every delivered alert and a periodic summary.
	hub := ws.New(dispatcher, st, cfg.Server.Stream.SummaryInterval)
	dispatcher.AddSink(hub)
	go hub.Run(ctx)

	httpSrv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: api.New(api.Deps{
			Store:    st,
			Recorder: rec,
			Engine:   engine,
			History:  dispatcher,
			Stream:   hub,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("cardiowatch-server shutting down")
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

func openStore(cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return store.OpenSQLite(cfg.Path)
	default:
		return store.NewMemory(), nil
	}
}
