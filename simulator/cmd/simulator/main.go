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

	"github.com/cardiowatch/cardiowatch/simulator/internal/config"
	"github.com/cardiowatch/cardiowatch/simulator/internal/generator"
	"github.com/cardiowatch/cardiowatch/simulator/internal/output"
	"github.com/cardiowatch/cardiowatch/simulator/internal/runner"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Console output owns stdout; logs go to stderr.
	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("cardiowatch-simulator starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	sim := cfg.Simulator
	level.Set(sim.Level())

	seed := sim.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	slog.Info("config loaded",
		"patients", sim.PatientCount,
		"seed", seed,
		"grpc_endpoint", sim.Outputs.GRPC.Endpoint,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			level.Set(updated.Simulator.Level())
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	outs, err := buildOutputs(ctx, sim.Outputs)
	if err != nil {
		slog.Error("failed to start outputs", "err", err)
		os.Exit(1)
	}
	defer outs.Close() //nolint:errcheck

	gens := generator.All(seed)
	intervals := map[string]time.Duration{
		"ECG":        sim.Intervals.ECG,
		"Saturation": sim.Intervals.Saturation,
		"Pressure":   sim.Intervals.Pressure,
		"Alert":      sim.Intervals.Alert,
	}
	r := runner.New(outs, sim.PatientCount)
	for _, g := range gens {
		r.Add(g, intervals[g.Name()])
		slog.Info("registered generator", "name", g.Name(), "interval", intervals[g.Name()])
	}
	go r.Run(ctx)

	<-ctx.Done()
	slog.Info("cardiowatch-simulator shutting down")
}

// buildOutputs opens every enabled output. The gRPC shipper's drain loop is
// started on ctx.
func buildOutputs(ctx context.Context, cfg config.OutputsConfig) (*output.Multi, error) {
	var outs []output.Output
	if cfg.Console {
		outs = append(outs, output.NewConsole(os.Stdout))
	}
	if cfg.FileDir != "" {
		f, err := output.NewFile(cfg.FileDir)
		if err != nil {
			return nil, err
		}
		outs = append(outs, f)
	}
	if cfg.TCPPort > 0 {
		s, err := output.ListenTCP(fmt.Sprintf(":%d", cfg.TCPPort))
		if err != nil {
			return nil, fmt.Errorf("tcp output: %w", err)
		}
		outs = append(outs, s)
	}
	if cfg.WebSocketPort > 0 {
		s, err := output.ListenWebSocket(fmt.Sprintf(":%d", cfg.WebSocketPort))
		if err != nil {
			return nil, fmt.Errorf("websocket output: %w", err)
		}
		outs = append(outs, s)
	}
	if cfg.GRPC.Endpoint != "" {
		s := output.NewShipper(cfg.GRPC)
		go s.Run(ctx)
		outs = append(outs, s)
	}
	return output.NewMulti(outs...), nil
}
