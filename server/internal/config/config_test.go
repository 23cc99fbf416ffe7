package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	// Simulator section only; the server section is absent.
	p := writeConfig(t, `simulator:
  patients: 10
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Server
	if s.GRPCPort != DefaultGRPCPort {
		t.Errorf("grpc_port: got %d, want %d", s.GRPCPort, DefaultGRPCPort)
	}
	if s.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", s.HTTPPort, DefaultHTTPPort)
	}
	if s.Storage.Backend != "memory" {
		t.Errorf("storage.backend: got %q, want memory", s.Storage.Backend)
	}
	if s.Evaluation.Interval != DefaultEvalInterval {
		t.Errorf("evaluation.interval: got %v, want %v", s.Evaluation.Interval, DefaultEvalInterval)
	}
	if s.Alerts.NATS.Subject != DefaultNATSSubject {
		t.Errorf("alerts.nats.subject: got %q, want %q", s.Alerts.NATS.Subject, DefaultNATSSubject)
	}
	if s.Level() != slog.LevelInfo {
		t.Errorf("Level: got %v, want info", s.Level())
	}
}

func TestLoad_FullServer(t *testing.T) {
	p := writeConfig(t, `server:
  grpc_port: 9090
  http_port: 9091
  log_level: debug
  storage:
    backend: sqlite
    path: /tmp/records.db
    retention: 24h
  evaluation:
    interval: 30s
    on_append: true
    per_patient_rate: 2
  ingest:
    websocket: ["ws://localhost:8090/"]
    tcp: ["localhost:9000"]
  alerts:
    cooldown: 1m
    webhooks:
      - type: slack
        url_env: SLACK_URL
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Server
	if s.GRPCPort != 9090 {
		t.Errorf("grpc_port: got %d, want 9090", s.GRPCPort)
	}
	if s.Level() != slog.LevelDebug {
		t.Errorf("Level: got %v, want debug", s.Level())
	}
	if s.Storage.Retention != 24*time.Hour {
		t.Errorf("storage.retention: got %v, want 24h", s.Storage.Retention)
	}
	if !s.Evaluation.OnAppend || s.Evaluation.PerPatientRate != 2 {
		t.Errorf("evaluation: got %+v", s.Evaluation)
	}
	if len(s.Ingest.WebSocket) != 1 || len(s.Ingest.TCP) != 1 {
		t.Errorf("ingest: got %+v", s.Ingest)
	}
	if s.Alerts.Cooldown != time.Minute {
		t.Errorf("alerts.cooldown: got %v, want 1m", s.Alerts.Cooldown)
	}
}

func TestWebhookURLResolution(t *testing.T) {
	t.Setenv("TEST_WEBHOOK_URL", "https://hooks.example.com/x")
	wh := WebhookConfig{Type: "http", URLEnv: "TEST_WEBHOOK_URL"}
	if got := wh.URL(); got != "https://hooks.example.com/x" {
		t.Errorf("URL(): got %q", got)
	}
	if got := (WebhookConfig{Type: "http"}).URL(); got != "" {
		t.Errorf("URL() without env: got %q, want empty", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown backend": "server:\n  storage:\n    backend: redis\n",
		"sqlite no path":  "server:\n  storage:\n    backend: sqlite\n",
		"bad log level":   "server:\n  log_level: loud\n",
		"bad port":        "server:\n  http_port: 70000\n",
		"zero interval":   "server:\n  evaluation:\n    interval: 0s\n",
		"webhook type":    "server:\n  alerts:\n    webhooks:\n      - type: pager\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	p := writeConfig(t, "server:\n  log_level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *Config, 16)
	ready := make(chan struct{})
	go func() {
		close(ready)
		Watch(ctx, p, func(c *Config) { //nolint:errcheck
			changed <- c
		})
	}()
	<-ready
	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(p, []byte("server:\n  log_level: debug\n"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	// A truncating write can surface an intermediate empty file first.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.Server.Level() == slog.LevelDebug {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for reload with log_level debug")
		}
	}
}
