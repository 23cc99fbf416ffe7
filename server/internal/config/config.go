package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultGRPCPort          = 50051
	DefaultHTTPPort          = 8080
	DefaultLogLevel          = "info"
	DefaultStorageBackend    = "memory"
	DefaultEvalInterval      = 10 * time.Second
	DefaultPerPatientRate    = 1.0
	DefaultSummaryInterval   = 5 * time.Second
	DefaultNATSSubject       = "cardiowatch.alerts"
	DefaultReconnectMaxWait  = 30 * time.Second
	DefaultReconnectInitWait = 500 * time.Millisecond
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `simulator:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// GRPCPort is the port the gRPC ingest receiver listens on (default 50051).
	// Zero disables the receiver.
	GRPCPort int `yaml:"grpc_port"`

	// HTTPPort is the port the REST API, metrics and alert stream listen on.
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error. Hot-reloadable.
	LogLevel string `yaml:"log_level"`

	Storage    StorageConfig    `yaml:"storage"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Stream     StreamConfig     `yaml:"stream"`
}

// StorageConfig selects the record store backend.
type StorageConfig struct {
	// Backend is one of: memory | sqlite.
	Backend string `yaml:"backend"`

	// Path is the SQLite database file. Required when Backend == "sqlite".
	Path string `yaml:"path"`

	// Retention prunes records older than this. Zero keeps everything.
	Retention time.Duration `yaml:"retention"`
}

// EvaluationConfig controls when patients are evaluated.
type EvaluationConfig struct {
	// Interval is the period of the evaluate-all-patients loop.
	Interval time.Duration `yaml:"interval"`

	// OnAppend also evaluates a patient right after a record is ingested,
	// throttled per patient by PerPatientRate.
	OnAppend bool `yaml:"on_append"`

	// PerPatientRate is the maximum on-append evaluations per second per patient.
	PerPatientRate float64 `yaml:"per_patient_rate"`
}

// IngestConfig lists the upstream data sources the server connects to.
type IngestConfig struct {
	// WebSocket holds ws:// URLs of simulator WebSocket outputs.
	WebSocket []string `yaml:"websocket"`

	// TCP holds host:port addresses of simulator TCP outputs.
	TCP []string `yaml:"tcp"`

	// FileDir is a directory of simulator file output read once at startup.
	FileDir string `yaml:"file_dir"`

	// ReconnectInitial and ReconnectMax bound the streaming clients' backoff.
	ReconnectInitial time.Duration `yaml:"reconnect_initial"`
	ReconnectMax     time.Duration `yaml:"reconnect_max"`
}

// AlertsConfig holds alert delivery targets.
type AlertsConfig struct {
	// Cooldown suppresses re-delivery of the same patient and condition to
	// sinks for this duration. Zero delivers every alert.
	Cooldown time.Duration `yaml:"cooldown"`

	Webhooks []WebhookConfig `yaml:"webhooks"`
	NATS     NATSConfig      `yaml:"nats"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// NATSConfig configures alert publication to a NATS subject.
type NATSConfig struct {
	// URL is the NATS server URL. Empty disables publication.
	URL string `yaml:"url"`

	// Subject defaults to "cardiowatch.alerts".
	Subject string `yaml:"subject"`
}

// StreamConfig controls the WebSocket alert stream.
type StreamConfig struct {
	// SummaryInterval is how often a summary message is broadcast.
	SummaryInterval time.Duration `yaml:"summary_interval"`
}

// Level returns the slog level named by LogLevel.
func (s ServerConfig) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort: DefaultGRPCPort,
			HTTPPort: DefaultHTTPPort,
			LogLevel: DefaultLogLevel,
			Storage: StorageConfig{
				Backend: DefaultStorageBackend,
			},
			Evaluation: EvaluationConfig{
				Interval:       DefaultEvalInterval,
				PerPatientRate: DefaultPerPatientRate,
			},
			Ingest: IngestConfig{
				ReconnectInitial: DefaultReconnectInitWait,
				ReconnectMax:     DefaultReconnectMaxWait,
			},
			Alerts: AlertsConfig{
				NATS: NATSConfig{Subject: DefaultNATSSubject},
			},
			Stream: StreamConfig{
				SummaryInterval: DefaultSummaryInterval,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.GRPCPort < 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [0, 65535]", s.GRPCPort)
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", s.LogLevel)
	}
	switch s.Storage.Backend {
	case "memory":
	case "sqlite":
		if s.Storage.Path == "" {
			return fmt.Errorf("server.storage.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("server.storage.backend %q unknown: want memory|sqlite", s.Storage.Backend)
	}
	if s.Storage.Retention < 0 {
		return fmt.Errorf("server.storage.retention must not be negative")
	}
	if s.Evaluation.Interval <= 0 {
		return fmt.Errorf("server.evaluation.interval must be positive")
	}
	if s.Evaluation.OnAppend && s.Evaluation.PerPatientRate <= 0 {
		return fmt.Errorf("server.evaluation.per_patient_rate must be positive when on_append is set")
	}
	if s.Ingest.ReconnectInitial <= 0 || s.Ingest.ReconnectMax < s.Ingest.ReconnectInitial {
		return fmt.Errorf("server.ingest reconnect bounds invalid: initial %v, max %v",
			s.Ingest.ReconnectInitial, s.Ingest.ReconnectMax)
	}
	for i, wh := range s.Alerts.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks[%d]: unknown type %q", i, wh.Type)
		}
	}
	if s.Alerts.Cooldown < 0 {
		return fmt.Errorf("server.alerts.cooldown must not be negative")
	}
	if s.Stream.SummaryInterval <= 0 {
		return fmt.Errorf("server.stream.summary_interval must be positive")
	}
	return nil
}
