package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultPatientCount       = 10
	DefaultLogLevel           = "info"
	DefaultECGInterval        = 1 * time.Second
	DefaultSaturationInterval = 1 * time.Second
	DefaultPressureInterval   = 1 * time.Minute
	DefaultAlertInterval      = 20 * time.Second
	DefaultBufferSize         = 1000
	DefaultBatchSize          = 50
)

// Config holds the simulator configuration parsed from the `simulator:`
// section of config.yaml. The `server:` key in the same file is ignored.
type Config struct {
	Simulator SimulatorConfig `yaml:"simulator"`
}

// SimulatorConfig holds all simulator-side settings.
type SimulatorConfig struct {
	// PatientCount is the number of simulated patients, ids 1..PatientCount.
	PatientCount int `yaml:"patient_count"`

	// Seed makes generated data reproducible. Zero seeds from the clock.
	Seed int64 `yaml:"seed"`

	// LogLevel is one of: debug | info | warn | error. Hot-reloadable.
	LogLevel string `yaml:"log_level"`

	Intervals IntervalsConfig `yaml:"intervals"`
	Outputs   OutputsConfig   `yaml:"outputs"`
}

// IntervalsConfig sets how often each generator runs for every patient.
type IntervalsConfig struct {
	ECG        time.Duration `yaml:"ecg"`
	Saturation time.Duration `yaml:"saturation"`
	Pressure   time.Duration `yaml:"pressure"`
	Alert      time.Duration `yaml:"alert"`
}

// OutputsConfig selects where generated samples go. Any combination may be
// enabled; at least one is required.
type OutputsConfig struct {
	// Console prints every sample to stdout.
	Console bool `yaml:"console"`

	// FileDir appends samples to one <label>.txt file per label in this directory.
	FileDir string `yaml:"file_dir"`

	// TCPPort serves the line stream to TCP clients. Zero disables it.
	TCPPort int `yaml:"tcp_port"`

	// WebSocketPort serves the line stream to WebSocket clients. Zero disables it.
	WebSocketPort int `yaml:"websocket_port"`

	GRPC GRPCOutputConfig `yaml:"grpc"`
}

// GRPCOutputConfig configures shipping records to the server's ingest service.
type GRPCOutputConfig struct {
	// Endpoint is host:port of the server's gRPC receiver. Empty disables it.
	Endpoint string `yaml:"endpoint"`

	// BufferSize is the maximum number of records held while the server is
	// unreachable. The oldest are evicted first.
	BufferSize int `yaml:"buffer_size"`

	// BatchSize caps the records sent in one AddRecords call.
	BatchSize int `yaml:"batch_size"`
}

// Level returns the slog level named by LogLevel.
func (s SimulatorConfig) Level() slog.Level {
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

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("simulator config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("simulator config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("simulator config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Simulator: SimulatorConfig{
			PatientCount: DefaultPatientCount,
			LogLevel:     DefaultLogLevel,
			Intervals: IntervalsConfig{
				ECG:        DefaultECGInterval,
				Saturation: DefaultSaturationInterval,
				Pressure:   DefaultPressureInterval,
				Alert:      DefaultAlertInterval,
			},
			Outputs: OutputsConfig{
				GRPC: GRPCOutputConfig{
					BufferSize: DefaultBufferSize,
					BatchSize:  DefaultBatchSize,
				},
			},
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	s := cfg.Simulator
	if s.PatientCount <= 0 {
		return fmt.Errorf("simulator.patient_count must be positive")
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("simulator.log_level %q unknown: want debug|info|warn|error", s.LogLevel)
	}
	iv := s.Intervals
	if iv.ECG <= 0 || iv.Saturation <= 0 || iv.Pressure <= 0 || iv.Alert <= 0 {
		return fmt.Errorf("simulator.intervals must all be positive")
	}

	out := s.Outputs
	for name, port := range map[string]int{"tcp_port": out.TCPPort, "websocket_port": out.WebSocketPort} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("simulator.outputs.%s %d is out of range [0, 65535]", name, port)
		}
	}
	if out.TCPPort != 0 && out.TCPPort == out.WebSocketPort {
		return fmt.Errorf("simulator.outputs: tcp_port and websocket_port must differ")
	}
	if out.GRPC.BufferSize <= 0 {
		return fmt.Errorf("simulator.outputs.grpc.buffer_size must be positive")
	}
	if out.GRPC.BatchSize <= 0 {
		return fmt.Errorf("simulator.outputs.grpc.batch_size must be positive")
	}
	if !out.Console && out.FileDir == "" && out.TCPPort == 0 && out.WebSocketPort == 0 && out.GRPC.Endpoint == "" {
		return fmt.Errorf("simulator.outputs: at least one output must be enabled")
	}
	return nil
}
