// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `simulator:` key is ignored by the server binary).
//
// Config fields:
//   - GRPCPort            port for the gRPC ingest receiver (default 50051, 0 disables)
//   - HTTPPort            port for the REST API, /metrics and the alert stream (default 8080)
//   - LogLevel            debug | info | warn | error, applied on reload
//   - Storage             memory or sqlite backend, optional retention
//   - Evaluation          periodic interval plus optional per-append evaluation
//   - Ingest              simulator WebSocket/TCP endpoints and a file directory
//   - Alerts              cooldown, webhook targets and NATS publication
//   - Stream.SummaryInterval  how often the alert stream broadcasts a summary
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, fn) reloads the file on change.
package config
