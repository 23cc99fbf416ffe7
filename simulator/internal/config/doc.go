// Package config loads and watches the simulator section of config.yaml.
//
// Load(path) applies defaults (10 patients, ECG and saturation every second,
// pressure every minute, alert button every 20s, a 1000-record gRPC buffer),
// then validates intervals, ports and that at least one output is enabled.
//
// Watch(ctx, path, onChange) re-parses the file on fsnotify write or create
// events. Only the log level is applied live; generator and output settings
// take effect on restart.
package config
